// Package store implements ocrlocate's index store (C2): a single SQLite
// file holding the images table, its external-content FTS5 mirror, and
// the mark-and-sweep deletion lifecycle. It is grounded on the lifecycle
// discipline (ensureDB/ReleaseDB/Close, a sync.Cond draining in-flight
// operations before the handle closes) used throughout the teacher's own
// internal/store/sqlite_store.go, and on the schema/operations
// documented by the Rust original's src/db.rs.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"modernc.org/sqlite"

	"ocrlocate/internal/model"
)

const (
	schemaFresh      = 0
	schemaPreRelease = 1
	schemaCurrent    = 2
)

// NoteSink receives the one-line informational notes the store emits,
// e.g. "creating new database", mirroring the Rust original's plain
// println! on first open.
type NoteSink interface {
	Note(string)
}

type discardNotes struct{}

func (discardNotes) Note(string) {}

// Store owns the backing SQLite file and all in-flight transactions.
// Workers never touch it directly; callers coordinate through the single
// *Store the pipeline holds.
type Store struct {
	path string

	mu sync.Mutex
	db *sql.DB

	activeOps int
	closing   bool
	cond      *sync.Cond
}

var registerFuncsOnce sync.Once
var registerFuncsErr error

func registerFuncs() error {
	registerFuncsOnce.Do(func() {
		registerFuncsErr = sqlite.RegisterDeterministicScalarFunction("rust_glob", 2, globSQLFunc)
		if registerFuncsErr != nil {
			return
		}
		registerFuncsErr = sqlite.RegisterDeterministicScalarFunction("regexp", 2, regexpSQLFunc)
	})
	return registerFuncsErr
}

func globSQLFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	pattern, _ := args[0].(string)
	text, _ := args[1].(string)
	ok, err := doublestar.Match(pattern, text)
	if err != nil {
		return int64(0), nil
	}
	if ok {
		return int64(1), nil
	}
	return int64(0), nil
}

func regexpSQLFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	pattern, _ := args[0].(string)
	text, _ := args[1].(string)
	re, err := regexpCache.get(pattern)
	if err != nil {
		return int64(0), nil
	}
	if re.MatchString(text) {
		return int64(1), nil
	}
	return int64(0), nil
}

// Open creates the database file if absent (emitting one informational
// note), enables WAL journaling and normal synchronous durability,
// registers the rust_glob and regexp scalar helpers, and dispatches on
// the on-disk schema version.
func Open(path string, notes NoteSink) (*Store, error) {
	if notes == nil {
		notes = discardNotes{}
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		notes.Note("creating new database")
	}

	if err := registerFuncs(); err != nil {
		return nil, model.NewError(model.CodeStoreWrite, "registering sql functions", err)
	}

	s := &Store{path: path}
	s.cond = sync.NewCond(&s.mu)

	if err := s.Init(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Init opens the connection (if not already open) and runs schema
// migration/validation. Safe to call more than once.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked(ctx)
}

func (s *Store) initLocked(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return model.NewError(model.CodeStoreWrite, "opening database", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return model.NewError(model.CodeStoreWrite, "setting journal_mode", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA synchronous=NORMAL;`); err != nil {
		_ = db.Close()
		return model.NewError(model.CodeStoreWrite, "setting synchronous", err)
	}

	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		_ = db.Close()
		return model.NewError(model.CodeStoreRead, "reading schema version", err)
	}

	switch version {
	case schemaFresh:
		if err := migrate(ctx, db); err != nil {
			_ = db.Close()
			return model.NewError(model.CodeStoreWrite, "running schema migration", err)
		}
	case schemaPreRelease:
		_ = db.Close()
		return model.NewError(model.CodeSchemaPreRelease, "database schema predates a stable release; delete the file and re-index", nil)
	case schemaCurrent:
		// nothing to do
	default:
		_ = db.Close()
		return model.NewError(model.CodeSchemaTooNew, fmt.Sprintf("database schema version %d is newer than this build supports", version), nil)
	}

	s.db = db
	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE images (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT UNIQUE NOT NULL,
			modtime INTEGER NOT NULL,
			mark_delete INTEGER NOT NULL DEFAULT 0,
			content TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX idx_images_mark_delete ON images(mark_delete)`,
		`CREATE VIRTUAL TABLE images_fts USING fts5(
			content,
			content='images',
			content_rowid='id',
			tokenize='trigram case_sensitive 0'
		)`,
		`CREATE TRIGGER images_ai AFTER INSERT ON images BEGIN
			INSERT INTO images_fts(rowid, content) VALUES (new.id, new.content);
		END`,
		`CREATE TRIGGER images_ad AFTER DELETE ON images BEGIN
			INSERT INTO images_fts(images_fts, rowid, content) VALUES('delete', old.id, old.content);
		END`,
		`CREATE TRIGGER images_au AFTER UPDATE ON images BEGIN
			INSERT INTO images_fts(images_fts, rowid, content) VALUES('delete', old.id, old.content);
			INSERT INTO images_fts(rowid, content) VALUES (new.id, new.content);
		END`,
		`PRAGMA user_version = 2`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return tx.Commit()
}

func (s *Store) ensureDB(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return nil, errors.New("store is closing")
	}
	if s.db == nil {
		if err := s.initLocked(ctx); err != nil {
			return nil, err
		}
	}
	s.activeOps++
	return s.db, nil
}

func (s *Store) releaseDB() {
	s.mu.Lock()
	if s.activeOps > 0 {
		s.activeOps--
	}
	if s.activeOps == 0 {
		s.cond.Broadcast()
	}
	s.mu.Unlock()
}

// Close drains in-flight operations and closes the backing file.
func (s *Store) Close() error {
	s.mu.Lock()
	for s.closing {
		s.cond.Wait()
	}
	if s.db == nil {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	db := s.db
	s.db = nil
	for s.activeOps > 0 {
		s.cond.Wait()
	}
	s.mu.Unlock()

	err := db.Close()

	s.mu.Lock()
	s.closing = false
	s.cond.Broadcast()
	s.mu.Unlock()
	return err
}

// pathToLike escapes p for use with LIKE ... ESCAPE '#', doubling any
// literal '#' and escaping the LIKE metacharacters '%' and '_', then
// appends a trailing '%' so the predicate matches p and everything
// beneath it.
func pathToLike(p string) string {
	var b strings.Builder
	for _, r := range p {
		switch r {
		case '#', '%', '_':
			b.WriteByte('#')
		}
		b.WriteRune(r)
	}
	b.WriteByte('%')
	return b.String()
}

type regexCache struct {
	mu    sync.Mutex
	cache map[string]*cachedRegexp
}

var regexpCacheInstance = &regexCache{cache: make(map[string]*cachedRegexp)}
var regexpCache = regexpCacheInstance
