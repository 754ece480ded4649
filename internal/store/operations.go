package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"ocrlocate/internal/model"
	"ocrlocate/internal/query"
)

// dbHandle is the subset of *sql.DB the search helpers need, factored
// out so tests could substitute a *sql.Tx if ever needed.
type dbHandle interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// IsIndexed reports whether path is already indexed with the given
// modtime (whole seconds since the epoch). A missing row is not
// indexed.
func (s *Store) IsIndexed(ctx context.Context, path string, modTime int64) (bool, error) {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return false, err
	}
	defer s.releaseDB()

	var stored int64
	err = db.QueryRowContext(ctx, `SELECT modtime FROM images WHERE path = ?`, path).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, model.NewError(model.CodeStoreRead, "is_indexed lookup", err)
	}
	return stored == modTime, nil
}

// Save upserts each result in one transaction and returns the number of
// rows changed.
func (s *Store) Save(ctx context.Context, results []model.OcrResult) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}
	db, err := s.ensureDB(ctx)
	if err != nil {
		return 0, err
	}
	defer s.releaseDB()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, model.NewError(model.CodeStoreWrite, "begin save transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO images(path, modtime, content) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET modtime=excluded.modtime, content=excluded.content, mark_delete=0
	`)
	if err != nil {
		return 0, model.NewError(model.CodeStoreWrite, "prepare save statement", err)
	}
	defer func() { _ = stmt.Close() }()

	changed := 0
	for _, r := range results {
		res, err := stmt.ExecContext(ctx, r.Path, r.ModTime, r.Contents)
		if err != nil {
			return changed, model.NewError(model.CodeStoreWrite, fmt.Sprintf("saving %s", r.Path), err)
		}
		n, _ := res.RowsAffected()
		changed += int(n)
	}

	if err := tx.Commit(); err != nil {
		return changed, model.NewError(model.CodeStoreWrite, "commit save transaction", err)
	}
	return changed, nil
}

// MarkForDeletion requires dir to be a directory, clears every existing
// mark, then marks every row whose path starts with dir.
func (s *Store) MarkForDeletion(ctx context.Context, dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return model.NewError(model.CodeNotADirectory, fmt.Sprintf("%s is not a directory", dir), err)
	}

	db, err := s.ensureDB(ctx)
	if err != nil {
		return err
	}
	defer s.releaseDB()

	if _, err := db.ExecContext(ctx, `UPDATE images SET mark_delete = 0 WHERE mark_delete = 1`); err != nil {
		return model.NewError(model.CodeStoreWrite, "clearing previous marks", err)
	}
	if _, err := db.ExecContext(ctx,
		`UPDATE images SET mark_delete = 1 WHERE path LIKE ? ESCAPE '#'`,
		pathToLike(dir),
	); err != nil {
		return model.NewError(model.CodeStoreWrite, "marking for deletion", err)
	}
	return nil
}

// UnmarkFile clears the deletion mark for path, if any.
func (s *Store) UnmarkFile(ctx context.Context, path string) error {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return err
	}
	defer s.releaseDB()

	if _, err := db.ExecContext(ctx, `UPDATE images SET mark_delete = 0 WHERE path = ?`, path); err != nil {
		return model.NewError(model.CodeStoreWrite, "unmarking file", err)
	}
	return nil
}

// SweepDeletions deletes every still-marked row and returns the count
// removed.
func (s *Store) SweepDeletions(ctx context.Context) (int, error) {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return 0, err
	}
	defer s.releaseDB()

	res, err := db.ExecContext(ctx, `DELETE FROM images WHERE mark_delete = 1`)
	if err != nil {
		return 0, model.NewError(model.CodeStoreWrite, "sweeping deletions", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Search implements C5's dialect dispatch on top of C2's storage. Simple
// and Match queries use FTS5 MATCH with snippet() highlighting (grounded
// in the Rust original's search query); Glob and Regex queries fall back
// to a full scan of the images table, matched in Go by a query.Matcher,
// with snippets built in Go by the query package.
func (s *Store) Search(ctx context.Context, q model.SearchQuery) ([]model.SearchResult, error) {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return nil, err
	}
	defer s.releaseDB()

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	likePrefix := pathToLike(q.PathPrefix)

	switch q.Kind {
	case model.QuerySimple, model.QueryMatch:
		return s.searchFTS(ctx, db, q, likePrefix, limit)
	case model.QueryGlob, model.QueryRegex:
		return s.searchPattern(ctx, db, q, likePrefix, limit)
	default:
		return nil, model.NewError(model.CodeQueryParse, "unknown query kind", nil)
	}
}

func (s *Store) searchFTS(ctx context.Context, db dbHandle, q model.SearchQuery, likePrefix string, limit int) ([]model.SearchResult, error) {
	matchExpr, err := query.BuildMatchExpr(q.Kind, q.Terms)
	if err != nil {
		return nil, err
	}

	excludeClause, excludeArgs := excludeGlobClause(q.ExcludeGlob)

	sqlText := fmt.Sprintf(`
		SELECT snippet(images_fts, -1, '[', ']', '..', 10), images.path, images.modtime
		FROM images_fts
		INNER JOIN images ON images_fts.rowid = images.id
		WHERE images_fts.content MATCH ?
		  AND images.path LIKE ? ESCAPE '#'
		  AND images.mark_delete = 0
		  %s
		ORDER BY rank ASC, images.modtime DESC
		LIMIT ?
	`, excludeClause)

	args := append([]any{matchExpr, likePrefix}, excludeArgs...)
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, model.NewError(model.CodeStoreRead, "running fts search", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.SearchResult
	for rows.Next() {
		var r model.SearchResult
		if err := rows.Scan(&r.Snippet, &r.Path, &r.ModTime); err != nil {
			return nil, model.NewError(model.CodeStoreRead, "scanning search row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) searchPattern(ctx context.Context, db dbHandle, q model.SearchQuery, likePrefix string, limit int) ([]model.SearchResult, error) {
	matcher, err := query.NewMatcher(q.Kind, q.Terms)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT images.content, images.path, images.modtime
		FROM images
		WHERE images.path LIKE ? ESCAPE '#' AND images.mark_delete = 0
		ORDER BY images.modtime DESC
	`, likePrefix)
	if err != nil {
		return nil, model.NewError(model.CodeStoreRead, "scanning for pattern search", err)
	}
	defer func() { _ = rows.Close() }()

	var excludeMatcher func(string) bool
	if q.ExcludeGlob != "" {
		excludeMatcher = buildExcludeMatcher(q.ExcludeGlob)
	}

	var out []model.SearchResult
	for rows.Next() {
		var content, path string
		var modTime int64
		if err := rows.Scan(&content, &path, &modTime); err != nil {
			return nil, model.NewError(model.CodeStoreRead, "scanning pattern row", err)
		}
		if excludeMatcher != nil && excludeMatcher(path) {
			continue
		}
		ok, start, end := matcher.Match(content)
		if !ok {
			continue
		}
		out = append(out, model.SearchResult{
			Path:    path,
			ModTime: modTime,
			Snippet: query.Snippet(content, start, end),
		})
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

func excludeGlobClause(excludeGlob string) (string, []any) {
	if excludeGlob == "" {
		return "", nil
	}
	pattern := strings.TrimSuffix(excludeGlob, "/") + "/**"
	return "AND rust_glob(?, images.path) = 0", []any{pattern}
}

func buildExcludeMatcher(excludeGlob string) func(string) bool {
	pattern := strings.TrimSuffix(excludeGlob, "/") + "/**"
	return func(path string) bool {
		ok, _ := doublestar.Match(pattern, path)
		return ok
	}
}
