package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"ocrlocate/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestIsIndexed_MissingRowIsFalse(t *testing.T) {
	st := openTestStore(t)
	ok, err := st.IsIndexed(context.Background(), "/tmp/missing.png", 100)
	if err != nil {
		t.Fatalf("IsIndexed: %v", err)
	}
	if ok {
		t.Error("expected false for a never-indexed path")
	}
}

func TestSaveThenIsIndexed(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	n, err := st.Save(ctx, []model.OcrResult{
		{Path: "/tmp/a.png", ModTime: 1000, Contents: "hello world"},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n != 1 {
		t.Errorf("Save rowcount = %d, want 1", n)
	}

	ok, err := st.IsIndexed(ctx, "/tmp/a.png", 1000)
	if err != nil {
		t.Fatalf("IsIndexed: %v", err)
	}
	if !ok {
		t.Error("expected true after Save with matching modtime")
	}

	ok, err = st.IsIndexed(ctx, "/tmp/a.png", 2000)
	if err != nil {
		t.Fatalf("IsIndexed: %v", err)
	}
	if ok {
		t.Error("expected false after Save with a different modtime")
	}
}

func TestMarkAndSweepDeletion(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	inside := filepath.Join(dir, "a.png")
	outside := "/elsewhere/b.png"
	if _, err := st.Save(ctx, []model.OcrResult{
		{Path: inside, ModTime: 1, Contents: "inside"},
		{Path: outside, ModTime: 1, Contents: "outside"},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := st.MarkForDeletion(ctx, dir); err != nil {
		t.Fatalf("MarkForDeletion: %v", err)
	}
	if err := st.UnmarkFile(ctx, inside); err != nil {
		t.Fatalf("UnmarkFile: %v", err)
	}

	n, err := st.SweepDeletions(ctx)
	if err != nil {
		t.Fatalf("SweepDeletions: %v", err)
	}
	if n != 0 {
		t.Errorf("sweep count = %d, want 0 because inside was unmarked and outside was never marked", n)
	}

	if err := st.MarkForDeletion(ctx, dir); err != nil {
		t.Fatalf("MarkForDeletion: %v", err)
	}
	n, err = st.SweepDeletions(ctx)
	if err != nil {
		t.Fatalf("SweepDeletions: %v", err)
	}
	if n != 1 {
		t.Errorf("sweep count = %d, want 1", n)
	}
}

func TestMarkForDeletion_RejectsNonDirectory(t *testing.T) {
	st := openTestStore(t)
	file := filepath.Join(t.TempDir(), "notadir")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	err := st.MarkForDeletion(context.Background(), file)
	if !isNotADirectory(err) {
		t.Errorf("expected NotADirectory error, got %v", err)
	}
}

func TestSearch_SimpleDialect(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "receipt.png")

	if _, err := st.Save(ctx, []model.OcrResult{
		{Path: path, ModTime: 1, Contents: "Total due: forty two dollars"},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	results, err := st.Search(ctx, model.SearchQuery{
		Terms:      []string{"forty", "two"},
		PathPrefix: dir,
		Limit:      10,
		Kind:       model.QuerySimple,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Path != path {
		t.Errorf("Path = %q, want %q", results[0].Path, path)
	}
}

func TestSearch_GlobDialect(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "note.png")

	if _, err := st.Save(ctx, []model.OcrResult{
		{Path: path, ModTime: 1, Contents: "invoice number 12345"},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	results, err := st.Search(ctx, model.SearchQuery{
		Terms:      []string{"*12345*"},
		PathPrefix: dir,
		Limit:      10,
		Kind:       model.QueryGlob,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestSearch_MatchDialect(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "memo.png")

	if _, err := st.Save(ctx, []model.OcrResult{
		{Path: path, ModTime: 1, Contents: "hello world example"},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	results, err := st.Search(ctx, model.SearchQuery{
		Terms:      []string{"hello", "world"},
		PathPrefix: dir,
		Limit:      10,
		Kind:       model.QueryMatch,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestSearch_RegexDialect(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "ticket.png")

	if _, err := st.Save(ctx, []model.OcrResult{
		{Path: path, ModTime: 1, Contents: "call us at 555-1234 today"},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	results, err := st.Search(ctx, model.SearchQuery{
		Terms:      []string{`\d{3}-\d{4}`},
		PathPrefix: dir,
		Limit:      10,
		Kind:       model.QueryRegex,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Snippet == "" {
		t.Error("expected a non-empty snippet around the matched span")
	}
}

func TestSearch_PathPrefixEscapesLikeMetacharacters(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	parent := t.TempDir()

	// "50%_x" contains literal LIKE metacharacters. Unescaped, the
	// pattern "50%_x%" would also match "50AxBx" (% absorbing "Ax", _
	// absorbing "B"), so this also guards against cross-directory
	// leakage through an unescaped prefix.
	weirdDir := filepath.Join(parent, "50%_x")
	decoyDir := filepath.Join(parent, "50AxBx")
	if err := os.Mkdir(weirdDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(decoyDir, 0o755); err != nil {
		t.Fatal(err)
	}

	wanted := filepath.Join(weirdDir, "photo.png")
	decoy := filepath.Join(decoyDir, "photo.png")
	if _, err := st.Save(ctx, []model.OcrResult{
		{Path: wanted, ModTime: 1, Contents: "shared keyword content"},
		{Path: decoy, ModTime: 1, Contents: "shared keyword content"},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	results, err := st.Search(ctx, model.SearchQuery{
		Terms:      []string{"shared", "keyword"},
		PathPrefix: weirdDir,
		Limit:      10,
		Kind:       model.QuerySimple,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Path != wanted {
		t.Errorf("Path = %q, want %q", results[0].Path, wanted)
	}
}

func TestOpen_RefusesPreReleaseSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := raw.Exec(`PRAGMA user_version = 1`); err != nil {
		t.Fatalf("setting user_version: %v", err)
	}
	if err := raw.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = Open(dbPath, nil)
	tagged, ok := err.(*model.TaggedError)
	if !ok || tagged.Code != model.CodeSchemaPreRelease {
		t.Fatalf("Open error = %v, want CodeSchemaPreRelease", err)
	}
}

func TestOpen_RefusesFutureSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := raw.Exec(`PRAGMA user_version = 3`); err != nil {
		t.Fatalf("setting user_version: %v", err)
	}
	if err := raw.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = Open(dbPath, nil)
	tagged, ok := err.(*model.TaggedError)
	if !ok || tagged.Code != model.CodeSchemaTooNew {
		t.Fatalf("Open error = %v, want CodeSchemaTooNew", err)
	}
}

func isNotADirectory(err error) bool {
	tagged, ok := err.(*model.TaggedError)
	return ok && tagged.Code == model.CodeNotADirectory
}
