package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type collectSink struct{ warnings []string }

func (c *collectSink) Warnf(format string, args ...any) {
	c.warnings = append(c.warnings, format)
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWalk_ExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.png"))
	writeFile(t, filepath.Join(dir, "b.txt"))
	writeFile(t, filepath.Join(dir, "c.JPG"))

	out, err := Walk(context.Background(), Options{Root: dir, Recurse: true}, &collectSink{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d candidates, want 2: %+v", len(out), out)
	}
}

func TestWalk_NoSubdirsStopsAtRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "top.png"))
	writeFile(t, filepath.Join(dir, "sub", "deep.png"))

	out, err := Walk(context.Background(), Options{Root: dir, Recurse: false}, &collectSink{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(out), out)
	}
	if filepath.Base(out[0].Path) != "top.png" {
		t.Errorf("candidate = %q, want top.png", out[0].Path)
	}
}

func TestWalk_ExcludePattern(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.png"))
	writeFile(t, filepath.Join(dir, ".cache", "skip.png"))

	out, err := Walk(context.Background(), Options{Root: dir, Recurse: true}, &collectSink{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(out) != 1 || filepath.Base(out[0].Path) != "keep.png" {
		t.Fatalf("expected only keep.png, got %+v", out)
	}
}

func TestWalk_FollowsSymlinkedDirectory(t *testing.T) {
	if os.Getenv("CI") != "" {
		t.Skip("symlinks may be restricted in some CI sandboxes")
	}
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	writeFile(t, filepath.Join(real, "inner.png"))

	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	out, err := Walk(context.Background(), Options{Root: dir, Recurse: true}, &collectSink{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d candidates, want 2 (real + via symlink): %+v", len(out), out)
	}
}

func TestWalk_Limit(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		writeFile(t, filepath.Join(dir, name))
	}
	out, err := Walk(context.Background(), Options{Root: dir, Recurse: true, Limit: 2}, &collectSink{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d candidates, want 2", len(out))
	}
}
