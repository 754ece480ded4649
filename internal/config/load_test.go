package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	os.Unsetenv("OCRLOCATE_DB")

	cfg, err := Load(Options{WorkingDir: dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Lang != "eng" {
		t.Errorf("Lang = %q, want eng", cfg.Lang)
	}
	if cfg.ChunkSize != 900 {
		t.Errorf("ChunkSize = %d, want 900", cfg.ChunkSize)
	}
	if cfg.Database == "" {
		t.Error("Database should default to a non-empty path")
	}
}

func TestLoad_DotEnvSetsDatabase(t *testing.T) {
	dir := t.TempDir()
	os.Unsetenv("OCRLOCATE_DB")
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("OCRLOCATE_DB=/tmp/from-dotenv.db\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	defer os.Unsetenv("OCRLOCATE_DB")

	cfg, err := Load(Options{WorkingDir: dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database != "/tmp/from-dotenv.db" {
		t.Errorf("Database = %q, want /tmp/from-dotenv.db", cfg.Database)
	}
}

func TestLoad_OverridesWinOverEnv(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("OCRLOCATE_DB", "/tmp/from-env.db")
	defer os.Unsetenv("OCRLOCATE_DB")

	dbOverride := "/tmp/from-flag.db"
	limitOverride := 25
	cfg, err := Load(Options{
		WorkingDir: dir,
		Overrides: &Overrides{
			Database: &dbOverride,
			Limit:    &limitOverride,
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database != dbOverride {
		t.Errorf("Database = %q, want %q", cfg.Database, dbOverride)
	}
	if cfg.Limit != limitOverride {
		t.Errorf("Limit = %d, want %d", cfg.Limit, limitOverride)
	}
}
