// Package config resolves ocrlocate's runtime settings from defaults, an
// optional project-local .env file, process environment variables, and
// finally CLI flag overrides, in that precedence order -- the same
// layering idiom the teacher uses for its own settings, trimmed down to
// the handful of knobs this tool actually exposes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds every resolved runtime setting the CLI, pipeline, and store
// need. Zero values are never used directly; Load always starts from
// Default() before applying overlays.
type Config struct {
	Database       string
	Lang           string
	Limit          int
	ChunkSize      int
	TessdataPrefix string
}

// Overrides holds CLI flag values that take precedence over env/dotenv/
// defaults. Only non-nil fields are applied, matching the pattern of
// callers passing nil for flags the user never explicitly set.
//
// PSM, threads, binarization, and scale are not here: those knobs are
// per-invocation OCR tuning (internal/ocr.Options), never something a
// dotenv file or the process environment should set a persistent
// default for, so the CLI flags feed ocr.Options directly instead of
// routing through this layer.
type Overrides struct {
	Database  *string
	Lang      *string
	Limit     *int
	ChunkSize *int
}

// Options configures config loading.
type Options struct {
	// WorkingDir is searched for .env / .env.local before falling back to
	// the process environment. Empty means the current directory.
	WorkingDir string
	Overrides  *Overrides
}

// Load builds a Config with precedence: defaults -> .env/.env.local ->
// process env vars -> Overrides.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	dir := opts.WorkingDir
	if dir == "" {
		dir = "."
	}
	if err := loadDotEnvFiles(
		filepath.Join(dir, ".env"),
		filepath.Join(dir, ".env.local"),
	); err != nil {
		return nil, fmt.Errorf("load dotenv: %w", err)
	}

	if v := os.Getenv("OCRLOCATE_DB"); v != "" {
		cfg.Database = v
	}
	cfg.TessdataPrefix = os.Getenv("TESSDATA_PREFIX")

	if opts.Overrides != nil {
		applyOverrides(&cfg, opts.Overrides)
	}

	if cfg.Database == "" {
		dbPath, err := defaultDatabasePath()
		if err != nil {
			return nil, fmt.Errorf("resolve default database path: %w", err)
		}
		cfg.Database = dbPath
	}

	return &cfg, nil
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o.Database != nil {
		cfg.Database = *o.Database
	}
	if o.Lang != nil {
		cfg.Lang = *o.Lang
	}
	if o.Limit != nil {
		cfg.Limit = *o.Limit
	}
	if o.ChunkSize != nil {
		cfg.ChunkSize = *o.ChunkSize
	}
}

// defaultDatabasePath mirrors the Rust original's use of
// dirs::data_local_dir(): $XDG_DATA_HOME (or ~/.local/share on POSIX,
// %LocalAppData% on Windows) joined with ocrlocate/ocrlocate.db.
func defaultDatabasePath() (string, error) {
	base, err := dataLocalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "ocrlocate", "ocrlocate.db"), nil
}

func dataLocalDir() (string, error) {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v, nil
	}
	if v := os.Getenv("LocalAppData"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share"), nil
}
