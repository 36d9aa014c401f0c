package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "modernc.org/sqlite"
)

const dbName = "workobs.sqlite"

type Config struct {
	// Path overrides the default database location when set.
	Path string
}

// DefaultDataDir returns the per-OS application data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "work-observability")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "work-observability")
		}
		return filepath.Join(home, "work-observability")
	default:
		return filepath.Join(home, ".local", "share", "work-observability")
	}
}

// Path resolves the database file path for a config.
func Path(cfg Config) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	return filepath.Join(DefaultDataDir(), dbName)
}

// Open opens the SQLite database, creating its directory if missing.
func Open(cfg Config) (*sql.DB, error) {
	path := Path(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
