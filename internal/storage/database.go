package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the index database. For sqlite the dsn is a file path and
// its parent directory is created when missing.
func Open(driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn must be provided", driver)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// one writer is all sqlite supports, and ":memory:" is per connection
		db.SetMaxOpenConns(1)
	case "mysql":
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the index tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS chunks (
				id TEXT PRIMARY KEY,
				chunk_index INTEGER NOT NULL,
				source TEXT NOT NULL,
				content TEXT NOT NULL,
				embedding TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_chunks_index ON chunks(chunk_index)`,
			`CREATE TABLE IF NOT EXISTS index_meta (
				meta_key TEXT PRIMARY KEY,
				meta_value TEXT NOT NULL
			)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS chunks (
				id VARCHAR(64) NOT NULL,
				chunk_index INT NOT NULL,
				source VARCHAR(1024) NOT NULL,
				content MEDIUMTEXT NOT NULL,
				embedding MEDIUMTEXT NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_chunks_index (chunk_index)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS index_meta (
				meta_key VARCHAR(64) NOT NULL PRIMARY KEY,
				meta_value TEXT NOT NULL
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
