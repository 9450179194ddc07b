package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// openPingTimeout bounds the connectivity check during Open.
const openPingTimeout = 5 * time.Second

// Config maps the database section of config.yaml.
type Config struct {
	// Path to the SQLite file. The parent directory is created on open.
	Path string

	// WALMode turns on write-ahead logging so reads don't block writes.
	WALMode bool

	// BusyTimeout is how long, in seconds, a statement waits on a locked
	// database before erroring.
	BusyTimeout int
}

// DB is the shared SQLite handle for shellyd. Repositories work against
// the embedded *sql.DB directly; the wrapper adds lifecycle and
// migration plumbing.
type DB struct {
	*sql.DB
}

// Open opens the SQLite database, creating file and directory as needed,
// and applies the connection pragmas. SQLite allows a single writer, so
// the pool is pinned to one connection; WAL keeps concurrent reads
// flowing while that writer works.
func Open(cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout*1000)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), openPingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // cleanup on the error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// The file holds password hashes, so keep it owner-only. On a brand
	// new database the file appears with the first write, hence the
	// ignored error.
	_ = os.Chmod(cfg.Path, 0600) //nolint:errcheck // file may not exist yet

	return &DB{DB: sqlDB}, nil
}

// HealthCheck proves the connection is alive with a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}
