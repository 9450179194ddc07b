package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// openTestDB opens a fresh database under a temp directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "shelly.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesFileAndDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "data", "shelly.db")

	db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("reading journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want wal", journalMode)
	}

	var foreignKeys int
	if err := db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("reading foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Error("foreign key enforcement should be on")
	}
}

func TestOpen_WithoutWAL(t *testing.T) {
	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "shelly.db"),
		WALMode:     false,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var journalMode string
	if err := db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("reading journal_mode: %v", err)
	}
	if journalMode == "wal" {
		t.Error("WAL should not be enabled when the config disables it")
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	db.Close()
	if err := db.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() on a closed database should fail")
	}
}
