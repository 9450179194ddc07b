package auth

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the auth schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// Create prerequisite tables (user_room_access references rooms)
	prerequisiteSQL := `
		CREATE TABLE boards (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			sort_order INTEGER NOT NULL DEFAULT 0
		) STRICT;

		CREATE TABLE rooms (
			id TEXT PRIMARY KEY,
			board_id TEXT NOT NULL,
			name TEXT NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			UNIQUE (board_id, name),
			FOREIGN KEY (board_id) REFERENCES boards(id) ON DELETE CASCADE
		) STRICT;
	`
	if _, err := db.Exec(prerequisiteSQL); err != nil {
		t.Fatalf("creating prerequisite tables: %v", err)
	}

	// Apply the auth schema
	migrationSQL := `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE INDEX idx_users_role ON users(role);

		CREATE TABLE user_room_access (
			user_id TEXT NOT NULL,
			room_id TEXT NOT NULL,
			created_by TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			PRIMARY KEY (user_id, room_id),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE,
			FOREIGN KEY (created_by) REFERENCES users(id) ON DELETE SET NULL
		) STRICT;

		CREATE INDEX idx_user_room_access_room ON user_room_access(room_id);
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying auth migration: %v", err)
	}

	return db
}

// seedTestRooms inserts a test board and rooms for room scoping tests.
func seedTestRooms(t *testing.T, db *sql.DB) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO boards (id, name, sort_order) VALUES ('brd-ground', 'Ground Floor', 0);
		INSERT INTO rooms (id, board_id, name, sort_order) VALUES ('room-kitchen', 'brd-ground', 'Kitchen', 0);
		INSERT INTO rooms (id, board_id, name, sort_order) VALUES ('room-living', 'brd-ground', 'Living Room', 1);
		INSERT INTO rooms (id, board_id, name, sort_order) VALUES ('room-bedroom-jack', 'brd-ground', 'Jack Bedroom', 2);
		INSERT INTO rooms (id, board_id, name, sort_order) VALUES ('room-bedroom-emma', 'brd-ground', 'Emma Bedroom', 3);
	`)
	if err != nil {
		t.Fatalf("seeding test rooms: %v", err)
	}
}

// seedTestUser inserts a test user and returns it.
func seedTestUser(t *testing.T, db *sql.DB, username string, role Role) *User {
	t.Helper()

	hash, err := HashPassword("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	repo := NewUserRepository(db)
	user := &User{
		Username:     username,
		DisplayName:  username,
		Email:        fmt.Sprintf("%s@example.com", username),
		PasswordHash: hash,
		Role:         role,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}
