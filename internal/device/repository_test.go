package device

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the device schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "device-test-*.db")
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

	schema := `
		CREATE TABLE boards (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL UNIQUE,
			sort_order INTEGER NOT NULL DEFAULT 0
		) STRICT;

		CREATE TABLE rooms (
			id         TEXT PRIMARY KEY,
			board_id   TEXT NOT NULL,
			name       TEXT NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			UNIQUE (board_id, name),
			FOREIGN KEY (board_id) REFERENCES boards(id)
		) STRICT;

		CREATE TABLE devices (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			ip         TEXT NOT NULL UNIQUE,
			type       TEXT NOT NULL DEFAULT '',
			adapter_id TEXT NOT NULL DEFAULT '',
			room_id    TEXT,
			is_on      INTEGER NOT NULL DEFAULT 0,
			last_power REAL NOT NULL DEFAULT 0,
			sort_order INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE SET NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying device schema: %v", err)
	}

	return db
}

// seedTestRooms inserts a board and two rooms for assignment tests.
func seedTestRooms(t *testing.T, db *sql.DB) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO boards (id, name, sort_order) VALUES ('brd-ground', 'Ground Floor', 0);
		INSERT INTO rooms (id, board_id, name, sort_order) VALUES ('room-kitchen', 'brd-ground', 'Kitchen', 0);
		INSERT INTO rooms (id, board_id, name, sort_order) VALUES ('room-living', 'brd-ground', 'Living Room', 1);
	`)
	if err != nil {
		t.Fatalf("seeding test rooms: %v", err)
	}
}

func strPtr(s string) *string { return &s }

func TestCreateAndGetByID(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &Device{
		Name: "Kitchen Light",
		IP:   "192.168.1.40",
		Type: "SHSW-1",
	}
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if d.ID == "" {
		t.Fatal("Create() should generate an ID")
	}

	got, err := repo.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Kitchen Light" || got.IP != "192.168.1.40" || got.Type != "SHSW-1" {
		t.Errorf("got %+v", got)
	}
	if got.RoomID != nil {
		t.Errorf("new device should be unassigned, got room %q", *got.RoomID)
	}
	if got.IsOn {
		t.Error("new device should default to off")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	_, err := repo.GetByID(context.Background(), "dev-missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
}

func TestCreate_DuplicateIP(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &Device{Name: "A", IP: "10.0.0.5"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := repo.Create(ctx, &Device{Name: "B", IP: "10.0.0.5"})
	if !errors.Is(err, ErrDeviceIPExists) {
		t.Errorf("error = %v, want ErrDeviceIPExists", err)
	}
}

func TestListByRoom_Ordered(t *testing.T) {
	db := testDB(t)
	seedTestRooms(t, db)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	room := strPtr("room-kitchen")
	repo.Create(ctx, &Device{Name: "Oven", IP: "10.0.0.1", RoomID: room, SortOrder: 2})   //nolint:errcheck // test setup
	repo.Create(ctx, &Device{Name: "Lamp", IP: "10.0.0.2", RoomID: room, SortOrder: 0})   //nolint:errcheck // test setup
	repo.Create(ctx, &Device{Name: "Hood", IP: "10.0.0.3", RoomID: room, SortOrder: 1})   //nolint:errcheck // test setup
	repo.Create(ctx, &Device{Name: "TV", IP: "10.0.0.4", RoomID: strPtr("room-living")})  //nolint:errcheck // test setup

	devices, err := repo.ListByRoom(ctx, "room-kitchen")
	if err != nil {
		t.Fatalf("ListByRoom() error = %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("ListByRoom() returned %d, want 3", len(devices))
	}
	if devices[0].Name != "Lamp" || devices[1].Name != "Hood" || devices[2].Name != "Oven" {
		t.Errorf("devices out of order: %q, %q, %q", devices[0].Name, devices[1].Name, devices[2].Name)
	}
}

func TestListByRooms(t *testing.T) {
	db := testDB(t)
	seedTestRooms(t, db)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	repo.Create(ctx, &Device{Name: "Lamp", IP: "10.0.0.1", RoomID: strPtr("room-kitchen")}) //nolint:errcheck // test setup
	repo.Create(ctx, &Device{Name: "TV", IP: "10.0.0.2", RoomID: strPtr("room-living")})    //nolint:errcheck // test setup
	repo.Create(ctx, &Device{Name: "Spare", IP: "10.0.0.3"})                                //nolint:errcheck // test setup

	devices, err := repo.ListByRooms(ctx, []string{"room-kitchen"})
	if err != nil {
		t.Fatalf("ListByRooms() error = %v", err)
	}
	if len(devices) != 1 || devices[0].Name != "Lamp" {
		t.Errorf("ListByRooms() = %+v, want just the lamp", devices)
	}

	// Empty scope short-circuits
	devices, err = repo.ListByRooms(ctx, nil)
	if err != nil {
		t.Fatalf("ListByRooms(nil) error = %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("ListByRooms(nil) returned %d, want 0", len(devices))
	}
}

func TestSetState(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &Device{Name: "Lamp", IP: "10.0.0.1"}
	repo.Create(ctx, d) //nolint:errcheck // test setup

	if err := repo.SetState(ctx, d.ID, true, 42.5); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}

	got, _ := repo.GetByID(ctx, d.ID)
	if !got.IsOn {
		t.Error("device should be on")
	}
	if got.LastPower != 42.5 {
		t.Errorf("LastPower = %v, want 42.5", got.LastPower)
	}
}

func TestSetState_NotFound(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	err := repo.SetState(context.Background(), "dev-missing", true, 0)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
}

func TestAssignRoom(t *testing.T) {
	db := testDB(t)
	seedTestRooms(t, db)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	a := &Device{Name: "A", IP: "10.0.0.1"}
	b := &Device{Name: "B", IP: "10.0.0.2"}
	repo.Create(ctx, a) //nolint:errcheck // test setup
	repo.Create(ctx, b) //nolint:errcheck // test setup

	// Missing device IDs are tolerated
	ids := []string{a.ID, b.ID, "dev-missing"}
	if err := repo.AssignRoom(ctx, ids, strPtr("room-kitchen")); err != nil {
		t.Fatalf("AssignRoom() error = %v", err)
	}

	got, _ := repo.GetByID(ctx, a.ID)
	if got.RoomID == nil || *got.RoomID != "room-kitchen" {
		t.Errorf("device A not assigned: %+v", got.RoomID)
	}

	// nil room clears the assignment
	if err := repo.AssignRoom(ctx, []string{a.ID}, nil); err != nil {
		t.Fatalf("AssignRoom(nil room) error = %v", err)
	}
	got, _ = repo.GetByID(ctx, a.ID)
	if got.RoomID != nil {
		t.Errorf("device A should be unassigned, got %q", *got.RoomID)
	}
}

func TestAssignRoom_RoomNotFound(t *testing.T) {
	db := testDB(t)
	seedTestRooms(t, db)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &Device{Name: "A", IP: "10.0.0.1"}
	repo.Create(ctx, d) //nolint:errcheck // test setup

	err := repo.AssignRoom(ctx, []string{d.ID}, strPtr("room-missing"))
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("error = %v, want ErrRoomNotFound", err)
	}
}

func TestReorder(t *testing.T) {
	db := testDB(t)
	seedTestRooms(t, db)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	room := strPtr("room-kitchen")
	a := &Device{Name: "A", IP: "10.0.0.1", RoomID: room, SortOrder: 0}
	b := &Device{Name: "B", IP: "10.0.0.2", RoomID: room, SortOrder: 1}
	repo.Create(ctx, a) //nolint:errcheck // test setup
	repo.Create(ctx, b) //nolint:errcheck // test setup

	updates := []OrderUpdate{
		{ID: a.ID, SortOrder: 5},
		{ID: b.ID, SortOrder: 1},
		{ID: "dev-unknown", SortOrder: 9}, // skipped silently
	}
	if err := repo.Reorder(ctx, updates); err != nil {
		t.Fatalf("Reorder() error = %v", err)
	}

	devices, _ := repo.ListByRoom(ctx, "room-kitchen")
	if devices[0].ID != b.ID || devices[1].ID != a.ID {
		t.Errorf("reorder not applied: got %q first", devices[0].Name)
	}
}

func TestSync_InsertsUnknownIP(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	records := []SyncRecord{
		{AdapterID: "shelly1-AB1234", Name: "shelly1-kitchen", IP: "10.0.0.5", Type: "SHSW-1", IsOn: true, Power: 12.5},
	}
	updated, inserted, err := repo.Sync(ctx, records)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if updated != 0 || inserted != 1 {
		t.Errorf("Sync() = (%d updated, %d inserted), want (0, 1)", updated, inserted)
	}

	devices, _ := repo.List(ctx)
	if len(devices) != 1 {
		t.Fatalf("List() returned %d, want 1", len(devices))
	}
	d := devices[0]
	if d.IP != "10.0.0.5" || d.Name != "shelly1-kitchen" || !d.IsOn || d.LastPower != 12.5 {
		t.Errorf("synced device = %+v", d)
	}
	if d.AdapterID != "shelly1-AB1234" {
		t.Errorf("AdapterID = %q, want the adapter's own ID", d.AdapterID)
	}
	if d.RoomID != nil {
		t.Error("synced device should be unassigned")
	}
}

func TestSync_UpdatesExistingIP(t *testing.T) {
	db := testDB(t)
	seedTestRooms(t, db)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	existing := &Device{Name: "Old Name", IP: "10.0.0.5", Type: "SHSW-1", RoomID: strPtr("room-kitchen")}
	repo.Create(ctx, existing) //nolint:errcheck // test setup

	records := []SyncRecord{
		{AdapterID: "shellyswitch25-C0FFEE", Name: "shelly1-renamed", IP: "10.0.0.5", Type: "SHSW-25", IsOn: true, Power: 8},
	}
	updated, inserted, err := repo.Sync(ctx, records)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if updated != 1 || inserted != 0 {
		t.Errorf("Sync() = (%d updated, %d inserted), want (1, 0)", updated, inserted)
	}

	got, _ := repo.GetByID(ctx, existing.ID)
	if got.Name != "shelly1-renamed" || got.Type != "SHSW-25" || !got.IsOn {
		t.Errorf("device not updated in place: %+v", got)
	}
	// A row created before the device was ever reported picks up the
	// adapter's identity on its first matching sync.
	if got.AdapterID != "shellyswitch25-C0FFEE" {
		t.Errorf("AdapterID = %q, want the adapter's own ID", got.AdapterID)
	}
	// Room assignment survives sync
	if got.RoomID == nil || *got.RoomID != "room-kitchen" {
		t.Error("sync must not touch room assignment")
	}
}

func TestSync_Mixed(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	repo.Create(ctx, &Device{Name: "Known", IP: "10.0.0.1"}) //nolint:errcheck // test setup

	records := []SyncRecord{
		{Name: "Known Updated", IP: "10.0.0.1"},
		{Name: "Brand New", IP: "10.0.0.2"},
	}
	updated, inserted, err := repo.Sync(ctx, records)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if updated != 1 || inserted != 1 {
		t.Errorf("Sync() = (%d updated, %d inserted), want (1, 1)", updated, inserted)
	}
}

func TestSync_Empty(t *testing.T) {
	db := testDB(t)
	repo := NewSQLiteRepository(db)

	updated, inserted, err := repo.Sync(context.Background(), nil)
	if err != nil {
		t.Fatalf("Sync(nil) error = %v", err)
	}
	if updated != 0 || inserted != 0 {
		t.Errorf("Sync(nil) = (%d, %d), want (0, 0)", updated, inserted)
	}
}
