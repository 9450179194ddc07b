package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for device persistence operations.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices in display order.
	List(ctx context.Context) ([]Device, error)

	// ListByRoom retrieves the devices of one room in display order.
	ListByRoom(ctx context.Context, roomID string) ([]Device, error)

	// ListByRooms retrieves the devices of a room ID set, for room-scoped users.
	ListByRooms(ctx context.Context, roomIDs []string) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceIPExists if the IP is already registered.
	Create(ctx context.Context, d *Device) error

	// SetState updates the on/off state and last power reading of a device.
	// Returns ErrDeviceNotFound if the device does not exist.
	SetState(ctx context.Context, id string, on bool, power float64) error

	// AssignRoom bulk-reparents devices to a room, or clears the
	// assignment when roomID is nil. Missing device IDs are skipped.
	AssignRoom(ctx context.Context, deviceIDs []string, roomID *string) error

	// Reorder applies a batch of sort_order updates atomically.
	// Unknown IDs are skipped.
	Reorder(ctx context.Context, updates []OrderUpdate) error

	// Sync reconciles adapter-reported devices into the table, keyed by
	// IP: existing rows are updated in place, unknown IPs become new
	// unassigned rows. Runs in a single transaction and returns the
	// number of updated and inserted rows.
	Sync(ctx context.Context, records []SyncRecord) (updated, inserted int, err error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = "id, name, ip, type, adapter_id, room_id, is_on, last_power, sort_order, created_at, updated_at"

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE id = ?", id)

	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return d, nil
}

// List retrieves all devices ordered by room, then sort_order, then name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx,
		"SELECT "+deviceColumns+" FROM devices ORDER BY room_id, sort_order, name")
}

// ListByRoom retrieves the devices of one room in display order.
func (r *SQLiteRepository) ListByRoom(ctx context.Context, roomID string) ([]Device, error) {
	return r.queryDevices(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE room_id = ? ORDER BY sort_order, name", roomID)
}

// ListByRooms retrieves the devices belonging to any room in the given
// set. An empty set returns an empty slice without touching the database.
func (r *SQLiteRepository) ListByRooms(ctx context.Context, roomIDs []string) ([]Device, error) {
	if len(roomIDs) == 0 {
		return []Device{}, nil
	}

	placeholders := strings.Repeat("?,", len(roomIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(roomIDs))
	for i, id := range roomIDs {
		args[i] = id
	}

	query := fmt.Sprintf(
		"SELECT "+deviceColumns+" FROM devices WHERE room_id IN (%s) ORDER BY room_id, sort_order, name",
		placeholders)
	return r.queryDevices(ctx, query, args...)
}

// Create inserts a new device. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	if d.ID == "" {
		d.ID = "dev-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	d.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	d.UpdatedAt = d.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (id, name, ip, type, adapter_id, room_id, is_on, last_power, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.IP, d.Type, d.AdapterID, nullString(d.RoomID),
		boolToInt(d.IsOn), d.LastPower, d.SortOrder, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDeviceIPExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// SetState updates the on/off state and last power reading of a device.
func (r *SQLiteRepository) SetState(ctx context.Context, id string, on bool, power float64) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET is_on = ?, last_power = ?, updated_at = ? WHERE id = ?`,
		boolToInt(on), power, now, id,
	)
	if err != nil {
		return fmt.Errorf("updating device state: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// AssignRoom bulk-reparents devices to a room (or unassigns them when
// roomID is nil). The batch runs in one transaction; device IDs that no
// longer exist are skipped rather than failing the batch.
func (r *SQLiteRepository) AssignRoom(ctx context.Context, deviceIDs []string, roomID *string) error {
	if roomID != nil {
		var exists int
		if err := r.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM rooms WHERE id = ?", *roomID).Scan(&exists); err != nil {
			return fmt.Errorf("checking room: %w", err)
		}
		if exists == 0 {
			return ErrRoomNotFound
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning assign transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range deviceIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE devices SET room_id = ?, updated_at = ? WHERE id = ?`,
			nullString(roomID), now, id); err != nil {
			return fmt.Errorf("assigning device %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing assign: %w", err)
	}
	return nil
}

// Reorder applies a batch of sort_order updates in one transaction.
// Unknown IDs are skipped; the batch commits fully or not at all.
func (r *SQLiteRepository) Reorder(ctx context.Context, updates []OrderUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reorder transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)
	for _, u := range updates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE devices SET sort_order = ?, updated_at = ? WHERE id = ?`,
			u.SortOrder, now, u.ID); err != nil {
			return fmt.Errorf("updating device order for %s: %w", u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reorder: %w", err)
	}
	return nil
}

// Sync reconciles adapter-reported devices into the table inside a single
// transaction. Rows are matched by IP (the natural key): a match updates
// name, type, state and power in place; everything else is inserted as a
// new unassigned device. Partial failures roll back the whole sync.
func (r *SQLiteRepository) Sync(ctx context.Context, records []SyncRecord) (int, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning sync transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)
	var updated, inserted int

	for _, rec := range records {
		result, err := tx.ExecContext(ctx,
			`UPDATE devices SET name = ?, type = ?, adapter_id = ?, is_on = ?, last_power = ?, updated_at = ?
			 WHERE ip = ?`,
			rec.Name, rec.Type, rec.AdapterID, boolToInt(rec.IsOn), rec.Power, now, rec.IP)
		if err != nil {
			return 0, 0, fmt.Errorf("syncing device %s: %w", rec.IP, err)
		}

		rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
		if rows > 0 {
			updated++
			continue
		}

		id := "dev-" + uuid.NewString()[:8]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO devices (id, name, ip, type, adapter_id, room_id, is_on, last_power, sort_order, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, NULL, ?, ?, 0, ?, ?)`,
			id, rec.Name, rec.IP, rec.Type, rec.AdapterID, boolToInt(rec.IsOn), rec.Power, now, now); err != nil {
			return 0, 0, fmt.Errorf("inserting synced device %s: %w", rec.IP, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing sync: %w", err)
	}
	return updated, inserted, nil
}

// queryDevices executes a query and returns a slice of Device.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return devices, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a device from any scanner (Row or Rows).
func scanDevice(s scanner) (*Device, error) {
	var d Device
	var roomID sql.NullString
	var isOn int
	var createdAt, updatedAt string

	err := s.Scan(&d.ID, &d.Name, &d.IP, &d.Type, &d.AdapterID, &roomID,
		&isOn, &d.LastPower, &d.SortOrder, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	if roomID.Valid {
		d.RoomID = &roomID.String
	}
	d.IsOn = isOn != 0
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &d, nil
}

// Helper functions.

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
