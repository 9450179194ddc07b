package hierarchy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for board and room persistence.
type Repository interface {
	CreateBoard(ctx context.Context, name string) (*Board, error)
	ListBoards(ctx context.Context) ([]Board, error)
	GetBoard(ctx context.Context, id string) (*Board, error)
	RenameBoard(ctx context.Context, id, name string) error
	DeleteBoard(ctx context.Context, id string) error
	ReorderBoards(ctx context.Context, updates []OrderUpdate) error

	CreateRoom(ctx context.Context, boardID, name string) (*Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	ListRoomsByBoard(ctx context.Context, boardID string) ([]Room, error)
	ListRoomsByIDs(ctx context.Context, ids []string) ([]Room, error)
	GetRoom(ctx context.Context, id string) (*Room, error)
	RenameRoom(ctx context.Context, id, name string) error
	DeleteRoom(ctx context.Context, id string) error
	MoveRoom(ctx context.Context, roomID, targetBoardID string) (*Room, error)
	ReorderRooms(ctx context.Context, updates []OrderUpdate) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed hierarchy repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateBoard inserts a new board at the end of the display order.
// Returns ErrBoardNameExists if the name is already taken.
func (r *SQLiteRepository) CreateBoard(ctx context.Context, name string) (*Board, error) {
	board := &Board{
		ID:   "brd-" + uuid.NewString()[:8],
		Name: name,
	}

	now := time.Now().UTC().Format(time.RFC3339)
	board.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	board.UpdatedAt = board.CreatedAt

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO boards (id, name, sort_order, created_at, updated_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(sort_order) + 1, 0) FROM boards), ?, ?)
		 RETURNING sort_order`,
		board.ID, board.Name, now, now,
	).Scan(&board.SortOrder)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrBoardNameExists
		}
		return nil, fmt.Errorf("inserting board: %w", err)
	}

	return board, nil
}

// ListBoards returns all boards ordered by sort_order then name.
func (r *SQLiteRepository) ListBoards(ctx context.Context) ([]Board, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, sort_order, created_at, updated_at
		 FROM boards ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("querying boards: %w", err)
	}
	defer rows.Close()

	boards := []Board{}
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, err
		}
		boards = append(boards, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating board rows: %w", err)
	}
	return boards, nil
}

// GetBoard returns a single board by ID.
func (r *SQLiteRepository) GetBoard(ctx context.Context, id string) (*Board, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, sort_order, created_at, updated_at FROM boards WHERE id = ?`, id)

	b, err := scanBoard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBoardNotFound
		}
		return nil, err
	}
	return b, nil
}

// RenameBoard changes a board's name. Board names are globally unique.
func (r *SQLiteRepository) RenameBoard(ctx context.Context, id, name string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE boards SET name = ?, updated_at = ? WHERE id = ?`, name, now, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrBoardNameExists
		}
		return fmt.Errorf("renaming board: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrBoardNotFound
	}
	return nil
}

// DeleteBoard removes an empty board.
// Returns ErrBoardHasRooms while the board still owns rooms; rooms must
// be deleted or moved away first.
func (r *SQLiteRepository) DeleteBoard(ctx context.Context, id string) error {
	var roomCount int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM rooms WHERE board_id = ?", id).Scan(&roomCount); err != nil {
		return fmt.Errorf("counting rooms for board %s: %w", id, err)
	}
	if roomCount > 0 {
		return ErrBoardHasRooms
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM boards WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting board %s: %w", id, err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrBoardNotFound
	}
	return nil
}

// ReorderBoards applies a batch of sort_order updates in one transaction.
// Unknown IDs are skipped; the batch commits fully or not at all.
func (r *SQLiteRepository) ReorderBoards(ctx context.Context, updates []OrderUpdate) error {
	return r.reorder(ctx, "boards", updates)
}

// CreateRoom inserts a new room at the end of its board's display order.
// Returns ErrBoardNotFound if the board does not exist and
// ErrRoomNameExists if the name is already used on that board.
func (r *SQLiteRepository) CreateRoom(ctx context.Context, boardID, name string) (*Room, error) {
	if _, err := r.GetBoard(ctx, boardID); err != nil {
		return nil, err
	}

	room := &Room{
		ID:      "room-" + uuid.NewString()[:8],
		BoardID: boardID,
		Name:    name,
	}

	now := time.Now().UTC().Format(time.RFC3339)
	room.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	room.UpdatedAt = room.CreatedAt

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO rooms (id, board_id, name, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, (SELECT COALESCE(MAX(sort_order) + 1, 0) FROM rooms WHERE board_id = ?), ?, ?)
		 RETURNING sort_order`,
		room.ID, room.BoardID, room.Name, boardID, now, now,
	).Scan(&room.SortOrder)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRoomNameExists
		}
		return nil, fmt.Errorf("inserting room: %w", err)
	}

	return room, nil
}

// ListRooms returns all rooms ordered by board, then sort_order, then name.
func (r *SQLiteRepository) ListRooms(ctx context.Context) ([]Room, error) {
	return r.queryRooms(ctx,
		`SELECT id, board_id, name, sort_order, created_at, updated_at
		 FROM rooms ORDER BY board_id, sort_order, name`)
}

// ListRoomsByBoard returns the rooms of one board in display order.
func (r *SQLiteRepository) ListRoomsByBoard(ctx context.Context, boardID string) ([]Room, error) {
	return r.queryRooms(ctx,
		`SELECT id, board_id, name, sort_order, created_at, updated_at
		 FROM rooms WHERE board_id = ? ORDER BY sort_order, name`, boardID)
}

// ListRoomsByIDs returns the rooms matching the given ID set in display
// order. Used to apply per-user room visibility. An empty set returns an
// empty slice without touching the database.
func (r *SQLiteRepository) ListRoomsByIDs(ctx context.Context, ids []string) ([]Room, error) {
	if len(ids) == 0 {
		return []Room{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf(
		`SELECT id, board_id, name, sort_order, created_at, updated_at
		 FROM rooms WHERE id IN (%s) ORDER BY board_id, sort_order, name`, placeholders)
	return r.queryRooms(ctx, query, args...)
}

// GetRoom returns a single room by ID.
func (r *SQLiteRepository) GetRoom(ctx context.Context, id string) (*Room, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, board_id, name, sort_order, created_at, updated_at FROM rooms WHERE id = ?`, id)

	rm, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return rm, nil
}

// RenameRoom changes a room's name. Room names are unique per board.
func (r *SQLiteRepository) RenameRoom(ctx context.Context, id, name string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET name = ?, updated_at = ? WHERE id = ?`, name, now, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRoomNameExists
		}
		return fmt.Errorf("renaming room: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// DeleteRoom removes a room by ID. Unlike boards, rooms delete
// unconditionally; their devices become unassigned via ON DELETE SET NULL.
func (r *SQLiteRepository) DeleteRoom(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting room %s: %w", id, err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// MoveRoom reparents a room onto another board, appending it to the end
// of the target board's display order. The move and the order
// recomputation happen in one transaction.
func (r *SQLiteRepository) MoveRoom(ctx context.Context, roomID, targetBoardID string) (*Room, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning move transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM boards WHERE id = ?", targetBoardID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking target board: %w", err)
	}
	if exists == 0 {
		return nil, ErrBoardNotFound
	}

	now := time.Now().UTC().Format(time.RFC3339)

	result, err := tx.ExecContext(ctx,
		`UPDATE rooms
		 SET board_id = ?,
		     sort_order = (SELECT COALESCE(MAX(sort_order) + 1, 0) FROM rooms WHERE board_id = ?),
		     updated_at = ?
		 WHERE id = ?`,
		targetBoardID, targetBoardID, now, roomID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRoomNameExists
		}
		return nil, fmt.Errorf("moving room %s: %w", roomID, err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return nil, ErrRoomNotFound
	}

	row := tx.QueryRowContext(ctx,
		`SELECT id, board_id, name, sort_order, created_at, updated_at FROM rooms WHERE id = ?`, roomID)
	rm, err := scanRoom(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing move: %w", err)
	}
	return rm, nil
}

// ReorderRooms applies a batch of sort_order updates in one transaction.
// Unknown IDs are skipped; the batch commits fully or not at all.
func (r *SQLiteRepository) ReorderRooms(ctx context.Context, updates []OrderUpdate) error {
	return r.reorder(ctx, "rooms", updates)
}

// reorder runs a batch of sort_order updates against one table inside a
// single transaction. Rows that no longer exist are skipped silently so
// a stale client reorder does not fail the whole batch.
func (r *SQLiteRepository) reorder(ctx context.Context, table string, updates []OrderUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reorder transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)
	query := fmt.Sprintf("UPDATE %s SET sort_order = ?, updated_at = ? WHERE id = ?", table)

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, query, u.SortOrder, now, u.ID); err != nil {
			return fmt.Errorf("updating %s order for %s: %w", table, u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reorder: %w", err)
	}
	return nil
}

// queryRooms executes a query and returns a slice of Room.
func (r *SQLiteRepository) queryRooms(ctx context.Context, query string, args ...any) ([]Room, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	result := []Room{}
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating room rows: %w", err)
	}
	return result, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanBoard scans a board from any scanner (Row or Rows).
func scanBoard(s scanner) (*Board, error) {
	var b Board
	var createdAt, updatedAt string

	err := s.Scan(&b.ID, &b.Name, &b.SortOrder, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning board: %w", err)
	}

	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &b, nil
}

// scanRoom scans a room from any scanner (Row or Rows).
func scanRoom(s scanner) (*Room, error) {
	var rm Room
	var createdAt, updatedAt string

	err := s.Scan(&rm.ID, &rm.BoardID, &rm.Name, &rm.SortOrder, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning room: %w", err)
	}

	rm.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	rm.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &rm, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
