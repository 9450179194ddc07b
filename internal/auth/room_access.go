package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RoomAccessRepository defines the interface for user room visibility persistence.
type RoomAccessRepository interface {
	SetRoomAccess(ctx context.Context, userID string, roomIDs []string, createdBy string) error
	GetRoomAccess(ctx context.Context, userID string) ([]RoomAccess, error)
	GetAccessibleRoomIDs(ctx context.Context, userID string) ([]string, error)
	VisibleRoomIDs(ctx context.Context, userID string, role Role) (ids []string, all bool, err error)
	GrantAllRooms(ctx context.Context, userID, createdBy string) error
	ClearRoomAccess(ctx context.Context, userID string) error
	ResolveRoomScope(ctx context.Context, userID string, role Role) (*RoomScope, error)
}

// SQLiteRoomAccessRepository implements RoomAccessRepository using SQLite.
type SQLiteRoomAccessRepository struct {
	db *sql.DB
}

// NewRoomAccessRepository creates a new SQLite-backed room access repository.
func NewRoomAccessRepository(db *sql.DB) *SQLiteRoomAccessRepository {
	return &SQLiteRoomAccessRepository{db: db}
}

// SetRoomAccess replaces all room grants for a user.
// Pass an empty slice to revoke all room access (user sees nothing).
func (r *SQLiteRoomAccessRepository) SetRoomAccess(ctx context.Context, userID string, roomIDs []string, createdBy string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_room_access WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing room access: %w", err)
	}

	for _, roomID := range roomIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user_room_access (user_id, room_id, created_by) VALUES (?, ?, ?)",
			userID, roomID, nullString(createdBy)); err != nil {
			return fmt.Errorf("granting room %s: %w", roomID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing room access: %w", err)
	}
	return nil
}

// GetRoomAccess returns all room grants for a user.
func (r *SQLiteRoomAccessRepository) GetRoomAccess(ctx context.Context, userID string) ([]RoomAccess, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, room_id, created_by, created_at
		 FROM user_room_access WHERE user_id = ? ORDER BY room_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("getting room access: %w", err)
	}
	defer rows.Close()

	var access []RoomAccess
	for rows.Next() {
		var ra RoomAccess
		var createdBy sql.NullString
		var createdAt string

		if err := rows.Scan(&ra.UserID, &ra.RoomID, &createdBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning room access: %w", err)
		}

		if createdBy.Valid {
			ra.CreatedBy = createdBy.String
		}
		ra.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

		access = append(access, ra)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating room access: %w", err)
	}

	if access == nil {
		access = []RoomAccess{}
	}
	return access, nil
}

// GetAccessibleRoomIDs returns just the room IDs a user has grants for.
func (r *SQLiteRoomAccessRepository) GetAccessibleRoomIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT room_id FROM user_room_access WHERE user_id = ? ORDER BY room_id", userID)
	if err != nil {
		return nil, fmt.Errorf("getting accessible rooms: %w", err)
	}
	defer rows.Close()

	var roomIDs []string
	for rows.Next() {
		var roomID string
		if err := rows.Scan(&roomID); err != nil {
			return nil, fmt.Errorf("scanning room ID: %w", err)
		}
		roomIDs = append(roomIDs, roomID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating room IDs: %w", err)
	}

	if roomIDs == nil {
		roomIDs = []string{}
	}
	return roomIDs, nil
}

// VisibleRoomIDs resolves which rooms a user may see.
// Admins see every room regardless of grants (all=true, ids=nil);
// regular users see exactly their grant set.
func (r *SQLiteRoomAccessRepository) VisibleRoomIDs(ctx context.Context, userID string, role Role) ([]string, bool, error) {
	if !IsRoomScoped(role) {
		return nil, true, nil
	}

	ids, err := r.GetAccessibleRoomIDs(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return ids, false, nil
}

// GrantAllRooms snapshots the current room set as grants for a user.
// Used when creating admin accounts so their grant rows exist even
// though admins bypass scoping at read time.
func (r *SQLiteRoomAccessRepository) GrantAllRooms(ctx context.Context, userID, createdBy string) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_room_access (user_id, room_id, created_by)
		 SELECT ?, id, ? FROM rooms`,
		userID, nullString(createdBy)); err != nil {
		return fmt.Errorf("granting all rooms: %w", err)
	}
	return nil
}

// ClearRoomAccess removes all room grants for a user.
func (r *SQLiteRoomAccessRepository) ClearRoomAccess(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM user_room_access WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing room access: %w", err)
	}
	return nil
}

// ResolveRoomScope builds a RoomScope for a user request.
// Admins get a nil scope (unrestricted). Users with no grants get an
// empty scope (no access).
func (r *SQLiteRoomAccessRepository) ResolveRoomScope(ctx context.Context, userID string, role Role) (*RoomScope, error) {
	if !IsRoomScoped(role) {
		return nil, nil
	}

	roomIDs, err := r.GetAccessibleRoomIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &RoomScope{RoomIDs: roomIDs}, nil
}
