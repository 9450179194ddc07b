package hierarchy

import "time"

// Board is a top-level dashboard grouping rooms. Board names are unique
// across the whole installation.
type Board struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Room groups devices within a board. Room names are unique per board,
// not globally, so "Bedroom" can exist on several boards.
type Room struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"board_id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderUpdate is one entry of a batch reorder request.
type OrderUpdate struct {
	ID        string `json:"id"`
	SortOrder int    `json:"order"`
}
