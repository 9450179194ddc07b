// Package hierarchy provides the board and room structure of the dashboard.
//
// Boards are top-level groupings (one board per dashboard tab); each board
// contains rooms, and devices hang off rooms. The package enforces the
// structural rules: board names are globally unique, room names are unique
// per board, and a board cannot be deleted while it still owns rooms.
//
// Display ordering is a sort_order hint per row. Batch reorders and room
// moves run in a single transaction so concurrent readers never observe a
// half-applied ordering.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use from multiple goroutines
// (SQLite WAL mode + connection pooling).
package hierarchy
