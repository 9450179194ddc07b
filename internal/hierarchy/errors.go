package hierarchy

import "errors"

var (
	// ErrBoardNotFound is returned when a board ID does not exist.
	ErrBoardNotFound = errors.New("board not found")

	// ErrBoardNameExists is returned when a board name is already taken.
	ErrBoardNameExists = errors.New("board name already exists")

	// ErrBoardHasRooms is returned when trying to delete a board that still has rooms.
	ErrBoardHasRooms = errors.New("board has rooms: delete rooms first")

	// ErrRoomNotFound is returned when a room ID does not exist.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomNameExists is returned when a room name is already taken within its board.
	ErrRoomNameExists = errors.New("room name already exists on this board")
)
