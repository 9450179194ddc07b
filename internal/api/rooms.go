package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/damianarielmauro/Shelly-App/internal/hierarchy"
)

type createRoomRequest struct {
	Name    string `json:"name"`
	BoardID string `json:"board_id"`
}

type moveRoomRequest struct {
	BoardID string `json:"board_id"`
}

// handleListRooms returns the rooms visible to the caller: every room for
// admins, the granted subset for regular users.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	ids, all, err := s.roomAccess.VisibleRoomIDs(r.Context(), claims.Subject, claims.Role)
	if err != nil {
		s.logger.Error("resolve visible rooms failed", "user_id", claims.Subject, "error", err)
		writeInternalError(w, "failed to list rooms")
		return
	}

	var rooms []hierarchy.Room
	if all {
		rooms, err = s.boards.ListRooms(r.Context())
	} else {
		rooms, err = s.boards.ListRoomsByIDs(r.Context(), ids)
	}
	if err != nil {
		s.logger.Error("list rooms failed", "error", err)
		writeInternalError(w, "failed to list rooms")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": rooms,
		"count": len(rooms),
	})
}

// handleCreateRoom creates a room on a board.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" || req.BoardID == "" {
		writeBadRequest(w, "name and board_id are required")
		return
	}

	room, err := s.boards.CreateRoom(r.Context(), req.BoardID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, hierarchy.ErrBoardNotFound):
			writeNotFound(w, "board not found")
		case errors.Is(err, hierarchy.ErrRoomNameExists):
			writeConflict(w, "room name already used on this board")
		default:
			s.logger.Error("create room failed", "error", err)
			writeInternalError(w, "failed to create room")
		}
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("room created", "room_id", room.ID, "board_id", room.BoardID, "created_by", claims.Subject)

	writeJSON(w, http.StatusCreated, room)
}

// handleDeleteRoom removes a room. Devices in the room are left in place
// with their room assignment cleared, not deleted.
func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.boards.DeleteRoom(r.Context(), id); err != nil {
		if errors.Is(err, hierarchy.ErrRoomNotFound) {
			writeNotFound(w, "room not found")
			return
		}
		s.logger.Error("delete room failed", "room_id", id, "error", err)
		writeInternalError(w, "failed to delete room")
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("room deleted", "room_id", id, "deleted_by", claims.Subject)

	w.WriteHeader(http.StatusNoContent)
}

// handleRenameRoom renames a room, keeping names unique per board.
func (s *Server) handleRenameRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	if err := s.boards.RenameRoom(r.Context(), id, req.Name); err != nil {
		switch {
		case errors.Is(err, hierarchy.ErrRoomNotFound):
			writeNotFound(w, "room not found")
		case errors.Is(err, hierarchy.ErrRoomNameExists):
			writeConflict(w, "room name already used on this board")
		default:
			s.logger.Error("rename room failed", "room_id", id, "error", err)
			writeInternalError(w, "failed to rename room")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

// handleMoveRoom reparents a room onto another board. The room lands at
// the end of the target board's display order.
func (s *Server) handleMoveRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req moveRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.BoardID == "" {
		writeBadRequest(w, "board_id is required")
		return
	}

	room, err := s.boards.MoveRoom(r.Context(), id, req.BoardID)
	if err != nil {
		switch {
		case errors.Is(err, hierarchy.ErrRoomNotFound):
			writeNotFound(w, "room not found")
		case errors.Is(err, hierarchy.ErrBoardNotFound):
			writeNotFound(w, "target board not found")
		case errors.Is(err, hierarchy.ErrRoomNameExists):
			writeConflict(w, "room name already used on target board")
		default:
			s.logger.Error("move room failed", "room_id", id, "error", err)
			writeInternalError(w, "failed to move room")
		}
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("room moved", "room_id", id, "board_id", req.BoardID, "moved_by", claims.Subject)

	writeJSON(w, http.StatusOK, room)
}

// handleReorderRooms applies a batch of display-order updates.
func (s *Server) handleReorderRooms(w http.ResponseWriter, r *http.Request) {
	var updates []hierarchy.OrderUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.boards.ReorderRooms(r.Context(), updates); err != nil {
		s.logger.Error("reorder rooms failed", "error", err)
		writeInternalError(w, "failed to reorder rooms")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reordered"})
}
