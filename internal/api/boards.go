package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/damianarielmauro/Shelly-App/internal/hierarchy"
)

type createBoardRequest struct {
	Name string `json:"name"`
}

type renameRequest struct {
	Name string `json:"name"`
}

// handleListBoards returns all boards in display order.
func (s *Server) handleListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := s.boards.ListBoards(r.Context())
	if err != nil {
		s.logger.Error("list boards failed", "error", err)
		writeInternalError(w, "failed to list boards")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"boards": boards,
		"count":  len(boards),
	})
}

// handleCreateBoard creates a new board at the end of the display order.
func (s *Server) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var req createBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	board, err := s.boards.CreateBoard(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, hierarchy.ErrBoardNameExists) {
			writeConflict(w, "board name already exists")
			return
		}
		s.logger.Error("create board failed", "error", err)
		writeInternalError(w, "failed to create board")
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("board created", "board_id", board.ID, "name", board.Name, "created_by", claims.Subject)

	writeJSON(w, http.StatusCreated, board)
}

// handleDeleteBoard removes an empty board. Boards still holding rooms
// cannot be deleted; the rooms must be deleted or moved first.
func (s *Server) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.boards.DeleteBoard(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, hierarchy.ErrBoardNotFound):
			writeNotFound(w, "board not found")
		case errors.Is(err, hierarchy.ErrBoardHasRooms):
			writeConflict(w, "board has rooms: delete or move them first")
		default:
			s.logger.Error("delete board failed", "board_id", id, "error", err)
			writeInternalError(w, "failed to delete board")
		}
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("board deleted", "board_id", id, "deleted_by", claims.Subject)

	w.WriteHeader(http.StatusNoContent)
}

// handleRenameBoard renames a board, keeping names globally unique.
func (s *Server) handleRenameBoard(w http.ResponseWriter, r *http.Request) {
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

	if err := s.boards.RenameBoard(r.Context(), id, req.Name); err != nil {
		switch {
		case errors.Is(err, hierarchy.ErrBoardNotFound):
			writeNotFound(w, "board not found")
		case errors.Is(err, hierarchy.ErrBoardNameExists):
			writeConflict(w, "board name already exists")
		default:
			s.logger.Error("rename board failed", "board_id", id, "error", err)
			writeInternalError(w, "failed to rename board")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

// handleReorderBoards applies a batch of display-order updates.
// IDs that no longer exist are skipped rather than failing the batch,
// so a stale dashboard drag still applies cleanly.
func (s *Server) handleReorderBoards(w http.ResponseWriter, r *http.Request) {
	var updates []hierarchy.OrderUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.boards.ReorderBoards(r.Context(), updates); err != nil {
		s.logger.Error("reorder boards failed", "error", err)
		writeInternalError(w, "failed to reorder boards")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reordered"})
}
