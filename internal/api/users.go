package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/damianarielmauro/Shelly-App/internal/auth"
)

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 8

type createUserRequest struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Password    string    `json:"password"`
	Role        auth.Role `json:"role"`
}

type updateRoleRequest struct {
	Role auth.Role `json:"role"`
}

type setRoomAccessRequest struct {
	UserID  string   `json:"user_id"`
	RoomIDs []string `json:"room_ids"`
}

// handleListUsers returns all user accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleCreateUser creates a new user account. New admins get the current
// room set snapshotted into their grant rows, so demoting them later
// leaves a sensible grant set in place.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) { //nolint:gocognit // validation + hashing + admin grant snapshot
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeBadRequest(w, "username, email, and password are required")
		return
	}
	if !auth.IsValidUsername(req.Username) {
		writeBadRequest(w, "username must be 1-64 characters: letters, digits, dots, hyphens, underscores")
		return
	}
	if !auth.IsValidEmail(req.Email) {
		writeBadRequest(w, "email is not valid")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	if req.Role == "" {
		req.Role = auth.RoleUser
	}
	if !auth.IsValidUserRole(req.Role) {
		writeBadRequest(w, "invalid role: must be user or admin")
		return
	}

	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to create user")
		return
	}

	claims := claimsFromContext(r.Context())
	user := &auth.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	}

	if err := s.users.Create(r.Context(), user); err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameExists):
			writeConflict(w, "username already exists")
		case errors.Is(err, auth.ErrEmailExists):
			writeConflict(w, "email already registered")
		default:
			s.logger.Error("create user failed", "error", err)
			writeInternalError(w, "failed to create user")
		}
		return
	}

	if user.Role == auth.RoleAdmin {
		if err := s.roomAccess.GrantAllRooms(r.Context(), user.ID, claims.Subject); err != nil {
			s.logger.Error("grant all rooms to new admin failed", "user_id", user.ID, "error", err)
		}
	}

	s.logger.Info("user created", "user_id", user.ID, "username", user.Username, "role", user.Role, "created_by", claims.Subject)

	writeJSON(w, http.StatusCreated, user)
}

// handleDeleteUser removes a user account. Grants cascade with the row.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := claimsFromContext(r.Context())

	// Cannot delete yourself
	if id == claims.Subject {
		writeForbidden(w, "cannot delete your own account")
		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("delete user failed", "user_id", id, "error", err)
		writeInternalError(w, "failed to delete user")
		return
	}

	s.logger.Info("user deleted", "user_id", id, "deleted_by", claims.Subject)

	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateUserRole changes a user's role. Promoting to admin
// snapshots the current room set into the grant table.
func (s *Server) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := claimsFromContext(r.Context())

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !auth.IsValidUserRole(req.Role) {
		writeBadRequest(w, "invalid role: must be user or admin")
		return
	}

	// Self-protection: cannot change your own role
	if id == claims.Subject {
		writeForbidden(w, "cannot change your own role")
		return
	}

	if err := s.users.UpdateRole(r.Context(), id, req.Role); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("update role failed", "user_id", id, "error", err)
		writeInternalError(w, "failed to update role")
		return
	}

	if req.Role == auth.RoleAdmin {
		if err := s.roomAccess.GrantAllRooms(r.Context(), id, claims.Subject); err != nil {
			s.logger.Error("grant all rooms on promotion failed", "user_id", id, "error", err)
		}
	}

	s.logger.Info("user role updated", "user_id", id, "role", req.Role, "updated_by", claims.Subject)

	writeJSON(w, http.StatusOK, map[string]any{"status": "role_updated", "role": req.Role})
}

// handleSetUserRooms replaces all room grants for a user.
// An empty room_ids list revokes all room access.
func (s *Server) handleSetUserRooms(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req setRoomAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeBadRequest(w, "user_id is required")
		return
	}

	// Verify the user exists before touching grants
	if _, err := s.users.GetByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user for room grants failed", "user_id", req.UserID, "error", err)
		writeInternalError(w, "failed to set room access")
		return
	}

	if err := s.roomAccess.SetRoomAccess(r.Context(), req.UserID, req.RoomIDs, claims.Subject); err != nil {
		s.logger.Error("set room grants failed", "user_id", req.UserID, "error", err)
		writeInternalError(w, "failed to set room access")
		return
	}

	s.logger.Info("room grants updated", "user_id", req.UserID, "room_count", len(req.RoomIDs), "updated_by", claims.Subject)

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": req.UserID,
		"rooms":   req.RoomIDs,
		"count":   len(req.RoomIDs),
	})
}

// handleGetUserPermissions returns a user's role permissions and room grants.
func (s *Server) handleGetUserPermissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user permissions failed", "user_id", id, "error", err)
		writeInternalError(w, "failed to get permissions")
		return
	}

	rooms, err := s.roomAccess.GetAccessibleRoomIDs(r.Context(), id)
	if err != nil {
		s.logger.Error("get room grants failed", "user_id", id, "error", err)
		writeInternalError(w, "failed to get permissions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     user.ID,
		"role":        user.Role,
		"permissions": auth.PermissionsForRole(user.Role),
		"rooms":       rooms,
	})
}
