package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/damianarielmauro/Shelly-App/internal/auth"
)

// loginRequest is the request body for POST /api/login.
// The email is the login identity; usernames are display handles only.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /api/login.
type loginResponse struct {
	Token       string            `json:"token"`
	User        *auth.User        `json:"user"`
	Permissions []auth.Permission `json:"permissions"`
}

// handleLogin authenticates a user by email and password and returns a
// signed session token plus the caller's role permissions.
//
// Unknown emails and wrong passwords produce the same response so the
// endpoint does not leak which accounts exist.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("login lookup failed", "error", err)
		writeInternalError(w, "login failed")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		s.logger.Error("password verification failed", "error", err)
		writeInternalError(w, "login failed")
		return
	}
	if !ok {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	token, err := auth.GenerateAccessToken(user, s.secCfg.JWT.Secret, s.secCfg.JWT.AccessTokenTTL)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		writeInternalError(w, "login failed")
		return
	}

	s.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)

	writeJSON(w, http.StatusOK, loginResponse{
		Token:       token,
		User:        user,
		Permissions: auth.PermissionsForRole(user.Role),
	})
}

// handleRolePermissions returns the static permission set for a role.
// The dashboard user editor uses this to preview what a role grants.
func (s *Server) handleRolePermissions(w http.ResponseWriter, r *http.Request) {
	role := auth.Role(chi.URLParam(r, "role"))
	if !auth.IsValidUserRole(role) {
		writeNotFound(w, "unknown role")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"role":        role,
		"permissions": auth.PermissionsForRole(role),
	})
}
