package api

import (
	"net/http"
	"testing"

	"github.com/damianarielmauro/Shelly-App/internal/auth"
)

func TestLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "admin@example.com",
		"password": testPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Token       string            `json:"token"`
		User        auth.User         `json:"user"`
		Permissions []auth.Permission `json:"permissions"`
	}
	decodeBody(t, rec, &body)

	if body.Token == "" {
		t.Error("response should carry a session token")
	}
	if body.User.ID != env.admin.ID || body.User.Role != auth.RoleAdmin {
		t.Errorf("user = %+v", body.User)
	}
	if len(body.Permissions) != len(auth.PermissionsForRole(auth.RoleAdmin)) {
		t.Errorf("permissions count = %d", len(body.Permissions))
	}

	// The issued token must be usable on protected routes
	rec = env.do(t, http.MethodGet, "/api/boards", body.Token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("issued token rejected: status = %d", rec.Code)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "admin@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "ghost@example.com",
		"password": testPassword,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Unknown accounts and bad passwords must be indistinguishable
	var body Error
	decodeBody(t, rec, &body)
	if body.Message != "invalid credentials" {
		t.Errorf("message = %q", body.Message)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "admin@example.com"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRolePermissions(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/roles/user/permissions", env.adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Role        auth.Role         `json:"role"`
		Permissions []auth.Permission `json:"permissions"`
	}
	decodeBody(t, rec, &body)
	if body.Role != auth.RoleUser || len(body.Permissions) != 3 {
		t.Errorf("body = %+v", body)
	}

	rec = env.do(t, http.MethodGet, "/api/roles/superuser/permissions", env.adminToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown role: status = %d, want 404", rec.Code)
	}
}
