package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/damianarielmauro/Shelly-App/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler { //nolint:gocognit // route table is flat but long
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Login (no auth required)
		r.Post("/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Board endpoints
			r.Route("/boards", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermViewBoards)).Get("/", s.handleListBoards)
				r.With(s.requirePermission(auth.PermCreateBoard)).Post("/", s.handleCreateBoard)
				r.With(s.requirePermission(auth.PermUpdateBoardOrder)).Put("/order", s.handleReorderBoards)
				r.With(s.requirePermission(auth.PermDeleteBoard)).Delete("/{id}", s.handleDeleteBoard)
				r.With(s.requirePermission(auth.PermRenameBoard)).Put("/{id}/rename", s.handleRenameBoard)
			})

			// Room endpoints
			r.Route("/rooms", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermViewRooms)).Get("/", s.handleListRooms)
				r.With(s.requirePermission(auth.PermCreateRoom)).Post("/", s.handleCreateRoom)
				r.With(s.requirePermission(auth.PermUpdateRoomOrder)).Put("/order", s.handleReorderRooms)
				r.With(s.requirePermission(auth.PermDeleteRoom)).Delete("/{id}", s.handleDeleteRoom)
				r.With(s.requirePermission(auth.PermEditDashboard)).Put("/{id}/rename", s.handleRenameRoom)
				r.With(s.requirePermission(auth.PermEditDashboard)).Put("/{id}/move", s.handleMoveRoom)
			})

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermViewDevices)).Get("/", s.handleListDevices)
				r.With(s.requirePermission(auth.PermToggleDevice)).Post("/{id}/toggle", s.handleToggleDevice)
				r.With(s.requirePermission(auth.PermUpdateDeviceOrder)).Put("/order", s.handleReorderDevices)
				r.With(s.requirePermission(auth.PermManageDevices)).Post("/assign", s.handleAssignDevices)
				r.With(s.requirePermission(auth.PermStartDiscovery)).Get("/discover/start", s.handleStartDiscovery)
			})

			// User management endpoints
			r.Route("/users", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermManageUsers)).Get("/", s.handleListUsers)
				r.With(s.requirePermission(auth.PermCreateUser)).Post("/", s.handleCreateUser)
				r.With(s.requirePermission(auth.PermManageUsers)).Delete("/{id}", s.handleDeleteUser)
				r.With(s.requirePermission(auth.PermManageUsers)).Put("/{id}/role", s.handleUpdateUserRole)
				r.With(s.requirePermission(auth.PermManageUsers)).Post("/permissions", s.handleSetUserRooms)
				r.With(s.requirePermission(auth.PermManageUsers)).Get("/{id}/permissions", s.handleGetUserPermissions)
			})

			// Role introspection for the user editor
			r.With(s.requirePermission(auth.PermManageUsers)).
				Get("/roles/{role}/permissions", s.handleRolePermissions)

			// Adapter passthrough endpoints
			r.Route("/shelly", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermViewDevices)).Get("/devices", s.handleAdapterDevices)
				r.With(s.requirePermission(auth.PermDiscoverDevices)).Post("/discover", s.handleAdapterDiscover)
				r.With(s.requirePermission(auth.PermManageDevices)).Post("/sync_database", s.handleSyncDatabase)

				r.Route("/devices/{id}", func(r chi.Router) {
					r.With(s.requirePermission(auth.PermViewDevices)).Get("/", s.handleAdapterDeviceInfo)
					r.With(s.requirePermission(auth.PermViewDevices)).Get("/status", s.handleAdapterDeviceStatus)
					r.With(s.requirePermission(auth.PermViewDevices)).Get("/energy", s.handleAdapterDeviceEnergy)
					r.With(s.requirePermission(auth.PermControlDevices)).Post("/control", s.handleAdapterControl)
					r.With(s.requirePermission(auth.PermManageDevices)).Get("/firmware", s.handleCheckFirmware)
					r.With(s.requirePermission(auth.PermManageDevices)).Post("/firmware/update", s.handleUpdateFirmware)
				})
			})

			// Consumption statistics
			r.With(s.requirePermission(auth.PermViewStatistics)).
				Get("/statistics/consumption", s.handleConsumptionStats)

			// WebSocket event stream (token accepted via query parameter)
			r.With(s.requirePermission(auth.PermViewLogs)).Get("/events", s.handleEvents)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
