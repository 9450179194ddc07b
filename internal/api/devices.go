package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/damianarielmauro/Shelly-App/internal/auth"
	"github.com/damianarielmauro/Shelly-App/internal/device"
	"github.com/damianarielmauro/Shelly-App/internal/events"
)

type assignDevicesRequest struct {
	DeviceIDs []string `json:"device_ids"`
	RoomID    *string  `json:"room_id"` // null clears the assignment
}

// relayChannel is the Shelly relay channel operated by toggles. The
// dashboard only drives single-relay devices; multi-channel control goes
// through the adapter passthrough endpoint.
const relayChannel = 0

// handleListDevices returns the devices visible to the caller. Regular
// users only see devices assigned to their granted rooms; unassigned
// devices are admin-only.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	ids, all, err := s.roomAccess.VisibleRoomIDs(r.Context(), claims.Subject, claims.Role)
	if err != nil {
		s.logger.Error("resolve visible rooms failed", "user_id", claims.Subject, "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	var devices []device.Device
	if all {
		devices, err = s.devices.List(r.Context())
	} else {
		devices, err = s.devices.ListByRooms(r.Context(), ids)
	}
	if err != nil {
		s.logger.Error("list devices failed", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleToggleDevice flips a device's relay through the adapter and
// persists the new state. The adapter accepting the command is treated as
// success; the reconciliation loop corrects any divergence on its next
// poll. A deviceUpdate event is emitted only after the command succeeds.
func (s *Server) handleToggleDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := claimsFromContext(r.Context())

	d, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("get device for toggle failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to toggle device")
		return
	}

	if auth.IsRoomScoped(claims.Role) {
		scope, err := s.roomAccess.ResolveRoomScope(r.Context(), claims.Subject, claims.Role)
		if err != nil {
			s.logger.Error("resolve room scope failed", "user_id", claims.Subject, "error", err)
			writeInternalError(w, "failed to toggle device")
			return
		}
		if d.RoomID == nil || !scope.CanAccessRoom(*d.RoomID) {
			writeForbidden(w, "device is outside your granted rooms")
			return
		}
	}

	relayID := s.adapterIDFor(d)
	if relayID == "" {
		s.logger.Warn("toggle without adapter identity", "device_id", id, "ip", d.IP)
		writeUpstreamUnavailable(w, "device is not known to the adapter")
		return
	}

	target := !d.IsOn
	if err := s.adapter.Control(r.Context(), relayID, relayChannel, target); err != nil {
		s.logger.Warn("adapter rejected toggle", "device_id", id, "adapter_id", relayID, "error", err)
		writeUpstreamUnavailable(w, "device adapter unavailable")
		return
	}

	if err := s.devices.SetState(r.Context(), id, target, d.LastPower); err != nil {
		s.logger.Error("persist toggled state failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to toggle device")
		return
	}
	d.IsOn = target

	s.bus.Publish(events.DeviceUpdate, *d)
	s.logger.Info("device toggled", "device_id", id, "on", target, "user_id", claims.Subject)

	writeJSON(w, http.StatusOK, d)
}

// adapterIDFor resolves the identifier the adapter itself uses for a
// device. The synced adapter_id column is authoritative; rows created
// before the device was ever reported fall back to a live snapshot
// lookup by IP. Local row IDs are never sent to the adapter.
func (s *Server) adapterIDFor(d *device.Device) string {
	if d.AdapterID != "" {
		return d.AdapterID
	}
	if s.monitor == nil {
		return ""
	}
	for _, ad := range s.monitor.Snapshot() {
		if ad.IP == d.IP {
			return ad.ID
		}
	}
	return ""
}

// handleReorderDevices applies a batch of display-order updates.
func (s *Server) handleReorderDevices(w http.ResponseWriter, r *http.Request) {
	var updates []device.OrderUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.devices.Reorder(r.Context(), updates); err != nil {
		s.logger.Error("reorder devices failed", "error", err)
		writeInternalError(w, "failed to reorder devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reordered"})
}

// handleAssignDevices moves a batch of devices into a room, or back to
// the unassigned pool when room_id is null.
func (s *Server) handleAssignDevices(w http.ResponseWriter, r *http.Request) {
	var req assignDevicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.DeviceIDs) == 0 {
		writeBadRequest(w, "device_ids is required")
		return
	}

	if err := s.devices.AssignRoom(r.Context(), req.DeviceIDs, req.RoomID); err != nil {
		if errors.Is(err, device.ErrRoomNotFound) {
			writeNotFound(w, "room not found")
			return
		}
		s.logger.Error("assign devices failed", "error", err)
		writeInternalError(w, "failed to assign devices")
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("devices assigned", "count", len(req.DeviceIDs), "assigned_by", claims.Subject)

	writeJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

// handleStartDiscovery asks the adapter to start a device scan. The scan
// runs asynchronously on the adapter; newly found devices show up through
// the reconciliation loop and sync.
func (s *Server) handleStartDiscovery(w http.ResponseWriter, r *http.Request) {
	if err := s.adapter.TriggerDiscovery(r.Context()); err != nil {
		s.logger.Warn("discovery trigger failed", "error", err)
		writeUpstreamUnavailable(w, "device adapter unavailable")
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("discovery started", "started_by", claims.Subject)

	writeJSON(w, http.StatusOK, map[string]string{"status": "discovery_started"})
}
