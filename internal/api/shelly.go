package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/damianarielmauro/Shelly-App/internal/shelly"
)

type controlRequest struct {
	Channel int  `json:"channel"`
	State   bool `json:"state"`
}

// handleAdapterDevices returns the adapter's current device list. An
// unreachable adapter yields an empty list, not an error: the dashboard
// keeps rendering with whatever the store knows.
func (s *Server) handleAdapterDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.adapter.ListDevices(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleAdapterDiscover triggers an adapter device scan.
func (s *Server) handleAdapterDiscover(w http.ResponseWriter, r *http.Request) {
	if err := s.adapter.TriggerDiscovery(r.Context()); err != nil {
		s.logger.Warn("adapter discovery failed", "error", err)
		writeUpstreamUnavailable(w, "device adapter unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "discovery_started"})
}

// handleAdapterDeviceInfo relays the adapter's device record verbatim.
// Adapter failures surface as JSON null, mirroring the adapter contract.
func (s *Server) handleAdapterDeviceInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeRaw(w, http.StatusOK, s.adapter.DeviceInfo(r.Context(), id))
}

// handleAdapterDeviceStatus relays the adapter's live status for a device.
func (s *Server) handleAdapterDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeRaw(w, http.StatusOK, s.adapter.DeviceStatus(r.Context(), id))
}

// handleAdapterDeviceEnergy relays the meter readings for a device.
func (s *Server) handleAdapterDeviceEnergy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeRaw(w, http.StatusOK, s.adapter.EnergyData(r.Context(), id))
}

// handleAdapterControl drives a specific relay channel on a device.
// Unlike toggle, this takes the explicit target state and channel, and
// does not touch the device store; the next poll reconciles it.
func (s *Server) handleAdapterControl(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Channel < 0 {
		writeBadRequest(w, "channel must be non-negative")
		return
	}

	if err := s.adapter.Control(r.Context(), id, req.Channel, req.State); err != nil {
		s.logger.Warn("adapter control failed", "device_id", id, "error", err)
		writeUpstreamUnavailable(w, "device adapter unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCheckFirmware asks the adapter whether a firmware update is
// available for a device.
func (s *Server) handleCheckFirmware(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	info, err := s.adapter.CheckFirmware(r.Context(), id)
	if err != nil {
		s.logger.Warn("firmware check failed", "device_id", id, "error", err)
		writeUpstreamUnavailable(w, "device adapter unavailable")
		return
	}

	writeRaw(w, http.StatusOK, info)
}

// handleUpdateFirmware starts a firmware update on a device.
func (s *Server) handleUpdateFirmware(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.adapter.UpdateFirmware(r.Context(), id); err != nil {
		s.logger.Warn("firmware update failed", "device_id", id, "error", err)
		writeUpstreamUnavailable(w, "device adapter unavailable")
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("firmware update started", "device_id", id, "started_by", claims.Subject)

	writeJSON(w, http.StatusOK, map[string]string{"status": "update_started"})
}

// handleSyncDatabase reconciles the adapter's device list into the device
// store, matching rows by IP. Existing room assignments survive the sync.
func (s *Server) handleSyncDatabase(w http.ResponseWriter, r *http.Request) {
	updated, inserted, err := shelly.SyncDatabase(r.Context(), s.adapter, s.devices)
	if err != nil {
		s.logger.Error("database sync failed", "error", err)
		writeInternalError(w, "failed to sync database")
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("database synced", "updated", updated, "inserted", inserted, "synced_by", claims.Subject)

	writeJSON(w, http.StatusOK, map[string]int{
		"updated":  updated,
		"inserted": inserted,
	})
}
