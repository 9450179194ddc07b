package api

import (
	"net/http"

	"github.com/damianarielmauro/Shelly-App/internal/shelly"
)

// roomConsumption is one row of the consumption report.
type roomConsumption struct {
	RoomID      string  `json:"room_id"`
	RoomName    string  `json:"room_name"`
	DeviceCount int     `json:"device_count"`
	PowerWatts  float64 `json:"power_watts"`
}

// handleConsumptionStats aggregates power draw per room. Live readings
// from the reconciliation loop take precedence; devices the adapter has
// not reported recently fall back to their last persisted reading.
// Unassigned devices are excluded.
func (s *Server) handleConsumptionStats(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		s.logger.Error("list devices for statistics failed", "error", err)
		writeInternalError(w, "failed to compute statistics")
		return
	}

	rooms, err := s.boards.ListRooms(r.Context())
	if err != nil {
		s.logger.Error("list rooms for statistics failed", "error", err)
		writeInternalError(w, "failed to compute statistics")
		return
	}

	// Live power by IP, when the monitor is running
	var liveByIP map[string]shelly.AdapterDevice
	if s.monitor != nil {
		snapshot := s.monitor.Snapshot()
		liveByIP = make(map[string]shelly.AdapterDevice, len(snapshot))
		for _, d := range snapshot {
			if d.IP != "" {
				liveByIP[d.IP] = d
			}
		}
	}

	roomNames := make(map[string]string, len(rooms))
	for _, rm := range rooms {
		roomNames[rm.ID] = rm.Name
	}

	byRoom := make(map[string]*roomConsumption)
	var total float64
	for _, d := range devices {
		if d.RoomID == nil {
			continue
		}

		power := d.LastPower
		if live, ok := liveByIP[d.IP]; ok {
			power = live.PowerWatts()
		}

		rc, ok := byRoom[*d.RoomID]
		if !ok {
			rc = &roomConsumption{
				RoomID:   *d.RoomID,
				RoomName: roomNames[*d.RoomID],
			}
			byRoom[*d.RoomID] = rc
		}
		rc.DeviceCount++
		rc.PowerWatts += power
		total += power
	}

	// Report rooms in display order, including empty ones
	report := make([]roomConsumption, 0, len(rooms))
	for _, rm := range rooms {
		if rc, ok := byRoom[rm.ID]; ok {
			report = append(report, *rc)
			continue
		}
		report = append(report, roomConsumption{RoomID: rm.ID, RoomName: rm.Name})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rooms":             report,
		"total_power_watts": total,
	})
}
