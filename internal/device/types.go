package device

import "time"

// Device represents a Shelly relay known to the backend. The IP address
// is the natural key: discovery sync matches adapter-reported devices to
// local rows by IP, never by ID.
//
// AdapterID is the identifier the discovery adapter itself uses for the
// device. The adapter resolves only its own IDs, so relay commands must
// carry AdapterID, never the local row ID. It is empty for rows that
// have never been matched by a sync.
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IP        string    `json:"ip"`
	Type      string    `json:"type"`
	AdapterID string    `json:"adapter_id,omitempty"`
	RoomID    *string   `json:"room_id,omitempty"`
	IsOn      bool      `json:"is_on"`
	LastPower float64   `json:"last_power"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderUpdate is one entry of a batch device reorder request.
type OrderUpdate struct {
	ID        string `json:"id"`
	SortOrder int    `json:"order"`
}

// SyncRecord is one adapter-reported device fed into Sync. Keyed by IP.
type SyncRecord struct {
	AdapterID string
	Name      string
	IP        string
	Type      string
	IsOn      bool
	Power     float64
}
