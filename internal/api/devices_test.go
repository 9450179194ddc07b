package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/damianarielmauro/Shelly-App/internal/auth"
	"github.com/damianarielmauro/Shelly-App/internal/device"
	"github.com/damianarielmauro/Shelly-App/internal/events"
)

// fakeAdapter records control requests and serves a configurable payload.
type fakeAdapter struct {
	mu       sync.Mutex
	devices  string
	controls []string // request paths of control calls
	bodies   []map[string]string
	fail     bool
}

func (f *fakeAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if r.Method == http.MethodPost {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck // test capture
		f.controls = append(f.controls, r.URL.Path)
		f.bodies = append(f.bodies, body)
		w.Write([]byte(`{"status": "ok"}`)) //nolint:errcheck // test server
		return
	}

	payload := f.devices
	if payload == "" {
		payload = `[]`
	}
	w.Write([]byte(payload)) //nolint:errcheck // test server
}

func (f *fakeAdapter) lastControl() (string, map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.controls) == 0 {
		return "", nil
	}
	return f.controls[len(f.controls)-1], f.bodies[len(f.bodies)-1]
}

// seedDevice inserts a device row, optionally assigned to a room. The
// adapter identity is derived from the IP so relay assertions can predict
// it.
func seedDevice(t *testing.T, env *testEnv, name, ip string, roomID *string) *device.Device {
	t.Helper()

	d := &device.Device{Name: name, IP: ip, Type: "SHSW-1", AdapterID: "shelly1-" + ip, RoomID: roomID}
	if err := env.devices.Create(context.Background(), d); err != nil {
		t.Fatalf("seeding device %s: %v", name, err)
	}
	return d
}

func TestToggleDevice(t *testing.T) {
	adapter := &fakeAdapter{}
	env := newTestEnv(t, adapter)

	d := seedDevice(t, env, "Kitchen Light", "10.0.0.5", nil)

	var published []events.Event
	env.bus.Subscribe(func(e events.Event) { published = append(published, e) }, events.DeviceUpdate)

	rec := env.do(t, http.MethodPost, "/api/devices/"+d.ID+"/toggle", env.adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var toggled device.Device
	decodeBody(t, rec, &toggled)
	if !toggled.IsOn {
		t.Error("device should be on after first toggle")
	}

	// The adapter got the relay command, addressed by its own device ID
	path, body := adapter.lastControl()
	if path != "/api/v1/devices/"+d.AdapterID+"/relay/0" {
		t.Errorf("control path = %q", path)
	}
	if body["turn"] != "on" {
		t.Errorf(`control body turn = %q, want "on"`, body["turn"])
	}

	// The new state is durable
	stored, err := env.devices.GetByID(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("reloading device: %v", err)
	}
	if !stored.IsOn {
		t.Error("toggled state should be persisted")
	}

	// Exactly one deviceUpdate event
	if len(published) != 1 {
		t.Fatalf("published %d events, want 1", len(published))
	}
	if payload, ok := published[0].Payload.(device.Device); !ok || payload.ID != d.ID {
		t.Errorf("event payload = %+v", published[0].Payload)
	}

	// Second toggle turns it back off
	rec = env.do(t, http.MethodPost, "/api/devices/"+d.ID+"/toggle", env.adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second toggle: status = %d", rec.Code)
	}
	_, body = adapter.lastControl()
	if body["turn"] != "off" {
		t.Errorf(`second toggle turn = %q, want "off"`, body["turn"])
	}
}

func TestToggleDevice_SyncedDeviceKeepsAdapterIdentity(t *testing.T) {
	adapter := &fakeAdapter{}
	env := newTestEnv(t, adapter)

	// Rows created by sync get a generated local ID; the adapter only
	// knows the device by its own ID.
	const adapterID = "shellyswitch25-A1B2C3"
	if _, _, err := env.devices.Sync(context.Background(), []device.SyncRecord{
		{AdapterID: adapterID, Name: "Bathroom Heater", IP: "10.0.0.9", Type: "SHSW-25"},
	}); err != nil {
		t.Fatalf("syncing device: %v", err)
	}
	devices, err := env.devices.List(context.Background())
	if err != nil || len(devices) != 1 {
		t.Fatalf("listing synced devices: %v (%d rows)", err, len(devices))
	}
	d := devices[0]
	if d.ID == adapterID {
		t.Fatal("sync should mint a local row ID distinct from the adapter's")
	}

	rec := env.do(t, http.MethodPost, "/api/devices/"+d.ID+"/toggle", env.adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	path, _ := adapter.lastControl()
	if path != "/api/v1/devices/"+adapterID+"/relay/0" {
		t.Errorf("control path = %q, want the adapter's device ID", path)
	}
	if strings.Contains(path, d.ID) {
		t.Errorf("control path %q leaks the local row ID", path)
	}
}

func TestToggleDevice_UnknownToAdapter(t *testing.T) {
	adapter := &fakeAdapter{}
	env := newTestEnv(t, adapter)

	// A manually created row that no sync has ever matched carries no
	// adapter identity, so there is nothing valid to send upstream.
	d := &device.Device{Name: "Ghost Plug", IP: "10.0.0.99"}
	if err := env.devices.Create(context.Background(), d); err != nil {
		t.Fatalf("seeding device: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/api/devices/"+d.ID+"/toggle", env.adminToken, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	if path, _ := adapter.lastControl(); path != "" {
		t.Errorf("adapter received %q, want no command at all", path)
	}
	stored, err := env.devices.GetByID(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("reloading device: %v", err)
	}
	if stored.IsOn {
		t.Error("failed toggle must not flip stored state")
	}
}

func TestToggleDevice_NotFound(t *testing.T) {
	adapter := &fakeAdapter{}
	env := newTestEnv(t, adapter)

	var count int
	env.bus.Subscribe(func(events.Event) { count++ })

	rec := env.do(t, http.MethodPost, "/api/devices/dev-missing/toggle", env.adminToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if count != 0 {
		t.Errorf("missing device emitted %d events, want 0", count)
	}
}

func TestToggleDevice_AdapterDown(t *testing.T) {
	adapter := &fakeAdapter{fail: true}
	env := newTestEnv(t, adapter)

	d := seedDevice(t, env, "Kitchen Light", "10.0.0.5", nil)

	rec := env.do(t, http.MethodPost, "/api/devices/"+d.ID+"/toggle", env.adminToken, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	// State must not change when the adapter refused the command
	stored, err := env.devices.GetByID(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("reloading device: %v", err)
	}
	if stored.IsOn {
		t.Error("failed toggle must not flip stored state")
	}
}

func TestToggleDevice_RoomScope(t *testing.T) {
	adapter := &fakeAdapter{}
	env := newTestEnv(t, adapter)

	board, _ := env.hierarchy.CreateBoard(context.Background(), "Ground Floor") //nolint:errcheck // seeded fresh
	kitchen, err := env.hierarchy.CreateRoom(context.Background(), board.ID, "Kitchen")
	if err != nil {
		t.Fatalf("seeding room: %v", err)
	}
	living, err := env.hierarchy.CreateRoom(context.Background(), board.ID, "Living Room")
	if err != nil {
		t.Fatalf("seeding room: %v", err)
	}

	granted := seedDevice(t, env, "Kitchen Light", "10.0.0.5", &kitchen.ID)
	denied := seedDevice(t, env, "TV Socket", "10.0.0.6", &living.ID)
	unassigned := seedDevice(t, env, "Spare Plug", "10.0.0.7", nil)

	member := env.seedUser(t, "alice", auth.RoleUser)
	if err := env.roomAccess.SetRoomAccess(context.Background(), member.ID, []string{kitchen.ID}, env.admin.ID); err != nil {
		t.Fatalf("granting room: %v", err)
	}
	memberToken := env.tokenFor(t, member)

	// Granted room: allowed
	rec := env.do(t, http.MethodPost, "/api/devices/"+granted.ID+"/toggle", memberToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("granted toggle: status = %d, want 200", rec.Code)
	}

	// Ungranted room: forbidden
	rec = env.do(t, http.MethodPost, "/api/devices/"+denied.ID+"/toggle", memberToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("denied toggle: status = %d, want 403", rec.Code)
	}

	// Unassigned devices are admin-only
	rec = env.do(t, http.MethodPost, "/api/devices/"+unassigned.ID+"/toggle", memberToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("unassigned toggle: status = %d, want 403", rec.Code)
	}
}

func TestListDevices_ScopedVisibility(t *testing.T) {
	env := newTestEnv(t, nil)

	board, _ := env.hierarchy.CreateBoard(context.Background(), "Ground Floor") //nolint:errcheck // seeded fresh
	kitchen, err := env.hierarchy.CreateRoom(context.Background(), board.ID, "Kitchen")
	if err != nil {
		t.Fatalf("seeding room: %v", err)
	}

	seedDevice(t, env, "Kitchen Light", "10.0.0.5", &kitchen.ID)
	seedDevice(t, env, "Spare Plug", "10.0.0.7", nil)

	member := env.seedUser(t, "alice", auth.RoleUser)
	if err := env.roomAccess.SetRoomAccess(context.Background(), member.ID, []string{kitchen.ID}, env.admin.ID); err != nil {
		t.Fatalf("granting room: %v", err)
	}

	var listing struct {
		Devices []device.Device `json:"devices"`
		Count   int             `json:"count"`
	}

	rec := env.do(t, http.MethodGet, "/api/devices", env.tokenFor(t, member), nil)
	decodeBody(t, rec, &listing)
	if listing.Count != 1 || listing.Devices[0].Name != "Kitchen Light" {
		t.Errorf("member sees %+v", listing.Devices)
	}

	rec = env.do(t, http.MethodGet, "/api/devices", env.adminToken, nil)
	decodeBody(t, rec, &listing)
	if listing.Count != 2 {
		t.Errorf("admin sees %d devices, want 2", listing.Count)
	}
}

func TestAssignDevices(t *testing.T) {
	env := newTestEnv(t, nil)

	board, _ := env.hierarchy.CreateBoard(context.Background(), "Ground Floor") //nolint:errcheck // seeded fresh
	kitchen, err := env.hierarchy.CreateRoom(context.Background(), board.ID, "Kitchen")
	if err != nil {
		t.Fatalf("seeding room: %v", err)
	}
	d := seedDevice(t, env, "Kitchen Light", "10.0.0.5", nil)

	rec := env.do(t, http.MethodPost, "/api/devices/assign", env.adminToken, map[string]any{
		"device_ids": []string{d.ID},
		"room_id":    kitchen.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	stored, err := env.devices.GetByID(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("reloading device: %v", err)
	}
	if stored.RoomID == nil || *stored.RoomID != kitchen.ID {
		t.Errorf("room_id = %v, want %s", stored.RoomID, kitchen.ID)
	}

	// Unknown room
	rec = env.do(t, http.MethodPost, "/api/devices/assign", env.adminToken, map[string]any{
		"device_ids": []string{d.ID},
		"room_id":    "room-missing",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown room: status = %d, want 404", rec.Code)
	}

	// Null room clears the assignment
	rec = env.do(t, http.MethodPost, "/api/devices/assign", env.adminToken, map[string]any{
		"device_ids": []string{d.ID},
		"room_id":    nil,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("clear: status = %d", rec.Code)
	}
	stored, _ = env.devices.GetByID(context.Background(), d.ID) //nolint:errcheck // verified above
	if stored.RoomID != nil {
		t.Errorf("room_id should be cleared, got %v", *stored.RoomID)
	}
}

func TestStartDiscovery(t *testing.T) {
	adapter := &fakeAdapter{}
	env := newTestEnv(t, adapter)

	rec := env.do(t, http.MethodGet, "/api/devices/discover/start", env.adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	path, _ := adapter.lastControl()
	if path != "/api/v1/discover" {
		t.Errorf("adapter path = %q, want /api/v1/discover", path)
	}
}

func TestStartDiscovery_AdapterDown(t *testing.T) {
	adapter := &fakeAdapter{fail: true}
	env := newTestEnv(t, adapter)

	rec := env.do(t, http.MethodGet, "/api/devices/discover/start", env.adminToken, nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
