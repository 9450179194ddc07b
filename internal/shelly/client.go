package shelly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/config"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/logging"
)

// requestKind is the closed set of adapter request methods.
type requestKind int

const (
	kindGet requestKind = iota
	kindPost
	kindPut
	kindDelete
)

func (k requestKind) method() string {
	switch k {
	case kindPost:
		return http.MethodPost
	case kindPut:
		return http.MethodPut
	case kindDelete:
		return http.MethodDelete
	default:
		return http.MethodGet
	}
}

// Client talks to the external Shelly discovery adapter over HTTP.
//
// Read operations (device list, info, status, energy) never surface
// transport errors: they log and return empty results, so a flapping
// adapter degrades the dashboard instead of breaking it. Action
// operations (discovery, control, firmware) return ErrAdapterUnavailable
// so callers can report the failure.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates an adapter client from configuration.
func NewClient(cfg *config.Config, logger *logging.Logger) *Client {
	return &Client{
		baseURL: cfg.Adapter.URL,
		httpClient: &http.Client{
			Timeout: cfg.AdapterTimeout(),
		},
		logger: logger.With("component", "shelly"),
	}
}

// ListDevices returns the devices currently known to the adapter.
// Any transport or decode failure yields an empty slice.
func (c *Client) ListDevices(ctx context.Context) []AdapterDevice {
	raw, err := c.do(ctx, kindGet, "api/v1/devices", nil)
	if err != nil {
		c.logger.Warn("listing adapter devices failed", "error", err)
		return []AdapterDevice{}
	}

	var devices []AdapterDevice
	if err := json.Unmarshal(raw, &devices); err != nil {
		c.logger.Warn("decoding adapter device list failed", "error", err)
		return []AdapterDevice{}
	}
	if devices == nil {
		devices = []AdapterDevice{}
	}
	return devices
}

// TriggerDiscovery asks the adapter to start a network scan. It returns
// once the adapter acknowledges; discovery itself runs asynchronously.
func (c *Client) TriggerDiscovery(ctx context.Context) error {
	if _, err := c.do(ctx, kindPost, "api/v1/discover", nil); err != nil {
		return fmt.Errorf("%w: %w", ErrAdapterUnavailable, err)
	}
	return nil
}

// DeviceInfo returns the adapter's detail record for one device, or nil
// on any failure.
func (c *Client) DeviceInfo(ctx context.Context, deviceID string) json.RawMessage {
	raw, err := c.do(ctx, kindGet, "api/v1/devices/"+deviceID, nil)
	if err != nil {
		c.logger.Warn("reading device info failed", "device_id", deviceID, "error", err)
		return nil
	}
	return raw
}

// DeviceStatus returns the adapter's live status for one device, or nil
// on any failure.
func (c *Client) DeviceStatus(ctx context.Context, deviceID string) json.RawMessage {
	raw, err := c.do(ctx, kindGet, "api/v1/devices/"+deviceID+"/status", nil)
	if err != nil {
		c.logger.Warn("reading device status failed", "device_id", deviceID, "error", err)
		return nil
	}
	return raw
}

// EnergyData extracts the meters sub-field of a device's status. A
// device without meters is treated as unmetered, not as an error: the
// result is nil.
func (c *Client) EnergyData(ctx context.Context, deviceID string) json.RawMessage {
	status := c.DeviceStatus(ctx, deviceID)
	if status == nil {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(status, &fields); err != nil {
		c.logger.Warn("decoding device status failed", "device_id", deviceID, "error", err)
		return nil
	}

	meters, ok := fields["meters"]
	if !ok {
		return nil
	}
	return meters
}

// Control switches a device relay channel on or off. Success means the
// adapter accepted the command; the device's actual state is confirmed
// on the next reconciliation pass.
func (c *Client) Control(ctx context.Context, deviceID string, channel int, on bool) error {
	turn := "off"
	if on {
		turn = "on"
	}

	path := fmt.Sprintf("api/v1/devices/%s/relay/%d", deviceID, channel)
	if _, err := c.do(ctx, kindPost, path, map[string]string{"turn": turn}); err != nil {
		return fmt.Errorf("%w: %w", ErrAdapterUnavailable, err)
	}
	return nil
}

// CheckFirmware queries available firmware updates for a device.
func (c *Client) CheckFirmware(ctx context.Context, deviceID string) (json.RawMessage, error) {
	raw, err := c.do(ctx, kindGet, "api/v1/devices/"+deviceID+"/firmware", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAdapterUnavailable, err)
	}
	return raw, nil
}

// UpdateFirmware asks the adapter to start a firmware update. Same
// fire-and-forget acknowledgment semantics as Control.
func (c *Client) UpdateFirmware(ctx context.Context, deviceID string) error {
	if _, err := c.do(ctx, kindPost, "api/v1/devices/"+deviceID+"/firmware/update", nil); err != nil {
		return fmt.Errorf("%w: %w", ErrAdapterUnavailable, err)
	}
	return nil
}

// do performs one adapter round-trip and returns the raw response body.
func (c *Client) do(ctx context.Context, kind requestKind, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	url := c.baseURL + "/" + path
	req, err := http.NewRequestWithContext(ctx, kind.method(), url, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling adapter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("adapter returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading adapter response: %w", err)
	}
	return raw, nil
}
