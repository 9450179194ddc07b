package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	// Batch defaults when config.yaml leaves the values unset.
	defaultBatchSize      = 100
	defaultFlushSeconds   = 10
	millisecondsPerSecond = 1000
)

// Client writes shellyd telemetry to InfluxDB v2. Points go through the
// non-blocking batched write API, so the reconciliation loop never waits
// on the network; write failures surface asynchronously through the
// SetOnError callback.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	mu        sync.RWMutex
	connected bool
	onError   func(err error)
}

// Connect builds the client, verifies the server answers a ping, and
// wires the asynchronous error channel. Returns ErrDisabled when the
// configuration switches the integration off.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushSeconds := cfg.FlushInterval
	if flushSeconds <= 0 {
		flushSeconds = defaultFlushSeconds
	}

	inner := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).                                //nolint:gosec // validated positive above
			SetFlushInterval(uint(flushSeconds)*millisecondsPerSecond)) //nolint:gosec // validated positive above

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := inner.Ping(ctx)
	if err != nil {
		inner.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		inner.Close()
		return nil, fmt.Errorf("%w: server reported unhealthy", ErrConnectionFailed)
	}

	c := &Client{
		client:    inner,
		writeAPI:  inner.WriteAPI(cfg.Org, cfg.Bucket),
		connected: true,
	}
	go c.relayWriteErrors(c.writeAPI.Errors())

	return c, nil
}

// relayWriteErrors forwards batch write failures to the registered
// callback. The channel closes when the client shuts down.
func (c *Client) relayWriteErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		report := c.onError
		c.mu.RUnlock()

		if report != nil {
			report(err)
		}
	}
}

// SetOnError registers the callback invoked for asynchronous write
// failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	c.onError = callback
	c.mu.Unlock()
}

// Close flushes buffered points and shuts the client down.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.writable() {
		return ErrNotConnected
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(pingCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check: server reported unhealthy")
	}
	return nil
}

// writable reports whether points should still be submitted.
func (c *Client) writable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
