package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/config"
)

const (
	pingTimeout = 5 * time.Second

	fallbackBatchSize     = 100
	fallbackFlushInterval = 10 * time.Second
)

// Client records simulation telemetry in an InfluxDB v2 bucket.
//
// Points go through the library's batching write API, so writes never block
// the scenario loop. Failures surface asynchronously through SetOnError.
type Client struct {
	server influxdb2.Client // nil when built around a bare write API
	writer api.WriteAPI

	closed  atomic.Bool
	failed  atomic.Uint64
	onError atomic.Pointer[func(error)]
}

// Connect opens a client for cfg and verifies the server answers a ping
// before returning. It returns ErrDisabled when telemetry is switched off.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	server := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))
	if err := ping(ctx, server, 2*pingTimeout); err != nil {
		server.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := newClient(server.WriteAPI(cfg.Org, cfg.Bucket))
	c.server = server
	return c, nil
}

// writeOptions maps the batch settings of cfg onto client options,
// substituting defaults for unset values.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(fallbackBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := fallbackFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())).
		SetPrecision(time.Millisecond).
		AddDefaultTag("source", "shopfloor-sim")
}

func ping(ctx context.Context, server influxdb2.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := server.Ping(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("ping: %w", err)
	case !ok:
		return fmt.Errorf("ping: server reports unhealthy")
	}
	return nil
}

func newClient(writer api.WriteAPI) *Client {
	c := &Client{writer: writer}
	if errs := writer.Errors(); errs != nil {
		go c.watch(errs)
	}
	return c
}

// watch forwards asynchronous write failures until the channel closes.
func (c *Client) watch(errs <-chan error) {
	for err := range errs {
		c.failed.Add(1)
		if fn := c.onError.Load(); fn != nil {
			(*fn)(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}
	}
}

// SetOnError installs the callback for asynchronous write failures.
func (c *Client) SetOnError(fn func(err error)) {
	if fn == nil {
		c.onError.Store(nil)
		return
	}
	c.onError.Store(&fn)
}

// Failures returns the number of batches the server rejected so far.
func (c *Client) Failures() uint64 {
	return c.failed.Load()
}

// IsConnected reports whether the client still accepts points.
func (c *Client) IsConnected() bool {
	return !c.closed.Load()
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() || c.server == nil {
		return ErrNotConnected
	}
	if err := ping(ctx, c.server, pingTimeout); err != nil {
		return fmt.Errorf("influxdb health: %w", err)
	}
	return nil
}

// Flush writes buffered points now. It does nothing after Close.
func (c *Client) Flush() {
	if c.closed.Load() {
		return
	}
	c.writer.Flush()
}

// Close flushes what is buffered and releases the connection. Points
// written afterwards are dropped. Calling Close twice is harmless.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writer.Flush()
	if c.server != nil {
		c.server.Close()
	}
	return nil
}
