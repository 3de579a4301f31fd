package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/homelink-core/internal/infrastructure/config"
)

// Timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// millisecondsPerSecond converts seconds to milliseconds for the InfluxDB API.
	millisecondsPerSecond = 1000
)

// Recorder writes device state and availability history to InfluxDB.
//
// History recording is optional and strictly best-effort: a recorder
// failure never blocks or fails a device operation. Writes are
// non-blocking and batched; async write errors surface through an
// error callback.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	// connected tracks current connection state.
	connected bool
	mu        sync.RWMutex

	// onError is called when async write errors occur.
	onError func(err error)
}

// Connect establishes a connection to the InfluxDB server and prepares
// the non-blocking write API.
//
// Returns ErrDisabled when history recording is switched off in
// configuration; callers treat that as "run without history".
func Connect(cfg config.InfluxDBConfig) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	r := &Recorder{
		client:    client,
		writeAPI:  writeAPI,
		cfg:       cfg,
		connected: true,
	}

	go r.handleWriteErrors(writeAPI.Errors())

	return r, nil
}

// handleWriteErrors processes async write errors from the WriteAPI.
func (r *Recorder) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		r.mu.RLock()
		callback := r.onError
		r.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// Close flushes pending writes and shuts the connection down.
func (r *Recorder) Close() error {
	if r.client == nil {
		return nil
	}

	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()

	r.writeAPI.Flush()
	r.client.Close()

	return nil
}

// HealthCheck verifies the InfluxDB connection is alive.
func (r *Recorder) HealthCheck(ctx context.Context) error {
	if !r.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := r.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("history health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("history health check failed: server not healthy")
	}

	return nil
}

// IsConnected returns the last known connection state. For reliability
// use HealthCheck, which performs an active ping.
func (r *Recorder) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// SetOnError sets a callback invoked when async write errors occur.
func (r *Recorder) SetOnError(callback func(err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = callback
}

// Flush forces all pending writes to be sent. Blocks until the buffer
// drains. Safe to call after Close (no-op).
func (r *Recorder) Flush() {
	if r.writeAPI == nil {
		return
	}

	r.mu.RLock()
	connected := r.connected
	r.mu.RUnlock()

	if !connected {
		return
	}

	r.writeAPI.Flush()
}
