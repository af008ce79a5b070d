package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/lunasphere/lunasphere-core/internal/infrastructure/config"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second
)

// InfluxSink mirrors each page view into InfluxDB as a time-series point.
// The SQLite counters remain authoritative; the sink exists for dashboards
// that want per-path traffic over time.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Writes are non-blocking and batched.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	connected bool
	mu        sync.RWMutex

	// onError is called when async write errors occur.
	onError func(err error)
}

// ConnectInflux establishes a connection to the InfluxDB server, verifies it
// with a ping, and configures the non-blocking batched write API.
// Returns ErrSinkDisabled when the sink is turned off in config.
func ConnectInflux(cfg config.InfluxDBConfig) (*InfluxSink, error) {
	if !cfg.Enabled {
		return nil, ErrSinkDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100 //nolint:mnd // library default
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 1000 //nolint:mnd // 1s default flush
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrSinkConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrSinkConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	s := &InfluxSink{
		client:    client,
		writeAPI:  writeAPI,
		cfg:       cfg,
		connected: true,
	}

	go s.handleWriteErrors(writeAPI.Errors())

	return s, nil
}

// handleWriteErrors processes async write errors from the WriteAPI.
func (s *InfluxSink) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		s.mu.RLock()
		callback := s.onError
		s.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// WritePageView records one page view point. The visitor is identified only
// by its hashed key; raw IPs never leave the process.
func (s *InfluxSink) WritePageView(visitorID, path string, at time.Time) {
	if !s.IsConnected() {
		return
	}

	point := write.NewPoint(
		"page_views",
		map[string]string{
			"path": path,
		},
		map[string]interface{}{
			"visitor": visitorID,
			"count":   1,
		},
		at,
	)

	s.writeAPI.WritePoint(point)
}

// SetOnError sets a callback invoked when async write errors occur.
// Since writes are non-blocking, errors are delivered asynchronously.
func (s *InfluxSink) SetOnError(callback func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = callback
}

// IsConnected returns the last known connection state.
func (s *InfluxSink) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// HealthCheck verifies the InfluxDB connection is alive.
func (s *InfluxSink) HealthCheck(ctx context.Context) error {
	if !s.IsConnected() {
		return ErrSinkNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := s.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}

	return nil
}

// Flush forces all pending writes to be sent. Safe to call after Close.
func (s *InfluxSink) Flush() {
	if s.writeAPI == nil {
		return
	}

	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()

	if !connected {
		return
	}

	s.writeAPI.Flush()
}

// Close flushes pending writes and shuts the client down.
func (s *InfluxSink) Close() error {
	if s.client == nil {
		return nil
	}

	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()

	s.writeAPI.Flush()
	s.client.Close()

	return nil
}
