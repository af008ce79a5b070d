package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/lunasphere/lunasphere-core/internal/infrastructure/logging"
)

// Tracker queue sizing and maintenance cadence.
const (
	// trackQueueSize bounds the page-view queue; hits beyond it are dropped.
	trackQueueSize = 256

	// cleanupInterval is how often stale visitor sightings are pruned.
	cleanupInterval = 10 * time.Minute
)

// Tracker records page views and answers analytics queries.
//
// Recording is best-effort: Track enqueues onto a buffered channel drained by
// a single goroutine, and drops the hit with a warning when the buffer is
// full. A slow disk must never stall request handling.
type Tracker struct {
	counters CounterRepository
	visitors VisitorRepository
	sink     *InfluxSink // nil when the sink is disabled
	logger   *logging.Logger

	retention    time.Duration
	onlineWindow time.Duration

	queue  chan PageView
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTracker creates a Tracker. sink may be nil.
func NewTracker(
	counters CounterRepository,
	visitors VisitorRepository,
	sink *InfluxSink,
	retention, onlineWindow time.Duration,
	logger *logging.Logger,
) *Tracker {
	return &Tracker{
		counters:     counters,
		visitors:     visitors,
		sink:         sink,
		logger:       logger.With("component", "analytics"),
		retention:    retention,
		onlineWindow: onlineWindow,
		queue:        make(chan PageView, trackQueueSize),
	}
}

// Start launches the drain and cleanup goroutines. Call Close to stop them.
func (t *Tracker) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)

	t.wg.Add(2) //nolint:mnd // drain + cleanup goroutines
	go t.drainLoop(ctx)
	go t.cleanupLoop(ctx)
}

// Close stops the background goroutines and drains nothing further.
func (t *Tracker) Close() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
}

// Track enqueues a page view for recording. Never blocks.
func (t *Tracker) Track(view PageView) {
	if view.At.IsZero() {
		view.At = time.Now()
	}

	select {
	case t.queue <- view:
	default:
		t.logger.Warn("page view dropped, tracking queue full", "path", view.Path)
	}
}

// drainLoop processes queued page views one at a time.
func (t *Tracker) drainLoop(ctx context.Context) {
	defer t.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case view := <-t.queue:
			t.record(ctx, view)
		}
	}
}

// record persists one page view: visitor sighting, counters, optional sink.
func (t *Tracker) record(ctx context.Context, view PageView) {
	isNew, err := t.visitors.Record(ctx, view.IP, view.UserAgent, view.At)
	if err != nil {
		t.logger.Error("recording visitor failed", "error", err)
		return
	}

	if isNew {
		if err := t.counters.IncrementTotalVisitors(ctx); err != nil {
			t.logger.Error("incrementing total visitors failed", "error", err)
		}
	}
	if err := t.counters.IncrementPageViews(ctx); err != nil {
		t.logger.Error("incrementing page views failed", "error", err)
	}

	if t.sink != nil {
		t.sink.WritePageView(VisitorKey(view.IP, view.UserAgent), view.Path, view.At)
	}
}

// cleanupLoop prunes visitor sightings older than the retention window.
func (t *Tracker) cleanupLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-t.retention)
			removed, err := t.visitors.DeleteInactiveBefore(ctx, cutoff)
			if err != nil {
				t.logger.Error("pruning visitors failed", "error", err)
				continue
			}
			if removed > 0 {
				t.logger.Debug("pruned stale visitors", "count", removed)
			}
		}
	}
}

// Snapshot returns the current counters with OnlineNow computed from visitor
// activity within the online window.
func (t *Tracker) Snapshot(ctx context.Context) (*Counters, error) {
	counters, err := t.counters.Get(ctx)
	if err != nil {
		return nil, err
	}

	online, err := t.visitors.CountActiveSince(ctx, time.Now().Add(-t.onlineWindow))
	if err != nil {
		return nil, err
	}
	counters.OnlineNow = online

	return counters, nil
}

// Visitors returns all tracked visitor sightings.
func (t *Tracker) Visitors(ctx context.Context) ([]Visitor, error) {
	return t.visitors.List(ctx)
}

// ApplyUpdate merges an admin-supplied counter update.
func (t *Tracker) ApplyUpdate(ctx context.Context, update CounterUpdate) error {
	return t.counters.Apply(ctx, update)
}

// RecordRegistration bumps the registered-user counter after a signup.
func (t *Tracker) RecordRegistration(ctx context.Context) {
	if err := t.counters.IncrementRegisteredUsers(ctx); err != nil {
		t.logger.Error("incrementing registered users failed", "error", err)
	}
}
