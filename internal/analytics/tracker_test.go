package analytics

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lunasphere/lunasphere-core/internal/infrastructure/config"
	"github.com/lunasphere/lunasphere-core/internal/infrastructure/logging"
)

// testDB creates a temporary SQLite database with the analytics schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "analytics-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE analytics (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			total_visitors INTEGER NOT NULL DEFAULT 0,
			page_views INTEGER NOT NULL DEFAULT 0,
			registered_users INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);
		INSERT INTO analytics (id) VALUES (1);

		CREATE TABLE visitors (
			id TEXT PRIMARY KEY,
			ip TEXT NOT NULL,
			user_agent TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT 'Unknown',
			first_seen TEXT NOT NULL,
			last_activity TEXT NOT NULL,
			page_count INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX idx_visitors_last_activity ON visitors(last_activity);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying analytics schema: %v", err)
	}

	return db
}

// testTracker wires a Tracker (no sink, no background loops) over a fresh db.
func testTracker(t *testing.T) (*Tracker, *sql.DB) {
	t.Helper()

	db := testDB(t)
	logger := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
	tracker := NewTracker(
		NewCounterRepository(db),
		NewVisitorRepository(db),
		nil,
		24*time.Hour,
		5*time.Minute,
		logger,
	)
	return tracker, db
}

func TestRecordCountsDistinctVisitorsAndPageViews(t *testing.T) {
	tracker, _ := testTracker(t)
	ctx := context.Background()

	tracker.record(ctx, PageView{IP: "10.0.0.1", UserAgent: "browser-a", Path: "/", At: time.Now()})
	tracker.record(ctx, PageView{IP: "10.0.0.1", UserAgent: "browser-a", Path: "/about", At: time.Now()})
	tracker.record(ctx, PageView{IP: "10.0.0.2", UserAgent: "browser-b", Path: "/", At: time.Now()})

	counters, err := tracker.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if counters.TotalVisitors != 2 {
		t.Errorf("TotalVisitors = %d, want 2", counters.TotalVisitors)
	}
	if counters.PageViews != 3 {
		t.Errorf("PageViews = %d, want 3", counters.PageViews)
	}
	if counters.OnlineNow != 2 {
		t.Errorf("OnlineNow = %d, want 2", counters.OnlineNow)
	}
}

func TestSameIPDifferentAgentIsDistinctVisitor(t *testing.T) {
	tracker, _ := testTracker(t)
	ctx := context.Background()

	tracker.record(ctx, PageView{IP: "10.0.0.1", UserAgent: "browser-a", Path: "/", At: time.Now()})
	tracker.record(ctx, PageView{IP: "10.0.0.1", UserAgent: "browser-b", Path: "/", At: time.Now()})

	counters, err := tracker.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if counters.TotalVisitors != 2 {
		t.Errorf("TotalVisitors = %d, want 2", counters.TotalVisitors)
	}
}

func TestOnlineNowRespectsWindow(t *testing.T) {
	tracker, _ := testTracker(t)
	ctx := context.Background()

	tracker.record(ctx, PageView{IP: "10.0.0.1", UserAgent: "a", Path: "/", At: time.Now().Add(-time.Hour)})
	tracker.record(ctx, PageView{IP: "10.0.0.2", UserAgent: "b", Path: "/", At: time.Now()})

	counters, err := tracker.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if counters.OnlineNow != 1 {
		t.Errorf("OnlineNow = %d, want 1", counters.OnlineNow)
	}
	if counters.TotalVisitors != 2 {
		t.Errorf("TotalVisitors = %d, want 2", counters.TotalVisitors)
	}
}

func TestVisitorPruning(t *testing.T) {
	tracker, db := testTracker(t)
	ctx := context.Background()

	tracker.record(ctx, PageView{IP: "10.0.0.1", UserAgent: "a", Path: "/", At: time.Now().Add(-48 * time.Hour)})
	tracker.record(ctx, PageView{IP: "10.0.0.2", UserAgent: "b", Path: "/", At: time.Now()})

	repo := NewVisitorRepository(db)
	removed, err := repo.DeleteInactiveBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteInactiveBefore() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	visitors, err := tracker.Visitors(ctx)
	if err != nil {
		t.Fatalf("Visitors() error = %v", err)
	}
	if len(visitors) != 1 {
		t.Fatalf("visitors = %d, want 1", len(visitors))
	}
	if visitors[0].IP != "10.0.0.2" {
		t.Errorf("surviving visitor IP = %q, want 10.0.0.2", visitors[0].IP)
	}
}

func TestApplyUpdateMergesFields(t *testing.T) {
	tracker, _ := testTracker(t)
	ctx := context.Background()

	tracker.record(ctx, PageView{IP: "10.0.0.1", UserAgent: "a", Path: "/", At: time.Now()})

	views := 500
	if err := tracker.ApplyUpdate(ctx, CounterUpdate{PageViews: &views}); err != nil {
		t.Fatalf("ApplyUpdate() error = %v", err)
	}

	counters, err := tracker.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if counters.PageViews != 500 {
		t.Errorf("PageViews = %d, want 500", counters.PageViews)
	}
	// Untouched fields survive
	if counters.TotalVisitors != 1 {
		t.Errorf("TotalVisitors = %d, want 1", counters.TotalVisitors)
	}
}

func TestRecordRegistration(t *testing.T) {
	tracker, _ := testTracker(t)
	ctx := context.Background()

	tracker.RecordRegistration(ctx)
	tracker.RecordRegistration(ctx)

	counters, err := tracker.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if counters.RegisteredUsers != 2 {
		t.Errorf("RegisteredUsers = %d, want 2", counters.RegisteredUsers)
	}
}

func TestTrackNeverBlocksWhenQueueFull(t *testing.T) {
	tracker, _ := testTracker(t)

	// No drain goroutine running; overfill the queue
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < trackQueueSize*2; i++ {
			tracker.Track(PageView{IP: "10.0.0.1", UserAgent: "a", Path: "/"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Track() blocked on a full queue")
	}
}

func TestVisitorKeyStable(t *testing.T) {
	if VisitorKey("1.2.3.4", "agent") != VisitorKey("1.2.3.4", "agent") {
		t.Error("VisitorKey() not deterministic")
	}
	if VisitorKey("1.2.3.4", "agent") == VisitorKey("1.2.3.4", "other") {
		t.Error("VisitorKey() should differ for different user agents")
	}
}
