package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CounterRepository defines persistence for the aggregate counters.
type CounterRepository interface {
	Get(ctx context.Context) (*Counters, error)
	IncrementPageViews(ctx context.Context) error
	IncrementTotalVisitors(ctx context.Context) error
	IncrementRegisteredUsers(ctx context.Context) error
	Apply(ctx context.Context, update CounterUpdate) error
}

// VisitorRepository defines persistence for visitor sightings.
type VisitorRepository interface {
	Record(ctx context.Context, ip, userAgent string, at time.Time) (isNew bool, err error)
	List(ctx context.Context) ([]Visitor, error)
	CountActiveSince(ctx context.Context, since time.Time) (int, error)
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SQLiteCounterRepository implements CounterRepository over the single-row
// analytics table (id fixed at 1).
type SQLiteCounterRepository struct {
	db *sql.DB
}

// NewCounterRepository creates a new SQLite-backed counter repository.
func NewCounterRepository(db *sql.DB) *SQLiteCounterRepository {
	return &SQLiteCounterRepository{db: db}
}

// Get reads the stored counters. OnlineNow is left zero for the caller to fill.
func (r *SQLiteCounterRepository) Get(ctx context.Context) (*Counters, error) {
	var c Counters
	err := r.db.QueryRowContext(ctx,
		"SELECT total_visitors, page_views, registered_users FROM analytics WHERE id = 1",
	).Scan(&c.TotalVisitors, &c.PageViews, &c.RegisteredUsers)
	if err != nil {
		return nil, fmt.Errorf("reading counters: %w", err)
	}
	return &c, nil
}

// IncrementPageViews bumps the page view counter by one.
func (r *SQLiteCounterRepository) IncrementPageViews(ctx context.Context) error {
	return r.bump(ctx, "page_views")
}

// IncrementTotalVisitors bumps the distinct visitor counter by one.
func (r *SQLiteCounterRepository) IncrementTotalVisitors(ctx context.Context) error {
	return r.bump(ctx, "total_visitors")
}

// IncrementRegisteredUsers bumps the registered user counter by one.
func (r *SQLiteCounterRepository) IncrementRegisteredUsers(ctx context.Context) error {
	return r.bump(ctx, "registered_users")
}

func (r *SQLiteCounterRepository) bump(ctx context.Context, column string) error {
	// column is one of three compile-time constants, never user input
	_, err := r.db.ExecContext(ctx,
		"UPDATE analytics SET "+column+" = "+column+" + 1, updated_at = ? WHERE id = 1",
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("incrementing %s: %w", column, err)
	}
	return nil
}

// Apply merges an admin-supplied partial update into the stored counters.
func (r *SQLiteCounterRepository) Apply(ctx context.Context, update CounterUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning counter update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)
	set := func(column string, value *int) error {
		if value == nil {
			return nil
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE analytics SET "+column+" = ?, updated_at = ? WHERE id = 1",
			*value, now,
		)
		return err
	}

	if err := set("total_visitors", update.TotalVisitors); err != nil {
		return fmt.Errorf("updating total_visitors: %w", err)
	}
	if err := set("page_views", update.PageViews); err != nil {
		return fmt.Errorf("updating page_views: %w", err)
	}
	if err := set("registered_users", update.RegisteredUsers); err != nil {
		return fmt.Errorf("updating registered_users: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing counter update: %w", err)
	}
	return nil
}

// SQLiteVisitorRepository implements VisitorRepository using SQLite.
type SQLiteVisitorRepository struct {
	db *sql.DB
}

// NewVisitorRepository creates a new SQLite-backed visitor repository.
func NewVisitorRepository(db *sql.DB) *SQLiteVisitorRepository {
	return &SQLiteVisitorRepository{db: db}
}

// Record registers a sighting: it inserts the visitor on first contact and
// otherwise stamps last_activity and bumps the page counter. Returns whether
// the visitor was new.
func (r *SQLiteVisitorRepository) Record(ctx context.Context, ip, userAgent string, at time.Time) (bool, error) {
	id := VisitorKey(ip, userAgent)
	ts := at.UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE visitors SET last_activity = ?, page_count = page_count + 1 WHERE id = ?`,
		ts, id,
	)
	if err != nil {
		return false, fmt.Errorf("updating visitor: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows > 0 {
		return false, nil
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO visitors (id, ip, user_agent, location, first_seen, last_activity, page_count)
		 VALUES (?, ?, ?, 'Unknown', ?, ?, 1)`,
		id, ip, userAgent, ts, ts,
	)
	if err != nil {
		// A concurrent insert can win the race; fall back to the update path
		if isDuplicateKey(err) {
			_, retryErr := r.db.ExecContext(ctx,
				`UPDATE visitors SET last_activity = ?, page_count = page_count + 1 WHERE id = ?`,
				ts, id,
			)
			if retryErr != nil {
				return false, fmt.Errorf("updating visitor after race: %w", retryErr)
			}
			return false, nil
		}
		return false, fmt.Errorf("inserting visitor: %w", err)
	}
	return true, nil
}

// List returns all tracked visitors, most recently active first.
func (r *SQLiteVisitorRepository) List(ctx context.Context) ([]Visitor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, ip, user_agent, location, first_seen, last_activity, page_count
		 FROM visitors ORDER BY last_activity DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing visitors: %w", err)
	}
	defer rows.Close()

	var visitors []Visitor
	for rows.Next() {
		var v Visitor
		var firstSeen, lastActivity string
		if err := rows.Scan(&v.ID, &v.IP, &v.UserAgent, &v.Location,
			&firstSeen, &lastActivity, &v.PageCount); err != nil {
			return nil, fmt.Errorf("scanning visitor: %w", err)
		}
		v.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen)       //nolint:errcheck // format is controlled
		v.LastActivity, _ = time.Parse(time.RFC3339, lastActivity) //nolint:errcheck // format is controlled
		visitors = append(visitors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating visitors: %w", err)
	}

	if visitors == nil {
		visitors = []Visitor{}
	}
	return visitors, nil
}

// CountActiveSince returns the number of visitors active after the given time.
func (r *SQLiteVisitorRepository) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM visitors WHERE last_activity > ?",
		since.UTC().Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting online visitors: %w", err)
	}
	return count, nil
}

// DeleteInactiveBefore prunes visitors whose last activity is older than the
// cutoff. Returns the number of deleted rows.
func (r *SQLiteVisitorRepository) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM visitors WHERE last_activity <= ?",
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning visitors: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
