package catalog

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "catalog-test-*.db")
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
		CREATE TABLE services (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying catalog schema: %v", err)
	}

	return db
}

func TestReplaceAndList(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	err := repo.Replace(ctx, []Service{
		{Title: "Web Design", Description: "Custom sites", Icon: "palette", Price: "from $500"},
		{Title: "Hosting", Description: "Managed hosting", Icon: "server", Price: "$20/mo"},
	})
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	services, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(services) != 2 {
		t.Fatalf("List() returned %d services, want 2", len(services))
	}
	if services[0].Title != "Web Design" || services[1].Title != "Hosting" {
		t.Errorf("order = [%s, %s], want slice order preserved", services[0].Title, services[1].Title)
	}
	if services[0].ID == "" {
		t.Error("Replace() did not assign IDs")
	}
	if services[0].SortOrder != 0 || services[1].SortOrder != 1 {
		t.Errorf("sort orders = %d,%d, want 0,1", services[0].SortOrder, services[1].SortOrder)
	}
}

func TestReplaceIsWholesale(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	if err := repo.Replace(ctx, []Service{{Title: "Old Service"}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := repo.Replace(ctx, []Service{{Title: "New Service"}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	services, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(services) != 1 || services[0].Title != "New Service" {
		t.Errorf("catalog = %v, want only New Service", services)
	}
}

func TestReplaceEmptyClearsCatalog(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	if err := repo.Replace(ctx, []Service{{Title: "Something"}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := repo.Replace(ctx, nil); err != nil {
		t.Fatalf("Replace(nil) error = %v", err)
	}

	services, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(services) != 0 {
		t.Errorf("catalog size = %d, want 0", len(services))
	}
}

func TestReplaceValidatesEntries(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	if err := repo.Replace(ctx, []Service{{Title: "Valid"}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	err := repo.Replace(ctx, []Service{{Title: ""}})
	if !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("Replace() error = %v, want ErrEmptyTitle", err)
	}

	// Failed validation must not clear the existing catalog
	services, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(services) != 1 {
		t.Errorf("catalog size = %d, want 1 after failed replace", len(services))
	}
}
