// Package catalog stores the services shown on the marketing site.
//
// The catalog follows a wholesale-document model: reads return the full
// ordered list, and an admin update replaces the entire catalog in one
// transaction.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service is one entry in the services catalog.
type Service struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Price       string    `json:"price"`
	SortOrder   int       `json:"sortOrder"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Validation limits for catalog entries.
const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
)

// Sentinel errors for catalog operations.
var (
	ErrEmptyTitle         = errors.New("service title is required")
	ErrTitleTooLong       = errors.New("service title is too long")
	ErrDescriptionTooLong = errors.New("service description is too long")
)

// Validate checks a catalog entry's fields.
func (s *Service) Validate() error {
	if s.Title == "" {
		return ErrEmptyTitle
	}
	if len(s.Title) > maxTitleLength {
		return ErrTitleTooLong
	}
	if len(s.Description) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// Repository defines persistence for the services catalog.
type Repository interface {
	List(ctx context.Context) ([]Service, error)
	Replace(ctx context.Context, services []Service) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed catalog repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns all services in display order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Service, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, icon, price, sort_order, updated_at
		 FROM services ORDER BY sort_order ASC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var s Service
		var updatedAt string
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.Icon,
			&s.Price, &s.SortOrder, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning service: %w", err)
		}
		s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating services: %w", err)
	}

	if services == nil {
		services = []Service{}
	}
	return services, nil
}

// Replace swaps the entire catalog for the given list in one transaction.
// Sort order follows slice position; IDs are generated where missing.
func (r *SQLiteRepository) Replace(ctx context.Context, services []Service) error {
	for i := range services {
		if err := services[i].Validate(); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning catalog replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM services"); err != nil {
		return fmt.Errorf("clearing catalog: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i := range services {
		s := &services[i]
		if s.ID == "" {
			s.ID = "svc-" + uuid.NewString()[:8]
		}
		s.SortOrder = i

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO services (id, title, description, icon, price, sort_order, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.Title, s.Description, s.Icon, s.Price, s.SortOrder, now,
		); err != nil {
			return fmt.Errorf("inserting service %q: %w", s.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing catalog replace: %w", err)
	}
	return nil
}
