package contact

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store defines persistence for contact messages.
type Store interface {
	Save(ctx context.Context, msg *Message) error
	List(ctx context.Context) ([]Message, error)
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-backed contact message store.
func NewStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save persists a validated message. The submission ID is generated if empty.
func (s *SQLiteStore) Save(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = NewSubmissionID()
	}

	now := time.Now().UTC()
	msg.CreatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contact_messages (id, name, email, subject, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Name, msg.Email, msg.Subject, msg.Body,
		now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving contact message: %w", err)
	}
	return nil
}

// List returns all stored messages, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, subject, body, created_at
		 FROM contact_messages ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing contact messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning contact message: %w", err)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contact messages: %w", err)
	}

	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}
