package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user account persistence.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	UpdateRoles(ctx context.Context, user *User) error
	UpdateStatus(ctx context.Context, username string, status Status) error
	RecordLogin(ctx context.Context, username string, at time.Time) error
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, username string) error
}

// SQLiteUserRepository implements UserRepository using SQLite.
//
// Username lookups are case-insensitive: the username column is declared
// COLLATE NOCASE with a unique index, so "Alice" and "alice" are one account
// and the UNIQUE constraint is the arbiter of creation races.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = `id, username, password_hash, roles, status, registered_at,
	last_login, visit_count, assigned_by, role_assigned_at, created_from`

// Create inserts a new user account. The ID is generated if empty and the
// role set defaults to [user]. Returns ErrUsernameExists on a duplicate
// username, including duplicates that differ only by case.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()[:8]
	}
	if len(user.Roles) == 0 {
		user.Roles = []Role{RoleUser}
	}
	if user.Status == "" {
		user.Status = StatusActive
	}

	now := time.Now().UTC()
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = now
	}

	roles, err := encodeRoles(user.Roles)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, roles, status, registered_at,
		 last_login, visit_count, assigned_by, role_assigned_at, created_from, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, roles, string(user.Status),
		user.RegisteredAt.UTC().Format(time.RFC3339),
		nullTime(user.LastLogin), user.VisitCount,
		nullString(user.AssignedBy), nullTime(user.RoleAssignedAt),
		nullString(user.CreatedFrom),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their unique ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
}

// List returns all users ordered by registration date.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY registered_at ASC")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUserFrom(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}

	if users == nil {
		users = []User{}
	}
	return users, nil
}

// UpdateRoles persists a user's role set together with the audit fields
// (assigned_by, role_assigned_at). The role set must not be empty.
func (r *SQLiteUserRepository) UpdateRoles(ctx context.Context, user *User) error {
	if len(user.Roles) == 0 {
		return ErrEmptyRoleSet
	}

	roles, err := encodeRoles(user.Roles)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET roles = ?, assigned_by = ?, role_assigned_at = ?, updated_at = ?
		 WHERE username = ?`,
		roles, nullString(user.AssignedBy), nullTime(user.RoleAssignedAt), now, user.Username,
	)
	if err != nil {
		return fmt.Errorf("updating roles: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateStatus changes a user's account status.
func (r *SQLiteUserRepository) UpdateStatus(ctx context.Context, username string, status Status) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET status = ?, updated_at = ? WHERE username = ?",
		string(status), now, username,
	)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RecordLogin stamps last_login and increments the visit counter.
func (r *SQLiteUserRepository) RecordLogin(ctx context.Context, username string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login = ?, visit_count = visit_count + 1, updated_at = ?
		 WHERE username = ?`,
		at.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339), username,
	)
	if err != nil {
		return fmt.Errorf("recording login: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Count returns the total number of user accounts.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// Delete removes a user account by username.
func (r *SQLiteUserRepository) Delete(ctx context.Context, username string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE username = ?", username)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// getUser executes a query and scans a single user result.
func (r *SQLiteUserRepository) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	return scanUserFrom(r.db.QueryRowContext(ctx, query, args...))
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanUserFrom scans a user from any scanner (Row or Rows).
func scanUserFrom(s scanner) (*User, error) {
	var u User
	var roles string
	var status string
	var registeredAt string
	var lastLogin, assignedBy, roleAssignedAt, createdFrom sql.NullString

	err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &roles, &status,
		&registeredAt, &lastLogin, &u.VisitCount, &assignedBy,
		&roleAssignedAt, &createdFrom)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Roles, err = decodeRoles(roles)
	if err != nil {
		return nil, err
	}
	u.Status = Status(status)

	u.RegisteredAt, _ = time.Parse(time.RFC3339, registeredAt) //nolint:errcheck // format is controlled
	u.LastLogin = parseNullTime(lastLogin)
	u.RoleAssignedAt = parseNullTime(roleAssignedAt)
	if assignedBy.Valid {
		u.AssignedBy = assignedBy.String
	}
	if createdFrom.Valid {
		u.CreatedFrom = createdFrom.String
	}

	return &u, nil
}

// encodeRoles serialises a role set to the JSON array stored in SQLite.
func encodeRoles(roles []Role) (string, error) {
	b, err := json.Marshal(roles)
	if err != nil {
		return "", fmt.Errorf("encoding roles: %w", err)
	}
	return string(b), nil
}

// decodeRoles parses the stored JSON role array.
func decodeRoles(s string) ([]Role, error) {
	var roles []Role
	if err := json.Unmarshal([]byte(s), &roles); err != nil {
		return nil, fmt.Errorf("decoding roles: %w", err)
	}
	return roles, nil
}

// Helper functions.

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "unique constraint"))
}
