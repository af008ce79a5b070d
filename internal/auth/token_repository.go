package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TokenRepository defines the interface for refresh token persistence.
//
// Store membership is the source of truth for revocation: a token that has
// been removed is unusable even if its signature is still valid.
type TokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, username string) error
	Rotate(ctx context.Context, oldTokenHash string, newToken *RefreshToken) error
	CountForUser(ctx context.Context, username string) (int, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteTokenRepository implements TokenRepository using SQLite.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new SQLite-backed token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

// HashToken computes the SHA-256 hash of a raw token string for storage.
// Raw tokens are never stored — only their hashes.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Create inserts a new refresh token record. The ID is generated if empty.
func (r *SQLiteTokenRepository) Create(ctx context.Context, token *RefreshToken) error {
	if token.ID == "" {
		token.ID = "rt-" + uuid.NewString()[:16]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	token.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, username, token_hash, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		token.ID, token.Username, token.TokenHash,
		token.ExpiresAt.UTC().Format(time.RFC3339), now,
	)
	if err != nil {
		return fmt.Errorf("creating refresh token: %w", err)
	}

	return nil
}

// GetByTokenHash retrieves a refresh token by its SHA-256 hash.
// Returns ErrTokenRevoked when no record exists: an absent token was either
// never issued or has been revoked, and the caller cannot tell the difference.
func (r *SQLiteTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	var t RefreshToken
	var expiresAt, createdAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, token_hash, expires_at, created_at
		 FROM refresh_tokens WHERE token_hash = ?`, tokenHash,
	).Scan(&t.ID, &t.Username, &t.TokenHash, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenRevoked
		}
		return nil, fmt.Errorf("getting refresh token by hash: %w", err)
	}

	t.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &t, nil
}

// Revoke removes a single refresh token from the store.
// Revoking an already-absent token is not an error.
func (r *SQLiteTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE token_hash = ?", tokenHash)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// RevokeAllForUser removes all refresh tokens for a user.
// Used for logout-all and when an account is disabled.
func (r *SQLiteTokenRepository) RevokeAllForUser(ctx context.Context, username string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE username = ?", username)
	if err != nil {
		return fmt.Errorf("revoking all tokens for user: %w", err)
	}
	return nil
}

// Rotate atomically removes the consumed token and inserts its replacement.
// A second redemption of the old token finds no record and is rejected.
func (r *SQLiteTokenRepository) Rotate(ctx context.Context, oldTokenHash string, newToken *RefreshToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rotation transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	// Remove the consumed token; zero rows means it was already used or revoked
	result, err := tx.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE token_hash = ?", oldTokenHash)
	if err != nil {
		return fmt.Errorf("removing old token: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrTokenRevoked
	}

	if newToken.ID == "" {
		newToken.ID = "rt-" + uuid.NewString()[:16]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	newToken.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, username, token_hash, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		newToken.ID, newToken.Username, newToken.TokenHash,
		newToken.ExpiresAt.UTC().Format(time.RFC3339), now,
	); err != nil {
		return fmt.Errorf("creating new token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rotation: %w", err)
	}
	return nil
}

// CountForUser returns the number of stored tokens for a user.
func (r *SQLiteTokenRepository) CountForUser(ctx context.Context, username string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM refresh_tokens WHERE username = ?", username,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting tokens: %w", err)
	}
	return count, nil
}

// DeleteExpired removes tokens that have expired, freeing storage.
// Returns the number of deleted rows.
func (r *SQLiteTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}
