package auth

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

// testDB creates a temporary SQLite database with the auth schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			roles TEXT NOT NULL DEFAULT '["user"]',
			status TEXT NOT NULL DEFAULT 'active',
			registered_at TEXT NOT NULL,
			last_login TEXT,
			visit_count INTEGER NOT NULL DEFAULT 0,
			assigned_by TEXT,
			role_assigned_at TEXT,
			created_from TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);

		CREATE UNIQUE INDEX idx_users_username ON users(username);

		CREATE TABLE refresh_tokens (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL COLLATE NOCASE,
			token_hash TEXT NOT NULL UNIQUE,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);

		CREATE INDEX idx_refresh_tokens_username ON refresh_tokens(username);
		CREATE INDEX idx_refresh_tokens_expires ON refresh_tokens(expires_at);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying auth schema: %v", err)
	}

	return db
}

// testIssuer returns a TokenIssuer with distinct test secrets.
func testIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	return NewTokenIssuer(
		"test-access-secret-0123456789abcdef0123",
		"test-refresh-secret-0123456789abcdef012",
		15*time.Minute,
		30*24*time.Hour,
	)
}

// testService wires a Service against a fresh temp database, returning both.
func testService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()

	db := testDB(t)
	logger := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
	svc := NewService(NewUserRepository(db), NewTokenRepository(db), testIssuer(t), logger)
	return svc, db
}

// seedTestUser inserts a test user with password "test-password" and returns it.
func seedTestUser(t *testing.T, db *sql.DB, username string, roles ...Role) *User {
	t.Helper()

	hash, err := HashPassword("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	if len(roles) == 0 {
		roles = []Role{RoleUser}
	}

	repo := NewUserRepository(db)
	user := &User{
		Username:     username,
		PasswordHash: hash,
		Roles:        roles,
		Status:       StatusActive,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}

// registerTestUser creates a user through the service with the given password.
func registerTestUser(t *testing.T, svc *Service, username, password string) *User {
	t.Helper()

	user, err := svc.Register(context.Background(), username, password, "127.0.0.1")
	if err != nil {
		t.Fatalf("registering test user %s: %v", username, err)
	}
	return user
}
