package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUserRepositoryCreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	seedTestUser(t, db, "alice", RoleUser, RoleCustomer)

	user, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("Username = %q, want alice", user.Username)
	}
	if len(user.Roles) != 2 || user.Roles[0] != RoleUser || user.Roles[1] != RoleCustomer {
		t.Errorf("Roles = %v, want [user customer]", user.Roles)
	}
	if user.Status != StatusActive {
		t.Errorf("Status = %q, want active", user.Status)
	}
	if user.RegisteredAt.IsZero() {
		t.Error("RegisteredAt not set")
	}
}

func TestUserRepositoryGetByUsernameCaseInsensitive(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	created := seedTestUser(t, db, "Alice")

	user, err := repo.GetByUsername(context.Background(), "aLiCe")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if user.ID != created.ID {
		t.Errorf("ID = %q, want %q", user.ID, created.ID)
	}
}

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	seedTestUser(t, db, "alice")

	dup := &User{Username: "ALICE", PasswordHash: "x", Roles: []Role{RoleUser}, Status: StatusActive}
	if err := repo.Create(context.Background(), dup); !errors.Is(err, ErrUsernameExists) {
		t.Errorf("Create() duplicate error = %v, want ErrUsernameExists", err)
	}
}

func TestUserRepositoryGetUnknown(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	if _, err := repo.GetByUsername(context.Background(), "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByUsername() error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepositoryRecordLogin(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	seedTestUser(t, db, "alice")

	at := time.Now()
	if err := repo.RecordLogin(context.Background(), "alice", at); err != nil {
		t.Fatalf("RecordLogin() error = %v", err)
	}
	if err := repo.RecordLogin(context.Background(), "alice", at.Add(time.Minute)); err != nil {
		t.Fatalf("RecordLogin() error = %v", err)
	}

	user, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if user.VisitCount != 2 {
		t.Errorf("VisitCount = %d, want 2", user.VisitCount)
	}
	if user.LastLogin == nil {
		t.Fatal("LastLogin not set")
	}
}

func TestUserRepositoryUpdateRoles(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	user := seedTestUser(t, db, "alice")

	now := time.Now()
	user.Roles = []Role{RoleMember, RoleVIPCustomer}
	user.AssignedBy = "admin"
	user.RoleAssignedAt = &now

	if err := repo.UpdateRoles(context.Background(), user); err != nil {
		t.Fatalf("UpdateRoles() error = %v", err)
	}

	got, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if len(got.Roles) != 2 || got.Roles[0] != RoleMember || got.Roles[1] != RoleVIPCustomer {
		t.Errorf("Roles = %v, want [member vip_customer]", got.Roles)
	}
	if got.AssignedBy != "admin" {
		t.Errorf("AssignedBy = %q, want admin", got.AssignedBy)
	}
	if got.RoleAssignedAt == nil {
		t.Error("RoleAssignedAt not persisted")
	}

	user.Roles = nil
	if err := repo.UpdateRoles(context.Background(), user); !errors.Is(err, ErrEmptyRoleSet) {
		t.Errorf("UpdateRoles(empty) error = %v, want ErrEmptyRoleSet", err)
	}
}

func TestUserRepositoryCountAndList(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	count, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d, want 0", count)
	}

	seedTestUser(t, db, "alice")
	seedTestUser(t, db, "bob")

	count, err = repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}

	users, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 2 {
		t.Errorf("List() returned %d users, want 2", len(users))
	}
}
