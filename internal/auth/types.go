package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Username length limits.
const (
	minUsernameLength = 3
	maxUsernameLength = 64
)

// minPasswordLength is the minimum accepted password length at signup.
const minPasswordLength = 6

// IsValidUsername checks if a username meets format requirements.
// Usernames must be 3-64 characters, alphanumeric with dots, hyphens, underscores.
func IsValidUsername(username string) bool {
	return len(username) >= minUsernameLength &&
		len(username) <= maxUsernameLength &&
		usernamePattern.MatchString(username)
}

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleSuperAdmin has every permission including managing other admins.
	RoleSuperAdmin Role = "super_admin"

	// RoleAdmin manages users, content, analytics and the services catalog.
	RoleAdmin Role = "admin"

	// RoleModerator moderates user-generated content.
	RoleModerator Role = "moderator"

	// RoleMember is a registered community member.
	RoleMember Role = "member"

	// RoleCustomer has made at least one purchase.
	RoleCustomer Role = "customer"

	// RolePremiumCustomer is on a paid subscription tier.
	RolePremiumCustomer Role = "premium_customer"

	// RoleVIPCustomer is on the top subscription tier.
	RoleVIPCustomer Role = "vip_customer"

	// RoleUser is the default role for new signups.
	RoleUser Role = "user"

	// RoleGuest is a minimal-access role.
	RoleGuest Role = "guest"
)

// ValidRoles is the complete role catalog, ordered from most to least privileged.
var ValidRoles = []Role{
	RoleSuperAdmin,
	RoleAdmin,
	RoleModerator,
	RoleMember,
	RoleCustomer,
	RolePremiumCustomer,
	RoleVIPCustomer,
	RoleUser,
	RoleGuest,
}

// IsValidRole returns true if the role is part of the catalog.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// AdminRoles are the roles allowed to manage users and site content.
var AdminRoles = []Role{RoleSuperAdmin, RoleAdmin}

// Status represents the lifecycle state of a user account.
type Status string

const (
	// StatusActive accounts can log in and refresh sessions.
	StatusActive Status = "active"

	// StatusDisabled accounts are refused at login and refresh.
	StatusDisabled Status = "disabled"
)

// User represents a registered account.
//
// Roles is never empty; the first element is the primary role.
type User struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	PasswordHash   string     `json:"-"` // never serialised
	Roles          []Role     `json:"roles"`
	Status         Status     `json:"accountStatus"`
	RegisteredAt   time.Time  `json:"registeredAt"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
	VisitCount     int        `json:"visitCount"`
	AssignedBy     string     `json:"assignedBy,omitempty"`
	RoleAssignedAt *time.Time `json:"roleAssignedAt,omitempty"`
	CreatedFrom    string     `json:"-"` // signup IP, not exposed
}

// PrimaryRole returns the first role in the set.
func (u *User) PrimaryRole() Role {
	if len(u.Roles) == 0 {
		return ""
	}
	return u.Roles[0]
}

// HasRole returns true if the user holds the given role.
func (u *User) HasRole(r Role) bool {
	for _, role := range u.Roles {
		if role == r {
			return true
		}
	}
	return false
}

// RefreshToken represents a stored refresh token for session management.
// Only the SHA-256 hash of the token is persisted.
type RefreshToken struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	TokenHash string    `json:"-"` // never serialised
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidUsername    = errors.New("invalid username format")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrInvalidRole        = errors.New("invalid role")
	ErrRoleExists         = errors.New("user already has this role")
	ErrLastRole           = errors.New("cannot remove the last role from user")
	ErrEmptyRoleSet       = errors.New("role set cannot be empty")
	ErrForbidden          = errors.New("insufficient permissions")
)
