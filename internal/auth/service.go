package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lunasphere/lunasphere-core/internal/infrastructure/logging"
)

// Session is the result of a successful login or refresh: the user together
// with a fresh access/refresh token pair.
type Session struct {
	User         *User
	AccessToken  string
	RefreshToken string
}

// Service is the session facade. It owns every credential and session
// mutation so that handlers never talk to the repositories directly for
// writes, and it serialises writes per username so concurrent role mutations
// and login bookkeeping on one account cannot interleave.
type Service struct {
	users  UserRepository
	tokens TokenRepository
	issuer *TokenIssuer
	logger *logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates the session facade.
func NewService(users UserRepository, tokens TokenRepository, issuer *TokenIssuer, logger *logging.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		issuer: issuer,
		logger: logger.With("component", "auth"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockUser returns the mutex serialising writes for one account. Usernames
// are case-insensitive, so the key is lowercased here: "Bob" and "bob" are
// the same account and must contend on the same mutex regardless of the
// casing a caller passes in.
func (s *Service) lockUser(username string) *sync.Mutex {
	key := strings.ToLower(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Register creates a new account with the default role set.
// The username must be 3-64 chars and the password at least 6.
func (s *Service) Register(ctx context.Context, username, password, fromIP string) (*User, error) {
	if !IsValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Username:     username,
		PasswordHash: hash,
		Roles:        []Role{RoleUser},
		Status:       StatusActive,
		CreatedFrom:  fromIP,
	}

	// The UNIQUE NOCASE index arbitrates creation races; no pre-check needed.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "username", user.Username, "id", user.ID)
	return user, nil
}

// Login verifies credentials and opens a session.
//
// Unknown username and wrong password both return ErrInvalidCredentials, and
// the unknown-username path burns a dummy hash verification so the two cases
// cost the same. A disabled account returns ErrAccountDisabled with no tokens
// issued and no state change.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			VerifyDummy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if user.Status != StatusActive {
		return nil, ErrAccountDisabled
	}

	lock := s.lockUser(user.Username)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	if err := s.users.RecordLogin(ctx, user.Username, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now
	user.VisitCount++

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "username", user.Username)
	return session, nil
}

// Refresh redeems a refresh token for a new token pair, rotating the stored
// token. A token is usable only if its signature verifies, it is present in
// the store, it has not expired, and the account is still active.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*Session, error) {
	claims, err := s.issuer.VerifyRefreshToken(rawToken)
	if err != nil {
		return nil, err
	}

	lock := s.lockUser(claims.Username)
	lock.Lock()
	defer lock.Unlock()

	hash := HashToken(rawToken)
	record, err := s.tokens.GetByTokenHash(ctx, hash)
	if err != nil {
		return nil, err
	}

	if time.Now().After(record.ExpiresAt) {
		// Expired but not yet swept; drop it now.
		_ = s.tokens.Revoke(ctx, hash) //nolint:errcheck // best effort cleanup
		return nil, ErrTokenExpired
	}

	user, err := s.users.GetByUsername(ctx, record.Username)
	if err != nil {
		return nil, err
	}
	if user.Status != StatusActive {
		return nil, ErrAccountDisabled
	}

	accessToken, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	newRaw, expiresAt, err := s.issuer.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Rotate(ctx, hash, &RefreshToken{
		Username:  user.Username,
		TokenHash: HashToken(newRaw),
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, err
	}

	return &Session{User: user, AccessToken: accessToken, RefreshToken: newRaw}, nil
}

// Logout revokes a single refresh token. The matching access token remains
// bearer-valid until it expires; only the refresh chain is cut.
// Unknown or already-revoked tokens are not an error.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	return s.tokens.Revoke(ctx, HashToken(rawToken))
}

// LogoutAll revokes every refresh token belonging to a user.
func (s *Service) LogoutAll(ctx context.Context, username string) error {
	lock := s.lockUser(username)
	lock.Lock()
	defer lock.Unlock()

	if err := s.tokens.RevokeAllForUser(ctx, username); err != nil {
		return err
	}
	s.logger.Info("all sessions revoked", "username", username)
	return nil
}

// Me returns the current account state from the credential store. Unlike
// route guards, which trust the token's role snapshot, this always reflects
// role changes made since the token was issued.
func (s *Service) Me(ctx context.Context, username string) (*User, error) {
	return s.users.GetByUsername(ctx, username)
}

// SetRoles replaces a user's entire role set. The new set must be non-empty
// and drawn from the catalog.
func (s *Service) SetRoles(ctx context.Context, username string, roles []Role, assignedBy string) (*User, error) {
	normalized, err := NormalizeRoles(roles)
	if err != nil {
		return nil, err
	}

	lock := s.lockUser(username)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.Roles = normalized
	user.AssignedBy = assignedBy
	user.RoleAssignedAt = &now

	if err := s.users.UpdateRoles(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("roles replaced", "username", user.Username, "roles", user.Roles, "assigned_by", assignedBy)
	return user, nil
}

// AddRole appends a role to a user's set. Returns ErrRoleExists if the user
// already holds it.
func (s *Service) AddRole(ctx context.Context, username string, role Role, assignedBy string) (*User, error) {
	if !IsValidRole(role) {
		return nil, ErrInvalidRole
	}

	lock := s.lockUser(username)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if user.HasRole(role) {
		return nil, ErrRoleExists
	}

	now := time.Now()
	user.Roles = append(user.Roles, role)
	user.AssignedBy = assignedBy
	user.RoleAssignedAt = &now

	if err := s.users.UpdateRoles(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("role added", "username", user.Username, "role", role, "assigned_by", assignedBy)
	return user, nil
}

// RemoveRole removes a role from a user's set. Removing the only remaining
// role fails with ErrLastRole and leaves the set unchanged.
func (s *Service) RemoveRole(ctx context.Context, username string, role Role, assignedBy string) (*User, error) {
	lock := s.lockUser(username)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, r := range user.Roles {
		if r == role {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrInvalidRole
	}
	if len(user.Roles) == 1 {
		return nil, ErrLastRole
	}

	now := time.Now()
	user.Roles = append(user.Roles[:idx], user.Roles[idx+1:]...)
	user.AssignedBy = assignedBy
	user.RoleAssignedAt = &now

	if err := s.users.UpdateRoles(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("role removed", "username", user.Username, "role", role, "assigned_by", assignedBy)
	return user, nil
}

// SetStatus enables or disables an account. Disabling also revokes every
// refresh token so the account cannot come back via refresh.
func (s *Service) SetStatus(ctx context.Context, username string, status Status) error {
	lock := s.lockUser(username)
	lock.Lock()
	defer lock.Unlock()

	if err := s.users.UpdateStatus(ctx, username, status); err != nil {
		return err
	}

	if status == StatusDisabled {
		if err := s.tokens.RevokeAllForUser(ctx, username); err != nil {
			return err
		}
	}

	s.logger.Info("account status changed", "username", username, "status", status)
	return nil
}

// ListUsers returns all accounts.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.users.List(ctx)
}

// CountUsers returns the number of accounts.
func (s *Service) CountUsers(ctx context.Context) (int, error) {
	return s.users.Count(ctx)
}

// VerifyAccess validates an access token and returns its claims.
func (s *Service) VerifyAccess(tokenString string) (*AccessClaims, error) {
	return s.issuer.VerifyAccessToken(tokenString)
}

// CleanExpiredTokens removes expired refresh tokens from the store.
func (s *Service) CleanExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx)
}

// openSession issues a token pair for a user and stores the refresh hash.
func (s *Service) openSession(ctx context.Context, user *User) (*Session, error) {
	accessToken, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	rawRefresh, expiresAt, err := s.issuer.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Create(ctx, &RefreshToken{
		Username:  user.Username,
		TokenHash: HashToken(rawRefresh),
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, err
	}

	return &Session{User: user, AccessToken: accessToken, RefreshToken: rawRefresh}, nil
}
