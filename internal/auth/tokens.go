package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims extends JWT standard claims with the session snapshot carried
// by access tokens: username, the role set at issue time, and account status.
// The snapshot stays authoritative for route guards until the token expires.
type AccessClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Roles    []Role `json:"roles"`
	Status   Status `json:"accountStatus"`
}

// RefreshClaims carries only the username; everything else is re-read from
// the credential store when the token is redeemed.
type RefreshClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// TokenIssuer signs and verifies access and refresh tokens.
//
// The two token families use distinct secrets: a leaked access secret must
// not allow forging refresh tokens, and vice versa.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenIssuer creates a TokenIssuer with the given secrets and lifetimes.
func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (ti *TokenIssuer) AccessTTL() time.Duration {
	return ti.accessTTL
}

// RefreshTTL returns the configured refresh token lifetime.
func (ti *TokenIssuer) RefreshTTL() time.Duration {
	return ti.refreshTTL
}

// IssueAccessToken creates a signed access token carrying the user's current
// role set and account status. Validated by signature only, no DB hit.
func (ti *TokenIssuer) IssueAccessToken(user *User) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.accessTTL)),
			ID:        uuid.NewString(),
		},
		Username: user.Username,
		Roles:    user.Roles,
		Status:   user.Status,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.accessSecret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken creates a signed refresh token carrying only the username.
// The raw token goes to the client; callers store its hash via HashToken.
func (ti *TokenIssuer) IssueRefreshToken(user *User) (raw string, expiresAt time.Time, err error) {
	now := time.Now()
	expiresAt = now.Add(ti.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Username: user.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing refresh token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyAccessToken validates an access token signature and expiry, returning
// the claims. Expired tokens return ErrTokenExpired; anything else invalid
// returns ErrTokenInvalid.
func (ti *TokenIssuer) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(_ *jwt.Token) (any, error) {
		return ti.accessSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Username == "" {
		return nil, fmt.Errorf("%w: missing username", ErrTokenInvalid)
	}
	if len(claims.Roles) == 0 {
		return nil, fmt.Errorf("%w: missing roles", ErrTokenInvalid)
	}

	return claims, nil
}

// VerifyRefreshToken validates a refresh token signature and expiry.
// Signature validity alone does not make the token usable; callers must also
// check store membership and account status.
func (ti *TokenIssuer) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, func(_ *jwt.Token) (any, error) {
		return ti.refreshSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Username == "" {
		return nil, fmt.Errorf("%w: missing username", ErrTokenInvalid)
	}

	return claims, nil
}
