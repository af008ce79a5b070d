package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lunasphere/lunasphere-core/internal/auth"
)

// tokenPair is the token envelope returned by login and refresh.
type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"` // seconds until the access token expires
}

func (s *Server) newTokenPair(session *auth.Session) tokenPair {
	return tokenPair{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    int(s.config.AccessTokenTTL().Seconds()),
	}
}

// handleLogin authenticates a user and opens a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "Username and password are required")
		return
	}

	session, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeUnauthorized(w, "Invalid credentials")
		case errors.Is(err, auth.ErrAccountDisabled):
			writeUnauthorized(w, "Account is disabled")
		default:
			s.logger.Error("login failed", "error", err)
			writeInternalError(w, "Login failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
		"tokens":  s.newTokenPair(session),
		"user":    session.User,
	})
}

// handleSignup creates a new account. Roles may be supplied as an array or a
// single string; when omitted the account gets the default role.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string   `json:"username"`
		Password string   `json:"password"`
		Roles    roleList `json:"roles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "Username and password are required")
		return
	}

	// Validate any requested roles before touching the store so a bad role
	// never leaves a half-created account behind.
	if len(req.Roles) > 0 {
		if _, err := auth.NormalizeRoles(req.Roles); err != nil {
			writeValidationError(w, "Roles must be a non-empty array or string of valid roles")
			return
		}
	}

	user, err := s.auth.Register(r.Context(), req.Username, req.Password, clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidUsername):
			writeBadRequest(w, "Username must be at least 3 characters long")
		case errors.Is(err, auth.ErrPasswordTooShort):
			writeBadRequest(w, "Password must be at least 6 characters long")
		case errors.Is(err, auth.ErrUsernameExists):
			writeConflict(w, "Username already exists")
		default:
			s.logger.Error("signup failed", "error", err)
			writeInternalError(w, "Failed to create user")
		}
		return
	}

	if len(req.Roles) > 0 {
		user, err = s.auth.SetRoles(r.Context(), user.Username, req.Roles, "self-registration")
		if err != nil {
			s.logger.Error("assigning signup roles failed", "username", req.Username, "error", err)
			writeInternalError(w, "Failed to create user")
			return
		}
	}

	s.tracker.RecordRegistration(r.Context())

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Account created successfully",
		"user":    user,
	})
}

// handleRefresh redeems a refresh token for a new pair, rotating the stored
// token so the old one is single-use.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeUnauthorized(w, "Refresh token required")
		return
	}

	session, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			writeUnauthorized(w, "Refresh token has expired")
		case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrTokenRevoked):
			writeUnauthorized(w, "Invalid refresh token")
		case errors.Is(err, auth.ErrAccountDisabled), errors.Is(err, auth.ErrUserNotFound):
			writeForbidden(w, "User not found or account inactive")
		default:
			s.logger.Error("token refresh failed", "error", err)
			writeInternalError(w, "Token refresh failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tokens":  s.newTokenPair(session),
	})
}

// handleLogout revokes the presented refresh token. The access token stays
// bearer-valid until it expires; only the refresh chain is cut.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	//nolint:errcheck // an empty body is an acceptable logout request
	json.NewDecoder(r.Body).Decode(&req)

	if req.RefreshToken != "" {
		if err := s.auth.Logout(r.Context(), req.RefreshToken); err != nil {
			s.logger.Error("logout failed", "error", err)
			writeInternalError(w, "Logout failed")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

// handleLogoutAll revokes every refresh token for the authenticated user.
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	if err := s.auth.LogoutAll(r.Context(), claims.Username); err != nil {
		s.logger.Error("logout-all failed", "username", claims.Username, "error", err)
		writeInternalError(w, "Logout failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out from all devices",
	})
}

// handleMe returns the authenticated user's current account state. This
// re-reads the credential store, so role changes made after the token was
// issued are visible here even though route guards still see the snapshot.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	user, err := s.auth.Me(r.Context(), claims.Username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "User not found")
			return
		}
		s.logger.Error("fetching current user failed", "error", err)
		writeInternalError(w, "Failed to get user info")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// roleList accepts either a JSON array of role names or a single string.
type roleList []auth.Role

func (rl *roleList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*rl = roleList{auth.Role(single)}
		return nil
	}

	var many []auth.Role
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*rl = roleList(many)
	return nil
}
