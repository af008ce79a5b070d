package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lunasphere/lunasphere-core/internal/auth"
)

// handleListUsers returns the account directory. Admins get the full list;
// anonymous callers get a count only; any other authenticated caller is
// refused.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	if claims == nil {
		count, err := s.auth.CountUsers(r.Context())
		if err != nil {
			s.logger.Error("counting users failed", "error", err)
			writeInternalError(w, "Failed to load user count")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":   count,
			"message": "User count only - login required for full access",
		})
		return
	}

	if !auth.HasAnyRole(claims.Roles, auth.AdminRoles...) {
		writeForbidden(w, "Admin access required")
		return
	}

	users, err := s.auth.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("listing users failed", "error", err)
		writeInternalError(w, "Failed to load users")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// handleUserCount returns the registered-user count. Public.
func (s *Server) handleUserCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.auth.CountUsers(r.Context())
	if err != nil {
		s.logger.Error("counting users failed", "error", err)
		writeInternalError(w, "Failed to get user count")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   count,
		"message": "Current registered user count",
	})
}

// handleRoleCatalog returns the static role catalog.
func (s *Server) handleRoleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"roles":   auth.ValidRoles,
		"message": "Available user roles",
	})
}

// handleCheckRole reports whether a user holds the given role(s).
func (s *Server) handleCheckRole(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req struct {
		Roles      roleList `json:"roles"`
		RequireAll bool     `json:"requireAll"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if len(req.Roles) == 0 {
		writeBadRequest(w, "Roles to check are required")
		return
	}

	user, err := s.auth.Me(r.Context(), username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "User not found")
			return
		}
		s.logger.Error("role check failed", "error", err)
		writeInternalError(w, "Failed to check user role")
		return
	}

	var hasRole bool
	if req.RequireAll {
		hasRole = auth.HasAllRoles(user.Roles, req.Roles...)
	} else {
		hasRole = auth.HasAnyRole(user.Roles, req.Roles...)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"username":     user.Username,
		"userRoles":    user.Roles,
		"checkedRoles": req.Roles,
		"hasRole":      hasRole,
		"requireAll":   req.RequireAll,
	})
}

// handleSetRoles replaces a user's entire role set.
func (s *Server) handleSetRoles(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req struct {
		Roles      roleList `json:"roles"`
		AssignedBy string   `json:"assignedBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if len(req.Roles) == 0 {
		writeBadRequest(w, "Roles must be a non-empty array or string")
		return
	}

	user, err := s.auth.SetRoles(r.Context(), username, req.Roles, s.assigner(r, req.AssignedBy))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			writeNotFound(w, "User not found")
		case errors.Is(err, auth.ErrInvalidRole), errors.Is(err, auth.ErrEmptyRoleSet):
			writeBadRequest(w, "Roles must be a non-empty array or string")
		default:
			s.logger.Error("updating roles failed", "username", username, "error", err)
			writeInternalError(w, "Failed to update user roles")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// handleAddRole appends a role to a user's set.
func (s *Server) handleAddRole(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req struct {
		Role       auth.Role `json:"role"`
		AssignedBy string    `json:"assignedBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if req.Role == "" {
		writeBadRequest(w, "Role is required")
		return
	}

	user, err := s.auth.AddRole(r.Context(), username, req.Role, s.assigner(r, req.AssignedBy))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			writeNotFound(w, "User not found")
		case errors.Is(err, auth.ErrRoleExists):
			writeBadRequest(w, "User already has this role")
		case errors.Is(err, auth.ErrInvalidRole):
			writeBadRequest(w, "Role is not recognised")
		default:
			s.logger.Error("adding role failed", "username", username, "error", err)
			writeInternalError(w, "Failed to add user role")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// handleRemoveRole removes a role from a user's set. Removing the last role
// is refused and leaves the set unchanged.
func (s *Server) handleRemoveRole(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	role := auth.Role(chi.URLParam(r, "role"))

	var req struct {
		AssignedBy string `json:"assignedBy"`
	}
	//nolint:errcheck // body is optional on delete
	json.NewDecoder(r.Body).Decode(&req)

	user, err := s.auth.RemoveRole(r.Context(), username, role, s.assigner(r, req.AssignedBy))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			writeNotFound(w, "User not found")
		case errors.Is(err, auth.ErrInvalidRole):
			writeBadRequest(w, "User does not have this role")
		case errors.Is(err, auth.ErrLastRole):
			writeBadRequest(w, "Cannot remove the last role from user")
		default:
			s.logger.Error("removing role failed", "username", username, "error", err)
			writeInternalError(w, "Failed to remove user role")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// handleSetStatus enables or disables an account. Disabling revokes every
// refresh token so the session cannot come back via refresh.
func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req struct {
		Status auth.Status `json:"accountStatus"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if req.Status != auth.StatusActive && req.Status != auth.StatusDisabled {
		writeBadRequest(w, "Account status must be active or disabled")
		return
	}

	if err := s.auth.SetStatus(r.Context(), username, req.Status); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "User not found")
			return
		}
		s.logger.Error("updating account status failed", "username", username, "error", err)
		writeInternalError(w, "Failed to update account status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Account status updated",
	})
}

// assigner resolves who made a role change: the explicit assignedBy from the
// request body, falling back to the authenticated username.
func (s *Server) assigner(r *http.Request, assignedBy string) string {
	if assignedBy != "" {
		return assignedBy
	}
	if claims := claimsFrom(r.Context()); claims != nil {
		return claims.Username
	}
	return "system"
}
