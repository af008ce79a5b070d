package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lunasphere/lunasphere-core/internal/catalog"
)

// handleListServices returns the services catalog in display order. Public.
func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.catalog.List(r.Context())
	if err != nil {
		s.logger.Error("listing services failed", "error", err)
		writeInternalError(w, "Failed to load services")
		return
	}

	writeJSON(w, http.StatusOK, services)
}

// handleReplaceServices swaps the whole catalog for the submitted list in one
// transaction. Order follows the submitted slice.
func (s *Server) handleReplaceServices(w http.ResponseWriter, r *http.Request) {
	var services []catalog.Service
	if err := json.NewDecoder(r.Body).Decode(&services); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	if err := s.catalog.Replace(r.Context(), services); err != nil {
		switch {
		case errors.Is(err, catalog.ErrEmptyTitle),
			errors.Is(err, catalog.ErrTitleTooLong),
			errors.Is(err, catalog.ErrDescriptionTooLong):
			writeValidationError(w, err.Error())
		default:
			s.logger.Error("replacing services failed", "error", err)
			writeInternalError(w, "Failed to update services")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"services": services,
	})
}
