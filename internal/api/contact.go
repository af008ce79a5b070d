package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/lunasphere/lunasphere-core/internal/contact"
)

// handleSubmitContact validates and stores a contact form submission, then
// hands it to the mailer. Mail delivery is best-effort: the submission is
// already persisted, so a relay failure does not fail the request.
func (s *Server) handleSubmitContact(w http.ResponseWriter, r *http.Request) {
	var msg contact.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	if err := msg.Validate(); err != nil {
		switch {
		case errors.Is(err, contact.ErrNameRequired):
			writeValidationError(w, "Name must be between 2 and 100 characters")
		case errors.Is(err, contact.ErrEmailInvalid):
			writeValidationError(w, "A valid email address is required")
		case errors.Is(err, contact.ErrBodyRequired):
			writeValidationError(w, "Message must be between 10 and 5000 characters")
		case errors.Is(err, contact.ErrSubjectLength):
			writeValidationError(w, "Subject is too long")
		default:
			writeValidationError(w, err.Error())
		}
		return
	}

	if err := s.msgs.Save(r.Context(), &msg); err != nil {
		s.logger.Error("saving contact message failed", "error", err)
		writeInternalError(w, "Failed to submit message")
		return
	}

	if err := s.mailer.Send(r.Context(), &msg); err != nil {
		s.logger.Error("delivering contact mail failed", "submission_id", msg.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Thank you for your message! We will get back to you soon.",
		"data": map[string]any{
			"submissionId": msg.ID,
			"timestamp":    msg.CreatedAt.Format(time.RFC3339),
		},
	})
}

// handleListContact returns all stored contact messages, newest first.
func (s *Server) handleListContact(w http.ResponseWriter, r *http.Request) {
	messages, err := s.msgs.List(r.Context())
	if err != nil {
		s.logger.Error("listing contact messages failed", "error", err)
		writeInternalError(w, "Failed to load messages")
		return
	}

	writeJSON(w, http.StatusOK, messages)
}
