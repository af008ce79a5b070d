// Package contact handles contact-form submissions: validation, storage,
// and delivery to an external mail collaborator.
package contact

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Field validation limits, matching the public form.
const (
	minNameLength  = 2
	maxNameLength  = 100
	maxEmailLength = 254
	minBodyLength  = 10
	maxBodyLength  = 5000
	maxSubjectLen  = 200
)

// emailPattern is a pragmatic format check, not full RFC 5322.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Message is one contact-form submission.
type Message struct {
	ID        string    `json:"submissionId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sentinel errors for contact validation.
var (
	ErrNameRequired  = errors.New("name must be between 2 and 100 characters")
	ErrEmailInvalid  = errors.New("a valid email address is required")
	ErrBodyRequired  = errors.New("message must be between 10 and 5000 characters")
	ErrSubjectLength = errors.New("subject is too long")
)

// Validate checks all submission fields, trimming surrounding whitespace.
func (m *Message) Validate() error {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Subject = strings.TrimSpace(m.Subject)
	m.Body = strings.TrimSpace(m.Body)

	if len(m.Name) < minNameLength || len(m.Name) > maxNameLength {
		return ErrNameRequired
	}
	if len(m.Email) > maxEmailLength || !emailPattern.MatchString(m.Email) {
		return ErrEmailInvalid
	}
	if len(m.Subject) > maxSubjectLen {
		return ErrSubjectLength
	}
	if len(m.Body) < minBodyLength || len(m.Body) > maxBodyLength {
		return ErrBodyRequired
	}
	return nil
}

// NewSubmissionID generates a LUNA_-prefixed submission reference:
// a base36 timestamp plus a random base36 suffix, the format customers
// already quote in support requests.
func NewSubmissionID() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	suffix := strconv.FormatInt(rand.Int63n(36*36*36*36*36*36), 36) //nolint:gosec // reference ID, not a secret
	return "LUNA_" + strings.ToUpper(ts+suffix)
}

// Mailer delivers a contact message to the site operators.
// Delivery failures do not fail the submission; the message is already stored.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}
