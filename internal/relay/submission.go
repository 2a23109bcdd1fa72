package relay

import (
	"regexp"
	"strings"
)

// emailPattern is the basic local@domain.tld shape the contact form enforces
// client-side; the server repeats the check.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Submission is one contact-form payload. It is validated, turned into an
// email, and discarded; nothing is persisted.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Validate trims all fields in place and checks them: every field must be
// non-empty and the email must match the expected shape. Presence is checked
// before format, so a blank email reports "All fields are required" rather
// than the format message.
func (s *Submission) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.TrimSpace(s.Email)
	s.Subject = strings.TrimSpace(s.Subject)
	s.Message = strings.TrimSpace(s.Message)

	if s.Name == "" || s.Email == "" || s.Subject == "" || s.Message == "" {
		return &ValidationError{Message: "All fields are required"}
	}
	if !emailPattern.MatchString(s.Email) {
		return &ValidationError{Message: "Invalid email address"}
	}
	return nil
}
