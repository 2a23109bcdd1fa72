package relay_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailrelay/internal/relay"
)

func TestSubmission_Validate(t *testing.T) {
	t.Parallel()

	valid := relay.Submission{
		Name:    "Ana",
		Email:   "ana@x.com",
		Subject: "Hi",
		Message: "Hello there, this is a test.",
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		s := valid
		require.NoError(t, s.Validate())
	})

	t.Run("trims fields", func(t *testing.T) {
		t.Parallel()
		s := relay.Submission{
			Name:    "  Ana  ",
			Email:   " ana@x.com ",
			Subject: "\tHi\n",
			Message: " Hello ",
		}
		require.NoError(t, s.Validate())
		require.Equal(t, "Ana", s.Name)
		require.Equal(t, "ana@x.com", s.Email)
		require.Equal(t, "Hi", s.Subject)
		require.Equal(t, "Hello", s.Message)
	})

	missing := []struct {
		name   string
		mutate func(*relay.Submission)
	}{
		{"missing name", func(s *relay.Submission) { s.Name = "" }},
		{"missing email", func(s *relay.Submission) { s.Email = "" }},
		{"missing subject", func(s *relay.Submission) { s.Subject = "" }},
		{"missing message", func(s *relay.Submission) { s.Message = "" }},
		{"whitespace-only name", func(s *relay.Submission) { s.Name = "   " }},
		{"whitespace-only message", func(s *relay.Submission) { s.Message = "\n\t" }},
	}
	for _, tt := range missing {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			var verr *relay.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, "All fields are required", verr.Message)
		})
	}

	badEmails := []string{
		"not-an-email",
		"missing-at.example.com",
		"no-domain@",
		"@no-local.com",
		"no-tld@example",
		"spaces in@example.com",
	}
	for _, email := range badEmails {
		t.Run("bad email "+email, func(t *testing.T) {
			t.Parallel()
			s := valid
			s.Email = email
			err := s.Validate()
			var verr *relay.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, "Invalid email address", verr.Message)
		})
	}

	t.Run("blank email reports presence not format", func(t *testing.T) {
		t.Parallel()
		s := valid
		s.Email = "  "
		err := s.Validate()
		var verr *relay.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, "All fields are required", verr.Message)
	})
}
