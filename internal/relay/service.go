// Package relay accepts contact-form submissions and forwards each one as a
// notification email to the site owner.
package relay

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/mailrelay/internal/transport"
	"github.com/dmitrymomot/mailrelay/pkg/logger"
	"github.com/dmitrymomot/mailrelay/pkg/mailer"
	"github.com/dmitrymomot/mailrelay/pkg/sanitizer"
)

//go:embed templates
var templatesFS embed.FS

const (
	contactTemplate = "contact.md"
	emailLayout     = "base.html"

	// fallbackSubject is used if the template declares no Subject.
	fallbackSubject = "Portfolio Contact"
)

// Service orchestrates validate, render, and send-with-retry for one
// inbound submission.
type Service struct {
	manager   *transport.Manager
	renderer  *mailer.Renderer
	recipient string
	log       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for send failures and retries.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService creates a Service that relays submissions to recipient through
// transports acquired from manager.
func NewService(manager *transport.Manager, recipient string, opts ...Option) *Service {
	s := &Service{
		manager: manager,
		renderer: mailer.NewRendererWithConfig(templatesFS, mailer.RendererConfig{
			TemplateDir: "templates",
			LayoutDir:   "templates/layouts",
		}),
		recipient: recipient,
		log:       logger.NewNope(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates a submission, builds the notification email, and sends
// it. A send failure invalidates the cached transport and retries exactly
// once on a fresh one; the second failure surfaces as ErrSubmissionFailed.
//
// Validation failures return a *ValidationError before any transport is
// touched.
func (s *Service) Submit(ctx context.Context, sub Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	email, err := s.buildEmail(sub)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		handle, err := s.manager.Acquire(ctx)
		if err == nil {
			err = handle.Send(ctx, email)
		}
		if err == nil {
			if attempt > 1 {
				s.log.InfoContext(ctx, "send succeeded on rebuilt transport")
			}
			s.log.InfoContext(ctx, "contact submission relayed",
				slog.String("from", sub.Email),
				slog.String("subject", sub.Subject),
			)
			return nil
		}

		lastErr = err
		s.manager.Invalidate()
		s.log.WarnContext(ctx, "send attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}

	return errors.Join(ErrSubmissionFailed, lastErr)
}

// buildEmail renders the notification message. Reply-To is the submitter,
// so replies from the owner's mailbox go to the visitor rather than the
// relay account. User fields are stripped of HTML before templating.
func (s *Service) buildEmail(sub Submission) (*mailer.Email, error) {
	out, err := s.renderer.Render(emailLayout, contactTemplate, map[string]string{
		"Name":       sanitizer.StripHTML(sub.Name),
		"Email":      sanitizer.StripHTML(sub.Email),
		"Subject":    sanitizer.StripHTML(sub.Subject),
		"Message":    sanitizer.StripHTML(sub.Message),
		"ReceivedAt": time.Now().Format("Jan 2, 2006 at 3:04 PM MST"),
	})
	if err != nil {
		return nil, fmt.Errorf("render notification: %w", err)
	}

	subject := out.Subject
	if subject == "" {
		subject = fallbackSubject
	}

	return &mailer.Email{
		To:      []string{s.recipient},
		ReplyTo: sub.Email,
		Subject: subject,
		HTML:    out.HTML,
		Text:    out.Text,
	}, nil
}
