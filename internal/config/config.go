// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/mailrelay/pkg/logger"
	"github.com/dmitrymomot/mailrelay/pkg/mailer/resend"
	"github.com/dmitrymomot/mailrelay/pkg/mailer/smtp"
)

// Delivery provider names.
const (
	ProviderSMTP   = "smtp"
	ProviderResend = "resend"
)

// developmentOrigins are always allowed to call the API; FrontendURL adds
// the deployed frontend on top.
var developmentOrigins = []string{
	"http://localhost:5173",
	"http://localhost:5174",
}

// Config is the full service configuration.
type Config struct {
	Port int `env:"PORT" envDefault:"5000"`

	// RecipientEmail is the fixed destination for every submission.
	RecipientEmail string `env:"RECIPIENT_EMAIL"`

	// FrontendURL is an additional allowed CORS origin beyond the fixed
	// development origins.
	FrontendURL string `env:"FRONTEND_URL"`

	// Provider selects the delivery transport.
	Provider string `env:"MAILER_PROVIDER" envDefault:"smtp"`

	// VerifyTTL is how long a transport verification is trusted. The
	// browser polls the health endpoint on this cadence to keep a cold
	// free-tier host warm.
	VerifyTTL time.Duration `env:"SMTP_VERIFY_TTL" envDefault:"10m"`

	// RequestTimeout bounds a contact submission end to end; generous
	// enough to ride out a cold-starting host.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	SMTP   smtp.Config
	Resend resend.Config
	Sentry logger.SentryConfig
}

// AllowedOrigins returns the CORS origin allowlist.
func (c Config) AllowedOrigins() []string {
	origins := make([]string, 0, len(developmentOrigins)+1)
	origins = append(origins, developmentOrigins...)
	if c.FrontendURL != "" {
		origins = append(origins, c.FrontendURL)
	}
	return origins
}

// Validate reports configuration errors before the server starts.
func (c Config) Validate() error {
	if c.RecipientEmail == "" {
		return errors.New("config: RECIPIENT_EMAIL is required")
	}
	switch c.Provider {
	case ProviderSMTP:
		return c.SMTP.Validate()
	case ProviderResend:
		if c.Resend.APIKey == "" {
			return errors.New("config: RESEND_API_KEY is required for the resend provider")
		}
		return nil
	default:
		return fmt.Errorf("config: unknown provider %q", c.Provider)
	}
}

// Load reads .env (when present) and parses the environment.
func Load() (Config, error) {
	// Missing .env is fine; deployed hosts inject real env vars.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}
