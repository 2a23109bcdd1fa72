package smtp

import (
	"errors"
	"fmt"
	"time"
)

// TLS connection modes.
const (
	TLSModeStartTLS = "starttls" // plain connection upgraded with STARTTLS (port 587)
	TLSModeTLS      = "tls"      // direct TLS connection (port 465)
	TLSModePlain    = "plain"    // no encryption (development only)
)

// Config holds SMTP transport configuration.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	Host     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"EMAIL_USER"`
	Password string `env:"EMAIL_PASS"`
	TLSMode  string `env:"SMTP_TLS_MODE" envDefault:"starttls"`

	// InsecureSkipVerify relaxes certificate checking. Some free-tier SMTP
	// relays present certificates that do not match their public hostname.
	InsecureSkipVerify bool `env:"SMTP_INSECURE_SKIP_VERIFY" envDefault:"false"`

	// SenderName is the display name used with Username as the From address.
	SenderName string `env:"SMTP_FROM_NAME"`

	ConnectTimeout time.Duration `env:"SMTP_CONNECT_TIMEOUT" envDefault:"20s"`
	SendTimeout    time.Duration `env:"SMTP_SEND_TIMEOUT" envDefault:"60s"`

	// SendInterval is the minimum spacing between messages. The pool is
	// capped at one connection, so this also serializes concurrent sends.
	SendInterval time.Duration `env:"SMTP_SEND_INTERVAL" envDefault:"2s"`
}

// Validation errors.
var (
	ErrMissingHost        = errors.New("smtp: host is required")
	ErrMissingCredentials = errors.New("smtp: username and password are required")
	ErrInvalidTLSMode     = errors.New("smtp: tls mode must be starttls, tls, or plain")
)

// Validate reports configuration errors before any connection is attempted.
func (c Config) Validate() error {
	if c.Host == "" {
		return ErrMissingHost
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("smtp: invalid port %d", c.Port)
	}
	if c.Username == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	switch c.TLSMode {
	case TLSModeStartTLS, TLSModeTLS, TLSModePlain:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTLSMode, c.TLSMode)
	}
	return nil
}
