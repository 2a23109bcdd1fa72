// Package smtp implements a pooled SMTP delivery transport.
//
// The pool is capped at a single connection that is kept open between sends,
// probed with NOOP before reuse, and redialed when dead. Sends are spaced by
// a minimum interval and serialized under the client mutex, so concurrent
// submissions are implicitly rate-limited by the transport itself.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrymomot/mailrelay/pkg/mailer"
)

// heloName is announced in the EHLO handshake.
const heloName = "localhost"

// smtpClient is the subset of *smtp.Client the transport uses. Extracted as
// an interface so tests can plug in a fake without a live server.
type smtpClient interface {
	Auth(a smtp.Auth) error
	Close() error
	Data() (io.WriteCloser, error)
	Extension(ext string) (bool, string)
	Hello(localName string) error
	Mail(from string) error
	Noop() error
	Quit() error
	Rcpt(to string) error
	StartTLS(config *tls.Config) error
}

// Client is a pooled SMTP transport implementing mailer.Sender.
type Client struct {
	config Config

	// dial establishes an authenticated connection. Replaceable in tests.
	dial func(ctx context.Context) (smtpClient, error)

	mu       sync.Mutex
	conn     smtpClient
	lastSend time.Time
}

// New creates an SMTP client from a validated config.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{config: cfg}
	c.dial = c.dialSMTP
	return c, nil
}

// Verify performs the SMTP handshake (dial, EHLO, STARTTLS, AUTH) without
// sending a message. A successful handshake leaves the connection pooled for
// the next send.
func (c *Client) Verify(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.acquireConn(ctx); err != nil {
		return fmt.Errorf("smtp: verify: %w", err)
	}
	return nil
}

// Send delivers an email over the pooled connection, dialing a fresh one if
// the pooled connection is absent or dead. Any protocol error tears the
// connection down so the next attempt starts clean.
func (c *Client) Send(ctx context.Context, email *mailer.Email) error {
	if len(email.To) == 0 {
		return mailer.ErrNoRecipient
	}
	if email.Subject == "" {
		return mailer.ErrNoSubject
	}
	if email.HTML == "" {
		return mailer.ErrNoContent
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.throttle(ctx); err != nil {
		return err
	}

	conn, err := c.acquireConn(ctx)
	if err != nil {
		return fmt.Errorf("smtp: connect: %w", err)
	}

	if err := c.transmit(conn, email); err != nil {
		c.discardConn()
		return fmt.Errorf("smtp: send: %w", err)
	}

	c.lastSend = time.Now()
	return nil
}

// Close quits the pooled connection if one is open.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Quit()
	c.conn = nil
	return err
}

// throttle blocks until the minimum send interval has elapsed, or the
// context is done. Called with the mutex held.
func (c *Client) throttle(ctx context.Context) error {
	if c.config.SendInterval <= 0 || c.lastSend.IsZero() {
		return nil
	}

	wait := c.config.SendInterval - time.Since(c.lastSend)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquireConn returns the pooled connection if it still answers NOOP,
// otherwise dials a replacement. Called with the mutex held.
func (c *Client) acquireConn(ctx context.Context) (smtpClient, error) {
	if c.conn != nil {
		if err := c.conn.Noop(); err == nil {
			return c.conn, nil
		}
		c.discardConn()
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return conn, nil
}

// discardConn drops the pooled connection without waiting for a clean quit.
func (c *Client) discardConn() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// dialSMTP establishes and authenticates a connection per the configured
// TLS mode.
func (c *Client) dialSMTP(ctx context.Context) (smtpClient, error) {
	addr := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
	dialer := &net.Dialer{Timeout: c.config.ConnectTimeout}

	tlsConfig := &tls.Config{
		ServerName:         c.config.Host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.config.InsecureSkipVerify,
	}

	var (
		conn net.Conn
		err  error
	)
	if c.config.TLSMode == TLSModeTLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if c.config.SendTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.config.SendTimeout)); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set deadline: %w", err)
		}
	}

	client, err := smtp.NewClient(conn, c.config.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}

	if err := c.setup(client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// setup runs EHLO, STARTTLS, and AUTH on a fresh connection.
func (c *Client) setup(client smtpClient) error {
	if err := client.Hello(heloName); err != nil {
		return fmt.Errorf("helo: %w", err)
	}

	if c.config.TLSMode == TLSModeStartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("server %s does not support STARTTLS", c.config.Host)
		}
		tlsConfig := &tls.Config{
			ServerName:         c.config.Host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: c.config.InsecureSkipVerify,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if ok, _ := client.Extension("AUTH"); ok {
		auth := smtp.PlainAuth("", c.config.Username, c.config.Password, c.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	return nil
}

// transmit runs one mail transaction on an established connection.
func (c *Client) transmit(conn smtpClient, email *mailer.Email) error {
	from := email.From
	if from == "" {
		from = mailer.Recipient(c.config.SenderName, c.config.Username)
	}
	fromAddr, err := bareAddress(from)
	if err != nil {
		return fmt.Errorf("from address: %w", err)
	}

	if err := conn.Mail(fromAddr); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range email.To {
		addr, err := bareAddress(rcpt)
		if err != nil {
			return fmt.Errorf("recipient address: %w", err)
		}
		if err := conn.Rcpt(addr); err != nil {
			return fmt.Errorf("rcpt to: %w", err)
		}
	}

	w, err := conn.Data()
	if err != nil {
		return fmt.Errorf("data start: %w", err)
	}
	if _, err := w.Write(buildMessage(from, email)); err != nil {
		_ = w.Close()
		return fmt.Errorf("data write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("data close: %w", err)
	}
	return nil
}

// bareAddress strips a display name from an RFC 5322 address.
func bareAddress(s string) (string, error) {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}
