// Package transport manages the lifecycle of the single delivery transport:
// lazy creation, TTL-based re-verification, and replacement on failure.
package transport

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/mailrelay/pkg/logger"
	"github.com/dmitrymomot/mailrelay/pkg/mailer"
)

// DefaultVerifyTTL is how long a successful verify is trusted before the
// next Acquire re-verifies the handle.
const DefaultVerifyTTL = 10 * time.Minute

// Transport is a delivery provider that can confirm reachability without
// sending a message.
type Transport interface {
	mailer.Sender

	// Verify confirms the transport can authenticate and reach its server.
	Verify(ctx context.Context) error
}

// Factory builds a fresh transport handle.
type Factory func() (Transport, error)

// Manager owns the process-wide transport handle. Callers never construct
// or verify transports themselves; Acquire hands out a handle verified
// within the TTL, rebuilding it after any verify or send failure.
//
// Handle replacement is last-write-wins: if two callers both decide to
// rebuild, the later assignment wins and the abandoned handle fails fast on
// its next use, triggering its own rebuild.
type Manager struct {
	factory Factory
	ttl     time.Duration
	log     *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	current    Transport
	verifiedAt time.Time

	group singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithVerifyTTL overrides the verification TTL. Tests shrink this to
// milliseconds.
func WithVerifyTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithLogger sets the logger for verify failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager creates a Manager that builds handles with factory.
func NewManager(factory Factory, opts ...Option) *Manager {
	m := &Manager{
		factory: factory,
		ttl:     DefaultVerifyTTL,
		log:     logger.NewNope(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire returns a transport verified within the TTL, creating or
// re-verifying the handle as needed. On verify failure the handle is
// discarded, a clean replacement is staged for the next caller, and the
// error is returned so the caller decides whether to retry.
//
// Concurrent callers share one verify handshake: repeated health polls
// within the TTL window cost at most one round-trip to the server.
func (m *Manager) Acquire(ctx context.Context) (Transport, error) {
	m.mu.Lock()
	if m.current == nil {
		handle, err := m.factory()
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
		m.current = handle
		m.verifiedAt = time.Time{}
	}
	handle := m.current
	verified := !m.verifiedAt.IsZero() && m.now().Sub(m.verifiedAt) <= m.ttl
	m.mu.Unlock()

	if verified {
		return handle, nil
	}

	result, err, _ := m.group.Do("verify", func() (any, error) {
		return m.verify(ctx, handle)
	})
	if err != nil {
		return nil, err
	}
	return result.(Transport), nil
}

// verify runs the handshake for one handle and updates the singleton state.
// A failed verify never leaves a half-initialized handle behind: the state
// is either a freshly-staged unverified replacement or empty.
func (m *Manager) verify(ctx context.Context, handle Transport) (Transport, error) {
	if err := handle.Verify(ctx); err != nil {
		m.log.WarnContext(ctx, "transport verify failed", slog.String("error", err.Error()))

		m.mu.Lock()
		if m.current == handle {
			closeTransport(handle)
			m.verifiedAt = time.Time{}
			if replacement, ferr := m.factory(); ferr == nil {
				m.current = replacement
			} else {
				m.current = nil
			}
		}
		m.mu.Unlock()
		return nil, err
	}

	m.mu.Lock()
	if m.current == handle {
		m.verifiedAt = m.now()
	}
	m.mu.Unlock()
	return handle, nil
}

// Invalidate discards the current handle so the next Acquire builds and
// verifies a fresh one. Called after a send failure.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	closeTransport(m.current)
	m.current = nil
	m.verifiedAt = time.Time{}
}

// closeTransport releases a discarded handle's resources when it holds any.
func closeTransport(t Transport) {
	if c, ok := t.(io.Closer); ok {
		_ = c.Close()
	}
}
