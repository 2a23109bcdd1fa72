package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailrelay/internal/api"
	"github.com/dmitrymomot/mailrelay/internal/relay"
	"github.com/dmitrymomot/mailrelay/internal/transport"
	"github.com/dmitrymomot/mailrelay/pkg/mailer"
)

type stubTransport struct {
	mu        sync.Mutex
	verifyErr error
	sendErr   error

	// blockSend makes Send wait for context cancellation.
	blockSend bool

	verifies int
	sends    int
}

func (s *stubTransport) Verify(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifies++
	return s.verifyErr
}

func (s *stubTransport) Send(ctx context.Context, email *mailer.Email) error {
	if s.blockSend {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends++
	return s.sendErr
}

func (s *stubTransport) counts() (verifies, sends int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifies, s.sends
}

// newServer wires a router whose manager builds transports via build.
func newServer(t *testing.T, cfg api.Config, build func() *stubTransport) http.Handler {
	t.Helper()

	m := transport.NewManager(func() (transport.Transport, error) {
		return build(), nil
	})
	svc := relay.NewService(m, "owner@example.com")
	return api.NewRouter(svc, m, cfg, nil)
}

func postContact(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const validBody = `{"name":"Ana","email":"ana@x.com","subject":"Hi","message":"Hello there, this is a test."}`

func TestRoot(t *testing.T) {
	t.Parallel()

	h := newServer(t, api.Config{}, func() *stubTransport { return &stubTransport{} })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "Portfolio Backend Server is running!", body["message"])
	require.Equal(t, "active", body["status"])
	require.NotEmpty(t, body["timestamp"])
}

func TestHealth_Ready(t *testing.T) {
	t.Parallel()

	handle := &stubTransport{}
	h := newServer(t, api.Config{}, func() *stubTransport { return handle })

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, true, body["success"])
	require.Equal(t, true, body["smtpReady"])
	require.Equal(t, "Server is running", body["message"])
	require.NotEmpty(t, body["timestamp"])
	require.Contains(t, body, "responseTimeMs")
}

func TestHealth_NotReady(t *testing.T) {
	t.Parallel()

	h := newServer(t, api.Config{}, func() *stubTransport {
		return &stubTransport{verifyErr: errors.New("535 authentication failed")}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, false, body["success"])
	require.Equal(t, false, body["smtpReady"])
	require.Contains(t, body["message"], "not ready")
}

func TestHealth_IdempotentWithinTTL(t *testing.T) {
	t.Parallel()

	handle := &stubTransport{}
	h := newServer(t, api.Config{}, func() *stubTransport { return handle })

	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	verifies, sends := handle.counts()
	require.Equal(t, 1, verifies, "repeated health polls share one handshake")
	require.Zero(t, sends, "health must never send an email")
}

func TestContact_Success(t *testing.T) {
	t.Parallel()

	handle := &stubTransport{}
	h := newServer(t, api.Config{}, func() *stubTransport { return handle })

	rec := postContact(t, h, validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, true, body["success"])
	require.Equal(t, "Message sent successfully! Thank you for reaching out.", body["message"])

	_, sends := handle.counts()
	require.Equal(t, 1, sends)
}

func TestContact_ValidationFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{
			"missing name",
			`{"name":"","email":"ana@x.com","subject":"Hi","message":"..."}`,
			"All fields are required",
		},
		{
			"invalid email",
			`{"name":"Ana","email":"not-an-email","subject":"Hi","message":"..."}`,
			"Invalid email address",
		},
		{
			"malformed json",
			`{"name":`,
			"Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			built := false
			h := newServer(t, api.Config{}, func() *stubTransport {
				built = true
				return &stubTransport{}
			})

			rec := postContact(t, h, tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody(t, rec)
			require.Equal(t, false, body["success"])
			require.Equal(t, tt.message, body["message"])
			require.False(t, built, "validation failure must not touch the transport")
		})
	}
}

func TestContact_SendFailureAfterRetry(t *testing.T) {
	t.Parallel()

	h := newServer(t, api.Config{}, func() *stubTransport {
		return &stubTransport{sendErr: errors.New("421 service not available")}
	})

	rec := postContact(t, h, validBody)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, false, body["success"])
	require.Equal(t, "Something went wrong. Please try again later or contact me directly.", body["message"])
}

func TestContact_RetryInvisibleToCaller(t *testing.T) {
	t.Parallel()

	attempts := 0
	h := newServer(t, api.Config{}, func() *stubTransport {
		attempts++
		if attempts == 1 {
			return &stubTransport{sendErr: errors.New("421 service not available")}
		}
		return &stubTransport{}
	})

	rec := postContact(t, h, validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, attempts)
}

func TestContact_Timeout(t *testing.T) {
	t.Parallel()

	h := newServer(t, api.Config{RequestTimeout: 30 * time.Millisecond}, func() *stubTransport {
		return &stubTransport{blockSend: true}
	})

	rec := postContact(t, h, validBody)

	require.Equal(t, http.StatusRequestTimeout, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, false, body["success"])
	require.Equal(t, "Request timeout. Please try again.", body["message"])
}
