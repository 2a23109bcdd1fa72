package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/mailrelay/internal/relay"
	"github.com/dmitrymomot/mailrelay/internal/transport"
)

// User-facing response messages. The client UI branches on status codes, so
// the wording here only needs to be helpful, not machine-readable.
const (
	msgSent       = "Message sent successfully! Thank you for reaching out."
	msgTimeout    = "Request timeout. Please try again."
	msgSendFailed = "Something went wrong. Please try again later or contact me directly."
	msgBadRequest = "Invalid request body"
	msgServerUp   = "Server is running"
	msgServerDown = "Email service is not ready"
	msgRootStatus = "Portfolio Backend Server is running!"
)

type handlers struct {
	service *relay.Service
	manager *transport.Manager
	timeout time.Duration
	log     *slog.Logger
}

// statusResponse is the body of the contact endpoint.
type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// healthResponse is the body of the health/warm-up endpoint.
type healthResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	SMTPReady      bool   `json:"smtpReady"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
	Timestamp      string `json:"timestamp"`
}

// root answers uptime monitors and anyone poking the base URL.
func (h *handlers) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   msgRootStatus,
		"status":    "active",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// health verifies the transport (subject to the manager's TTL) and reports
// readiness. The browser calls this on page load and every few minutes to
// warm a cold host before the user submits the form. Verification failures
// are reported in the body, never as a transport-level error the client has
// to special-case.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	_, err := h.manager.Acquire(r.Context())
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Success:        false,
			Message:        msgServerDown + ": " + err.Error(),
			SMTPReady:      false,
			ResponseTimeMs: elapsed,
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Success:        true,
		Message:        msgServerUp,
		SMTPReady:      true,
		ResponseTimeMs: elapsed,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	})
}

// contact relays one submission. The whole operation is bounded by the
// request timeout; when it fires, the client gets a 408 and nothing else is
// ever written, even though the in-flight send may still deliver.
func (h *handlers) contact(w http.ResponseWriter, r *http.Request) {
	var sub relay.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: msgBadRequest})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- h.service.Submit(ctx, sub)
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			h.log.WarnContext(r.Context(), "contact request timed out",
				slog.Duration("timeout", h.timeout))
			writeJSON(w, http.StatusRequestTimeout, statusResponse{Success: false, Message: msgTimeout})
		}
		// Client went away; nothing useful to write.
		return

	case err := <-done:
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: msgSent})

		case isValidationError(err):
			writeJSON(w, http.StatusBadRequest, statusResponse{Success: false, Message: err.Error()})

		case errors.Is(err, context.DeadlineExceeded):
			writeJSON(w, http.StatusRequestTimeout, statusResponse{Success: false, Message: msgTimeout})

		default:
			h.log.ErrorContext(r.Context(), "contact submission failed",
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, statusResponse{Success: false, Message: msgSendFailed})
		}
	}
}

func isValidationError(err error) bool {
	var verr *relay.ValidationError
	return errors.As(err, &verr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
