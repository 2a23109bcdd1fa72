// Package api exposes the relay over HTTP: the contact endpoint, the
// health/warm-up endpoint, and a root status route.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/mailrelay/internal/relay"
	"github.com/dmitrymomot/mailrelay/internal/transport"
	"github.com/dmitrymomot/mailrelay/pkg/logger"
)

// Config holds router configuration.
type Config struct {
	// AllowedOrigins is the CORS allowlist; requests from other origins get
	// no CORS headers and fail in the browser.
	AllowedOrigins []string

	// RequestTimeout bounds a contact submission end to end.
	RequestTimeout time.Duration
}

// NewRouter assembles the HTTP handler chain.
func NewRouter(service *relay.Service, manager *transport.Manager, cfg Config, log *slog.Logger) http.Handler {
	if log == nil {
		log = logger.NewNope()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	h := &handlers{
		service: service,
		manager: manager,
		timeout: cfg.RequestTimeout,
		log:     log,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg.AllowedOrigins))

	r.Get("/", h.root)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Post("/contact", h.contact)
	})

	return r
}

// RequestIDExtractor surfaces the chi request ID in every log line emitted
// with a request context.
func RequestIDExtractor() logger.Extractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := chimiddleware.GetReqID(ctx); id != "" {
			return slog.String("request_id", id), true
		}
		return slog.Attr{}, false
	}
}
