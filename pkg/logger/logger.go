// Package logger builds the service's slog loggers: JSON to stdout, with an
// optional Sentry fan-out for warnings and errors.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Extractor pulls a request-scoped attribute out of a context, e.g. the
// request ID set by the router middleware.
type Extractor func(ctx context.Context) (slog.Attr, bool)

// New creates a JSON stdout logger. Extractors run per log call so
// request-scoped values stay fresh.
func New(extractors ...Extractor) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(withExtractors(handler, extractors))
}

// NewNope creates a no-op logger that discards all output.
// Use this as a default when logging is not configured.
func NewNope() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withExtractors wraps a handler with context extraction, skipping the wrap
// entirely when there is nothing to extract.
func withExtractors(next slog.Handler, extractors []Extractor) slog.Handler {
	clean := make([]Extractor, 0, len(extractors))
	for _, ex := range extractors {
		if ex != nil {
			clean = append(clean, ex)
		}
	}
	if len(clean) == 0 {
		return next
	}
	return &contextHandler{next: next, extractors: clean}
}

// contextHandler injects context-extracted attributes into every record
// before delegating to the wrapped handler.
type contextHandler struct {
	next       slog.Handler
	extractors []Extractor
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			rec.AddAttrs(attr)
		}
	}
	return h.next.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs), extractors: h.extractors}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name), extractors: h.extractors}
}
