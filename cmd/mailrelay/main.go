// Command mailrelay serves the portfolio contact-form backend: it validates
// submissions and relays each one as an email to the site owner.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrymomot/mailrelay/internal/api"
	"github.com/dmitrymomot/mailrelay/internal/config"
	"github.com/dmitrymomot/mailrelay/internal/relay"
	"github.com/dmitrymomot/mailrelay/internal/transport"
	"github.com/dmitrymomot/mailrelay/pkg/logger"
	"github.com/dmitrymomot/mailrelay/pkg/mailer/resend"
	"github.com/dmitrymomot/mailrelay/pkg/mailer/smtp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.NewWithSentry(cfg.Sentry, api.RequestIDExtractor()).
		With(slog.String("app", "mailrelay"))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	manager := transport.NewManager(
		transportFactory(cfg),
		transport.WithVerifyTTL(cfg.VerifyTTL),
		transport.WithLogger(log),
	)

	service := relay.NewService(manager, cfg.RecipientEmail, relay.WithLogger(log))

	router := api.NewRouter(service, manager, api.Config{
		AllowedOrigins: cfg.AllowedOrigins(),
		RequestTimeout: cfg.RequestTimeout,
	}, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Non-fatal startup probe; a sleeping SMTP host should not block boot.
	warmUp(ctx, manager, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			slog.String("address", ln.Addr().String()),
			slog.String("provider", cfg.Provider),
		)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	manager.Invalidate()
	return nil
}

// transportFactory builds the configured delivery transport. The manager
// calls it once up front and again after every discarded handle.
func transportFactory(cfg config.Config) transport.Factory {
	switch cfg.Provider {
	case config.ProviderResend:
		return func() (transport.Transport, error) {
			return resend.New(cfg.Resend), nil
		}
	default:
		return func() (transport.Transport, error) {
			return smtp.New(cfg.SMTP)
		}
	}
}

// warmUp verifies the transport once at startup so the first submission
// does not pay the handshake cost. Failures are logged, not fatal.
func warmUp(ctx context.Context, manager *transport.Manager, log *slog.Logger) {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := manager.Acquire(probeCtx); err != nil {
		log.Warn("email transport not ready at startup",
			slog.String("error", err.Error()))
		return
	}
	log.Info("email transport verified",
		slog.Duration("took", time.Since(start)))
}
