package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap/zapcore"

	api "github.com/clinicport/emergency-alerts/internal/api/http"
	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/logger"
	"github.com/clinicport/emergency-alerts/internal/service/common"
)

// Options controls the alert-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override.
	ListenAddress string
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

// Run starts the alert server and blocks until the context is canceled.
// Loads configuration first, then determines the listen address from config
// or override.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alert-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if settings.LogLevel != "" {
		level, err := zapcore.ParseLevel(settings.LogLevel)
		if err != nil {
			return fmt.Errorf("parse log level: %w", err)
		}

		logger.SetLevel(level)
	}

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	alertStore, err := common.NewStore(ctx, settings)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	defer func() {
		if err := alertStore.Close(context.Background()); err != nil {
			logger.ErrorKV(ctx, "Failed to close store", "error", err)
		}
	}()

	surface, err := api.New(api.Options{
		Store:              alertStore,
		Subscription:       settings.Subscription,
		EscalationInterval: settings.Escalation.Interval,
	})
	if err != nil {
		return fmt.Errorf("initialise API: %w", err)
	}

	defer surface.Close()

	httpServer := &http.Server{
		Addr:              listenAddress,
		Handler:           surface.Router(),
		ReadHeaderTimeout: settings.Timeout,
	}

	logger.InfoKV(ctx, "Alert server listening",
		"listen_address", listenAddress, "store_backend", settings.Store.Backend)

	// Done channel is closed after Shutdown finishes to ensure we block
	// until in-flight requests drain before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		// Live WebSocket sessions do not drain on their own.
		surface.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.ErrorKV(ctx, "HTTP server shutdown failed", "error", err)
		}

		close(done)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	logger.Info(ctx, "HTTP server stopped")

	return nil
}

// resolveListenAddress determines the listen address for the HTTP server.
// If override is provided, uses it directly. Otherwise extracts the port
// from configAddr, so clients and server can share one settings file.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	// Extract port from config address (e.g. "alerts.clinic.local:8080" -> ":8080").
	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Port-only listen address binds on all interfaces.
	return ":" + port, nil
}
