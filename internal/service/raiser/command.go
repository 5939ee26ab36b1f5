package raiser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	api "github.com/clinicport/emergency-alerts/internal/api/http"
	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/logger"
	"github.com/clinicport/emergency-alerts/internal/service/common"
)

// Options configures one alert raise.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string

	// Alert carries the alert payload to raise.
	Alert api.RaiseAlertRequest

	// Out receives the assigned alert id, one line. Typically os.Stdout.
	Out io.Writer
}

// defaultPushInterval defines the retry delay when the server is unreachable.
const defaultPushInterval = 1 * time.Second

// Run pushes the alert until the server confirms it or the context is
// canceled. An emergency raise must not give up on a transient failure.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alert-raise")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := common.NewClient(serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	logger.InfoKV(ctx, "Raising alert",
		"server_address", serverAddress,
		"severity", opts.Alert.Severity,
		"responders", len(opts.Alert.AssignedResponders))

	for {
		id, err := client.RaiseAlert(ctx, &opts.Alert)
		if err == nil {
			logger.InfoKV(ctx, "Alert raised", "alert_id", id)

			if opts.Out != nil {
				fmt.Fprintln(opts.Out, id)
			}

			return nil
		}

		// A rejected payload will not get better on retry.
		if isPermanent(err) {
			return err
		}

		logger.ErrorKV(ctx, "Raise failed, retrying", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(defaultPushInterval):
		}
	}
}

// isPermanent reports whether the server understood and refused the raise.
func isPermanent(err error) bool {
	return errors.Is(err, common.ErrServerRejected)
}
