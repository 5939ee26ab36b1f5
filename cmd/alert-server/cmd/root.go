package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/service/server"
	"github.com/clinicport/emergency-alerts/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for running the alert server.
	rootCmd = &cobra.Command{
		Use:   "alert-server [listen-address]",
		Short: "Run the emergency alert coordination server.",
		Long: `Starts the alert server that stores emergency alerts and pushes live views
to responder clients over HTTP and WebSocket.

The server listens on the specified address or uses settings from the
configuration file. Only the port from server_addr config is used for
listening (e.g. :8080). A listen address argument overrides the config
(e.g. :9090, 0.0.0.0:8080). The store backend (memory, mongodb or redis)
is selected in the configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the alert-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
}
