package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/service/watcher"
	"github.com/clinicport/emergency-alerts/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// responderID identifies this watcher.
	responderID string
	// respondTo names an alert to settle as soon as it appears.
	respondTo string
	// decision for respondTo: acknowledge or dismiss.
	decision string
	// muted starts without audible escalation cues.
	muted bool
	// localDismiss hides dismissed alerts from this watcher only.
	localDismiss bool

	// rootCmd represents the base command for watching alerts.
	rootCmd = &cobra.Command{
		Use:   "alert-watch",
		Short: "Watch the live alert view for one responder.",
		Long: `Runs a headless responder session straight against the configured store:
prints the ordered alert view as it changes and rings the terminal bell on
every escalation cue.

The responder identity defaults to user@host. With --respond-to and
--decision the watcher settles the named alert as soon as it shows up,
which gives operations staff a keyboard-free acknowledge path.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &watcher.Options{
				ConfigPath:   configPath,
				ResponderID:  responderID,
				RespondTo:    respondTo,
				Decision:     decision,
				Muted:        muted,
				LocalDismiss: localDismiss,
				Out:          os.Stdout,
			}

			return watcher.Run(ctx, options)
		},
	}
)

// Execute runs the alert-watch CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&responderID, "responder", "r", "", "responder id, defaults to user@host")
	rootCmd.Flags().StringVar(&respondTo, "respond-to", "", "alert id to settle once it appears")
	rootCmd.Flags().StringVar(&decision, "decision", "acknowledge", "decision for --respond-to: acknowledge or dismiss")
	rootCmd.Flags().BoolVar(&muted, "muted", false, "start with escalation cues muted")
	rootCmd.Flags().BoolVar(&localDismiss, "local-dismiss", false, "dismiss hides alerts from this watcher only")
}
