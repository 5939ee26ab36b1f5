package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	api "github.com/clinicport/emergency-alerts/internal/api/http"
	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/service/raiser"
	"github.com/clinicport/emergency-alerts/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// alert payload assembled from flags.
	alert api.RaiseAlertRequest

	// rootCmd represents the base command for raising an alert.
	rootCmd = &cobra.Command{
		Use:   "alert-raise [server-address]",
		Short: "Raise an emergency alert and print its id.",
		Long: `Pushes a new emergency alert to the alert server and prints the assigned
alert id on stdout.

The push is retried until the server confirms it, so a transient outage
does not swallow an emergency. The server address argument overrides the
configuration file (e.g. alerts.clinic.local:8080).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var serverAddress string
			if len(args) > 0 {
				serverAddress = args[0]
			}

			options := &raiser.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				Alert:         alert,
				Out:           os.Stdout,
			}

			return raiser.Run(ctx, options)
		},
	}
)

// Execute runs the alert-raise CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&alert.PatientID, "patient-id", "", "patient identifier")
	rootCmd.Flags().StringVar(&alert.PatientName, "patient-name", "", "patient display name")
	rootCmd.Flags().StringVar(&alert.PatientPhone, "patient-phone", "", "patient contact phone")
	rootCmd.Flags().StringVar(&alert.Location, "location", "", "where the emergency is happening")
	rootCmd.Flags().StringVar(&alert.Severity, "severity", "critical", "alert severity: medical, urgent or critical")
	rootCmd.Flags().StringSliceVar(&alert.Symptoms, "symptom", nil, "observed symptom, repeatable")
	rootCmd.Flags().StringVar(&alert.Notes, "notes", "", "free-form notes for responders")
	rootCmd.Flags().StringSliceVar(&alert.AssignedResponders, "responder", nil, "assigned responder id, repeatable")

	_ = rootCmd.MarkFlagRequired("patient-id")
	_ = rootCmd.MarkFlagRequired("patient-name")
	_ = rootCmd.MarkFlagRequired("responder")
}
