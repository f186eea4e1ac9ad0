package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/bitaxe-fleet/internal/config"
	"github.com/oshokin/bitaxe-fleet/internal/logger"
	"github.com/oshokin/bitaxe-fleet/internal/service/checker"
	"github.com/oshokin/bitaxe-fleet/internal/version"
)

// errUnknownLogLevel is returned when the log level flag value is not recognized.
var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// markerFile stores an optional marker file path override.
	markerFile string
	// logLevel stores the minimum log level name.
	logLevel string

	// checkRan records that the root command performed a check, and
	// updateFound whether it detected a new commit; Execute translates the
	// pair into the process exit status.
	checkRan    bool
	updateFound bool

	// rootCmd represents the base command for checking the upstream repository.
	rootCmd = &cobra.Command{
		Use:   "fleet-checker",
		Short: "Check the upstream firmware repository for new commits.",
		Long: `Check whether the upstream firmware repository has commits newer than the last seen one.

Fetches the head commit of the configured branch, compares it against the
persisted marker file and overwrites the marker with the fetched identifier.
Exit status 0 means a new commit was detected; status 1 means either no new
commits or a failed check (the printed message tells them apart).

This is meant to be run from a scheduler to decide whether a rebuild is needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if logLevel != "" {
				level, ok := logger.ParseLogLevel(logLevel)
				if !ok {
					return fmt.Errorf("%w: %s", errUnknownLogLevel, logLevel)
				}

				logger.SetLevel(level)
			}

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			checkerOptions := &checker.Options{
				ConfigPath: configPath,
				MarkerFile: markerFile,
			}

			result, err := checker.Run(ctx, checkerOptions)
			if err != nil {
				return err
			}

			checkRan = true

			if result.Changed {
				updateFound = true

				fmt.Fprintf(cmd.OutOrStdout(), "New commit detected: %s\n", result.Commit)

				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), "No new commits")

			return nil
		},
	}
)

// Execute runs the fleet-checker CLI. The exit status is 0 only when a new
// commit was detected; fatal errors and "no new commits" both exit 1.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}

	// Subcommands such as `version` keep the default exit status.
	if checkRan && !updateFound {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	// An empty config path means "use the default file if present, built-in defaults otherwise".
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+" if present)")
	rootCmd.Flags().StringVarP(&markerFile, "marker-file", "m", "", "path to the last-seen commit marker file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "minimum log level (debug, info, warn, error, fatal)")
}
