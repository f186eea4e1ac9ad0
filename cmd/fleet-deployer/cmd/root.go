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
	"github.com/oshokin/bitaxe-fleet/internal/service/deployer"
	"github.com/oshokin/bitaxe-fleet/internal/version"
)

// errUnknownLogLevel is returned when the log level flag value is not recognized.
var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// logFile stores an optional log file path override.
	logFile string
	// logLevel stores the minimum log level name.
	logLevel string

	// rootCmd represents the base command for deploying firmware to the fleet.
	rootCmd = &cobra.Command{
		Use:   "fleet-deployer DEVICE1,DEVICE2,...",
		Short: "Push firmware and web assets to a fleet of devices.",
		Long: `Push the locally built firmware and web-assets images to every listed device.

Devices are updated strictly one at a time: health check, firmware upload,
reboot wait, web-assets upload, final reboot and online confirmation. A failed
device is recorded and the remaining devices are still processed; the exit
status is 0 only when every device completed its update.

Artifact paths, timeouts and the reboot polling policy come from the
configuration file, with built-in defaults matching a stock ESP-miner build tree.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
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

			deployerOptions := &deployer.Options{
				ConfigPath: configPath,
				DeviceList: args[0],
				LogFile:    logFile,
			}

			return deployer.Run(ctx, deployerOptions)
		},
	}
)

// Execute runs the fleet-deployer CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	// An empty config path means "use the default file if present, built-in defaults otherwise".
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+" if present)")
	rootCmd.Flags().StringVarP(&logFile, "log-file", "l", "", "path to an optional deployment log file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "minimum log level (debug, info, warn, error, fatal)")
}
