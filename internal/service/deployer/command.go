package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/bitaxe-fleet/internal/config"
	"github.com/oshokin/bitaxe-fleet/internal/domain/fleet"
	"github.com/oshokin/bitaxe-fleet/internal/logger"
	"github.com/oshokin/bitaxe-fleet/internal/service/common"
)

// Options are inputs accepted by the deployer entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// DeviceList is the comma-separated list of device addresses to update.
	DeviceList string
	// LogFile provides an optional log file path override.
	LogFile string
}

var (
	// ErrDeploymentFailed signals that at least one device did not complete its update.
	ErrDeploymentFailed = errors.New("one or more devices failed to update")
	// errArtifactMissing is returned when a required artifact file is absent.
	errArtifactMissing = errors.New("artifact file not found")
	// errArtifactEmpty is returned when a required artifact file has no content.
	errArtifactEmpty = errors.New("artifact file is empty")
)

// Run executes a full fleet deployment and is the public entry point for the CLI.
// Startup errors (bad device list, missing artifacts, concurrent run) abort
// before any device work; per-device failures are collected in the report and
// surface only through ErrDeploymentFailed.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "fleet-deployer")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Tee logs to a file when requested: CLI flag overrides config.
	logFile := cfg.LogFile
	if opts.LogFile != "" {
		logFile = opts.LogFile
	}

	if logFile != "" {
		fileLogger, logErr := logger.NewWithFile(logger.Level(), logFile)
		if logErr != nil {
			return fmt.Errorf("set up log file: %w", logErr)
		}

		ctx = logger.ToContext(ctx, fileLogger.Named("fleet-deployer"))
	}

	targets, err := fleet.ParseTargets(opts.DeviceList)
	if err != nil {
		return fmt.Errorf("parse device list: %w", err)
	}

	// Both artifacts must be present before any device is touched.
	if err = checkArtifact(cfg.FirmwareFile); err != nil {
		return fmt.Errorf("firmware image: %w", err)
	}

	if err = checkArtifact(cfg.WebAssetsFile); err != nil {
		return fmt.Errorf("web-assets image: %w", err)
	}

	if err = acquireGuard(ctx); err != nil {
		return err
	}

	defer releaseGuard(ctx)

	// Record who started the deployment for the audit trail.
	actor, err := common.DetectActor()
	if err != nil {
		return fmt.Errorf("detect actor: %w", err)
	}

	logger.InfoKV(ctx, "Starting fleet deployment",
		"operator", actor.String(),
		"devices", len(targets),
		"firmware", cfg.FirmwareFile,
		"web_assets", cfg.WebAssetsFile)

	report := deploy(ctx, cfg, targets)

	// Human-readable summary for the operator, one line per input device.
	fmt.Fprint(os.Stdout, "\n"+report.Summary())

	if !report.AllSucceeded() {
		return ErrDeploymentFailed
	}

	logger.Info(ctx, "All devices updated")

	return nil
}

// deploy folds sequentially over the targets, producing one result per device
// in input order. A failed device never blocks the rest of the fleet.
func deploy(ctx context.Context, cfg *config.Config, targets []fleet.Target) fleet.Report {
	client := common.NewDeviceClient(
		common.WithHealthTimeout(cfg.HealthTimeout),
		common.WithUploadTimeout(cfg.UploadTimeout),
		common.WithRetryPolicy(common.RetryPolicy{
			MaxAttempts: cfg.RetryAttempts,
			Backoff:     cfg.RetryBackoff,
		}),
	)

	m := &machine{
		client:        client,
		firmwarePath:  cfg.FirmwareFile,
		webAssetsPath: cfg.WebAssetsFile,
		poll: common.PollPolicy{
			InitialWait: cfg.RebootInitialWait,
			Interval:    cfg.RebootPollInterval,
			MaxAttempts: cfg.RebootPollAttempts,
		},
	}

	report := make(fleet.Report, 0, len(targets))

	for _, target := range targets {
		logger.InfoKV(ctx, "Updating device", "device", target.String())

		result := m.update(ctx, target)
		if result.Succeeded() {
			logger.InfoKV(ctx, "Device update succeeded", "device", target.String())
		} else {
			logger.ErrorKV(ctx, "Device update failed",
				"device", target.String(),
				"phase", result.LastPhase.String(),
				"error", result.Err)
		}

		report = append(report, result)
	}

	return report
}

// checkArtifact verifies that a required artifact exists and is non-empty.
func checkArtifact(path string) error {
	info, err := os.Stat(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", errArtifactMissing, path)
		}

		return err
	}

	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", errArtifactEmpty, path)
	}

	return nil
}
