package deployer

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/bitaxe-fleet/internal/domain/fleet"
	"github.com/oshokin/bitaxe-fleet/internal/logger"
	"github.com/oshokin/bitaxe-fleet/internal/service/common"
)

// deviceAPI is the slice of the device client the state machine depends on.
type deviceAPI interface {
	Health(ctx context.Context, target fleet.Target) error
	UploadFirmware(ctx context.Context, target fleet.Target, artifactPath string) error
	UploadWebAssets(ctx context.Context, target fleet.Target, artifactPath string) error
	Restart(ctx context.Context, target fleet.Target) error
	AwaitOnline(ctx context.Context, target fleet.Target, policy common.PollPolicy) error
}

// machine runs the staged update sequence against one device at a time.
// Each device is fully processed before the next; there is no shared state
// between devices beyond the immutable configuration below.
type machine struct {
	// client talks to the device management API.
	client deviceAPI
	// firmwarePath is the local firmware image to push.
	firmwarePath string
	// webAssetsPath is the local web-assets image to push.
	webAssetsPath string
	// poll controls reboot online-polling for both reboot stages.
	poll common.PollPolicy
}

// update drives one device through the full sequence:
// health check, firmware upload, reboot wait, web-assets upload,
// final reboot trigger, final reboot wait.
func (m *machine) update(ctx context.Context, target fleet.Target) fleet.Result {
	started := time.Now()
	ctx = logger.WithKV(ctx, "device", target.String())

	result := func(phase fleet.Phase, err error) fleet.Result {
		return fleet.Result{
			Target:    target,
			LastPhase: phase,
			Err:       err,
			Elapsed:   time.Since(started),
		}
	}

	logger.Info(ctx, "Probing device health")

	// An unreachable device fails before any upload is attempted.
	if err := m.client.Health(ctx, target); err != nil {
		return result(fleet.PhaseChecking, fmt.Errorf("health probe: %w", err))
	}

	logger.Info(ctx, "Uploading firmware image")

	if err := m.client.UploadFirmware(ctx, target, m.firmwarePath); err != nil {
		return result(fleet.PhaseUploadingFirmware, fmt.Errorf("upload firmware: %w", err))
	}

	logger.Info(ctx, "Waiting for device to come back after firmware upload")

	if err := m.client.AwaitOnline(ctx, target, m.poll); err != nil {
		return result(fleet.PhaseAwaitingRebootAfterFirmware, err)
	}

	logger.Info(ctx, "Uploading web-assets image")

	if err := m.client.UploadWebAssets(ctx, target, m.webAssetsPath); err != nil {
		return result(fleet.PhaseUploadingAssets, fmt.Errorf("upload web assets: %w", err))
	}

	logger.Info(ctx, "Triggering final reboot")

	// The device drops the connection as it restarts, so a transport error
	// here is expected and never fails the device.
	if err := m.client.Restart(ctx, target); err != nil {
		logger.InfoKV(ctx, "Restart trigger dropped the connection, device is rebooting", "error", err)
	}

	logger.Info(ctx, "Waiting for device to come back after final reboot")

	if err := m.client.AwaitOnline(ctx, target, m.poll); err != nil {
		return result(fleet.PhaseAwaitingFinalReboot, err)
	}

	logger.InfoKV(ctx, "Device updated", "elapsed", time.Since(started).Round(time.Millisecond).String())

	return result(fleet.PhaseDone, nil)
}
