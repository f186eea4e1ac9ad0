package deployer

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/bitaxe-fleet/internal/logger"
)

const (
	// MarkerFilename marks that a deployment is running right now to avoid
	// two operators flashing the same fleet in parallel.
	MarkerFilename = "bitaxe-fleet-deploy-marker.bin"

	// markerLifetime is the period after which a stale deploy marker is ignored.
	// A full fleet pass takes minutes, not hours.
	markerLifetime = 30 * time.Minute

	// baseDeployerExecutable is the deployer binary name without platform extension.
	baseDeployerExecutable = "fleet-deployer"
)

// errDeployerAlreadyRunning is returned when another deployment holds the marker.
var errDeployerAlreadyRunning = errors.New("a deployment is already running")

// acquireGuard creates the deploy marker, recovering from a stale one first.
func acquireGuard(ctx context.Context) error {
	if isDeployerRunningNow(ctx) {
		return errDeployerAlreadyRunning
	}

	deployMarker, err := os.Create(MarkerFilename)
	if err != nil {
		return err
	}

	return deployMarker.Close()
}

// releaseGuard removes the deploy marker.
func releaseGuard(ctx context.Context) {
	if _, err := os.Stat(MarkerFilename); err == nil {
		_ = os.Remove(MarkerFilename)
	}

	logger.Debug(ctx, "Deploy marker released")
}

// isDeployerRunningNow checks presence of the marker file and attempts
// recovery if it looks stale.
func isDeployerRunningNow(ctx context.Context) bool {
	logger.Debug(ctx, "Checking for the presence of a deploy marker")

	fileInfo, err := os.Stat(MarkerFilename)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The deploy marker is too old, attempting cleanup")

		if err = terminateProcessByName(deployerExecutable()); err != nil {
			return true
		}

		if err = os.Remove(MarkerFilename); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	logger.Infof(ctx, "Unable to read deploy marker: %v", err)

	return false
}

// terminateProcessByName tries to kill processes with the provided executable name.
func terminateProcessByName(processName string) error {
	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}

// deployerExecutable returns the platform-specific deployer binary name.
func deployerExecutable() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return baseDeployerExecutable + ".exe"
	}

	return baseDeployerExecutable
}
