package deployer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bitaxe-fleet/internal/config"
	"github.com/oshokin/bitaxe-fleet/internal/domain/fleet"
)

// fastConfig returns settings with millisecond waits suitable for tests.
func fastConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	firmware := filepath.Join(dir, "firmware.bin")
	www := filepath.Join(dir, "www.bin")
	require.NoError(t, os.WriteFile(firmware, []byte("fw"), 0o600))
	require.NoError(t, os.WriteFile(www, []byte("www"), 0o600))

	cfg := &config.Config{
		FirmwareFile:       firmware,
		WebAssetsFile:      www,
		RebootInitialWait:  time.Millisecond,
		RebootPollInterval: time.Millisecond,
		RebootPollAttempts: 2,
		RetryAttempts:      1,
		RetryBackoff:       time.Millisecond,
	}
	require.NoError(t, config.Validate(cfg))

	return cfg
}

// newHealthyDevice starts a fake device answering every management endpoint.
func newHealthyDevice(t *testing.T) fleet.Target {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	parsed, err := url.Parse(server.URL)
	require.NoError(t, err)

	return fleet.Target{Host: parsed.Host}
}

// newDeadDevice returns a target whose address refuses connections.
func newDeadDevice(t *testing.T) fleet.Target {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	parsed, err := url.Parse(server.URL)
	require.NoError(t, err)

	server.Close()

	return fleet.Target{Host: parsed.Host}
}

// TestDeploy_OneResultPerDeviceInOrder verifies the fold over targets:
// a dead first device fails alone and never blocks the healthy second one.
func TestDeploy_OneResultPerDeviceInOrder(t *testing.T) {
	t.Parallel()

	dead := newDeadDevice(t)
	healthy := newHealthyDevice(t)
	targets := []fleet.Target{dead, healthy}

	report := deploy(context.Background(), fastConfig(t), targets)

	require.Len(t, report, 2)
	require.Equal(t, dead, report[0].Target)
	require.Equal(t, healthy, report[1].Target)

	require.False(t, report[0].Succeeded())
	require.Equal(t, fleet.PhaseChecking, report[0].LastPhase)
	require.True(t, report[1].Succeeded())

	require.False(t, report.AllSucceeded())
}

// TestDeploy_AllHealthy confirms a clean fleet pass.
func TestDeploy_AllHealthy(t *testing.T) {
	t.Parallel()

	targets := []fleet.Target{newHealthyDevice(t), newHealthyDevice(t)}

	report := deploy(context.Background(), fastConfig(t), targets)

	require.Len(t, report, 2)
	require.True(t, report.AllSucceeded())
}
