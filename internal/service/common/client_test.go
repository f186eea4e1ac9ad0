//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bitaxe-fleet/internal/domain/fleet"
)

// targetFor converts an httptest server URL into a device target.
func targetFor(t *testing.T, server *httptest.Server) fleet.Target {
	t.Helper()

	parsed, err := url.Parse(server.URL)
	require.NoError(t, err)

	return fleet.Target{Host: parsed.Host}
}

// writeArtifact creates a temporary artifact file with the provided payload.
func writeArtifact(t *testing.T, payload string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "artifact.bin")
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	return path
}

// TestHealth verifies probe success and failure classification.
func TestHealth(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/system/info", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewDeviceClient()
	require.NoError(t, client.Health(context.Background(), targetFor(t, server)))

	// A server error is a failed probe.
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	require.ErrorIs(t, client.Health(context.Background(), targetFor(t, failing)), ErrUnexpectedStatus)

	// An unreachable device is a transport error.
	closed := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	closedTarget := targetFor(t, closed)
	closed.Close()

	require.Error(t, client.Health(context.Background(), closedTarget))
}

// TestUploadFirmware_SendsPayloadAndHeaders checks the raw body and the
// browser-style headers the device firmware expects.
func TestUploadFirmware_SendsPayloadAndHeaders(t *testing.T) {
	t.Parallel()

	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/system/OTA", r.URL.Path)
		require.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		require.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))
		require.NotEmpty(t, r.Header.Get("Origin"))
		require.NotEmpty(t, r.Header.Get("Referer"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = body

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewDeviceClient()
	artifact := writeArtifact(t, "firmware-bytes")

	require.NoError(t, client.UploadFirmware(context.Background(), targetFor(t, server), artifact))
	require.Equal(t, "firmware-bytes", string(gotBody))
}

// TestUpload_RetriesTransientStatus ensures the retry policy replays the payload.
func TestUpload_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, "www-bytes", string(body))

		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewDeviceClient(WithRetryPolicy(RetryPolicy{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	}))

	artifact := writeArtifact(t, "www-bytes")

	require.NoError(t, client.UploadWebAssets(context.Background(), targetFor(t, server), artifact))
	require.Equal(t, int32(2), calls.Load())
}

// TestUpload_MissingArtifact asserts a readable artifact is required.
func TestUpload_MissingArtifact(t *testing.T) {
	t.Parallel()

	client := NewDeviceClient()

	err := client.UploadFirmware(context.Background(),
		fleet.Target{Host: "127.0.0.1:0"}, filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
}

// TestRestart_IssuesPost checks the restart trigger call.
func TestRestart_IssuesPost(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/system/restart", r.URL.Path)
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewDeviceClient()
	require.NoError(t, client.Restart(context.Background(), targetFor(t, server)))
	require.Equal(t, int32(1), calls.Load())
}

// TestAwaitOnline_RecoversAfterPolls verifies fixed-interval polling until the
// device answers again.
func TestAwaitOnline_RecoversAfterPolls(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewDeviceClient()

	err := client.AwaitOnline(context.Background(), targetFor(t, server), PollPolicy{
		InitialWait: time.Millisecond,
		Interval:    time.Millisecond,
		MaxAttempts: 5,
	})
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())
}

// TestAwaitOnline_ExhaustsAttempts checks the bounded attempt cap and that
// the error carries the last health failure.
func TestAwaitOnline_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewDeviceClient()

	err := client.AwaitOnline(context.Background(), targetFor(t, server), PollPolicy{
		InitialWait: time.Millisecond,
		Interval:    time.Millisecond,
		MaxAttempts: 2,
	})
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	require.ErrorContains(t, err, "503")
}

// TestDetectActor ensures actor detection fills both fields.
func TestDetectActor(t *testing.T) {
	t.Parallel()

	actor, err := DetectActor()
	require.NoError(t, err)
	require.NotEmpty(t, actor.Hostname)
	require.NotEmpty(t, actor.Username)
	require.Contains(t, actor.String(), "@")
}
