//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/bitaxe-fleet/internal/domain/fleet"
	"github.com/oshokin/bitaxe-fleet/internal/logger"
)

// ESP-miner management API endpoints.
const (
	systemInfoPath = "/api/system/info"
	firmwarePath   = "/api/system/OTA"
	webAssetsPath  = "/api/system/WWW"
	restartPath    = "/api/system/restart"
)

const (
	// defaultHealthTimeout is the per-call timeout for health probes.
	defaultHealthTimeout = 2 * time.Second
	// defaultUploadTimeout is the per-call timeout for artifact uploads.
	defaultUploadTimeout = 15 * time.Second

	// uploadContentType is the raw byte payload type the device firmware expects.
	uploadContentType = "application/octet-stream"
	// uploadUserAgent mimics a browser; the device web server rejects unknown agents.
	uploadUserAgent = "Mozilla/5.0"
)

// DeviceClient talks to the HTTP management API exposed by each device.
// Health probes and uploads use separate timeouts since a firmware image
// takes far longer to transfer than an info query.
type DeviceClient struct {
	// healthClient issues short probe and restart calls.
	healthClient *http.Client
	// uploadClient issues long-running artifact uploads.
	uploadClient *http.Client

	// retry is applied to individual upload calls.
	retry RetryPolicy
}

// DeviceOption configures client behaviour.
type DeviceOption func(*DeviceClient)

// WithHealthTimeout sets the timeout for health probes and restart calls.
func WithHealthTimeout(timeout time.Duration) DeviceOption {
	return func(c *DeviceClient) {
		if timeout > 0 {
			c.healthClient.Timeout = timeout
		}
	}
}

// WithUploadTimeout sets the timeout for artifact uploads.
func WithUploadTimeout(timeout time.Duration) DeviceOption {
	return func(c *DeviceClient) {
		if timeout > 0 {
			c.uploadClient.Timeout = timeout
		}
	}
}

// WithRetryPolicy sets the per-call retry policy for uploads.
func WithRetryPolicy(policy RetryPolicy) DeviceOption {
	return func(c *DeviceClient) {
		c.retry = policy
	}
}

// NewDeviceClient builds a client for the device management API.
func NewDeviceClient(opts ...DeviceOption) *DeviceClient {
	client := &DeviceClient{
		healthClient: &http.Client{Timeout: defaultHealthTimeout},
		uploadClient: &http.Client{Timeout: defaultUploadTimeout},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Health probes the device info endpoint and reports whether the device responds.
func (c *DeviceClient) Health(ctx context.Context, target fleet.Target) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.BaseURL()+systemInfoPath, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := c.healthClient.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	return nil
}

// UploadFirmware pushes the firmware image to the device OTA endpoint.
func (c *DeviceClient) UploadFirmware(ctx context.Context, target fleet.Target, artifactPath string) error {
	return c.upload(ctx, target, firmwarePath, artifactPath)
}

// UploadWebAssets pushes the web-assets image to the device WWW endpoint.
func (c *DeviceClient) UploadWebAssets(ctx context.Context, target fleet.Target, artifactPath string) error {
	return c.upload(ctx, target, webAssetsPath, artifactPath)
}

// Restart asks the device to reboot. The device usually drops the connection
// while restarting, so callers are expected to tolerate the returned error.
func (c *DeviceClient) Restart(ctx context.Context, target fleet.Target) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.BaseURL()+restartPath, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := c.healthClient.Do(req)
	if err != nil {
		return err
	}

	_ = resp.Body.Close()

	return nil
}

// AwaitOnline waits for the device to come back after a reboot:
// one initial wait, then fixed-interval health polls up to the attempt cap.
func (c *DeviceClient) AwaitOnline(ctx context.Context, target fleet.Target, policy PollPolicy) error {
	if err := sleepContext(ctx, policy.InitialWait); err != nil {
		return err
	}

	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = c.Health(ctx, target)
		if lastErr == nil {
			return nil
		}

		logger.DebugKV(ctx, "Device still offline",
			"device", target.String(), "attempt", attempt, "error", lastErr)

		if attempt == policy.MaxAttempts {
			break
		}

		if err := sleepContext(ctx, policy.Interval); err != nil {
			return err
		}
	}

	return fmt.Errorf("device %s did not come back online: %w: %w", target, ErrAttemptsExhausted, lastErr)
}

// upload POSTs a local artifact as a raw byte payload to the provided endpoint.
// The artifact is read once and replayed from memory across retry attempts.
func (c *DeviceClient) upload(ctx context.Context, target fleet.Target, endpoint, artifactPath string) error {
	payload, err := os.ReadFile(filepath.Clean(artifactPath))
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	uploadURL := target.BaseURL() + endpoint

	return c.retry.Do(ctx, func(callCtx context.Context) (int, error) {
		req, reqErr := http.NewRequestWithContext(callCtx, http.MethodPost, uploadURL, bytes.NewReader(payload))
		if reqErr != nil {
			return 0, reqErr
		}

		setUploadHeaders(req, target)

		resp, doErr := c.uploadClient.Do(req)
		if doErr != nil {
			return 0, doErr
		}

		_ = resp.Body.Close()

		return resp.StatusCode, nil
	})
}

// setUploadHeaders applies the browser-style headers the ESP-miner web server
// expects on update uploads; without Origin/Referer it refuses the request.
func setUploadHeaders(req *http.Request, target fleet.Target) {
	req.Header.Set("User-Agent", uploadUserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Content-Type", uploadContentType)
	req.Header.Set("Origin", target.BaseURL())
	req.Header.Set("Referer", target.BaseURL()+"/")
	req.Header.Set("Connection", "keep-alive")
}
