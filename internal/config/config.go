package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds settings shared by the fleet binaries.
type Config struct {
	// UpstreamAPIBaseURL is the base URL of the commits API.
	UpstreamAPIBaseURL string `yaml:"upstream_api_base_url"`
	// UpstreamOwner is the owner of the upstream repository.
	UpstreamOwner string `yaml:"upstream_owner"`
	// UpstreamRepo is the name of the upstream repository.
	UpstreamRepo string `yaml:"upstream_repo"`
	// UpstreamBranch is the branch whose head commit is checked.
	UpstreamBranch string `yaml:"upstream_branch"`
	// UpstreamTimeout is the per-call timeout for commits API requests.
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
	// MarkerFile is the path of the file holding the last-seen commit identifier.
	MarkerFile string `yaml:"marker_file"`
	// FirmwareFile is the path of the firmware image to push to devices.
	FirmwareFile string `yaml:"firmware_file"`
	// WebAssetsFile is the path of the web-assets image to push to devices.
	WebAssetsFile string `yaml:"web_assets_file"`
	// LogFile is an optional path for teeing deployment logs to a file.
	LogFile string `yaml:"log_file"`
	// HealthTimeout is the per-call timeout for device health probes.
	HealthTimeout time.Duration `yaml:"health_timeout"`
	// UploadTimeout is the per-call timeout for artifact uploads.
	UploadTimeout time.Duration `yaml:"upload_timeout"`
	// RebootInitialWait is how long to wait after an upload before the first online poll.
	RebootInitialWait time.Duration `yaml:"reboot_initial_wait"`
	// RebootPollInterval is the fixed delay between online polls.
	RebootPollInterval time.Duration `yaml:"reboot_poll_interval"`
	// RebootPollAttempts caps the number of online polls per reboot.
	RebootPollAttempts int `yaml:"reboot_poll_attempts"`
	// RetryAttempts caps retries of a single HTTP call on transient server errors.
	RetryAttempts int `yaml:"retry_attempts"`
	// RetryBackoff is the linear backoff base between retries of a single call.
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

const (
	// DefaultConfigFilename is the default filename for fleet settings.
	DefaultConfigFilename = "bitaxe-fleet-settings.yaml"

	// DefaultMarkerFilename is the default path of the last-seen commit marker.
	DefaultMarkerFilename = ".last_upstream_commit"

	// DefaultFilePermissions is the default file permission for files this tool writes.
	DefaultFilePermissions = 0o600

	// Defaults mirroring the device reboot timing on a local network.
	defaultUpstreamAPIBaseURL = "https://api.github.com"
	defaultUpstreamOwner      = "skot"
	defaultUpstreamRepo       = "ESP-miner"
	defaultUpstreamBranch     = "master"
	defaultUpstreamTimeout    = 10 * time.Second
	defaultFirmwareFile       = "ESP-miner/build/esp-miner.bin"
	defaultWebAssetsFile      = "ESP-miner/build/www.bin"
	defaultHealthTimeout      = 2 * time.Second
	defaultUploadTimeout      = 15 * time.Second
	defaultRebootInitialWait  = 10 * time.Second
	defaultRebootPollInterval = 5 * time.Second
	defaultRebootPollAttempts = 5
	defaultRetryAttempts      = 3
	defaultRetryBackoff       = 1 * time.Second
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// Default returns settings matching the built-in defaults.
func Default() *Config {
	cfg := new(Config)
	applyDefaults(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates essential fields.
// When no path is given and the default settings file does not exist,
// built-in defaults are returned so the tools run without any configuration.
func Load(path string) (*Config, error) {
	allowMissing := path == ""
	if allowMissing {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults for unset fields and checks the provided settings for formatting.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if _, err := url.ParseRequestURI(cfg.UpstreamAPIBaseURL); err != nil {
		return fmt.Errorf("invalid upstream API base URL: %w", err)
	}

	return nil
}

// applyDefaults replaces zero values with the built-in defaults.
//
//nolint:cyclop // A flat list of field defaults reads better than a table here.
func applyDefaults(cfg *Config) {
	if cfg.UpstreamAPIBaseURL == "" {
		cfg.UpstreamAPIBaseURL = defaultUpstreamAPIBaseURL
	}

	if cfg.UpstreamOwner == "" {
		cfg.UpstreamOwner = defaultUpstreamOwner
	}

	if cfg.UpstreamRepo == "" {
		cfg.UpstreamRepo = defaultUpstreamRepo
	}

	if cfg.UpstreamBranch == "" {
		cfg.UpstreamBranch = defaultUpstreamBranch
	}

	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = defaultUpstreamTimeout
	}

	if cfg.MarkerFile == "" {
		cfg.MarkerFile = DefaultMarkerFilename
	}

	if cfg.FirmwareFile == "" {
		cfg.FirmwareFile = defaultFirmwareFile
	}

	if cfg.WebAssetsFile == "" {
		cfg.WebAssetsFile = defaultWebAssetsFile
	}

	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = defaultHealthTimeout
	}

	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = defaultUploadTimeout
	}

	if cfg.RebootInitialWait <= 0 {
		cfg.RebootInitialWait = defaultRebootInitialWait
	}

	if cfg.RebootPollInterval <= 0 {
		cfg.RebootPollInterval = defaultRebootPollInterval
	}

	if cfg.RebootPollAttempts <= 0 {
		cfg.RebootPollAttempts = defaultRebootPollAttempts
	}

	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}

	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
}
