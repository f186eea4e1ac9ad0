package checker

import (
	"context"
	"fmt"

	"github.com/oshokin/bitaxe-fleet/internal/config"
	"github.com/oshokin/bitaxe-fleet/internal/logger"
	"github.com/oshokin/bitaxe-fleet/internal/repository/marker"
	"github.com/oshokin/bitaxe-fleet/internal/upstream"
)

// Options controls the upstream check behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// MarkerFile provides an optional marker file path override.
	MarkerFile string
	// Repository overrides the marker store. When nil, a file repository
	// at the resolved marker path is used.
	Repository marker.Repository
}

// Result describes the outcome of a successful upstream check.
type Result struct {
	// Commit is the identifier of the current upstream head commit.
	Commit string
	// Changed reports whether the commit differs from the persisted marker.
	Changed bool
}

// Run performs one upstream check: read the persisted marker, fetch the
// current head commit, persist it unconditionally, and report whether it
// changed. A fetch failure aborts without touching the marker.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "fleet-checker")

	// Load settings from configuration file (built-in defaults if absent).
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	repo := opts.Repository
	if repo == nil {
		// Determine marker file: command line argument overrides config.
		markerFile := cfg.MarkerFile
		if opts.MarkerFile != "" {
			markerFile = opts.MarkerFile
		}

		repo = marker.NewFileRepository(markerFile)
	}

	lastCommit, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load marker: %w", err)
	}

	client, err := upstream.NewClient(cfg.UpstreamAPIBaseURL, upstream.WithTimeout(cfg.UpstreamTimeout))
	if err != nil {
		return nil, fmt.Errorf("create upstream client: %w", err)
	}

	logger.InfoKV(ctx, "Checking upstream for new commits",
		"repository", cfg.UpstreamOwner+"/"+cfg.UpstreamRepo, "branch", cfg.UpstreamBranch)

	currentCommit, err := client.LatestCommit(ctx, cfg.UpstreamOwner, cfg.UpstreamRepo, cfg.UpstreamBranch)
	if err != nil {
		return nil, fmt.Errorf("check upstream: %w", err)
	}

	// The marker always reflects the most recently observed commit,
	// whether or not it changed.
	if err = repo.Save(ctx, currentCommit); err != nil {
		return nil, fmt.Errorf("save marker: %w", err)
	}

	result := &Result{
		Commit:  currentCommit,
		Changed: currentCommit != lastCommit,
	}

	logger.InfoKV(ctx, "Upstream check complete",
		"commit", result.Commit, "changed", result.Changed)

	return result, nil
}
