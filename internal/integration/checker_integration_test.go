package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bitaxe-fleet/internal/config"
	"github.com/oshokin/bitaxe-fleet/internal/service/checker"
)

// TestChecker_DetectsAndThenSettles performs two consecutive checks against a
// fake commits API: the first detects the commit as new, the second does not.
func TestChecker_DetectsAndThenSettles(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/repos/skot/ESP-miner/commits/master", r.URL.Path)
		_, _ = w.Write([]byte(`{"sha":"abc123"}`))
	}))
	t.Cleanup(api.Close)

	dir := t.TempDir()
	markerPath := filepath.Join(dir, ".last_upstream_commit")
	settings := filepath.Join(dir, "settings.yaml")
	require.NoError(t, config.Save(settings, &config.Config{
		UpstreamAPIBaseURL: api.URL,
		MarkerFile:         markerPath,
	}))

	ctx := context.Background()
	opts := &checker.Options{ConfigPath: settings}

	// First run: marker absent, commit is new.
	result, err := checker.Run(ctx, opts)
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, "abc123", result.Commit)

	// Second run: marker already holds the commit.
	result, err = checker.Run(ctx, opts)
	require.NoError(t, err)
	require.False(t, result.Changed)

	require.Equal(t, int32(2), calls.Load())

	contents, err := os.ReadFile(markerPath)
	require.NoError(t, err)
	require.Equal(t, "abc123", string(contents))
}
