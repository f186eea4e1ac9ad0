package checker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bitaxe-fleet/internal/config"
)

// newUpstream starts a fake commits API always answering with the provided sha.
func newUpstream(t *testing.T, sha string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"sha":"` + sha + `"}`))
	}))
	t.Cleanup(server.Close)

	return server
}

// writeSettings persists a settings file pointing at the fake upstream.
func writeSettings(t *testing.T, upstreamURL string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(path, &config.Config{
		UpstreamAPIBaseURL: upstreamURL,
	}))

	return path
}

// TestRun_FirstCheckReportsChange covers the absent-marker scenario:
// the fetched commit is persisted and reported as new.
func TestRun_FirstCheckReportsChange(t *testing.T) {
	t.Parallel()

	server := newUpstream(t, "abc123")
	markerPath := filepath.Join(t.TempDir(), ".last_upstream_commit")

	result, err := Run(context.Background(), &Options{
		ConfigPath: writeSettings(t, server.URL),
		MarkerFile: markerPath,
	})
	require.NoError(t, err)
	require.Equal(t, "abc123", result.Commit)
	require.True(t, result.Changed)

	contents, err := os.ReadFile(markerPath)
	require.NoError(t, err)
	require.Equal(t, "abc123", string(contents))
}

// TestRun_UnchangedCommitStillPersists verifies the marker invariant:
// an unchanged commit is re-persisted and reported as no update.
func TestRun_UnchangedCommitStillPersists(t *testing.T) {
	t.Parallel()

	server := newUpstream(t, "abc123")
	markerPath := filepath.Join(t.TempDir(), ".last_upstream_commit")
	require.NoError(t, os.WriteFile(markerPath, []byte("abc123"), 0o600))

	result, err := Run(context.Background(), &Options{
		ConfigPath: writeSettings(t, server.URL),
		MarkerFile: markerPath,
	})
	require.NoError(t, err)
	require.False(t, result.Changed)

	contents, err := os.ReadFile(markerPath)
	require.NoError(t, err)
	require.Equal(t, "abc123", string(contents))
}

// TestRun_NewCommitReplacesMarker checks the changed-commit path.
func TestRun_NewCommitReplacesMarker(t *testing.T) {
	t.Parallel()

	server := newUpstream(t, "def456")
	markerPath := filepath.Join(t.TempDir(), ".last_upstream_commit")
	require.NoError(t, os.WriteFile(markerPath, []byte("abc123"), 0o600))

	result, err := Run(context.Background(), &Options{
		ConfigPath: writeSettings(t, server.URL),
		MarkerFile: markerPath,
	})
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, "def456", result.Commit)
}

// memoryRepository keeps the marker in memory for injection tests.
type memoryRepository struct {
	commit string
	saved  []string
}

func (r *memoryRepository) Load(_ context.Context) (string, error) {
	return r.commit, nil
}

func (r *memoryRepository) Save(_ context.Context, commit string) error {
	r.commit = commit
	r.saved = append(r.saved, commit)

	return nil
}

// TestRun_UsesInjectedRepository verifies an Options-supplied marker store
// replaces the default file repository entirely.
func TestRun_UsesInjectedRepository(t *testing.T) {
	t.Parallel()

	server := newUpstream(t, "def456")
	repo := &memoryRepository{commit: "abc123"}

	result, err := Run(context.Background(), &Options{
		ConfigPath: writeSettings(t, server.URL),
		Repository: repo,
	})
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, []string{"def456"}, repo.saved)

	// The default marker file must not appear when a repository is injected.
	_, err = os.Stat(config.DefaultMarkerFilename)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_FetchFailureLeavesMarkerUntouched ensures the marker survives a
// failed upstream read.
func TestRun_FetchFailureLeavesMarkerUntouched(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	markerPath := filepath.Join(t.TempDir(), ".last_upstream_commit")
	require.NoError(t, os.WriteFile(markerPath, []byte("abc123"), 0o600))

	_, err := Run(context.Background(), &Options{
		ConfigPath: writeSettings(t, server.URL),
		MarkerFile: markerPath,
	})
	require.Error(t, err)

	contents, err := os.ReadFile(markerPath)
	require.NoError(t, err)
	require.Equal(t, "abc123", string(contents))
}
