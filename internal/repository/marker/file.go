package marker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oshokin/bitaxe-fleet/internal/config"
)

// Repository defines persistence operations for the last-seen commit marker.
type Repository interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, commit string) error
}

// FileRepository persists the commit identifier as a plain-text file on disk.
// A missing file is not an error: it reads as an empty identifier so the very
// first check reports every commit as new.
type FileRepository struct {
	// path is the filesystem location of the marker file.
	path string
	// mu protects concurrent access to the marker file.
	mu sync.Mutex
}

// errEmptyCommit is returned when an empty identifier is saved.
var errEmptyCommit = errors.New("commit identifier must not be empty")

// NewFileRepository creates a repository that reads/writes the marker at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the last-seen commit identifier from disk,
// returning an empty string when no marker exists yet.
func (r *FileRepository) Load(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}

		return "", fmt.Errorf("read marker file: %w", err)
	}

	return strings.TrimSpace(string(contents)), nil
}

// Save overwrites the marker with the provided commit identifier.
func (r *FileRepository) Save(_ context.Context, commit string) error {
	if commit == "" {
		return errEmptyCommit
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.WriteFile(r.path, []byte(commit), config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write marker file: %w", err)
	}

	return nil
}
