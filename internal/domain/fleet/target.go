package fleet

import (
	"errors"
	"fmt"
	"strings"
)

// Target identifies one device on the management network.
type Target struct {
	// Host is the device address (host or IP, optionally with a port).
	Host string
}

// String returns the device address for logs and summaries.
func (t Target) String() string {
	return t.Host
}

// BaseURL returns the root of the device's HTTP management API.
func (t Target) BaseURL() string {
	return "http://" + t.Host
}

var (
	// ErrNoTargets is returned when the device list argument is empty.
	ErrNoTargets = errors.New("no device addresses provided")
	// errEmptyTarget is returned when the device list contains an empty entry.
	errEmptyTarget = errors.New("empty device address in list")
)

// ParseTargets splits a comma-separated device list into ordered targets.
// Entries are trimmed; an empty list or an empty entry is a startup error.
func ParseTargets(list string) ([]Target, error) {
	if strings.TrimSpace(list) == "" {
		return nil, ErrNoTargets
	}

	parts := strings.Split(list, ",")
	targets := make([]Target, 0, len(parts))

	for _, part := range parts {
		host := strings.TrimSpace(part)
		if host == "" {
			return nil, fmt.Errorf("%w: %q", errEmptyTarget, list)
		}

		targets = append(targets, Target{Host: host})
	}

	return targets, nil
}
