//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"

	"github.com/oshokin/bitaxe-fleet/internal/domain/fleet"
)

// DetectActor gathers host and user information for the deployment audit trail.
func DetectActor() (*fleet.Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &fleet.Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
