package fleet

import "fmt"

// Actor identifies the operator who started a deployment.
type Actor struct {
	// Hostname is the machine the deployment was started from.
	Hostname string
	// Username is the system user who started it.
	Username string
}

// String returns the audit-log form of the actor.
func (a *Actor) String() string {
	if a == nil {
		return "unknown"
	}

	return fmt.Sprintf("%s@%s", a.Username, a.Hostname)
}
