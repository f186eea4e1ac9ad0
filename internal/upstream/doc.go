// Package upstream provides a read-only client for the commits API of the
// upstream firmware repository. The checker uses it for a single head-commit
// lookup per run.
package upstream
