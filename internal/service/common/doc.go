// Package common holds helpers shared by several services.
//
// It provides the HTTP client for the device management API with per-call
// timeouts, explicit retry/poll policies supplied by call sites, and a utility
// to detect the current system actor (hostname/username) for audit purposes.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
