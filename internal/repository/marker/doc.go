// Package marker implements persistence for the last-seen upstream commit.
//
// The FileRepository stores the identifier as a plain-text file and exposes a
// Repository interface that the checker service depends on.
package marker
