// Package buildinfo carries this module's own build-time version
// metadata, set via ldflags by whatever binary embeds it.
//
//	go build -ldflags "-X .../pkg/buildinfo.Version=v1.0.0 \
//	    -X .../pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X .../pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildinfo

import "fmt"

var (
	// Version is the semantic version (e.g., "v1.2.3").
	Version = "dev"

	// Commit is the git commit SHA kcjpm itself was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// String returns the formatted build information, useful in diagnostic
// events and error messages that need to name the kcjpm version that
// produced them.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}
