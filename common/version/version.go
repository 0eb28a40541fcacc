// Package version exposes build-time version information for the version
// command and the startup banner.
package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time, e.g.
// -ldflags "-X github.com/bdobrica/opsbot/common/version.Version=v1.2.0".
var (
	Version   = "v0.0.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info returns the full version line shown to users.
func Info() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s)", Version, GitCommit, BuildTime, runtime.Version())
}

// Short returns just the semantic version.
func Short() string {
	return Version
}
