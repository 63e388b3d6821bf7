// Package version reports what build is running.
package version

import (
	"runtime"
)

// Set with -ldflags "-X github.com/smazurov/camwall/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info describes the running build.
type Info struct {
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
	Platform  string
}

// Get returns the build information.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns the version.
func String() string {
	return Version
}

// UserAgent is sent to cameras on HTTP requests.
func UserAgent() string {
	return "camwall/" + Version
}
