// Package buildinfo exposes the version metadata stamped into the
// binary at compile time.
package buildinfo

import (
	"fmt"
	"runtime"
	"time"
)

// Stamped via -ldflags at build time; the defaults identify a
// from-source development build.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var startTime = time.Now()

// Report is the build and runtime snapshot served by the health endpoint.
type Report struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Uptime    string `json:"uptime"`
}

// Current captures the build identity and process uptime right now.
func Current() Report {
	return Report{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Uptime:    Uptime().String(),
	}
}

// Uptime returns the duration since process start.
func Uptime() time.Duration {
	return time.Since(startTime).Truncate(time.Second)
}

// String returns the one-line summary printed by the version command
// and logged at startup.
func String() string {
	return fmt.Sprintf("Pulu %s (%s) built %s", Version, GitCommit, BuildTime)
}
