// Package version exposes build metadata set through -ldflags:
//
//	go build -ldflags "-X github.com/longkey1/rulechat/internal/version.Version=v1.2.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

// Short returns the version number only
func Short() string {
	return Version
}

// Info returns the full version description
func Info() string {
	return fmt.Sprintf("rulechat %s\n  commit:  %s\n  built:   %s\n  go:      %s %s/%s",
		Version, CommitSHA, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
