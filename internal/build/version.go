package build

import (
	"fmt"
	"strings"
)

// Version components. The pre-release tag follows semver: it may only
// contain [0-9A-Za-z-].
const (
	appMajor uint = 0
	appMinor uint = 2
	appPatch uint = 0

	appPreRelease = "beta"
)

// Variables populated at link time via -ldflags.
var (
	// Commit is the full commit hash of the build.
	Commit string

	// CommitHash is the short commit hash, used when Commit is unset.
	CommitHash string

	// GoVersion is the Go toolchain version used for the build.
	GoVersion string

	// RawTags is the comma-separated build tag list.
	RawTags string
)

// Version returns the application version as a semver string.
func Version() string {
	version := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
	if appPreRelease != "" {
		version = fmt.Sprintf("%s-%s", version, appPreRelease)
	}
	return version
}

// Tags returns the build tags the binary was compiled with.
func Tags() []string {
	if RawTags == "" {
		return nil
	}
	return strings.Split(RawTags, ",")
}
