// Package buildinfo holds build-time metadata injected via ldflags.
package buildinfo

var (
	// Version is the Git version tag from build, "dev" for local builds.
	Version = "dev"

	// BuildDate is when the binary was built.
	BuildDate = "unknown"
)
