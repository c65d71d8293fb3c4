package app

// Build information populated via -ldflags at build time.
var (
	BuildVersion = "0.0.0-dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// Version formats the build information for --version.
func Version() string {
	return BuildVersion + " (" + BuildCommit + ", " + BuildDate + ")"
}
