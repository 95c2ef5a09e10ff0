package buildinfo

// Set via -ldflags at build time, for example:
//
//	-X 'github.com/m3rciful/moviebot/core/buildinfo.Version=v0.3.0'
//	-X 'github.com/m3rciful/moviebot/core/buildinfo.Commit=abcdef0'
//
// Defaults are used for local runs.
var (
	// Version is the release tag of the binary.
	Version = "dev"
	// Commit is the source revision the binary was built from.
	Commit = "local"
	// Date is the RFC3339 build timestamp.
	Date = ""
)
