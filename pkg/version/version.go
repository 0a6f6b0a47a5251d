package version

// Build variables set via ldflags during compilation, e.g.
// -X 'github.com/hookline/hookline/pkg/version.Version=v1.0.0'
var (
	// Version is the semantic version of the binary.
	Version = "dev"
	// CommitHash is the git commit the binary was built from.
	CommitHash = "unknown"
	// BuildDate is the build timestamp in RFC3339 format.
	BuildDate = "unknown"
)

// Info carries the build identification in a structured format.
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildDate  string `json:"build_date"`
}

// Get returns the current build information.
func Get() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildDate:  BuildDate,
	}
}
