package version

import "fmt"

// Set at build time:
//
//	-X 'github.com/dallosh/analysis/pkg/version.Version=v1.2.0'
//	-X 'github.com/dallosh/analysis/pkg/version.CommitHash=abc123'
//	-X 'github.com/dallosh/analysis/pkg/version.BuildDate=2025-01-01T00:00:00Z'
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildDate  string `json:"build_date"`
}

func Get() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildDate:  BuildDate,
	}
}

// String renders the build info for the CLI --version output.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.CommitHash, i.BuildDate)
}
