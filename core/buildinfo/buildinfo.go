// Package buildinfo reports which build is running. Release builds set the
// variables with -ldflags "-X github.com/m3rciful/satsbot/core/buildinfo.Commit=...";
// other builds fall back to the VCS stamp embedded by the go tool.
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Revision returns Commit, or the embedded vcs.revision shortened to seven
// characters, or "local".
func Revision() string {
	if Commit != "" {
		return Commit
	}
	if rev := vcsRevision(); rev != "" {
		return rev[:min(len(rev), 7)]
	}
	return "local"
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}
