// Package build_info carries the version identifiers stamped in at link
// time.
package build_info

import "runtime"

// Set via -ldflags "-X helixscreen/build_info.Version=... -X helixscreen/build_info.Commit=...".
var (
	Version = "dev"
	Commit  = ""
)

// String returns the human-readable version, with a short commit hash when
// one was stamped in.
func String() string {
	v := Version
	if len(Commit) >= 7 {
		v += "-" + Commit[:7]
	}
	return v + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
