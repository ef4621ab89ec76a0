// Package version resolves the build identifier attached to every report.
package version

import (
	"runtime/debug"
	"strings"
)

// Version is set at build time via ldflags:
//
//	-X dailyprompt/internal/version.Version=X.Y.Z
var Version = ""

// Unknown is reported when no build identifier can be found.
const Unknown = "0"

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Lookup returns the ldflags version, else the main module version from the
// embedded build info, else Unknown. It never fails.
func Lookup() string {
	if v := strings.TrimSpace(Version); v != "" {
		return v
	}
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return Unknown
	}
	v := strings.TrimSpace(info.Main.Version)
	if v == "" || v == "(devel)" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
		return Unknown
	}
	return v
}
