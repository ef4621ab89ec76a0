package version

import (
	"runtime/debug"
	"testing"
)

func TestLookup(t *testing.T) {
	origRead := readBuildInfo
	origVersion := Version
	t.Cleanup(func() {
		readBuildInfo = origRead
		Version = origVersion
	})

	tests := []struct {
		name    string
		ldflags string
		info    *debug.BuildInfo
		ok      bool
		want    string
	}{
		{name: "ldflags wins", ldflags: "1.4.0", info: &debug.BuildInfo{Main: debug.Module{Version: "v9"}}, ok: true, want: "1.4.0"},
		{name: "module version", info: &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}}, ok: true, want: "v1.2.3"},
		{name: "devel with revision", info: &debug.BuildInfo{
			Main:     debug.Module{Version: "(devel)"},
			Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abcdef0123456"}},
		}, ok: true, want: "abcdef0"},
		{name: "devel without revision", info: &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, ok: true, want: Unknown},
		{name: "no build info", ok: false, want: Unknown},
	}
	for _, tt := range tests {
		Version = tt.ldflags
		info, ok := tt.info, tt.ok
		readBuildInfo = func() (*debug.BuildInfo, bool) { return info, ok }
		if got := Lookup(); got != tt.want {
			t.Fatalf("%s: Lookup() = %q, want %q", tt.name, got, tt.want)
		}
	}
}
