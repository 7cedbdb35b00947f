// SPDX-License-Identifier: MIT
package build

import "testing"

// setInjected swaps the ldflags-injected vars and the served struct for
// one test, restoring both on cleanup.
func setInjected(t *testing.T, name, time, commit, version string) {
	t.Helper()
	prevName, prevTime := buildName, buildTime
	prevCommit, prevVersion := buildCommit, buildVersion
	prevFlags := buildFlags
	t.Cleanup(func() {
		buildName, buildTime = prevName, prevTime
		buildCommit, buildVersion = prevCommit, prevVersion
		buildFlags = prevFlags
	})

	buildName, buildTime = name, time
	buildCommit, buildVersion = commit, version
	buildFlags = &ldFlags{
		Name:    "unknown",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "unknown",
	}
}

func TestInitializeMissingFlag(t *testing.T) {
	tests := []struct {
		name    string
		inject  [4]string // name, time, commit, version
		wantErr string
	}{
		{"no name", [4]string{"", "2026-08-21", "0d1f3aa", "v0.3.0"}, "BuildName is required"},
		{"no time", [4]string{"beatbox", "", "0d1f3aa", "v0.3.0"}, "BuildTime is required"},
		{"no commit", [4]string{"beatbox", "2026-08-21", "", "v0.3.0"}, "BuildCommit is required"},
		{"no version", [4]string{"beatbox", "2026-08-21", "0d1f3aa", ""}, "BuildVersion is required"},
	}

	unknown := ldFlags{Name: "unknown", Time: "unknown", Commit: "unknown", Version: "unknown"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setInjected(t, tt.inject[0], tt.inject[1], tt.inject[2], tt.inject[3])

			err := Initialize()
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("Initialize() error = %v, want %q", err, tt.wantErr)
			}
			if got := GetBuildFlags(); *got != unknown {
				t.Errorf("flags after failed Initialize = %+v, want unknown defaults", got)
			}
		})
	}
}

func TestInitializeCopiesAll(t *testing.T) {
	setInjected(t, "beatbox", "2026-08-21T10:00:00Z", "0d1f3aa", "v0.3.0")

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	want := ldFlags{
		Name:    "beatbox",
		Time:    "2026-08-21T10:00:00Z",
		Commit:  "0d1f3aa",
		Version: "v0.3.0",
	}
	if got := GetBuildFlags(); *got != want {
		t.Errorf("GetBuildFlags() = %+v, want %+v", got, want)
	}
}

func TestGetBuildFlagsBeforeInitialize(t *testing.T) {
	setInjected(t, "", "", "", "")

	if got := GetBuildFlags(); got.Name != "unknown" || got.Version != "unknown" {
		t.Errorf("GetBuildFlags() = %+v, want unknown defaults", got)
	}
}
