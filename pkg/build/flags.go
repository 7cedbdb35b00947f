// SPDX-License-Identifier: MIT
//
// Package build carries the ldflags-injected build metadata (name,
// build time, commit, version) that the CLI surfaces. A development
// binary built without the flags reports "unknown" values; callers
// decide whether that is fatal.
package build

import "fmt"

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Populated by -ldflags "-X beatbox/pkg/build.buildName=..." at
// compile time. Empty in development builds.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    "unknown",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "unknown",
	}
)

// Initialize validates the injected values and copies them into the
// served struct. Nothing is copied unless every flag is present, so a
// partial injection leaves the "unknown" defaults intact.
func Initialize() error {
	required := []struct {
		value string
		label string
		dst   *string
	}{
		{buildName, "BuildName", &buildFlags.Name},
		{buildTime, "BuildTime", &buildFlags.Time},
		{buildCommit, "BuildCommit", &buildFlags.Commit},
		{buildVersion, "BuildVersion", &buildFlags.Version},
	}

	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%s is required", f.label)
		}
	}
	for _, f := range required {
		*f.dst = f.value
	}
	return nil
}

// GetBuildFlags returns the current build information. Values are the
// defaults until Initialize succeeds.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
