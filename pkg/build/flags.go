// SPDX-License-Identifier: MIT
//
// Package build carries version metadata embedded at link time, for example:
//
//	go build -ldflags "-X spectrometer/pkg/build.buildName=spectrometer \
//	  -X spectrometer/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds without linker flags fall back to the module's VCS
// stamp, so `go run .` works without any flags.
package build

import (
	"fmt"
	"runtime/debug"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

// Package-level variables for build information, set via -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &Info{
		Name:        "spectrometer",
		Description: "Real-time audio spectrum analyzer",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Initialize copies the linker flags into the build information. Either all
// four flags are set or none; a partial set is a broken release build and
// returns an error. With none set, VCS settings recorded by the Go toolchain
// are used when present.
func Initialize() error {
	set := 0
	for _, v := range []string{buildName, buildTime, buildCommit, buildVersion} {
		if v != "" {
			set++
		}
	}

	if set == 0 {
		if bi, ok := readBuildInfo(); ok {
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					buildFlags.Commit = s.Value
				case "vcs.time":
					buildFlags.Time = s.Value
				}
			}
			if v := bi.Main.Version; v != "" && v != "(devel)" {
				buildFlags.Version = v
			}
		}
		return nil
	}

	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information. Call Initialize first.
func GetBuildFlags() *Info {
	return buildFlags
}
