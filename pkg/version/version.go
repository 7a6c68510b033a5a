// Package version reports the harness build and compares backend versions.
package version

import (
	"fmt"
	"runtime"
	"strings"

	version "github.com/hashicorp/go-version"
)

// Version will be overridden with the current version at build time using the -X linker flag
var Version string

// GitSHA is set at build time like Version
var GitSHA string

// String returns the harness version line printed by the version command
func String() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	s := fmt.Sprintf("jobharness %s %s/%s %s", v, runtime.GOOS, runtime.GOARCH, runtime.Version())
	if GitSHA != "" {
		s += " " + GitSHA
	}
	return s
}

// Parse parses a backend version. Service pack suffixes like "11.32.4 SP1"
// are dropped.
func Parse(v string) (*version.Version, error) {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty version")
	}
	return version.NewVersion(fields[0])
}

// AtLeast reports whether have is min or newer
func AtLeast(have, min string) (bool, error) {
	want, err := Parse(min)
	if err != nil {
		return false, fmt.Errorf("invalid minimum version %q: %v", min, err)
	}
	got, err := Parse(have)
	if err != nil {
		return false, fmt.Errorf("unparsable version %q: %v", have, err)
	}
	return !got.LessThan(want), nil
}
