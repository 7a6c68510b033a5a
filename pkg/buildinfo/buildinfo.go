// Package buildinfo describes the CI build a run belongs to, so results
// pushed to TestRail and the dashboard can link back to it.
package buildinfo

import (
	"fmt"
	"os"
	"strings"
)

const (
	// CIJenkins is reported for runs inside a Jenkins build
	CIJenkins = "jenkins"
	// CIGitHub is reported for runs inside a GitHub Actions workflow
	CIGitHub = "github"
)

// BuildInfo identifies a CI build. CI is empty for a run outside CI.
type BuildInfo struct {
	CI          string
	BuildNumber string
	Job         string
	URL         string
}

// OnCI reports whether the run belongs to a CI build
func (b BuildInfo) OnCI() bool {
	return b.CI != ""
}

// RunName names a test run after the build, e.g. "nightly #42"
func (b BuildInfo) RunName(fallback string) string {
	name := b.Job
	if name == "" {
		name = fallback
	}
	if b.BuildNumber == "" {
		return name
	}
	return fmt.Sprintf("%s #%s", name, b.BuildNumber)
}

// Current reads the build from the Jenkins environment, then from the
// GitHub Actions one
func Current() BuildInfo {
	if n := os.Getenv("BUILD_NUMBER"); n != "" {
		job := os.Getenv("JOB_BASE_NAME")
		if job == "" {
			job = os.Getenv("JOB_NAME")
		}
		return BuildInfo{CI: CIJenkins, BuildNumber: n, Job: job, URL: os.Getenv("BUILD_URL")}
	}
	if id := os.Getenv("GITHUB_RUN_ID"); id != "" {
		server := strings.TrimSuffix(os.Getenv("GITHUB_SERVER_URL"), "/")
		return BuildInfo{
			CI:          CIGitHub,
			BuildNumber: os.Getenv("GITHUB_RUN_NUMBER"),
			Job:         os.Getenv("GITHUB_WORKFLOW"),
			URL:         fmt.Sprintf("%s/%s/actions/runs/%s", server, os.Getenv("GITHUB_REPOSITORY"), id),
		}
	}
	return BuildInfo{}
}
