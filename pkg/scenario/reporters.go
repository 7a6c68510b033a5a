package scenario

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/portworx/jobharness/drivers/node"
	"github.com/portworx/jobharness/pkg/artifacts"
	"github.com/portworx/jobharness/pkg/buildinfo"
	"github.com/portworx/jobharness/pkg/config"
	"github.com/portworx/jobharness/pkg/email"
	"github.com/portworx/jobharness/pkg/jirautils"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/portworx/jobharness/pkg/metrics"
	"github.com/portworx/jobharness/pkg/testrailutils"
)

// Collector keeps every result in memory
type Collector struct {
	mu      sync.RWMutex
	results []Result
}

// Report stores r
func (c *Collector) Report(ctx context.Context, r Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
	return nil
}

// Results returns the stored results in run order
func (c *Collector) Results() []Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Result(nil), c.results...)
}

// MetricsReporter pushes the harness metrics when a run finishes
type MetricsReporter struct {
	PushGateway string
	JobName     string
}

// Report does nothing, scenario metrics are recorded by the runner
func (m *MetricsReporter) Report(ctx context.Context, r Result) error {
	return nil
}

// Finish pushes the metrics to the push gateway
func (m *MetricsReporter) Finish(ctx context.Context, results []Result) error {
	return metrics.Push(m.PushGateway, m.JobName)
}

// TestRailReporter files each result against its TestRail case
type TestRailReporter struct {
	TestRail *testrailutils.TestRail
	// Version of the backend the run used
	Version string
}

// Report adds a TestRail result for scenarios that name a case
func (t *TestRailReporter) Report(ctx context.Context, r Result) error {
	if r.TestRailID == "" || r.Status == SKIPPED {
		return nil
	}
	caseID, err := strconv.Atoi(strings.TrimPrefix(r.TestRailID, "C"))
	if err != nil {
		return fmt.Errorf("invalid TestRail case %q of %s", r.TestRailID, r.Name)
	}
	runID, err := t.TestRail.AddRunsToMilestone(caseID)
	if err != nil {
		return err
	}
	status := "Fail"
	if r.Passed() {
		status = "Pass"
	}
	return t.TestRail.AddTestEntry(testrailutils.Testrail{
		Status:        status,
		TestID:        caseID,
		RunID:         runID,
		DriverVersion: t.Version,
		Comment:       r.ResultString,
	})
}

// issuer files defects
type issuer interface {
	CreateIssue(summary, description string) (string, error)
}

// JiraReporter files a defect for every failed scenario
type JiraReporter struct {
	Jira issuer
}

// Describe renders the text of a defect for r
func Describe(r Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Scenario: %s\nRun: %s\nStarted: %s\nDuration: %s\n", r.Name, r.RunID, r.StartedAt.UTC().Format(time.RFC3339), r.Duration.Round(time.Second))
	fmt.Fprintf(&sb, "Category: %s\nResult: %s\n", r.Category, r.ResultString)
	if len(r.Jobs) > 0 {
		fmt.Fprintf(&sb, "Jobs: %s\n", strings.Join(r.Jobs, ", "))
	}
	if len(r.Steps) > 0 {
		sb.WriteString("Steps:\n")
		for i, s := range r.Steps {
			fmt.Fprintf(&sb, "  %d. %s\n", i+1, s)
		}
	}
	for _, v := range r.Verifications {
		if !v.ResultStatus {
			fmt.Fprintf(&sb, "Failed verification: %s (actual [%s], expected [%s])\n", v.Description, v.Actual, v.Expected)
		}
	}
	return sb.String()
}

// Report files an issue when r failed
func (j *JiraReporter) Report(ctx context.Context, r Result) error {
	if r.Status != FAIL {
		return nil
	}
	key, err := j.Jira.CreateIssue(jirautils.Summary("%s failed: %s", r.Name, r.ResultString), Describe(r))
	if err != nil {
		return err
	}
	log.InfoD("Filed %s for %s", key, r.Name)
	return nil
}

// EmailReporter mails a summary of the run
type EmailReporter struct {
	Config config.EmailConfig
	// Sender overrides the SMTP dialer
	Sender email.Sender
}

// Report does nothing, the mail is sent once per run
func (e *EmailReporter) Report(ctx context.Context, r Result) error {
	return nil
}

// Finish sends the summary
func (e *EmailReporter) Finish(ctx context.Context, results []Result) error {
	passed := 0
	rows := make([]email.SummaryRow, 0, len(results))
	for _, r := range results {
		if r.Passed() {
			passed++
		}
		rows = append(rows, email.SummaryRow{
			Name:     r.Name,
			Status:   r.Status,
			Duration: r.Duration.Round(time.Second).String(),
			Result:   r.ResultString,
		})
	}
	title := fmt.Sprintf("jobharness: %d/%d scenarios passed", passed, len(results))
	body, err := email.RenderSummary(title, rows)
	if err != nil {
		return err
	}
	m := &email.Email{
		Subject:         title,
		From:            e.Config.From,
		To:              e.Config.To,
		Content:         body,
		EmailHostServer: e.Config.Host,
		Port:            e.Config.Port,
		Username:        e.Config.Username,
		Password:        e.Config.Password,
	}
	if e.Sender != nil {
		return m.SendWith(e.Sender)
	}
	return m.SendEmail()
}

// ArtifactsReporter keeps the backend logs of failed scenarios and uploads
// them as one bundle when the run finishes
type ArtifactsReporter struct {
	Bundler *artifacts.Bundler
	Dir     string
	LogFile string
	// Hosts returns where the logs of r are
	Hosts  func(r Result) []node.Node
	Upload bool

	mu        sync.Mutex
	collected int
}

// Report copies the host logs of a failed scenario
func (a *ArtifactsReporter) Report(ctx context.Context, r Result) error {
	if r.Status != FAIL {
		return nil
	}
	dir := filepath.Join(a.Dir, "results", fmt.Sprintf("%s-%s", r.Name, r.RunID))
	files, err := a.Bundler.CollectHostLogs(ctx, dir, a.Hosts(r), a.LogFile)
	a.mu.Lock()
	a.collected += len(files)
	a.mu.Unlock()
	return err
}

// Finish bundles what was collected
func (a *ArtifactsReporter) Finish(ctx context.Context, results []Result) error {
	a.mu.Lock()
	collected := a.collected
	a.mu.Unlock()
	if collected == 0 {
		return nil
	}
	out := filepath.Join(a.Dir, fmt.Sprintf("jobharness-%s.tar.gz", time.Now().UTC().Format("20060102-150405")))
	bundle, err := a.Bundler.Bundle(filepath.Join(a.Dir, "results"), out)
	if err != nil {
		return err
	}
	if !a.Upload {
		return nil
	}
	_, err = a.Bundler.Upload(ctx, bundle)
	return err
}

// BuildReporters returns the reporters enabled in cfg. The collector is
// always first.
func BuildReporters(ctx context.Context, cfg *config.Config, env *Env) (*Collector, []Reporter, error) {
	collector := &Collector{}
	reporters := []Reporter{collector}
	if cfg.Metrics.PushGateway != "" {
		reporters = append(reporters, &MetricsReporter{PushGateway: cfg.Metrics.PushGateway, JobName: cfg.Metrics.JobName})
	}
	if cfg.TestRail.Enabled {
		tr, err := testrailutils.Init(cfg.TestRail.URL, cfg.TestRail.Username, cfg.TestRail.APIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to testrail: %v", err)
		}
		bi := buildinfo.Current()
		tr.JobRunID, tr.BuildURL, tr.RunName = bi.BuildNumber, bi.URL, bi.RunName("jobharness")
		if cfg.TestRail.RunName != "" {
			tr.RunName = cfg.TestRail.RunName
		}
		if cfg.TestRail.Milestone != "" {
			tr.MilestoneName = cfg.TestRail.Milestone
			if err := tr.CreateMilestone(); err != nil {
				return nil, nil, err
			}
		}
		if cfg.TestRail.RunID != 0 {
			tr.SetRunID(cfg.TestRail.RunID)
		}
		version, _ := env.Jobs.Version(ctx)
		reporters = append(reporters, &TestRailReporter{TestRail: tr, Version: version})
	}
	if cfg.Jira.Enabled {
		j, err := jirautils.Init(cfg.Jira.URL, cfg.Jira.Username, cfg.Jira.Token, cfg.Jira.Project)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Jira.IssueType != "" {
			j.IssueType = cfg.Jira.IssueType
		}
		reporters = append(reporters, &JiraReporter{Jira: j})
	}
	if cfg.Email.Enabled {
		reporters = append(reporters, &EmailReporter{Config: cfg.Email})
	}
	if cfg.Artifacts.Enabled {
		dir := cfg.Artifacts.Dir
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "jobharness-artifacts")
		}
		b := artifacts.NewBundler(env.Nodes, connectionOpts(cfg))
		upload := cfg.Artifacts.Bucket != ""
		if upload {
			u, err := artifacts.NewS3Uploader(cfg.Artifacts.Region, cfg.Artifacts.Endpoint)
			if err != nil {
				return nil, nil, err
			}
			b.SetUploader(u, cfg.Artifacts.Bucket, cfg.Artifacts.Prefix)
		}
		reporters = append(reporters, &ArtifactsReporter{
			Bundler: b,
			Dir:     dir,
			LogFile: cfg.Scenario.LogFile,
			Hosts:   env.hostsOf,
			Upload:  upload,
		})
	}
	return collector, reporters, nil
}

// hostsOf returns the configured hosts. Results do not record where each
// job ran, so every host is collected.
func (e *Env) hostsOf(r Result) []node.Node {
	hosts := make([]node.Node, 0, len(e.Config.Hosts))
	for _, h := range e.Config.Hosts {
		hosts = append(hosts, nodeFromConfig(h))
	}
	return hosts
}
