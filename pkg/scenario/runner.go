package scenario

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/pborman/uuid"
	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/pkg/dashboard"
	"github.com/portworx/jobharness/pkg/errors"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/portworx/jobharness/pkg/metrics"
	"github.com/portworx/jobharness/pkg/version"
	"go.uber.org/multierr"
)

const (
	// PASS the scenario ran and every verification matched
	PASS = dashboard.PASS
	// FAIL the scenario raised or a verification mismatched
	FAIL = dashboard.FAIL
	// SKIPPED the scenario does not apply to this backend
	SKIPPED = dashboard.SKIPPED

	// DefaultTeardownTimeout bounds the cleanup of one scenario
	DefaultTeardownTimeout = 10 * time.Minute
)

// Result is the outcome of one scenario run
type Result struct {
	Name       string `json:"name"`
	RunID      string `json:"runId"`
	TestRailID string `json:"testRailId,omitempty"`
	Status     string `json:"status"`
	// Category classifies a failure, empty when the scenario passed
	Category errors.FailureCategory `json:"category,omitempty"`
	// ResultString is the text of the error that failed the scenario
	ResultString  string                   `json:"result,omitempty"`
	StartedAt     time.Time                `json:"startedAt"`
	Duration      time.Duration            `json:"duration"`
	Steps         []string                 `json:"steps,omitempty"`
	Jobs          []string                 `json:"jobs,omitempty"`
	Verifications []dashboard.Verification `json:"verifications,omitempty"`
}

// Passed reports whether the scenario passed
func (r Result) Passed() bool {
	return r.Status == PASS
}

func (r Result) String() string {
	s := fmt.Sprintf("%s [%s] %s in %s", r.Name, r.RunID, r.Status, r.Duration.Round(time.Millisecond))
	if r.ResultString != "" {
		s += fmt.Sprintf(" (%s: %s)", r.Category, r.ResultString)
	}
	return s
}

// Reporter publishes each scenario result
type Reporter interface {
	Report(ctx context.Context, r Result) error
}

// Finisher is a reporter that also needs the results of the whole run
type Finisher interface {
	Finish(ctx context.Context, results []Result) error
}

// Runner runs scenarios against one environment
type Runner struct {
	env             *Env
	reporters       []Reporter
	teardownTimeout time.Duration
	now             func() time.Time
}

// NewRunner returns a runner reporting to reporters
func NewRunner(env *Env, reporters ...Reporter) *Runner {
	return &Runner{
		env:             env,
		reporters:       reporters,
		teardownTimeout: DefaultTeardownTimeout,
		now:             time.Now,
	}
}

// AddReporter adds rep to the reporters of r
func (r *Runner) AddReporter(rep Reporter) {
	r.reporters = append(r.reporters, rep)
}

// SetTeardownTimeout bounds the cleanup of each scenario
func (r *Runner) SetTeardownTimeout(d time.Duration) {
	r.teardownTimeout = d
}

// protect runs fn and turns a panic into an error
func protect(stage string, fn Func, c *Context) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("Panic in %s: %v\n%s", stage, p, debug.Stack())
			err = fmt.Errorf("panic in %s: %v", stage, p)
		}
	}()
	return fn(c)
}

// checkVersion returns a non empty reason when the backend is older than min
func (r *Runner) checkVersion(ctx context.Context, min string) (string, error) {
	if min == "" {
		return "", nil
	}
	want, err := version.Parse(min)
	if err != nil {
		return "", fmt.Errorf("invalid minimum backend version %q: %v", min, err)
	}
	current, err := r.env.Jobs.Version(ctx)
	if err != nil {
		return "", &errors.ErrSetup{Resource: "backend version", Cause: err.Error()}
	}
	have, err := version.Parse(current)
	if err != nil {
		return "", &errors.ErrSetup{Resource: "backend version", Cause: fmt.Sprintf("unparsable version %q: %v", current, err)}
	}
	if have.LessThan(want) {
		return fmt.Sprintf("backend version %s is older than %s", have, want), nil
	}
	return "", nil
}

// Run runs s and returns its result. It never panics and never returns an
// error: everything that went wrong is in the result.
func (r *Runner) Run(ctx context.Context, s Scenario) Result {
	res := Result{
		Name:       s.Name,
		RunID:      uuid.New(),
		TestRailID: s.TestRailID,
		StartedAt:  r.now(),
	}
	log.SetTestName(s.Name)
	defer log.SetTestName("")
	d := r.env.Dashboard
	d.TestCaseBegin(s.Name, s.Description, s.TestRailID, s.Tags)
	log.SetMirror(d)
	defer log.SetMirror(nil)

	c := newContext(ctx, res.RunID, r.env)
	err := r.execute(ctx, s, c, &res)

	status := d.TestCaseEnd()
	switch {
	case res.Status == SKIPPED:
	case err != nil:
		res.Status = FAIL
		res.Category = errors.Category(err)
		res.ResultString = err.Error()
	case status != PASS:
		res.Status = FAIL
		res.Category = errors.CategoryValidation
		res.ResultString = firstMismatch(d.Verifications())
	default:
		res.Status = PASS
	}
	res.Duration = r.now().Sub(res.StartedAt)
	res.Steps = c.Steps()
	res.Jobs = c.StartedJobs()
	res.Verifications = d.Verifications()

	metrics.ObserveScenario(s.Name, res.Status, res.Duration)
	log.InfoD("Scenario %s", res)
	r.report(ctx, res)
	return res
}

func (r *Runner) execute(ctx context.Context, s Scenario, c *Context, res *Result) error {
	reason, err := r.checkVersion(ctx, s.MinBackendVersion)
	if err != nil {
		return err
	}
	if reason != "" {
		res.Status = SKIPPED
		res.ResultString = reason
		log.Warnf("Skipping %s: %s", s.Name, reason)
		return nil
	}

	err = protect("setup", s.Setup, c)
	if err != nil {
		if errors.Category(err) == errors.CategoryUnknown {
			err = &errors.ErrSetup{Resource: s.Name, Cause: err.Error()}
		}
	} else {
		err = protect("run", s.Run, c)
	}
	r.teardown(ctx, s, c)
	return err
}

// teardown kills the jobs the scenario left running and runs the cleanup
// functions. Errors are only logged.
func (r *Runner) teardown(ctx context.Context, s Scenario, c *Context) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.teardownTimeout)
	defer cancel()
	c.ctx = tctx

	var errs error
	errs = multierr.Append(errs, protect("teardown", s.Teardown, c))

	c.mu.Lock()
	cleanup := c.cleanup
	c.mu.Unlock()
	for i := len(cleanup) - 1; i >= 0; i-- {
		fn := cleanup[i]
		errs = multierr.Append(errs, protect("cleanup", func(c *Context) error { return fn(tctx) }, c))
	}

	for _, id := range c.StartedJobs() {
		info, err := r.env.Jobs.Inspect(tctx, id)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if info.Status.IsTerminal() {
			continue
		}
		log.Infof("Killing job %s left in status %s", id, info.Status)
		if _, err := r.env.Manager.ModifyJob(tctx, id, job.ActionKill, false, false); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	for _, err := range multierr.Errors(errs) {
		log.Warnf("Teardown of %s: %v", s.Name, err)
	}
}

func firstMismatch(vs []dashboard.Verification) string {
	for _, v := range vs {
		if !v.ResultStatus {
			return (&errors.ErrValidation{Description: v.Description, Expected: v.Expected, Actual: v.Actual}).Error()
		}
	}
	return ""
}

func (r *Runner) report(ctx context.Context, res Result) {
	for _, rep := range r.reporters {
		if err := rep.Report(ctx, res); err != nil {
			log.Warnf("Failed to report %s: %v", res.Name, err)
		}
	}
}

// RunAll runs scenarios one after the other and hands the results to the
// reporters that summarize a run
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) []Result {
	d := r.env.Dashboard
	d.TestSetBegin(&dashboard.TestSet{
		Branch:  r.env.Config.Dashboard.Branch,
		User:    r.env.Config.Dashboard.User,
		Product: "jobharness",
	})
	start := r.now()
	results := make([]Result, 0, len(scenarios))
	for _, s := range scenarios {
		if err := ctx.Err(); err != nil {
			log.Warnf("Run aborted before %s: %v", s.Name, err)
			break
		}
		results = append(results, r.Run(ctx, s))
	}
	d.TestSetEnd()

	passed := 0
	for _, res := range results {
		if res.Passed() {
			passed++
		}
	}
	log.Infof("Ran %d scenario(s), %d passed, in %s", len(results), passed, r.now().Sub(start).Round(time.Second))

	for _, rep := range r.reporters {
		if f, ok := rep.(Finisher); ok {
			if err := f.Finish(ctx, results); err != nil {
				log.Warnf("Failed to finish reporting: %v", err)
			}
		}
	}
	return results
}
