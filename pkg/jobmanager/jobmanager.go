// Package jobmanager waits on and controls backend jobs. Every wait is
// bounded: it polls the job driver at a fixed interval, or on a backoff
// policy, until the job reaches an accepted state or the budget runs out.
package jobmanager

import (
	"context"
	goerrors "errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/pkg/config"
	"github.com/portworx/jobharness/pkg/errors"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/portworx/jobharness/pkg/metrics"
	"github.com/portworx/jobharness/pkg/task"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPhaseAttempts is the number of inspections WaitForPhase makes
	// when Opts.PhaseAttempts is unset
	DefaultPhaseAttempts = 50
)

// Opts is the poll policy of a Manager
type Opts struct {
	// Interval between two inspections
	Interval time.Duration
	// Timeout bounds every wait. At most Timeout/Interval sleeps happen.
	Timeout time.Duration
	// PhaseAttempts bounds WaitForPhase in inspections instead of time
	PhaseAttempts int
	// ContainsPhaseMatch accepts a phase that contains the wanted one.
	// The default is a case-insensitive exact match.
	ContainsPhaseMatch bool
	// Backoff grows the interval exponentially up to MaxInterval
	Backoff     bool
	MaxInterval time.Duration
}

// OptsFromConfig returns the poll policy described by c
func OptsFromConfig(c config.PollConfig) Opts {
	return Opts{
		Interval:           c.Interval,
		Timeout:            c.Timeout,
		PhaseAttempts:      c.PhaseAttempts,
		ContainsPhaseMatch: c.ContainsPhaseMatch,
		Backoff:            c.Backoff,
		MaxInterval:        c.MaxInterval,
	}
}

// Manager waits on and modifies jobs through a job driver
type Manager struct {
	driver job.Driver
	opts   Opts
}

// New returns a manager polling d with opts
func New(d job.Driver, opts Opts) *Manager {
	if opts.PhaseAttempts <= 0 {
		opts.PhaseAttempts = DefaultPhaseAttempts
	}
	return &Manager{driver: d, opts: opts}
}

// Driver returns the job driver of m
func (m *Manager) Driver() job.Driver {
	return m.driver
}

// Opts returns the poll policy of m
func (m *Manager) Opts() Opts {
	return m.opts
}

// WithTimeout returns a copy of m whose waits are bounded by timeout
func (m *Manager) WithTimeout(timeout time.Duration) *Manager {
	c := *m
	c.opts.Timeout = timeout
	return &c
}

func (m *Manager) retryOpts(op, id string) task.Opts {
	opts := task.Opts{
		Timeout:         m.opts.Timeout,
		TimeBeforeRetry: m.opts.Interval,
		OnRetry: func(attempt int, err error, next time.Duration) {
			log.Infof("[%s] attempt %d: %v. Next check in %v", op, attempt, err, next)
		},
	}
	if m.opts.Backoff && m.opts.Interval > 0 {
		maxInterval := m.opts.MaxInterval
		if maxInterval < m.opts.Interval {
			maxInterval = m.opts.Interval
		}
		opts.Backoff = task.NewExponentialBackOff(m.opts.Interval, maxInterval, m.opts.Timeout)
	}
	return opts
}

// Inspect returns the current snapshot of job id
func (m *Manager) Inspect(ctx context.Context, id string) (*job.Info, error) {
	return m.inspect(ctx, "inspect", id)
}

func (m *Manager) inspect(ctx context.Context, op, id string) (*job.Info, error) {
	info, err := m.driver.Inspect(ctx, id)
	metrics.ObservePoll(op, err)
	if err != nil {
		return nil, err
	}
	metrics.ObserveJob(*info)
	return info, nil
}

// retryable reports whether an inspection error may go away on its own
func retryable(err error) bool {
	var notFound *errors.ErrNotFound
	var notSupported *errors.ErrNotSupported
	return !goerrors.As(err, &notFound) && !goerrors.As(err, &notSupported)
}

func statusList(statuses []job.Status) string {
	s := make([]string, 0, len(statuses))
	for _, status := range statuses {
		s = append(s, string(status))
	}
	return strings.Join(s, ", ")
}

func describe(info *job.Info) string {
	return fmt.Sprintf("status [%s], phase [%s], progress [%d%%], delay reason [%s]",
		info.Status, info.Phase, info.PercentComplete, info.DelayReason)
}

// WaitForState polls job id until its status is one of expected. A job
// that finishes in another status ends the wait early with ErrJobFailed.
// With hardcheck unset, a timeout or an unexpected final status returns
// the last snapshot and no error, and the caller checks the status.
func (m *Manager) WaitForState(ctx context.Context, id string, expected []job.Status, hardcheck bool) (*job.Info, error) {
	if len(expected) == 0 {
		return nil, fmt.Errorf("no expected state given for job %s", id)
	}
	start := time.Now()
	log.Infof("Waiting for job [%s] to go into state [%s]", id, statusList(expected))

	var last *job.Info
	t := func() (interface{}, bool, error) {
		info, err := m.inspect(ctx, "wait_for_state", id)
		if err != nil {
			return nil, retryable(err), err
		}
		last = info
		if info.Status.In(expected...) {
			return info, false, nil
		}
		if info.Status.IsTerminal() {
			return nil, false, &errors.ErrJobFailed{JobID: id, Status: string(info.Status), DelayReason: info.DelayReason}
		}
		return nil, true, fmt.Errorf("job [%s] %s, waiting for [%s]", id, describe(info), statusList(expected))
	}
	_, err := task.DoRetryWithContext(ctx, t, m.retryOpts("wait_for_state", id))
	metrics.ObserveWait("wait_for_state", time.Since(start), err)
	if err == nil {
		log.Infof("Job [%s] is in state [%s]", id, last.Status)
		return last, nil
	}
	if !hardcheck && last != nil && softFailure(err) {
		log.Warnf("Job [%s] did not reach [%s]: %v", id, statusList(expected), err)
		return last, nil
	}
	return last, err
}

func softFailure(err error) bool {
	var timedOut *task.ErrTimedOut
	var failed *errors.ErrJobFailed
	return goerrors.As(err, &timedOut) || goerrors.As(err, &failed)
}

// WaitForCompletion waits until job id completes successfully
func (m *Manager) WaitForCompletion(ctx context.Context, id string) (*job.Info, error) {
	return m.WaitForState(ctx, id, []job.Status{job.StatusCompleted}, true)
}

// WaitForFinish waits until job id reaches any final status
func (m *Manager) WaitForFinish(ctx context.Context, id string) (*job.Info, error) {
	return m.WaitForState(ctx, id, []job.Status{
		job.StatusCompleted, job.StatusCompletedWithErrors, job.StatusFailed, job.StatusKilled,
	}, true)
}

func (m *Manager) phaseMatches(current, want string) bool {
	if m.opts.ContainsPhaseMatch {
		return strings.Contains(strings.ToLower(current), strings.ToLower(want))
	}
	return strings.EqualFold(strings.TrimSpace(current), strings.TrimSpace(want))
}

// WaitForPhase polls job id until it runs phase, making at most
// PhaseAttempts inspections. A job that has already finished when the
// wait starts is accepted. A job that finishes during the wait is an error.
func (m *Manager) WaitForPhase(ctx context.Context, id, phase string) (*job.Info, error) {
	if m.opts.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", m.opts.Interval)
	}
	start := time.Now()
	attempts := m.opts.PhaseAttempts
	attempt := 0
	var last *job.Info
	t := func() (interface{}, bool, error) {
		attempt++
		info, err := m.inspect(ctx, "wait_for_phase", id)
		if err != nil {
			return nil, retryable(err), err
		}
		last = info
		if info.Status.IsTerminal() {
			if attempt == 1 {
				log.Infof("Job [%s] already finished before waiting for phase [%s]", id, phase)
				return info, false, nil
			}
			return nil, false, &errors.ErrJobFailed{JobID: id, Status: string(info.Status), DelayReason: info.DelayReason}
		}
		if m.phaseMatches(info.Phase, phase) {
			return info, false, nil
		}
		return nil, true, fmt.Errorf("job [%s] in phase [%s], waiting for phase [%s]. Attempt [%d/%d]",
			id, info.Phase, phase, attempt, attempts)
	}
	opts := m.retryOpts("wait_for_phase", id)
	opts.Backoff = backoff.WithMaxRetries(backoff.NewConstantBackOff(m.opts.Interval), uint64(attempts-1))
	_, err := task.DoRetryWithContext(ctx, t, opts)
	metrics.ObserveWait("wait_for_phase", time.Since(start), err)
	if err != nil {
		return last, err
	}
	log.Infof("Job [%s] is in phase [%s]", id, last.Phase)
	return last, nil
}

// WaitForProgress waits until job id reports at least percent progress.
// A finished job satisfies any percent.
func (m *Manager) WaitForProgress(ctx context.Context, id string, percent int) (*job.Info, error) {
	start := time.Now()
	var last *job.Info
	t := func() (interface{}, bool, error) {
		info, err := m.inspect(ctx, "wait_for_progress", id)
		if err != nil {
			return nil, retryable(err), err
		}
		last = info
		if info.Status.IsTerminal() || info.PercentComplete >= percent {
			return info, false, nil
		}
		return nil, true, fmt.Errorf("job [%s] at [%d%%], waiting for [%d%%]. Pending reason [%s]",
			id, info.PercentComplete, percent, info.DelayReason)
	}
	_, err := task.DoRetryWithContext(ctx, t, m.retryOpts("wait_for_progress", id))
	metrics.ObserveWait("wait_for_progress", time.Since(start), err)
	return last, err
}

// ModifyJob applies action to job id. With wait set it then waits for the
// status the action leads to, honoring hardcheck like WaitForState.
func (m *Manager) ModifyJob(ctx context.Context, id string, action job.Action, wait, hardcheck bool) (*job.Info, error) {
	log.Infof("Issuing %s on job [%s]", action, id)
	if err := action.Apply(ctx, m.driver, id); err != nil {
		return nil, err
	}
	if !wait {
		return nil, nil
	}
	return m.WaitForState(ctx, id, job.ExpectedStatusAfter(action), hardcheck)
}

// ModifyAllJobs applies action to every active job matching filter
func (m *Manager) ModifyAllJobs(ctx context.Context, action job.Action, filter job.Filter) error {
	if _, err := job.ParseAction(string(action)); err != nil {
		return err
	}
	if err := m.driver.ModifyAll(ctx, action, filter); err != nil {
		return err
	}
	log.Infof("Issued %s on all jobs matching client [%s] type [%s]", action, filter.Client, filter.Type)
	return nil
}

// KillActiveJobs kills the active jobs of client and returns their ids.
// Jobs that finish before the kill lands are skipped.
func (m *Manager) KillActiveJobs(ctx context.Context, client string) ([]string, error) {
	active, err := m.driver.ActiveJobs(ctx, job.Filter{Client: client})
	if err != nil {
		return nil, err
	}
	log.Infof("Active jobs for client [%s]: %d", client, len(active))
	var killed []string
	var errs error
	for _, j := range active {
		err := m.driver.Kill(ctx, j.ID)
		var transition *job.ErrInvalidTransition
		switch {
		case err == nil:
			killed = append(killed, j.ID)
		case goerrors.As(err, &transition):
			log.Infof("Job [%s] cannot be killed any more: %v", j.ID, err)
		default:
			errs = multierr.Append(errs, err)
		}
	}
	return killed, errs
}

// ValidateJobState checks that job id is currently in one of expected
func (m *Manager) ValidateJobState(ctx context.Context, id string, expected ...job.Status) (*job.Info, error) {
	info, err := m.inspect(ctx, "validate_job_state", id)
	if err != nil {
		return nil, err
	}
	log.Infof("Validation: job [%s] state [%s], expected [%s]", id, info.Status, statusList(expected))
	if !info.Status.In(expected...) {
		return info, &errors.ErrValidation{
			Description: fmt.Sprintf("state of job %s", id),
			Expected:    statusList(expected),
			Actual:      string(info.Status),
		}
	}
	return info, nil
}

// ValidateJobErrors reports whether every error line of info starts with a
// match of one of patterns
func ValidateJobErrors(info *job.Info, patterns []string) (bool, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")")
		if err != nil {
			return false, fmt.Errorf("invalid error pattern %q: %v", p, err)
		}
		compiled = append(compiled, re)
	}
	for _, reason := range info.Errors {
		for _, line := range strings.Split(reason, "\n") {
			if line == "" {
				continue
			}
			if !matchesAny(compiled, line) {
				log.Warnf("Unexpected error on job [%s]: %s", info.ID, line)
				return false, nil
			}
		}
	}
	return true, nil
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// GetActiveJob returns the first active job of client with type t. An
// empty t matches any type.
func (m *Manager) GetActiveJob(ctx context.Context, client string, t job.Type) (*job.Info, error) {
	active, err := m.driver.ActiveJobs(ctx, job.Filter{Client: client, Type: t})
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, &errors.ErrNotFound{ID: client, Type: "Active job of client"}
	}
	return &active[0], nil
}

// WaitForJobs waits for all ids to complete concurrently. The first failure
// cancels the other waits.
func (m *Manager) WaitForJobs(ctx context.Context, ids ...string) ([]job.Info, error) {
	results := make([]job.Info, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			info, err := m.WaitForCompletion(gctx, id)
			if info != nil {
				results[i] = *info
			}
			return err
		})
	}
	err := g.Wait()
	return results, err
}
