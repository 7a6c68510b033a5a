package jobmanager

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/drivers/job/simulator"
	"github.com/portworx/jobharness/drivers/node"
	"github.com/portworx/jobharness/mocks/mock_drivers/mock_job"
	"github.com/portworx/jobharness/pkg/config"
	"github.com/portworx/jobharness/pkg/errors"
	"github.com/portworx/jobharness/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const jobID = "1042"

func snapshot(status job.Status, phase string, percent int) *job.Info {
	return &job.Info{ID: jobID, Client: "client-1", Type: job.TypeBackup, Status: status, Phase: phase, PercentComplete: percent}
}

func newManager(t *testing.T, opts Opts) (*Manager, *mock_job.MockDriver) {
	mockCtrl := gomock.NewController(t)
	d := mock_job.NewMockDriver(mockCtrl)
	if opts.Interval == 0 {
		opts.Interval = time.Millisecond
	}
	if opts.Timeout == 0 {
		opts.Timeout = 50 * time.Millisecond
	}
	return New(d, opts), d
}

func TestWaitForStateReached(t *testing.T) {
	m, d := newManager(t, Opts{})
	gomock.InOrder(
		d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusRunning, "Scan", 10), nil).Times(2),
		d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusPending, "Scan", 10), nil),
	)
	info, err := m.WaitForState(context.TODO(), jobID, []job.Status{job.StatusPending, job.StatusSuspended}, true)
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, info.Status)
}

func TestWaitForCompletionAlreadyFinished(t *testing.T) {
	m, d := newManager(t, Opts{Interval: time.Hour, Timeout: 2 * time.Hour})
	d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusCompleted, "Archive Index", 100), nil).Times(1)
	start := time.Now()
	info, err := m.WaitForCompletion(context.TODO(), jobID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, info.Status)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestWaitForStateDegenerateBudget(t *testing.T) {
	m, _ := newManager(t, Opts{Interval: time.Second, Timeout: time.Millisecond})
	// no Inspect expectation: any poll fails the test
	_, err := m.WaitForState(context.TODO(), jobID, []job.Status{job.StatusCompleted}, false)
	var timedOut *task.ErrTimedOut
	require.True(t, goerrors.As(err, &timedOut))
	assert.Equal(t, errors.CategoryTimeout, errors.Category(err))
}

func TestDegenerateBudgetWithBackoff(t *testing.T) {
	m, _ := newManager(t, Opts{Interval: time.Second, Timeout: time.Millisecond, Backoff: true, MaxInterval: time.Minute})
	// no Inspect expectation: any poll fails the test
	_, err := m.WaitForState(context.TODO(), jobID, []job.Status{job.StatusCompleted}, true)
	var timedOut *task.ErrTimedOut
	require.True(t, goerrors.As(err, &timedOut))

	_, err = m.WaitForPhase(context.TODO(), jobID, "Backup")
	require.True(t, goerrors.As(err, &timedOut))
}

func TestWaitForStateExhaustion(t *testing.T) {
	m, d := newManager(t, Opts{Interval: 10 * time.Millisecond, Timeout: 50 * time.Millisecond})
	d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusRunning, "Backup", 50), nil).Times(6)
	_, err := m.WaitForState(context.TODO(), jobID, []job.Status{job.StatusCompleted}, true)
	var timedOut *task.ErrTimedOut
	require.True(t, goerrors.As(err, &timedOut))
	assert.Equal(t, 6, timedOut.Attempts)
	assert.Contains(t, timedOut.Reason, "phase [Backup]")
}

func TestWaitForStateSoftTimeout(t *testing.T) {
	m, d := newManager(t, Opts{Interval: 10 * time.Millisecond, Timeout: 20 * time.Millisecond})
	d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusRunning, "Backup", 50), nil).Times(3)
	info, err := m.WaitForState(context.TODO(), jobID, []job.Status{job.StatusSuspended}, false)
	require.NoError(t, err)
	assert.False(t, info.Status.In(job.StatusSuspended))
}

func TestWaitForStateUnexpectedTerminal(t *testing.T) {
	m, d := newManager(t, Opts{})
	killed := snapshot(job.StatusKilled, "Backup", 50)
	killed.DelayReason = "Killed by admin"
	d.EXPECT().Inspect(gomock.Any(), jobID).Return(killed, nil).Times(1)
	_, err := m.WaitForCompletion(context.TODO(), jobID)
	var failed *errors.ErrJobFailed
	require.True(t, goerrors.As(err, &failed))
	assert.Equal(t, "Killed by admin", failed.DelayReason)
	assert.Equal(t, errors.CategoryJob, errors.Category(err))

	d.EXPECT().Inspect(gomock.Any(), jobID).Return(killed, nil).Times(1)
	info, err := m.WaitForState(context.TODO(), jobID, []job.Status{job.StatusCompleted}, false)
	require.NoError(t, err)
	assert.Equal(t, job.StatusKilled, info.Status)
}

func TestWaitForStateInspectErrors(t *testing.T) {
	m, d := newManager(t, Opts{})
	gomock.InOrder(
		d.EXPECT().Inspect(gomock.Any(), jobID).Return(nil, fmt.Errorf("connection reset")),
		d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusCompleted, "", 100), nil),
	)
	_, err := m.WaitForCompletion(context.TODO(), jobID)
	require.NoError(t, err)

	d.EXPECT().Inspect(gomock.Any(), "404").Return(nil, &errors.ErrNotFound{ID: "404", Type: "Job"}).Times(1)
	_, err = m.WaitForState(context.TODO(), "404", []job.Status{job.StatusCompleted}, false)
	var notFound *errors.ErrNotFound
	require.True(t, goerrors.As(err, &notFound))

	_, err = m.WaitForState(context.TODO(), jobID, nil, true)
	require.Error(t, err)
}

func TestWaitForStateCancelled(t *testing.T) {
	m, d := newManager(t, Opts{Interval: time.Hour, Timeout: 10 * time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	d.EXPECT().Inspect(gomock.Any(), jobID).DoAndReturn(func(context.Context, string) (*job.Info, error) {
		cancel()
		return snapshot(job.StatusRunning, "Scan", 0), nil
	}).Times(1)
	_, err := m.WaitForCompletion(ctx, jobID)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitForPhase(t *testing.T) {
	m, d := newManager(t, Opts{PhaseAttempts: 5})
	gomock.InOrder(
		d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusRunning, "Scan", 0), nil).Times(2),
		d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusRunning, "BACKUP", 40), nil),
	)
	info, err := m.WaitForPhase(context.TODO(), jobID, "backup")
	require.NoError(t, err)
	assert.Equal(t, "BACKUP", info.Phase)
}

func TestWaitForPhaseAlreadyFinished(t *testing.T) {
	m, d := newManager(t, Opts{})
	d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusCompleted, "", 100), nil).Times(1)
	info, err := m.WaitForPhase(context.TODO(), jobID, "Backup")
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, info.Status)
}

func TestWaitForPhaseFinishedWhileWaiting(t *testing.T) {
	m, d := newManager(t, Opts{})
	gomock.InOrder(
		d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusRunning, "Scan", 0), nil),
		d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusFailed, "Scan", 10), nil),
	)
	_, err := m.WaitForPhase(context.TODO(), jobID, "Backup")
	var failed *errors.ErrJobFailed
	require.True(t, goerrors.As(err, &failed))
}

func TestWaitForPhaseAttemptsExhausted(t *testing.T) {
	m, d := newManager(t, Opts{PhaseAttempts: 3})
	d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusRunning, "Scan", 0), nil).Times(3)
	_, err := m.WaitForPhase(context.TODO(), jobID, "Backup")
	var timedOut *task.ErrTimedOut
	require.True(t, goerrors.As(err, &timedOut))
	assert.Contains(t, timedOut.Reason, "Attempt [3/3]")
}

func TestWaitForPhaseContainsMatch(t *testing.T) {
	exact, d := newManager(t, Opts{PhaseAttempts: 2})
	d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusRunning, "Synthetic Full Backup", 0), nil).Times(2)
	_, err := exact.WaitForPhase(context.TODO(), jobID, "backup")
	require.Error(t, err)

	contains, d := newManager(t, Opts{PhaseAttempts: 2, ContainsPhaseMatch: true})
	d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusRunning, "Synthetic Full Backup", 0), nil).Times(1)
	_, err = contains.WaitForPhase(context.TODO(), jobID, "backup")
	require.NoError(t, err)
}

func TestWaitForProgress(t *testing.T) {
	m, d := newManager(t, Opts{})
	gomock.InOrder(
		d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusRunning, "Backup", 10), nil),
		d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusRunning, "Backup", 25), nil),
	)
	info, err := m.WaitForProgress(context.TODO(), jobID, 20)
	require.NoError(t, err)
	assert.Equal(t, 25, info.PercentComplete)

	d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusCompleted, "", 100), nil)
	_, err = m.WaitForProgress(context.TODO(), jobID, 101)
	require.NoError(t, err)
}

func TestModifyJob(t *testing.T) {
	m, d := newManager(t, Opts{})
	gomock.InOrder(
		d.EXPECT().Suspend(gomock.Any(), jobID).Return(nil),
		d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusSuspended, "Backup", 30), nil),
	)
	info, err := m.ModifyJob(context.TODO(), jobID, job.ActionSuspend, true, true)
	require.NoError(t, err)
	assert.Equal(t, job.StatusSuspended, info.Status)

	d.EXPECT().Kill(gomock.Any(), jobID).Return(&job.ErrInvalidTransition{ID: jobID, From: job.StatusCompleted, To: job.StatusKilled})
	_, err = m.ModifyJob(context.TODO(), jobID, job.ActionKill, true, true)
	require.Error(t, err)

	d.EXPECT().Resume(gomock.Any(), jobID).Return(nil)
	info, err = m.ModifyJob(context.TODO(), jobID, job.ActionResume, false, true)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestModifyAllJobs(t *testing.T) {
	m, d := newManager(t, Opts{})
	filter := job.Filter{Client: "client-1"}
	d.EXPECT().ModifyAll(gomock.Any(), job.ActionSuspend, filter).Return(nil)
	require.NoError(t, m.ModifyAllJobs(context.TODO(), job.ActionSuspend, filter))
	require.Error(t, m.ModifyAllJobs(context.TODO(), "pause", filter))
}

func TestKillActiveJobs(t *testing.T) {
	m, d := newManager(t, Opts{})
	ctx := context.TODO()
	d.EXPECT().ActiveJobs(gomock.Any(), job.Filter{Client: "client-1"}).Return([]job.Info{{ID: "1"}, {ID: "2"}, {ID: "3"}}, nil)
	d.EXPECT().Kill(gomock.Any(), "1").Return(nil)
	d.EXPECT().Kill(gomock.Any(), "2").Return(&job.ErrInvalidTransition{ID: "2", From: job.StatusCompleted, To: job.StatusKilled})
	d.EXPECT().Kill(gomock.Any(), "3").Return(fmt.Errorf("backend unavailable"))

	killed, err := m.KillActiveJobs(ctx, "client-1")
	assert.Equal(t, []string{"1"}, killed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unavailable")
}

func TestValidateJobState(t *testing.T) {
	m, d := newManager(t, Opts{})
	d.EXPECT().Inspect(gomock.Any(), jobID).Return(snapshot(job.StatusRunning, "Backup", 30), nil).Times(2)
	_, err := m.ValidateJobState(context.TODO(), jobID, job.StatusRunning, job.StatusWaiting)
	require.NoError(t, err)
	_, err = m.ValidateJobState(context.TODO(), jobID, job.StatusSuspended)
	var validation *errors.ErrValidation
	require.True(t, goerrors.As(err, &validation))
	assert.Equal(t, "Running", validation.Actual)
}

func TestValidateJobErrors(t *testing.T) {
	info := &job.Info{ID: "1", Errors: []string{"Failed to restore file a.txt\nFailed to restore file b.txt", ""}}
	ok, err := ValidateJobErrors(info, []string{`Failed to restore file \w+\.txt`})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ValidateJobErrors(info, []string{`restore`})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ValidateJobErrors(info, []string{`(`})
	require.Error(t, err)
}

func TestGetActiveJob(t *testing.T) {
	m, d := newManager(t, Opts{})
	d.EXPECT().ActiveJobs(gomock.Any(), job.Filter{Client: "client-1", Type: job.TypeBackup}).Return([]job.Info{{ID: "5"}}, nil)
	info, err := m.GetActiveJob(context.TODO(), "client-1", job.TypeBackup)
	require.NoError(t, err)
	assert.Equal(t, "5", info.ID)

	d.EXPECT().ActiveJobs(gomock.Any(), gomock.Any()).Return(nil, nil)
	_, err = m.GetActiveJob(context.TODO(), "client-2", "")
	var notFound *errors.ErrNotFound
	require.True(t, goerrors.As(err, &notFound))
}

func TestWaitForJobsAgainstSimulator(t *testing.T) {
	b := simulator.New(simulator.Options{TicksPerPhase: 2, Hosts: []node.Node{{Name: "ma-1"}, {Name: "ma-2"}}})
	m := New(b, Opts{Interval: time.Millisecond, Timeout: time.Second})
	ctx := context.TODO()
	var ids []string
	for _, sc := range []string{"default", "sc-2", "sc-3"} {
		info, err := b.Submit(ctx, job.SubmitRequest{Type: job.TypeBackup, Client: "client-1", Subclient: sc, BackupLevel: job.LevelFull})
		require.NoError(t, err)
		ids = append(ids, info.ID)
	}
	results, err := m.WaitForJobs(ctx, ids...)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, info := range results {
		assert.Equal(t, ids[i], info.ID)
		assert.Equal(t, job.StatusCompleted, info.Status)
	}
}

func TestWaitForJobsFailure(t *testing.T) {
	b := simulator.New(simulator.Options{
		TicksPerPhase: 1,
		Hosts:         []node.Node{{Name: "ma-1"}},
		FailClients:   map[string]string{"broken": "Media not reachable"},
	})
	m := New(b, Opts{Interval: time.Millisecond, Timeout: time.Second})
	ctx := context.TODO()
	good, err := b.Submit(ctx, job.SubmitRequest{Type: job.TypeAuxCopy, Client: "client-1"})
	require.NoError(t, err)
	bad, err := b.Submit(ctx, job.SubmitRequest{Type: job.TypeAuxCopy, Client: "broken"})
	require.NoError(t, err)
	_, err = m.WaitForJobs(ctx, good.ID, bad.ID)
	var failed *errors.ErrJobFailed
	require.True(t, goerrors.As(err, &failed))
	assert.Equal(t, bad.ID, failed.JobID)
}

func TestOptsFromConfig(t *testing.T) {
	poll := config.Default().Poll
	poll.Backoff = true
	opts := OptsFromConfig(poll)
	assert.Equal(t, poll.Interval, opts.Interval)
	assert.Equal(t, poll.PhaseAttempts, opts.PhaseAttempts)
	assert.True(t, opts.Backoff)

	m := New(nil, Opts{Interval: time.Second, Timeout: time.Minute, Backoff: true})
	assert.Equal(t, DefaultPhaseAttempts, m.Opts().PhaseAttempts)
	assert.NotNil(t, m.retryOpts("x", "1").Backoff)
	assert.Equal(t, time.Hour, m.WithTimeout(time.Hour).Opts().Timeout)
	assert.Equal(t, time.Minute, m.Opts().Timeout)
}
