package simulator

import (
	"archive/zip"
	"bytes"
	"context"
	goerrors "errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/drivers/node"
	"github.com/portworx/jobharness/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fullBackup = job.SubmitRequest{
	Type:        job.TypeBackup,
	Client:      "client-1",
	Subclient:   "default",
	BackupLevel: job.LevelFull,
}

func newBackend(opts Options) *Backend {
	if len(opts.Hosts) == 0 {
		opts.Hosts = []node.Node{{Name: "ma-1", LogDir: "/logs"}, {Name: "ma-2", LogDir: "/logs"}}
	}
	opts.Now = func() time.Time { return time.Date(2024, 3, 7, 10, 30, 0, 0, time.UTC) }
	return New(opts)
}

func inspectN(t *testing.T, b *Backend, id string, n int) *job.Info {
	var info *job.Info
	var err error
	for i := 0; i < n; i++ {
		info, err = b.Inspect(context.TODO(), id)
		require.NoError(t, err)
	}
	return info
}

func TestJobRunsThroughPhases(t *testing.T) {
	b := newBackend(Options{})
	ctx := context.TODO()

	info, err := b.Submit(ctx, fullBackup)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCreated, info.Status)
	assert.Equal(t, "ma-1", info.Host)

	info = inspectN(t, b, info.ID, 1)
	assert.Equal(t, job.StatusRunning, info.Status)
	assert.Equal(t, "Scan", info.Phase)
	assert.Equal(t, 0, info.PercentComplete)

	info = inspectN(t, b, info.ID, 3)
	assert.Equal(t, "Backup", info.Phase)
	assert.Equal(t, 33, info.PercentComplete)

	info = inspectN(t, b, info.ID, 3)
	assert.Equal(t, "Archive Index", info.Phase)

	info = inspectN(t, b, info.ID, 3)
	assert.Equal(t, job.StatusCompleted, info.Status)
	assert.Equal(t, 100, info.PercentComplete)
	assert.False(t, info.EndTime.IsZero())

	// finished jobs do not move any more
	info = inspectN(t, b, info.ID, 2)
	assert.Equal(t, job.StatusCompleted, info.Status)
}

func TestSyntheticFullPhases(t *testing.T) {
	b := newBackend(Options{TicksPerPhase: 1})
	req := fullBackup
	req.BackupLevel = job.LevelSyntheticFull
	info, err := b.Submit(context.TODO(), req)
	require.NoError(t, err)
	info = inspectN(t, b, info.ID, 1)
	assert.Equal(t, "Synthetic Full Backup", info.Phase)
	info = inspectN(t, b, info.ID, 2)
	assert.Equal(t, job.StatusCompleted, info.Status)
}

func TestFailClients(t *testing.T) {
	b := newBackend(Options{TicksPerPhase: 1, FailClients: map[string]string{"client-1": "Media not available"}})
	info, err := b.Submit(context.TODO(), fullBackup)
	require.NoError(t, err)
	info = inspectN(t, b, info.ID, 4)
	assert.Equal(t, job.StatusFailed, info.Status)
	assert.Equal(t, "Media not available", info.DelayReason)
	assert.Equal(t, []string{"Media not available"}, info.Errors)
}

func TestSubmitValidation(t *testing.T) {
	b := newBackend(Options{})
	_, err := b.Submit(context.TODO(), job.SubmitRequest{Type: job.TypeBackup, Client: "c"})
	var submitErr *job.ErrFailedToSubmitJob
	require.True(t, goerrors.As(err, &submitErr))

	empty := New(Options{})
	_, err = empty.Submit(context.TODO(), fullBackup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no hosts")
}

func TestHostAssignment(t *testing.T) {
	b := newBackend(Options{ClientHosts: map[string]string{"pinned": "ma-2"}})
	ctx := context.TODO()
	first, err := b.Submit(ctx, fullBackup)
	require.NoError(t, err)
	second, err := b.Submit(ctx, fullBackup)
	require.NoError(t, err)
	assert.Equal(t, "ma-1", first.Host)
	assert.Equal(t, "ma-2", second.Host)

	req := fullBackup
	req.Client = "pinned"
	for i := 0; i < 3; i++ {
		info, err := b.Submit(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "ma-2", info.Host)
	}

	b.SetOptions(Options{ClientHosts: map[string]string{"pinned": "missing"}})
	_, err = b.Submit(ctx, req)
	require.Error(t, err)
}

func TestSuspendResumeKill(t *testing.T) {
	b := newBackend(Options{})
	ctx := context.TODO()
	info, err := b.Submit(ctx, fullBackup)
	require.NoError(t, err)

	var transition *job.ErrInvalidTransition
	require.True(t, goerrors.As(b.Suspend(ctx, info.ID), &transition))
	require.True(t, goerrors.As(b.Resume(ctx, info.ID), &transition))

	inspectN(t, b, info.ID, 2)
	require.NoError(t, b.Suspend(ctx, info.ID))
	suspended := inspectN(t, b, info.ID, 5)
	assert.Equal(t, job.StatusSuspended, suspended.Status)
	assert.Equal(t, 11, suspended.PercentComplete)

	require.NoError(t, b.Resume(ctx, info.ID))
	resumed := inspectN(t, b, info.ID, 1)
	assert.Equal(t, job.StatusRunning, resumed.Status)
	assert.Equal(t, 22, resumed.PercentComplete)

	require.NoError(t, b.Kill(ctx, info.ID))
	killed := inspectN(t, b, info.ID, 1)
	assert.Equal(t, job.StatusKilled, killed.Status)
	require.True(t, goerrors.As(b.Kill(ctx, info.ID), &transition))

	var notFound *errors.ErrNotFound
	_, err = b.Inspect(ctx, "404")
	require.True(t, goerrors.As(err, &notFound))
	require.True(t, goerrors.As(b.Kill(ctx, "404"), &notFound))
}

func TestActiveJobsAndModifyAll(t *testing.T) {
	b := newBackend(Options{TicksPerPhase: 1})
	ctx := context.TODO()
	a, _ := b.Submit(ctx, fullBackup)
	other := fullBackup
	other.Client = "client-2"
	c, _ := b.Submit(ctx, other)
	inspectN(t, b, a.ID, 1)
	inspectN(t, b, c.ID, 1)

	require.NoError(t, b.ModifyAll(ctx, job.ActionSuspend, job.Filter{Client: "client-1"}))
	active, err := b.ActiveJobs(ctx, job.Filter{Statuses: []job.Status{job.StatusSuspended}})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	// suspending twice skips the job already suspended
	require.NoError(t, b.ModifyAll(ctx, job.ActionSuspend, job.Filter{}))
	require.Error(t, b.ModifyAll(ctx, "pause", job.Filter{}))

	require.NoError(t, b.ModifyAll(ctx, job.ActionKill, job.Filter{}))
	active, err = b.ActiveJobs(ctx, job.Filter{})
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Len(t, b.List(job.Filter{Statuses: []job.Status{job.StatusKilled}}), 2)
}

func TestKillProcessInterruptsJobs(t *testing.T) {
	b := newBackend(Options{})
	nodes := b.Nodes()
	ctx := context.TODO()
	info, err := b.Submit(ctx, fullBackup)
	require.NoError(t, err)
	inspectN(t, b, info.ID, 2)

	// unrelated process leaves the job alone
	require.NoError(t, nodes.KillProcess(node.Node{Name: "ma-1"}, "sshd", node.KillProcessOpts{}))
	assert.Equal(t, job.StatusRunning, inspectN(t, b, info.ID, 1).Status)

	require.NoError(t, nodes.KillProcess(node.Node{Name: "ma-1"}, "backupd", node.KillProcessOpts{}))
	pending := inspectN(t, b, info.ID, 3)
	assert.Equal(t, job.StatusPending, pending.Status)
	assert.Contains(t, pending.DelayReason, "backupd")

	require.NoError(t, b.Resume(ctx, info.ID))
	info = inspectN(t, b, info.ID, 10)
	assert.Equal(t, job.StatusCompleted, info.Status)

	content, err := nodes.ReadFile("/logs/perf.log", node.Node{Name: "ma-1"}, node.ConnectionOpts{})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	for _, line := range lines {
		assert.Contains(t, line, " "+info.ID+" Job-ID: "+info.ID+" ")
	}
	assert.Contains(t, string(content), "moved to pending")
	assert.Contains(t, string(content), "Job resumed in phase [Scan]")
	assert.Contains(t, lines[len(lines)-1], "Job finished with status [Completed]")

	err = nodes.KillProcess(node.Node{Name: "ma-1"}, "", node.KillProcessOpts{PID: 1})
	require.Error(t, err)
	err = nodes.KillProcess(node.Node{Name: "nowhere"}, "backupd", node.KillProcessOpts{})
	require.Error(t, err)
}

func TestStoppedServiceBlocksResume(t *testing.T) {
	b := newBackend(Options{})
	nodes := b.Nodes()
	ctx := context.TODO()
	ma1 := node.Node{Name: "ma-1"}
	info, _ := b.Submit(ctx, fullBackup)
	inspectN(t, b, info.ID, 1)

	require.NoError(t, nodes.Systemctl(ma1, DefaultService, node.SystemctlOpts{Action: "stop"}))
	assert.Equal(t, job.StatusPending, inspectN(t, b, info.ID, 1).Status)
	require.Error(t, nodes.Systemctl(ma1, DefaultService, node.SystemctlOpts{Action: "is-active"}))

	var modifyErr *job.ErrFailedToModifyJob
	require.True(t, goerrors.As(b.Resume(ctx, info.ID), &modifyErr))

	require.NoError(t, nodes.Systemctl(ma1, DefaultService, node.SystemctlOpts{Action: "start"}))
	require.NoError(t, b.Resume(ctx, info.ID))
	assert.Equal(t, job.StatusRunning, inspectN(t, b, info.ID, 1).Status)

	require.Error(t, nodes.Systemctl(ma1, "nginx", node.SystemctlOpts{Action: "restart"}))
	require.Error(t, nodes.Systemctl(ma1, DefaultService, node.SystemctlOpts{Action: "reload"}))

	require.NoError(t, nodes.RebootNode(ma1, node.RebootNodeOpts{}))
	assert.Equal(t, job.StatusPending, inspectN(t, b, info.ID, 1).Status)
}

func TestRotateLog(t *testing.T) {
	b := newBackend(Options{})
	nodes := b.Nodes()
	ma1 := node.Node{Name: "ma-1"}
	info, _ := b.Submit(context.TODO(), fullBackup)

	rotated, err := b.RotateLog("ma-1", false)
	require.NoError(t, err)
	assert.Equal(t, "/logs/perf_1.log", rotated)
	inspectN(t, b, info.ID, 1)

	zipped, err := b.RotateLog("ma-1", true)
	require.NoError(t, err)
	assert.Equal(t, "/logs/perf_2.log.zip", zipped)
	inspectN(t, b, info.ID, 3)

	files, err := nodes.FindFiles("/logs", ma1, node.FindOpts{Name: "perf*", Type: node.File})
	require.NoError(t, err)
	assert.Equal(t, []string{"/logs/perf.log", "/logs/perf_1.log", "/logs/perf_2.log.zip"}, files)

	fs, err := b.HostFs("ma-1")
	require.NoError(t, err)
	raw, err := afero.ReadFile(fs, zipped)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "perf_2.log", zr.File[0].Name)
	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	inner, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(inner), "Phase [Scan] started")

	exists, err := nodes.CheckIfPathExists("/logs/perf_1.log", ma1, node.ConnectionOpts{})
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, nodes.DeletePath(ma1, "/logs/perf_1.log", node.ConnectionOpts{}))
	exists, _ = nodes.CheckIfPathExists("/logs/perf_1.log", ma1, node.ConnectionOpts{})
	assert.False(t, exists)

	_, err = b.RotateLog("ma-9", false)
	require.Error(t, err)
}

func TestNodeViewInit(t *testing.T) {
	b := New(Options{})
	nodes := b.Nodes()
	require.Error(t, nodes.TestConnection(node.Node{Name: "late"}, node.ConnectionOpts{}))
	require.NoError(t, nodes.Init(node.InitOptions{Nodes: []node.Node{{Name: "late"}}}))
	require.NoError(t, nodes.TestConnection(node.Node{Name: "late"}, node.ConnectionOpts{}))
	p, err := b.LogPath("late")
	require.NoError(t, err)
	assert.Equal(t, DefaultLogDir+"/"+DefaultLogFile, p)

	ids, err := b.Interrupt("late", "maintenance")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRegistered(t *testing.T) {
	d, err := job.Get(DriverName)
	require.NoError(t, err)
	assert.Equal(t, Default(), d)
	n, err := node.Get(DriverName)
	require.NoError(t, err)
	assert.Equal(t, DriverName, n.String())
}
