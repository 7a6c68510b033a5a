package probe

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/drivers/job/simulator"
	"github.com/portworx/jobharness/drivers/node"
	"github.com/portworx/jobharness/drivers/node/local"
	"github.com/portworx/jobharness/pkg/errors"
	"github.com/portworx/jobharness/pkg/jobmanager"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const logDir = "/var/log/backend"

var ma1 = node.Node{Name: "ma-1", Addresses: []string{"ma-1"}, LogDir: logDir}

func zipped(t *testing.T, name, content string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// newLogFs lays out a current log, a bzip2 rotation, a zip rotation and an
// unrelated log
func newLogFs(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	bz, err := os.ReadFile("testdata/perf_1.log.bz2")
	require.NoError(t, err)
	files := map[string][]byte{
		logDir + "/perf.log": []byte(strings.Join([]string{
			"4100   1a2b   10/17 10:00:01 1003 Job-ID: 1003 Phase [Scan] started",
			"4100   1a2b   10/17 10:00:02 1003 Job-ID: 1003 Phase [Backup] started",
		}, "\r\n")),
		logDir + "/perf_1.log.bz2": bz,
		logDir + "/perf_2.log.zip": zipped(t, "perf_2.log", strings.Join([]string{
			"4100   1a2b   10/17 09:30:00 1002 Job-ID: 1002 Phase [Backup] completed",
			"4100   1a2b   10/17 09:30:01 1002 Job-ID: 1002 Job finished with status [Completed]",
		}, "\n")),
		logDir + "/other.log": []byte("4100 1a2b 10/17 10:00:00 1001 Job-ID: 1001 Phase [Scan] started\n"),
	}
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, content, 0644))
	}
	return fs
}

func TestOrderLogFiles(t *testing.T) {
	assert.Empty(t, OrderLogFiles(nil))
	assert.Equal(t, []string{"perf.log"}, OrderLogFiles([]string{"perf.log"}))
	assert.Equal(t,
		[]string{"perf.log", "perf_3.log.zip", "perf_2.log", "perf_1.log.bz2"},
		OrderLogFiles([]string{"perf_1.log.bz2", "perf.log", "perf_3.log.zip", "perf_2.log"}))
	assert.Equal(t,
		[]string{"perf.log", "perf_10.log", "perf_9.log.zip", "perf_2.log", "perf_1.log.bz2"},
		OrderLogFiles([]string{"perf_2.log", "perf_10.log", "perf.log", "perf_1.log.bz2", "perf_9.log.zip"}))
}

func TestNaturalLess(t *testing.T) {
	assert.True(t, naturalLess("perf_2.log", "perf_10.log"))
	assert.False(t, naturalLess("perf_10.log", "perf_2.log"))
	assert.True(t, naturalLess("perf.log", "perf_1.log"))
	assert.True(t, naturalLess("perf_02.log", "perf_2.log"), "equal values fall back to bytes")
	assert.True(t, naturalLess("perf", "perf_1"))
	assert.False(t, naturalLess("perf_1.log", "perf_1.log"))
}

func TestScanLogAcrossRotations(t *testing.T) {
	p := NewLogProbe(local.New(newLogFs(t), nil), node.ConnectionOpts{})
	ctx := context.TODO()

	// job 1003 is in the current file only
	res, err := p.ScanLog(ctx, ma1, "perf.log", ScanOpts{Pattern: `Phase \[(\w+)\] started`, JobID: "1003"})
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Equal(t, logDir+"/perf.log", res.MatchedFile)
	assert.Equal(t, []string{"Phase [Scan] started", "Phase [Backup] started"}, res.Matches)
	assert.Equal(t, []string{logDir + "/perf.log"}, res.Files)

	// job 1002 completed in the zip rotation, which is newer than the bzip2 one
	res, err = p.ScanLog(ctx, ma1, "perf.log", ScanOpts{Pattern: "Job finished with status [Completed]", JobID: "1002", Literal: true})
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Equal(t, logDir+"/perf_2.log.zip", res.MatchedFile)
	assert.Equal(t, []string{logDir + "/perf.log", logDir + "/perf_2.log.zip"}, res.Files)

	// job 1001 only shows up in the bzip2 rotation; other.log is not part of perf.log
	res, err = p.ScanLog(ctx, ma1, "perf.log", ScanOpts{Pattern: "Phase [Scan]", JobID: "1001", Literal: true})
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Equal(t, logDir+"/perf_1.log.bz2", res.MatchedFile)
	assert.Len(t, res.Lines, 2)
	assert.Len(t, res.Files, 3)
}

func TestScanLogOptions(t *testing.T) {
	p := NewLogProbe(local.New(newLogFs(t), nil), node.ConnectionOpts{})
	ctx := context.TODO()

	res, err := p.ScanLog(ctx, ma1, "perf.log", ScanOpts{Pattern: "Phase", FirstMatchOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Phase"}, res.Matches)

	res, err = p.ScanLog(ctx, ma1, "perf.log", ScanOpts{Pattern: "Phase", Correlated: `\[Backup\]`})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Contains(t, res.Lines[0], "1003")

	// only the named file is read
	res, err = p.ScanLog(ctx, ma1, "perf.log", ScanOpts{Pattern: "1001", SingleFile: true})
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, []string{logDir + "/perf.log"}, res.Files)

	// a regex pattern containing brackets only matches when escaped
	res, err = p.ScanLog(ctx, ma1, "perf.log", ScanOpts{Pattern: "[Backup]", JobID: "1003"})
	require.NoError(t, err)
	assert.True(t, res.Matched, "character class matches too")
	res, err = p.ScanLog(ctx, ma1, "perf.log", ScanOpts{Pattern: "Phase [Archive Index]", JobID: "1003", Literal: true})
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Empty(t, res.Lines)

	// the id must be a separate token
	res, err = p.ScanLog(ctx, ma1, "perf.log", ScanOpts{Pattern: "Phase", JobID: "100"})
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestScanLogErrors(t *testing.T) {
	p := NewLogProbe(local.New(newLogFs(t), nil), node.ConnectionOpts{})
	ctx := context.TODO()

	_, err := p.ScanLog(ctx, ma1, "perf.log", ScanOpts{Pattern: "Phase [Scan"})
	require.Error(t, err)

	_, err = p.ScanLog(ctx, node.Node{Name: "nolog"}, "perf.log", ScanOpts{Pattern: "x"})
	require.Error(t, err)
	assert.Equal(t, errors.CategorySetup, errors.Category(err))

	_, err = p.ScanLog(ctx, ma1, "missing.log", ScanOpts{Pattern: "x", SingleFile: true})
	require.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.ScanLog(cancelled, ma1, "perf.log", ScanOpts{Pattern: "x"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestScanLogIsRepeatable(t *testing.T) {
	p := NewLogProbe(local.New(newLogFs(t), nil), node.ConnectionOpts{})
	opts := ScanOpts{Pattern: "Job finished", JobID: "1002"}
	first, err := p.ScanLog(context.TODO(), ma1, "perf.log", opts)
	require.NoError(t, err)
	second, err := p.ScanLog(context.TODO(), ma1, "perf.log", opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScanSimulatedInterruption(t *testing.T) {
	b := simulator.New(simulator.Options{Hosts: []node.Node{{Name: "ma-1"}}})
	m := jobmanager.New(b, jobmanager.Opts{Interval: time.Millisecond, Timeout: time.Second})
	ctx := context.TODO()

	info, err := b.Submit(ctx, job.SubmitRequest{Type: job.TypeBackup, Client: "c1", Subclient: "default", BackupLevel: job.LevelFull})
	require.NoError(t, err)
	_, err = m.WaitForPhase(ctx, info.ID, "Backup")
	require.NoError(t, err)
	require.NoError(t, b.Nodes().KillProcess(node.Node{Name: "ma-1"}, simulator.DefaultProcess, node.KillProcessOpts{}))
	_, err = b.RotateLog("ma-1", true)
	require.NoError(t, err)

	host := node.Node{Name: "ma-1", LogDir: simulator.DefaultLogDir}
	p := NewLogProbe(b.Nodes(), node.ConnectionOpts{})
	res, err := p.WaitForLogLine(ctx, host, simulator.DefaultLogFile,
		ScanOpts{Pattern: "Job interrupted", Correlated: simulator.DefaultProcess, JobID: info.ID, Literal: true},
		time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.MatchedFile, ".zip"))
	assert.Len(t, res.Lines, 1)

	_, err = p.WaitForLogLine(ctx, host, simulator.DefaultLogFile,
		ScanOpts{Pattern: "Job killed by user", JobID: info.ID, Literal: true},
		20*time.Millisecond, 5*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryTimeout, errors.Category(err))

	_, err = p.WaitForLogLine(ctx, node.Node{Name: "ma-1"}, simulator.DefaultLogFile, ScanOpts{Pattern: "x"}, time.Second, time.Millisecond)
	assert.Equal(t, errors.CategorySetup, errors.Category(err))
}
