package local

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/portworx/jobharness/drivers/node"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var host = node.Node{Name: "ma1", Addresses: []string{"127.0.0.1"}}

var fastOpts = node.ConnectionOpts{Timeout: 10 * time.Millisecond, TimeBeforeRetry: time.Millisecond}

func newFs(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	for _, f := range []string{
		"/var/log/backend/perf.log",
		"/var/log/backend/perf.log.1",
		"/var/log/backend/perf.log.2.bz2",
		"/var/log/backend/other.log",
		"/var/log/backend/archive/perf.log.9",
	} {
		require.NoError(t, afero.WriteFile(fs, f, []byte(f), 0644))
	}
	return fs
}

func TestFindFiles(t *testing.T) {
	l := New(newFs(t), nil)

	files, err := l.FindFiles("/var/log/backend", host, node.FindOpts{Name: "perf.log*", MaxDepth: 1, Type: node.File})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/var/log/backend/perf.log",
		"/var/log/backend/perf.log.1",
		"/var/log/backend/perf.log.2.bz2",
	}, files)

	files, err = l.FindFiles("/var/log/backend", host, node.FindOpts{Name: "perf.log*"})
	require.NoError(t, err)
	assert.Len(t, files, 4)

	_, err = l.FindFiles("/missing", host, node.FindOpts{})
	var findErr *node.ErrFailedToFindFileOnNode
	require.ErrorAs(t, err, &findErr)
}

func TestFileOps(t *testing.T) {
	l := New(newFs(t), nil)

	content, err := l.ReadFile("/var/log/backend/other.log", host, node.ConnectionOpts{})
	require.NoError(t, err)
	assert.Equal(t, "/var/log/backend/other.log", string(content))

	exists, err := l.CheckIfPathExists("/var/log/backend/archive", host, node.ConnectionOpts{})
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, l.DeletePath(host, "/var/log/backend/archive", node.ConnectionOpts{}))
	exists, err = l.CheckIfPathExists("/var/log/backend/archive", host, node.ConnectionOpts{})
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = l.ReadFile("/nope", host, node.ConnectionOpts{})
	var readErr *node.ErrFailedToReadFile
	require.ErrorAs(t, err, &readErr)
}

func TestKillProcessCommands(t *testing.T) {
	var commands []string
	l := New(afero.NewMemMapFs(), func(ctx context.Context, command string) (string, error) {
		commands = append(commands, command)
		return "", nil
	})

	require.NoError(t, l.KillProcess(host, "backupd", node.KillProcessOpts{ConnectionOpts: fastOpts}))
	require.NoError(t, l.KillProcess(host, "", node.KillProcessOpts{PID: 77, ConnectionOpts: fastOpts}))
	require.NoError(t, l.Systemctl(host, "backupsvc", node.SystemctlOpts{Action: "restart", ConnectionOpts: fastOpts}))

	assert.Equal(t, []string{"pkill -9 -f '[b]ackupd'", "kill -9 77", "systemctl restart backupsvc"}, commands)
}

func TestRunCommandRetriesThenFails(t *testing.T) {
	calls := 0
	l := New(afero.NewMemMapFs(), func(ctx context.Context, command string) (string, error) {
		calls++
		return "boom", fmt.Errorf("exit status 1")
	})

	_, err := l.RunCommand(host, "false", fastOpts)
	require.Error(t, err)
	assert.Equal(t, 11, calls)

	err = l.KillProcess(host, "ghost", node.KillProcessOpts{ConnectionOpts: fastOpts})
	var killErr *node.ErrFailedToKillProcess
	require.ErrorAs(t, err, &killErr)
	assert.Equal(t, "ghost", killErr.Process)
}

func TestIgnoreError(t *testing.T) {
	l := New(afero.NewMemMapFs(), func(ctx context.Context, command string) (string, error) {
		return "partial", fmt.Errorf("exit status 2")
	})
	opts := fastOpts
	opts.IgnoreError = true
	out, err := l.RunCommand(host, "grep x", opts)
	require.NoError(t, err)
	assert.Equal(t, "partial", out)
}

func TestKillProcessOnHost(t *testing.T) {
	for _, bin := range []string{"sh", "pkill", "sleep"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s is not available: %v", bin, err)
		}
	}
	victim := exec.Command("sleep", "31337")
	require.NoError(t, victim.Start())
	defer victim.Process.Kill()

	l := New(nil, nil)
	opts := node.KillProcessOpts{ConnectionOpts: node.ConnectionOpts{Timeout: 2 * time.Second, TimeBeforeRetry: 100 * time.Millisecond}}
	require.NoError(t, l.KillProcess(host, "sleep 31337", opts))

	err := victim.Wait()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, exitErr.String(), "killed")

	err = l.KillProcess(host, "sleep 31337", opts)
	var killErr *node.ErrFailedToKillProcess
	require.ErrorAs(t, err, &killErr, "nothing is left to kill")
}
