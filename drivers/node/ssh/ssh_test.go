package ssh

import (
	"testing"

	"github.com/portworx/jobharness/drivers/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKillCommand(t *testing.T) {
	assert.Equal(t, "sudo pkill -9 -f '[b]ackupd'", killCommand("backupd", node.KillProcessOpts{}))
	assert.Equal(t, `sudo pkill -9 -f '[b]ackupd --config /etc/b'\''s\.conf'`, killCommand("backupd --config /etc/b's.conf", node.KillProcessOpts{}))
	assert.Equal(t, "sudo kill -9 4242", killCommand("backupd", node.KillProcessOpts{PID: 4242}))
}

func TestFindCommand(t *testing.T) {
	cmd := findCommand("/var/log/backend", node.FindOpts{Name: "perf*.log", MaxDepth: 1, Type: node.File})
	assert.Equal(t, "sudo find '/var/log/backend' -name 'perf*.log' -maxdepth 1 -type f 2>/dev/null", cmd)
}

func TestFindResults(t *testing.T) {
	out := "/var/log/backend/perf.log\nfind: '/var/log/backend/old': No such file or directory\n/var/log/backend/perf.log.1\n"
	assert.Equal(t, []string{"/var/log/backend/perf.log", "/var/log/backend/perf.log.1"}, findResults("/var/log/backend", out))
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"/a/perf.log", "/a/perf.log.1"}, splitLines("/a/perf.log\r\n/a/perf.log.1\n\n"))
	assert.Nil(t, splitLines(""))
}

func TestRegistered(t *testing.T) {
	d, err := node.Get(DriverName)
	require.NoError(t, err)
	assert.Equal(t, DriverName, d.String())
}

func TestInitWithoutAuth(t *testing.T) {
	s := &ssh{Driver: node.NotSupportedDriver, username: DefaultUsername, port: DefaultSSHPort}
	require.Error(t, s.Init(node.InitOptions{}))
}

func TestUninitializedDial(t *testing.T) {
	s := &ssh{}
	_, err := s.doCmd("127.0.0.1", "hostname", false)
	var runErr *node.ErrFailedToRunCommand
	require.ErrorAs(t, err, &runErr)
}
