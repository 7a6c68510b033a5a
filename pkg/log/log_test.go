package log

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingMirror struct {
	lines []string
}

func (r *recordingMirror) Infof(format string, args ...interface{}) {
	r.lines = append(r.lines, "info:"+fmt.Sprintf(format, args...))
}

func (r *recordingMirror) Warnf(format string, args ...interface{}) {
	r.lines = append(r.lines, "warn:"+fmt.Sprintf(format, args...))
}

func (r *recordingMirror) Errorf(format string, args ...interface{}) {
	r.lines = append(r.lines, "error:"+fmt.Sprintf(format, args...))
}

func captureOutput(t *testing.T) *bytes.Buffer {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	SetLoglevel("debug")
	t.Cleanup(func() { SetDefaultOutput(nil) })
	return buf
}

func TestTestNameTag(t *testing.T) {
	buf := captureOutput(t)

	SetTestName("InterruptResumeFullBackup")
	Infof("waiting for job %s", "12")
	SetTestName("")
	Infof("untagged")

	out := buf.String()
	require.Contains(t, out, "[INFO] [InterruptResumeFullBackup] [log.TestTestNameTag:#")
	require.Contains(t, out, "waiting for job 12")
	require.Contains(t, out, "[INFO] [log.TestTestNameTag:#")
}

func TestMirror(t *testing.T) {
	captureOutput(t)
	m := &recordingMirror{}
	SetMirror(m)
	defer SetMirror(nil)

	InfoD("job %d submitted", 7)
	Warnf("slow poll")
	Errorf("kill failed: %v", "no such process")
	Infof("not mirrored")

	require.Equal(t, []string{
		"info:job 7 submitted",
		"warn:slow poll",
		"error:kill failed: no such process",
	}, m.lines)
}

func TestLevelFilter(t *testing.T) {
	buf := captureOutput(t)
	SetLoglevel("error")
	Debugf("hidden")
	Errorf("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestHookColors(t *testing.T) {
	require.True(t, successMessage("Job completed successfully"))
	require.True(t, errorMessage("Failed to kill process"))
	require.False(t, errorMessage("job running"))
}
