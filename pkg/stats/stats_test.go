package stats

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/portworx/jobharness/pkg/injector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	points []*write.Point
	err    error
}

func (w *fakeWriter) WritePoint(ctx context.Context, point ...*write.Point) error {
	w.points = append(w.points, point...)
	return w.err
}

var at = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestInterruptionStats(t *testing.T) {
	o := injector.Outcome{
		Event:   injector.Event{Action: injector.ActionKillProcess, Host: "ma-1", Target: "backupd"},
		Applied: true,
		At:      at,
		Took:    1500 * time.Millisecond,
	}
	s := InterruptionStats(o, "11.32.0")
	assert.Equal(t, ProcessKillEventName, s.EventName)
	assert.Equal(t, "2024-03-01T10:00:00Z", s.EventTime)
	assert.Equal(t, "1500", s.DashStats["TookMs"])
	assert.Equal(t, "backupd", s.DashStats["Target"])
	assert.NotContains(t, s.DashStats, "Error")

	out, err := Export(s)
	require.NoError(t, err)
	assert.Contains(t, out, `"Version":"11.32.0"`)

	failed := InterruptionStats(injector.Outcome{
		Event: injector.Event{Action: injector.ActionKillPID, Host: "ma-1", PID: 42},
		Err:   fmt.Errorf("no such process"),
		At:    at,
	}, "")
	assert.Equal(t, PIDKillEventName, failed.EventName)
	assert.Equal(t, "42", failed.DashStats["PID"])
	assert.Equal(t, "false", failed.DashStats["Applied"])
	assert.Equal(t, "no such process", failed.DashStats["Error"])
}

func TestRecordInterruption(t *testing.T) {
	w := &fakeWriter{}
	r := NewRecorder(w)
	r.SetVersion("11.32.0")
	o := injector.Outcome{Event: injector.Event{Action: injector.ActionRebootHost, Host: "ma-2"}, Applied: true, At: at}
	require.NoError(t, r.RecordInterruption(context.TODO(), o))
	require.Len(t, w.points, 1)
	assert.Equal(t, Measurement, w.points[0].Name())
	assert.Equal(t, at, w.points[0].Time())

	w.err = fmt.Errorf("bucket not found")
	err := r.RecordInterruption(context.TODO(), o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), HostRebootEventName)
	r.Close()
}

func TestInfluxRecorderWritesLineProtocol(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		query = req.URL.RawQuery
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	r := NewInfluxRecorder(srv.URL, "token", "qa", "interruptions")
	defer r.Close()
	o := injector.Outcome{
		Event:   injector.Event{Action: injector.ActionKillProcess, Host: "ma-1", Target: "backupd"},
		Applied: true,
		At:      at,
	}
	require.NoError(t, r.RecordInterruption(context.TODO(), o))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.True(t, strings.HasPrefix(bodies[0], Measurement+","))
	assert.Contains(t, bodies[0], `event=Process\ Kill`)
	assert.Contains(t, bodies[0], `Target="backupd"`)
	assert.Contains(t, query, "bucket=interruptions")
	assert.Contains(t, query, "org=qa")
}
