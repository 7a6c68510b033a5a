package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/portworx/jobharness/pkg/injector"
	"github.com/portworx/jobharness/pkg/log"
)

const (
	ProcessKillEventName    = "Process Kill"
	PIDKillEventName        = "PID Kill"
	ServiceRestartEventName = "Service Restart"
	ServiceStopEventName    = "Service Stop"
	ServiceStartEventName   = "Service Start"
	PathDeleteEventName     = "Path Delete"
	HostRebootEventName     = "Host Reboot"
)

// Measurement is the influx measurement interruptions are written to
const Measurement = "jobharness_interruption"

var eventNames = map[injector.Action]string{
	injector.ActionKillProcess:    ProcessKillEventName,
	injector.ActionKillPID:        PIDKillEventName,
	injector.ActionRestartService: ServiceRestartEventName,
	injector.ActionStopService:    ServiceStopEventName,
	injector.ActionStartService:   ServiceStartEventName,
	injector.ActionDeletePath:     PathDeleteEventName,
	injector.ActionRebootHost:     HostRebootEventName,
}

// EventStat is one interruption as exported to the stats backend
type EventStat struct {
	EventName string
	EventTime string
	Version   string
	DashStats map[string]string
}

// InterruptionStats builds the stat of an injector outcome. version is the
// backend version the event ran against.
func InterruptionStats(o injector.Outcome, version string) *EventStat {
	name, ok := eventNames[o.Event.Action]
	if !ok {
		name = string(o.Event.Action)
	}
	dash := map[string]string{
		"Host":    o.Event.Host,
		"Action":  string(o.Event.Action),
		"Applied": strconv.FormatBool(o.Applied),
		"TookMs":  strconv.FormatInt(o.Took.Milliseconds(), 10),
	}
	if o.Event.Target != "" {
		dash["Target"] = o.Event.Target
	}
	if o.Event.PID > 0 {
		dash["PID"] = strconv.Itoa(o.Event.PID)
	}
	if o.Err != nil {
		dash["Error"] = o.Err.Error()
	}
	return &EventStat{
		EventName: name,
		EventTime: o.At.UTC().Format(time.RFC3339),
		Version:   version,
		DashStats: dash,
	}
}

func flattenDashStats(eventStat *EventStat) map[string]string {
	flatMap := make(map[string]string)
	for k, v := range eventStat.DashStats {
		flatMap[k] = v
	}
	flatMap["EventName"] = eventStat.EventName
	flatMap["EventTime"] = eventStat.EventTime
	flatMap["Version"] = eventStat.Version

	return flatMap
}

// Export returns the flat map form of the stat, as logged and posted
func Export(eventStat *EventStat) (string, error) {
	data, err := json.Marshal(flattenDashStats(eventStat))
	if err != nil {
		return "", fmt.Errorf("error marshalling event stat: %v", err)
	}
	return string(data), nil
}

// PointWriter writes points synchronously. The influx blocking write API
// satisfies it.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxRecorder stores interruption outcomes as influx points
type InfluxRecorder struct {
	writer  PointWriter
	close   func()
	version string
}

// NewInfluxRecorder connects to the influx server at url and writes to
// bucket of org
func NewInfluxRecorder(url, token, org, bucket string) *InfluxRecorder {
	client := influxdb2.NewClient(url, token)
	return &InfluxRecorder{writer: client.WriteAPIBlocking(org, bucket), close: client.Close}
}

// NewRecorder writes with w
func NewRecorder(w PointWriter) *InfluxRecorder {
	return &InfluxRecorder{writer: w, close: func() {}}
}

// SetVersion tags the following events with the backend version
func (r *InfluxRecorder) SetVersion(version string) {
	r.version = version
}

// Point is the influx point of an event stat
func Point(eventStat *EventStat, at time.Time) *write.Point {
	flat := flattenDashStats(eventStat)
	tags := map[string]string{
		"event":   eventStat.EventName,
		"host":    flat["Host"],
		"version": eventStat.Version,
		"applied": flat["Applied"],
	}
	fields := map[string]interface{}{}
	for k, v := range flat {
		switch k {
		case "EventName", "Host", "Version", "Applied":
			continue
		case "TookMs", "PID":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				fields[k] = n
				continue
			}
		}
		fields[k] = v
	}
	return influxdb2.NewPoint(Measurement, tags, fields, at)
}

// RecordInterruption writes o to influx
func (r *InfluxRecorder) RecordInterruption(ctx context.Context, o injector.Outcome) error {
	stat := InterruptionStats(o, r.version)
	if out, err := Export(stat); err == nil {
		log.Infof("Stats are: %s", out)
	}
	if err := r.writer.WritePoint(ctx, Point(stat, o.At)); err != nil {
		return fmt.Errorf("failed to write %s stats: %v", stat.EventName, err)
	}
	return nil
}

// Close releases the influx client
func (r *InfluxRecorder) Close() {
	r.close()
}
