// Package injector applies interruption events to the hosts a job runs on.
// Applying an event never fails the caller: the outcome records what
// happened and only the wait that follows an event can return an error.
package injector

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/drivers/node"
	"github.com/portworx/jobharness/pkg/jobmanager"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/portworx/jobharness/pkg/metrics"
)

// Action is the kind of interruption
type Action string

const (
	// ActionKillProcess kills every process whose command line contains Target
	ActionKillProcess Action = "kill-process"
	// ActionKillPID kills the process PID
	ActionKillPID Action = "kill-pid"
	// ActionRestartService restarts the Target service
	ActionRestartService Action = "restart-service"
	// ActionStopService stops the Target service
	ActionStopService Action = "stop-service"
	// ActionStartService starts the Target service
	ActionStartService Action = "start-service"
	// ActionDeletePath removes the Target path
	ActionDeletePath Action = "delete-path"
	// ActionRebootHost reboots the host
	ActionRebootHost Action = "reboot-host"
)

// Event is one interruption against a named host
type Event struct {
	Action Action `validate:"required,oneof=kill-process kill-pid restart-service stop-service start-service delete-path reboot-host"`
	Host   string `validate:"required"`
	// Target is the process, service or path the action applies to
	Target string
	PID    int    `validate:"required_if=Action kill-pid,gte=0"`
	// WaitBefore delays the event, WaitAfter gives the backend time to notice it
	WaitBefore time.Duration `validate:"gte=0"`
	WaitAfter  time.Duration `validate:"gte=0"`
	// Force applies to reboot-host
	Force bool
}

func (e Event) String() string {
	switch e.Action {
	case ActionKillPID:
		return fmt.Sprintf("%s %d on %s", e.Action, e.PID, e.Host)
	case ActionRebootHost:
		return fmt.Sprintf("%s %s", e.Action, e.Host)
	}
	return fmt.Sprintf("%s %s on %s", e.Action, e.Target, e.Host)
}

var validate = validator.New()

// Validate checks that e names everything its action needs
func (e Event) Validate() error {
	if err := validate.Struct(e); err != nil {
		return err
	}
	if e.Target == "" && e.Action != ActionKillPID && e.Action != ActionRebootHost {
		return fmt.Errorf("%s on %s needs a target", e.Action, e.Host)
	}
	return nil
}

// Outcome is what applying an event did
type Outcome struct {
	Event   Event
	Applied bool
	Err     error
	At      time.Time
	// Took is how long the action itself ran
	Took time.Duration
}

// Recorder stores outcomes outside the process
type Recorder interface {
	RecordInterruption(ctx context.Context, o Outcome) error
}

// Injector applies events through a node driver
type Injector struct {
	nodes    node.Driver
	conn     node.ConnectionOpts
	recorder Recorder
	now      func() time.Time
}

// New returns an injector using d with the connection options conn
func New(d node.Driver, conn node.ConnectionOpts) *Injector {
	return &Injector{nodes: d, conn: conn, now: time.Now}
}

// SetRecorder makes i store every outcome with r
func (i *Injector) SetRecorder(r Recorder) {
	i.recorder = r
}

// resolve returns the registered node called name. Unknown names are used
// as their own address.
func resolve(name string) node.Node {
	if n, err := node.GetNodeByName(name); err == nil {
		return n
	}
	return node.Node{Name: name, Addresses: []string{name}}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (i *Injector) apply(e Event, n node.Node) error {
	switch e.Action {
	case ActionKillProcess:
		return i.nodes.KillProcess(n, e.Target, node.KillProcessOpts{ConnectionOpts: i.conn})
	case ActionKillPID:
		return i.nodes.KillProcess(n, e.Target, node.KillProcessOpts{PID: e.PID, ConnectionOpts: i.conn})
	case ActionRestartService:
		return i.nodes.Systemctl(n, e.Target, node.SystemctlOpts{Action: "restart", ConnectionOpts: i.conn})
	case ActionStopService:
		return i.nodes.Systemctl(n, e.Target, node.SystemctlOpts{Action: "stop", ConnectionOpts: i.conn})
	case ActionStartService:
		return i.nodes.Systemctl(n, e.Target, node.SystemctlOpts{Action: "start", ConnectionOpts: i.conn})
	case ActionDeletePath:
		return i.nodes.DeletePath(n, e.Target, i.conn)
	case ActionRebootHost:
		return i.nodes.RebootNode(n, node.RebootNodeOpts{Force: e.Force, ConnectionOpts: i.conn})
	}
	return fmt.Errorf("unknown interruption action %q", e.Action)
}

// Inject applies e and reports the outcome. Failures are logged and
// recorded in the outcome, never returned.
func (i *Injector) Inject(ctx context.Context, e Event) Outcome {
	o := Outcome{Event: e}
	if err := e.Validate(); err != nil {
		o.Err = err
		o.At = i.now()
		log.Errorf("Invalid interruption %s: %v", e, err)
		i.record(ctx, o)
		return o
	}
	if err := sleep(ctx, e.WaitBefore); err != nil {
		o.Err = err
		o.At = i.now()
		i.record(ctx, o)
		return o
	}

	log.InfoD("Interrupting: %s", e)
	o.At = i.now()
	o.Err = i.apply(e, resolve(e.Host))
	o.Took = i.now().Sub(o.At)
	o.Applied = o.Err == nil
	if o.Err != nil {
		log.Errorf("Interruption %s failed: %v", e, o.Err)
	} else {
		log.Infof("Interruption %s applied", e)
	}
	i.record(ctx, o)

	if o.Applied {
		if err := sleep(ctx, e.WaitAfter); err != nil {
			log.Warnf("Wait after %s cut short: %v", e, err)
		}
	}
	return o
}

func (i *Injector) record(ctx context.Context, o Outcome) {
	metrics.ObserveInterruption(string(o.Event.Action), o.Event.Host, o.Err)
	if i.recorder == nil {
		return
	}
	if err := i.recorder.RecordInterruption(ctx, o); err != nil {
		log.Warnf("Failed to record interruption %s: %v", o.Event, err)
	}
}

// InjectAndWait applies e and waits for job jobID to reach one of expected,
// pending or suspended when expected is empty. Only the wait can fail.
func (i *Injector) InjectAndWait(ctx context.Context, m *jobmanager.Manager, jobID string, e Event, expected ...job.Status) (Outcome, *job.Info, error) {
	if len(expected) == 0 {
		expected = []job.Status{job.StatusPending, job.StatusSuspended}
	}
	o := i.Inject(ctx, e)
	info, err := m.WaitForState(ctx, jobID, expected, true)
	return o, info, err
}
