package scenarios

import (
	"context"
	"fmt"

	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/pkg/injector"
	"github.com/portworx/jobharness/pkg/probe"
	"github.com/portworx/jobharness/pkg/scenario"
)

// InterruptResumeFullBackup restarts the backend service under a running
// full backup, resumes the job from pending and checks it completes and is
// logged
var InterruptResumeFullBackup = mustRegister(scenario.Scenario{
	Name:        "InterruptResumeFullBackup",
	Description: "Full backup survives a service restart on its host and completes after resume",
	TestRailID:  "C58011",
	Tags:        map[string]string{"type": "backup", "fault": "service"},
	Setup:       cleanClient,
	Run: func(c *scenario.Context) error {
		info, err := startBackup(c, job.LevelFull)
		if err != nil {
			return err
		}
		if err := interruptAndResume(c, info, injector.Event{
			Action:    injector.ActionRestartService,
			Host:      c.JobHost(info).Name,
			Target:    c.Inputs().ServiceName,
			WaitAfter: c.Inputs().InterruptWait,
		}); err != nil {
			return err
		}
		done, err := waitForCompletion(c, info.ID)
		if err != nil {
			return err
		}
		if err := verifyLogged(c, done, fmt.Sprintf("Job-ID: %s", done.ID)); err != nil {
			return err
		}
		return verifyLogged(c, done, "Job interrupted")
	},
})

// interruptAndResume injects e, checks the job went pending and resumes it
func interruptAndResume(c *scenario.Context, info *job.Info, e injector.Event) error {
	var pending *job.Info
	err := c.Step(fmt.Sprintf("Interrupt job %s: %s", info.ID, e), func() error {
		o, got, err := c.Injector.InjectAndWait(c.Ctx(), c.Manager, info.ID, e, job.StatusPending)
		if !o.Applied {
			// the job state decides, the host may be interrupted anyway
			c.Dashboard.Warnf("%s reported a failure: %v", e, o.Err)
		}
		if err != nil {
			return err
		}
		pending = got
		return c.Verify(got.Status, job.StatusPending, fmt.Sprintf("status of job %s after %s", info.ID, e.Action))
	})
	if err != nil {
		return err
	}
	c.Dashboard.Infof("Job %s pending: %s", pending.ID, pending.DelayReason)
	return c.Step(fmt.Sprintf("Resume job %s", info.ID), func() error {
		_, err := c.Manager.ModifyJob(c.Ctx(), info.ID, job.ActionResume, true, true)
		return err
	})
}

// KillProcessDuringPhase kills the backend process once the backup reaches
// the configured phase
var KillProcessDuringPhase = mustRegister(scenario.Scenario{
	Name:        "KillProcessDuringPhase",
	Description: "Backup killed at the process level in a given phase resumes in that phase and completes",
	TestRailID:  "C58014",
	Tags:        map[string]string{"type": "backup", "fault": "process"},
	Setup:       cleanClient,
	Run: func(c *scenario.Context) error {
		info, err := startBackup(c, job.LevelFull)
		if err != nil {
			return err
		}
		phase := c.Inputs().KillPhase
		var inPhase *job.Info
		err = c.Step(fmt.Sprintf("Wait for job %s to reach phase %s", info.ID, phase), func() error {
			inPhase, err = c.Manager.WaitForPhase(c.Ctx(), info.ID, phase)
			return err
		})
		if err != nil {
			return err
		}
		if inPhase.Status.IsTerminal() {
			return fmt.Errorf("job %s finished before phase %s could be interrupted", info.ID, phase)
		}
		if err := interruptAndResume(c, info, injector.Event{
			Action:    injector.ActionKillProcess,
			Host:      c.JobHost(info).Name,
			Target:    c.Inputs().ProcessName,
			WaitAfter: c.Inputs().InterruptWait,
		}); err != nil {
			return err
		}
		done, err := waitForCompletion(c, info.ID)
		if err != nil {
			return err
		}
		return c.Step("Check the process kill was logged", func() error {
			res, err := c.Logs.ScanLog(c.Ctx(), c.JobHost(done), c.Inputs().LogFile, probe.ScanOpts{
				Pattern:    "Job interrupted",
				Correlated: c.Inputs().ProcessName,
				JobID:      done.ID,
				Literal:    true,
			})
			if err != nil {
				return err
			}
			return c.Verify(res.Matched, true, fmt.Sprintf("interruption by %s logged", c.Inputs().ProcessName))
		})
	},
})

// ServiceOutageDuringBackup stops the backend service under a backup,
// checks the job cannot resume while it is down and completes once it is
// started again
var ServiceOutageDuringBackup = mustRegister(scenario.Scenario{
	Name:        "ServiceOutageDuringBackup",
	Description: "Backup stays pending while the service is stopped and completes after it is started",
	Tags:        map[string]string{"type": "backup", "fault": "service"},
	Setup:       cleanClient,
	Run: func(c *scenario.Context) error {
		info, err := startBackup(c, job.LevelFull)
		if err != nil {
			return err
		}
		host := c.JobHost(info).Name
		service := c.Inputs().ServiceName
		c.Defer(func(ctx context.Context) error {
			o := c.Injector.Inject(ctx, injector.Event{Action: injector.ActionStartService, Host: host, Target: service})
			return o.Err
		})
		err = c.Step(fmt.Sprintf("Stop %s on %s", service, host), func() error {
			_, got, err := c.Injector.InjectAndWait(c.Ctx(), c.Manager, info.ID,
				injector.Event{Action: injector.ActionStopService, Host: host, Target: service}, job.StatusPending)
			if err != nil {
				return err
			}
			return c.Verify(got.Status, job.StatusPending, fmt.Sprintf("status of job %s with %s stopped", info.ID, service))
		})
		if err != nil {
			return err
		}
		err = c.Step("Resume while the service is down", func() error {
			_, err := c.Manager.ModifyJob(c.Ctx(), info.ID, job.ActionResume, false, false)
			return c.Verify(err != nil, true, "resume refused while the service is down")
		})
		if err != nil {
			return err
		}
		err = c.Step(fmt.Sprintf("Start %s on %s and resume", service, host), func() error {
			if o := c.Injector.Inject(c.Ctx(), injector.Event{Action: injector.ActionStartService, Host: host, Target: service}); o.Err != nil {
				c.Dashboard.Warnf("Starting %s on %s reported a failure: %v", service, host, o.Err)
			}
			_, err := c.Manager.ModifyJob(c.Ctx(), info.ID, job.ActionResume, true, true)
			return err
		})
		if err != nil {
			return err
		}
		_, err = waitForCompletion(c, info.ID)
		return err
	},
})
