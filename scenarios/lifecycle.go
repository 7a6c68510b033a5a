package scenarios

import (
	goerrors "errors"
	"fmt"
	"time"

	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/pkg/errors"
	"github.com/portworx/jobharness/pkg/jobmanager"
	"github.com/portworx/jobharness/pkg/scenario"
)

// SuspendResumeBackup suspends a running backup, checks it holds still and
// completes after resume
var SuspendResumeBackup = mustRegister(scenario.Scenario{
	Name:        "SuspendResumeBackup",
	Description: "Suspended backup keeps its phase and progress and completes after resume",
	TestRailID:  "C58012",
	Tags:        map[string]string{"type": "backup", "fault": "user"},
	Setup:       cleanClient,
	Run: func(c *scenario.Context) error {
		info, err := startBackup(c, job.LevelIncremental)
		if err != nil {
			return err
		}
		var suspended *job.Info
		err = c.Step(fmt.Sprintf("Suspend job %s", info.ID), func() error {
			suspended, err = c.Manager.ModifyJob(c.Ctx(), info.ID, job.ActionSuspend, true, true)
			return err
		})
		if err != nil {
			return err
		}
		err = c.Step("Check the job holds while suspended", func() error {
			again, err := c.Manager.ValidateJobState(c.Ctx(), info.ID, job.StatusSuspended)
			if err != nil {
				return err
			}
			c.VerifySafely(again.Phase, suspended.Phase, "phase while suspended")
			return c.Verify(again.PercentComplete, suspended.PercentComplete, "progress while suspended")
		})
		if err != nil {
			return err
		}
		err = c.Step(fmt.Sprintf("Resume job %s", info.ID), func() error {
			_, err := c.Manager.ModifyJob(c.Ctx(), info.ID, job.ActionResume, true, true)
			return err
		})
		if err != nil {
			return err
		}
		done, err := waitForCompletion(c, info.ID)
		if err != nil {
			return err
		}
		if err := verifyLogged(c, done, "Job suspended by user"); err != nil {
			return err
		}
		return verifyLogged(c, done, fmt.Sprintf("Job resumed in phase [%s]", suspended.Phase))
	},
})

// KillJobDuringPhase kills a backup through the job API once it reaches the
// configured phase
var KillJobDuringPhase = mustRegister(scenario.Scenario{
	Name:        "KillJobDuringPhase",
	Description: "Backup killed by the user in a given phase ends killed and leaves the client idle",
	TestRailID:  "C58013",
	Tags:        map[string]string{"type": "backup", "fault": "user"},
	Setup:       cleanClient,
	Run: func(c *scenario.Context) error {
		info, err := startBackup(c, job.LevelFull)
		if err != nil {
			return err
		}
		phase := c.Inputs().KillPhase
		err = c.Step(fmt.Sprintf("Wait for job %s to reach phase %s", info.ID, phase), func() error {
			_, err := c.Manager.WaitForPhase(c.Ctx(), info.ID, phase)
			return err
		})
		if err != nil {
			return err
		}
		var killed *job.Info
		err = c.Step(fmt.Sprintf("Kill job %s", info.ID), func() error {
			killed, err = c.Manager.ModifyJob(c.Ctx(), info.ID, job.ActionKill, true, true)
			return err
		})
		if err != nil {
			return err
		}
		if err := c.Verify(killed.Status, job.StatusKilled, fmt.Sprintf("status of job %s", info.ID)); err != nil {
			return err
		}
		err = c.Step("Check no job is left on the client", func() error {
			_, err := c.Manager.GetActiveJob(c.Ctx(), c.Inputs().Client, job.TypeBackup)
			var notFound *errors.ErrNotFound
			return c.Verify(goerrors.As(err, &notFound), true, fmt.Sprintf("no active backup on %s", c.Inputs().Client))
		})
		if err != nil {
			return err
		}
		return verifyLogged(c, killed, "Job killed by user")
	},
})

// ConcurrentFullBackups runs full backups of several subclients at once and
// waits for all of them
var ConcurrentFullBackups = mustRegister(scenario.Scenario{
	Name:        "ConcurrentFullBackups",
	Description: "Full backups of every configured subclient run side by side and all complete",
	TestRailID:  "C58015",
	Tags:        map[string]string{"type": "backup", "load": "concurrent"},
	Setup: func(c *scenario.Context) error {
		if len(c.Inputs().Subclients) < 2 {
			return &errors.ErrSetup{Resource: "subclients", Cause: "at least two subclients are needed"}
		}
		return cleanClient(c)
	},
	Run: func(c *scenario.Context) error {
		var ids []string
		err := c.Step(fmt.Sprintf("Start full backups of %v", c.Inputs().Subclients), func() error {
			for _, sc := range c.Inputs().Subclients {
				info, err := c.Submit(backupRequest(c, sc, job.LevelFull))
				if err != nil {
					return err
				}
				ids = append(ids, info.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		start := time.Now()
		var done []job.Info
		err = c.Step(fmt.Sprintf("Wait for jobs %v", ids), func() error {
			done, err = c.Manager.WaitForJobs(c.Ctx(), ids...)
			return err
		})
		if err != nil {
			return err
		}
		c.Dashboard.Infof("%d backups completed in %s", len(done), time.Since(start).Round(time.Second))
		for _, info := range done {
			c.VerifySafely(info.Status, job.StatusCompleted, fmt.Sprintf("status of job %s of subclient %s", info.ID, info.Subclient))
			c.VerifySafely(info.PercentComplete, 100, fmt.Sprintf("progress of job %s", info.ID))
		}
		return nil
	},
})

// AuxCopyCopyParity backs up, copies the backup to the secondary copy and
// checks both copies hold the same number of items
var AuxCopyCopyParity = mustRegister(scenario.Scenario{
	Name:        "AuxCopyCopyParity",
	Description: "Aux copy leaves the secondary copy with as many items as the primary copy",
	TestRailID:  "C58016",
	Tags:        map[string]string{"type": "auxcopy"},
	Setup: func(c *scenario.Context) error {
		if c.SQL == nil {
			return &errors.ErrSetup{Resource: "metadata store", Cause: "no database is configured"}
		}
		if c.Inputs().PrimaryCountQuery == "" || c.Inputs().SecondaryCountQuery == "" {
			return &errors.ErrSetup{Resource: "copy count queries", Cause: "primary and secondary count queries are required"}
		}
		return cleanClient(c)
	},
	Run: func(c *scenario.Context) error {
		info, err := startBackup(c, job.LevelFull)
		if err != nil {
			return err
		}
		if _, err := waitForCompletion(c, info.ID); err != nil {
			return err
		}
		var aux *job.Info
		err = c.Step(fmt.Sprintf("Run an aux copy of storage policy %s", c.Inputs().StoragePolicy), func() error {
			started, err := c.Submit(job.SubmitRequest{
				Type:    job.TypeAuxCopy,
				Client:  c.Inputs().Client,
				Options: job.Options{StoragePolicy: c.Inputs().StoragePolicy, CopyName: c.Inputs().CopyName},
			})
			if err != nil {
				return err
			}
			aux, err = c.Manager.WaitForCompletion(c.Ctx(), started.ID)
			return err
		})
		if err != nil {
			return err
		}
		ok, err := jobmanager.ValidateJobErrors(aux, nil)
		if err != nil {
			return err
		}
		if err := c.Verify(ok, true, fmt.Sprintf("aux copy job %s reported no errors", aux.ID)); err != nil {
			return err
		}
		return c.Step("Compare primary and secondary copy counts", func() error {
			res, err := c.SQL.CompareScalars(c.Ctx(), c.Inputs().SecondaryCountQuery, c.Inputs().PrimaryCountQuery)
			if err != nil {
				return err
			}
			return c.Verify(res.Actual, res.Expected, "secondary copy items match the primary copy")
		})
	},
})
