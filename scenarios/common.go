// Package scenarios is the built-in catalog of job lifecycle scenarios. Each
// scenario registers itself with the scenario package on import.
package scenarios

import (
	"fmt"

	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/portworx/jobharness/pkg/probe"
	"github.com/portworx/jobharness/pkg/scenario"
)

const (
	keyJobID = "job-id"
	keyHost  = "job-host"
)

func mustRegister(s scenario.Scenario) scenario.Scenario {
	if err := scenario.Register(s); err != nil {
		log.Errorf("Failed to register scenario %s: %v", s.Name, err)
	}
	return s
}

// cleanClient kills whatever the client still runs so the scenario starts
// from an idle client
func cleanClient(c *scenario.Context) error {
	killed, err := c.Manager.KillActiveJobs(c.Ctx(), c.Inputs().Client)
	if err != nil {
		return err
	}
	if len(killed) > 0 {
		log.Infof("Killed jobs %v left over on client %s", killed, c.Inputs().Client)
	}
	return nil
}

func backupRequest(c *scenario.Context, subclient string, level job.BackupLevel) job.SubmitRequest {
	if level == "" {
		level = job.BackupLevel(c.Inputs().BackupLevel)
	}
	return job.SubmitRequest{
		Type:        job.TypeBackup,
		Client:      c.Inputs().Client,
		Subclient:   subclient,
		BackupLevel: level,
		Options:     job.Options{StoragePolicy: c.Inputs().StoragePolicy},
	}
}

// startBackup submits a backup of the configured subclient and waits until
// it runs
func startBackup(c *scenario.Context, level job.BackupLevel) (*job.Info, error) {
	var info *job.Info
	err := c.Step(fmt.Sprintf("Start a %s backup of %s/%s", level, c.Inputs().Client, c.Inputs().Subclient), func() error {
		var err error
		if info, err = c.Submit(backupRequest(c, c.Inputs().Subclient, level)); err != nil {
			return err
		}
		c.Set(keyJobID, info.ID)
		info, err = c.Manager.WaitForState(c.Ctx(), info.ID, []job.Status{job.StatusRunning}, true)
		if err != nil {
			return err
		}
		c.Set(keyHost, c.JobHost(info).Name)
		return nil
	})
	return info, err
}

// waitForCompletion waits for id to finish and checks it completed
func waitForCompletion(c *scenario.Context, id string) (*job.Info, error) {
	var info *job.Info
	err := c.Step(fmt.Sprintf("Wait for job %s to complete", id), func() error {
		var err error
		if info, err = c.Manager.WaitForCompletion(c.Ctx(), id); err != nil {
			return err
		}
		return c.Verify(info.Status, job.StatusCompleted, fmt.Sprintf("status of job %s", id))
	})
	return info, err
}

// verifyLogged checks that the backend logged pattern for job id
func verifyLogged(c *scenario.Context, info *job.Info, pattern string) error {
	return c.Step(fmt.Sprintf("Check the log of job %s for [%s]", info.ID, pattern), func() error {
		host := c.JobHost(info)
		res, err := c.Logs.ScanLog(c.Ctx(), host, c.Inputs().LogFile, probe.ScanOpts{
			Pattern: pattern,
			JobID:   info.ID,
			Literal: true,
		})
		if err != nil {
			return err
		}
		for _, l := range res.Lines {
			log.Debugf("Matched: %s", l)
		}
		return c.Verify(res.Matched, true, fmt.Sprintf("[%s] logged for job %s on %s", pattern, info.ID, host.Name))
	})
}
