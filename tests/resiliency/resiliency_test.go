package resiliency

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/pkg/injector"
	"github.com/portworx/jobharness/pkg/probe"
	"github.com/portworx/jobharness/pkg/scenario"
	_ "github.com/portworx/jobharness/scenarios"
)

var _ = Describe("{Catalog}", func() {
	for _, s := range scenario.List() {
		s := s
		It(fmt.Sprintf("runs %s", s.Name), Label(s.Tags["type"]), func() {
			if s.Tags["type"] == "auxcopy" && cfg.Database.Driver == "" {
				Skip("no metadata store is configured")
			}
			res := runner.Run(context.Background(), s)
			if res.Status == scenario.SKIPPED {
				Skip(res.ResultString)
			}
			Expect(res.Passed()).To(BeTrue(), "%s: %s", s.Name, res.ResultString)
			Expect(res.Jobs).NotTo(BeEmpty())
		})
	}
})

var _ = Describe("{ServiceRestartMovesJobToPending}", func() {
	var info *job.Info

	JustBeforeEach(func() {
		var err error
		info, err = env.Jobs.Submit(context.Background(), job.SubmitRequest{
			Type:        job.TypeBackup,
			Client:      cfg.Scenario.Client,
			Subclient:   cfg.Scenario.Subclient,
			BackupLevel: job.LevelFull,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if info != nil {
			_, err := env.Manager.KillActiveJobs(context.Background(), cfg.Scenario.Client)
			Expect(err).NotTo(HaveOccurred())
		}
	})

	It("has to interrupt the job and resume it after the restart", func() {
		ctx := context.Background()
		var host string

		By("waiting for the backup to run", func() {
			running, err := env.Manager.WaitForState(ctx, info.ID, []job.Status{job.StatusRunning}, true)
			Expect(err).NotTo(HaveOccurred())
			host = running.Host
		})

		By(fmt.Sprintf("restarting %s on the job host", cfg.Scenario.ServiceName), func() {
			out, pending, err := env.Injector.InjectAndWait(ctx, env.Manager, info.ID, injector.Event{
				Action: injector.ActionRestartService,
				Host:   host,
				Target: cfg.Scenario.ServiceName,
			}, job.StatusPending)
			Expect(out.Err).NotTo(HaveOccurred())
			Expect(err).NotTo(HaveOccurred())
			Expect(pending.DelayReason).NotTo(BeEmpty())
		})

		By("finding the interruption in the job log", func() {
			res, err := env.Logs.WaitForLogLine(ctx, env.Host(host), cfg.Scenario.LogFile, probe.ScanOpts{
				Pattern: "Job interrupted",
				JobID:   info.ID,
				Literal: true,
			}, cfg.Poll.Timeout, cfg.Poll.Interval)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Matched).To(BeTrue())
		})

		By("resuming the job to completion", func() {
			_, err := env.Manager.ModifyJob(ctx, info.ID, job.ActionResume, true, true)
			Expect(err).NotTo(HaveOccurred())
			done, err := env.Manager.WaitForCompletion(ctx, info.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(done.PercentComplete).To(Equal(100))
		})
	})
})
