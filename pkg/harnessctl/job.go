package harnessctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/pkg/scenario"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func toTimeString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC822)
}

func printJobs(out io.Writer, format string, jobs ...job.Info) error {
	switch format {
	case outputJSON:
		b, err := json.MarshalIndent(jobs, "", "  ")
		if err != nil {
			return err
		}
		printMsg(string(b), out)
	case outputYAML:
		b, err := yaml.Marshal(jobs)
		if err != nil {
			return err
		}
		printMsg(string(b), out)
	case outputTable, "":
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"ID", "Type", "Client", "Status", "Phase", "Progress", "Host", "Started", "Delay Reason"})
		table.SetAutoWrapText(false)
		for _, j := range jobs {
			table.Append([]string{
				j.ID, string(j.Type), j.Client, string(j.Status), j.Phase,
				fmt.Sprintf("%d%%", j.PercentComplete), j.Host, toTimeString(j.StartTime), j.DelayReason,
			})
		}
		table.Render()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
	return nil
}

// withEnv runs fn against the drivers of the configuration
func (o *options) withEnv(fn func(ctx context.Context, env *scenario.Env) error) error {
	ctx, cancel := signalContext()
	defer cancel()
	env, err := scenario.NewEnv(ctx, o.cfg)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env)
}

func newJobCommand(o *options) *cobra.Command {
	var output string
	jobCommand := &cobra.Command{
		Use:   "job",
		Short: "Inspect, wait on and control backend jobs",
	}
	jobCommand.PersistentFlags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")

	inspectCommand := &cobra.Command{
		Use:   "inspect <job-id>...",
		Short: "Show the current state of jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return o.withEnv(func(ctx context.Context, env *scenario.Env) error {
				var jobs []job.Info
				for _, id := range args {
					info, err := env.Manager.Inspect(ctx, id)
					if err != nil {
						return err
					}
					jobs = append(jobs, *info)
				}
				return printJobs(o.out, output, jobs...)
			})
		},
	}

	var states []string
	var phase string
	var progress int
	waitCommand := &cobra.Command{
		Use:   "wait <job-id>",
		Short: "Wait for a job to reach a state, a phase or a progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return o.withEnv(func(ctx context.Context, env *scenario.Env) error {
				var info *job.Info
				var err error
				switch {
				case phase != "":
					info, err = env.Manager.WaitForPhase(ctx, args[0], phase)
				case progress > 0:
					info, err = env.Manager.WaitForProgress(ctx, args[0], progress)
				default:
					expected := make([]job.Status, 0, len(states))
					for _, s := range states {
						expected = append(expected, job.ParseStatus(s))
					}
					info, err = env.Manager.WaitForState(ctx, args[0], expected, true)
				}
				if err != nil {
					return err
				}
				return printJobs(o.out, output, *info)
			})
		},
	}
	waitCommand.Flags().StringSliceVar(&states, "state", []string{string(job.StatusCompleted)}, "States to wait for")
	waitCommand.Flags().StringVar(&phase, "phase", "", "Wait for this phase instead of a state")
	waitCommand.Flags().IntVar(&progress, "progress", 0, "Wait for at least this percent instead of a state")

	jobCommand.AddCommand(inspectCommand, waitCommand)
	for _, action := range []job.Action{job.ActionSuspend, job.ActionResume, job.ActionKill} {
		jobCommand.AddCommand(newJobActionCommand(o, action, &output))
	}
	return jobCommand
}

func newJobActionCommand(o *options, action job.Action, output *string) *cobra.Command {
	var wait, all bool
	var client string
	actionCommand := &cobra.Command{
		Use:   fmt.Sprintf("%s [job-id]", action),
		Short: fmt.Sprintf("%s a job, or every active job of a client with --all", action),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("give either a job id or --all")
			}
			return o.withEnv(func(ctx context.Context, env *scenario.Env) error {
				if all {
					return env.Manager.ModifyAllJobs(ctx, action, job.Filter{Client: client})
				}
				info, err := env.Manager.ModifyJob(ctx, args[0], action, wait, true)
				if err != nil {
					return err
				}
				if info == nil {
					printMsg(fmt.Sprintf("Issued %s on job %s", action, args[0]), o.out)
					return nil
				}
				return printJobs(o.out, *output, *info)
			})
		},
	}
	actionCommand.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the job to reach the state the action leads to")
	actionCommand.Flags().BoolVar(&all, "all", false, "Apply to every active job")
	actionCommand.Flags().StringVar(&client, "client", "", "With --all, only the jobs of this client")
	return actionCommand
}
