package harnessctl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/pkg/injector"
	"github.com/portworx/jobharness/pkg/probe"
	"github.com/portworx/jobharness/pkg/scenario"
	"github.com/spf13/cobra"
)

func newInjectCommand(o *options) *cobra.Command {
	var e injector.Event
	var action, jobID string
	var expect []string
	injectCommand := &cobra.Command{
		Use:   "inject",
		Short: "Interrupt a host, optionally waiting for a job to react",
		Example: "  jobharness inject --action restart-service --host media-agent-1 --target backupsvc --job 1001\n" +
			"  jobharness inject --action kill-pid --host media-agent-1 --pid 4312",
		RunE: func(c *cobra.Command, args []string) error {
			e.Action = injector.Action(action)
			return o.withEnv(func(ctx context.Context, env *scenario.Env) error {
				if jobID == "" {
					out := env.Injector.Inject(ctx, e)
					printMsg(fmt.Sprintf("%s applied=%t took=%s", e, out.Applied, out.Took.Round(time.Millisecond)), o.out)
					return out.Err
				}
				expected := make([]job.Status, 0, len(expect))
				for _, s := range expect {
					expected = append(expected, job.ParseStatus(s))
				}
				out, info, err := env.Injector.InjectAndWait(ctx, env.Manager, jobID, e, expected...)
				printMsg(fmt.Sprintf("%s applied=%t took=%s", e, out.Applied, out.Took.Round(time.Millisecond)), o.out)
				if out.Err != nil {
					printMsg(fmt.Sprintf("Interruption failed: %v", out.Err), o.errOut)
				}
				if err != nil {
					return err
				}
				return printJobs(o.out, outputTable, *info)
			})
		},
	}
	injectCommand.Flags().StringVar(&action, "action", "", "One of kill-process, kill-pid, restart-service, stop-service, start-service, delete-path, reboot-host")
	injectCommand.Flags().StringVar(&e.Host, "host", "", "Host to interrupt")
	injectCommand.Flags().StringVar(&e.Target, "target", "", "Process, service or path the action applies to")
	injectCommand.Flags().IntVar(&e.PID, "pid", 0, "Process id for kill-pid")
	injectCommand.Flags().BoolVar(&e.Force, "force", false, "Force the reboot")
	injectCommand.Flags().DurationVar(&e.WaitBefore, "wait-before", 0, "Delay before the interruption")
	injectCommand.Flags().DurationVar(&e.WaitAfter, "wait-after", 0, "Delay after the interruption")
	injectCommand.Flags().StringVar(&jobID, "job", "", "Wait for this job to react to the interruption")
	injectCommand.Flags().StringSliceVar(&expect, "expect", nil, "States the job should reach. Default is Pending or Suspended.")
	return injectCommand
}

func newProbeCommand(o *options) *cobra.Command {
	probeCommand := &cobra.Command{
		Use:   "probe",
		Short: "Check backend logs and the metadata store",
	}

	var opts probe.ScanOpts
	var logFile string
	var wait time.Duration
	logCommand := &cobra.Command{
		Use:   "log <host>",
		Short: "Search the job logs of a host, rotated and compressed ones included",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return o.withEnv(func(ctx context.Context, env *scenario.Env) error {
				if logFile == "" {
					logFile = o.cfg.Scenario.LogFile
				}
				host := env.Host(args[0])
				var res *probe.LogResult
				var err error
				if wait > 0 {
					res, err = env.Logs.WaitForLogLine(ctx, host, logFile, opts, wait, o.cfg.Poll.Interval)
				} else {
					res, err = env.Logs.ScanLog(ctx, host, logFile, opts)
				}
				if err != nil {
					return err
				}
				for _, l := range res.Lines {
					printMsg(l, o.out)
				}
				if !res.Matched {
					return fmt.Errorf("no line matches %q on %s", opts.Pattern, args[0])
				}
				printMsg(fmt.Sprintf("%d match(es) in %s", len(res.Lines), res.MatchedFile), o.errOut)
				return nil
			})
		},
	}
	logCommand.Flags().StringVarP(&opts.Pattern, "pattern", "p", "", "Regular expression, or text with --literal, to look for")
	logCommand.Flags().StringVar(&opts.Correlated, "and", "", "Text that must also be on the matching line")
	logCommand.Flags().StringVar(&opts.JobID, "job", "", "Only lines of this job")
	logCommand.Flags().BoolVar(&opts.Literal, "literal", false, "Match the pattern as plain text")
	logCommand.Flags().BoolVar(&opts.SingleFile, "single-file", false, "Only search the current log file")
	logCommand.Flags().BoolVar(&opts.FirstMatchOnly, "first", false, "Stop at the first match")
	logCommand.Flags().StringVar(&logFile, "file", "", "Log file name. Default is the configured log file.")
	logCommand.Flags().DurationVar(&wait, "wait", 0, "Keep searching until a line matches or this much time passed")
	logCommand.MarkFlagRequired("pattern")

	var query, expected, compareTo string
	sqlCommand := &cobra.Command{
		Use:   "sql",
		Short: "Run a read only query against the metadata store",
		RunE: func(c *cobra.Command, args []string) error {
			return o.withEnv(func(ctx context.Context, env *scenario.Env) error {
				if env.SQL == nil {
					return fmt.Errorf("no database is configured")
				}
				switch {
				case compareTo != "":
					res, err := env.SQL.CompareScalars(ctx, query, compareTo)
					return printSQLResult(o, res, err)
				case c.Flags().Changed("expect"):
					res, err := env.SQL.ExpectScalar(ctx, query, expected)
					return printSQLResult(o, res, err)
				}
				v, err := env.SQL.Scalar(ctx, query)
				if err != nil {
					return err
				}
				printMsg(v, o.out)
				return nil
			})
		},
	}
	sqlCommand.Flags().StringVarP(&query, "query", "q", "", "Query returning a single value")
	sqlCommand.Flags().StringVar(&expected, "expect", "", "Value the query should return")
	sqlCommand.Flags().StringVar(&compareTo, "compare-to", "", "Query whose value the first query should match")
	sqlCommand.MarkFlagRequired("query")

	probeCommand.AddCommand(logCommand, sqlCommand)
	return probeCommand
}

func printSQLResult(o *options, res *probe.SQLResult, err error) error {
	if err != nil {
		return err
	}
	printMsg(fmt.Sprintf("actual [%s] expected [%s]", res.Actual, res.Expected), o.out)
	if !res.Matched {
		return fmt.Errorf("query %q returned %s", strings.TrimSpace(res.Query), res.Actual)
	}
	return nil
}
