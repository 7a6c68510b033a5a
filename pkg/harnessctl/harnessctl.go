// Package harnessctl is the jobharness command line.
package harnessctl

import (
	"fmt"
	"io"
	"os"

	"github.com/portworx/jobharness/pkg/config"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/spf13/cobra"
)

const logFileName = "jobharness.log"

// options are shared by every subcommand
type options struct {
	cfgFile  string
	logLevel string
	logDir   string
	cfg      *config.Config
	out      io.Writer
	errOut   io.Writer
}

// NewCommand creates the jobharness command
func NewCommand(out, errOut io.Writer) *cobra.Command {
	o := &options{out: out, errOut: errOut}
	cmds := &cobra.Command{
		Use:           "jobharness",
		Short:         "jobharness drives backup jobs through interruptions and verifies how they recover",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			return o.load(c)
		},
	}
	cmds.SetOut(out)
	cmds.SetErr(errOut)
	cmds.PersistentFlags().StringVarP(&o.cfgFile, "config", "c", os.Getenv("JOBHARNESS_CONFIG"), "Path to the harness configuration file")
	cmds.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "Log level: trace, debug, info, warn or error. Overrides the configuration.")
	cmds.PersistentFlags().StringVar(&o.logDir, "log-dir", "", "Directory for the harness log file. Overrides the configuration.")

	cmds.AddCommand(
		newRunCommand(o),
		newListCommand(o),
		newJobCommand(o),
		newInjectCommand(o),
		newProbeCommand(o),
		newSimulateCommand(o),
		newVersionCommand(o),
	)
	return cmds
}

// load reads the configuration and sets up logging. The version command
// works without one.
func (o *options) load(c *cobra.Command) error {
	if c.Name() == "version" {
		return nil
	}
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logDir != "" {
		cfg.Log.Dir = o.logDir
	}
	o.cfg = cfg

	log.SetLoglevel(cfg.Log.Level)
	if cfg.Log.Colors {
		log.EnableColors()
	}
	if cfg.Log.Dir != "" {
		if err := os.MkdirAll(cfg.Log.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create log dir %s: %v", cfg.Log.Dir, err)
		}
		log.SetDefaultOutput(log.NewFileLogger(cfg.Log.Dir, logFileName))
	}
	return nil
}

func printMsg(msg string, out io.Writer) {
	if _, printErr := fmt.Fprintln(out, msg); printErr != nil {
		fmt.Println(msg)
	}
}
