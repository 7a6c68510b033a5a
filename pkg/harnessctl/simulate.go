package harnessctl

import (
	"context"
	"net/http"
	"time"

	"github.com/portworx/jobharness/drivers/job/simulator"
	"github.com/portworx/jobharness/drivers/node"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/portworx/jobharness/pkg/version"
	"github.com/spf13/cobra"
)

func newSimulateCommand(o *options) *cobra.Command {
	var listen string
	var opts simulator.Options
	simulateCommand := &cobra.Command{
		Use:   "simulate",
		Short: "Serve the job API of a simulated backend",
		Long: "Serve the job API of an in-memory backend whose jobs advance one phase tick per inspection.\n" +
			"Point the rest job driver at it to try scenarios without a lab.",
		RunE: func(c *cobra.Command, args []string) error {
			for _, h := range o.cfg.Hosts {
				opts.Hosts = append(opts.Hosts, node.Node{Name: h.Name, Addresses: h.Addresses, LogDir: h.LogDir})
			}
			if opts.Username == "" {
				opts.Username, opts.Password = o.cfg.Backend.Username, o.cfg.Backend.Password
			}
			b := simulator.New(opts)
			srv := &http.Server{Addr: listen, Handler: b.Handler(), ReadHeaderTimeout: 10 * time.Second}

			ctx, cancel := signalContext()
			defer cancel()
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()
			log.Infof("Simulated backend with %d host(s) listening on %s", len(opts.Hosts), listen)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		},
	}
	simulateCommand.Flags().StringVar(&listen, "listen", ":8580", "Address to serve on")
	simulateCommand.Flags().IntVar(&opts.TicksPerPhase, "ticks", simulator.DefaultTicksPerPhase, "Inspections each phase lasts")
	simulateCommand.Flags().StringVar(&opts.Version, "backend-version", simulator.DefaultVersion, "Version the backend reports")
	simulateCommand.Flags().StringToStringVar(&opts.FailClients, "fail-client", nil, "Make the jobs of a client fail, e.g. client-2='Media not available'")
	return simulateCommand
}

func newVersionCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the harness version",
		Run: func(c *cobra.Command, args []string) {
			printMsg(version.String(), o.out)
		},
	}
}
