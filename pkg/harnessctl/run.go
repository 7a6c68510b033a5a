package harnessctl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/flock"
	"github.com/olekukonko/tablewriter"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/portworx/jobharness/pkg/metrics"
	"github.com/portworx/jobharness/pkg/scenario"
	"github.com/spf13/cobra"
)

const lockFileName = "jobharness.lock"

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// selectScenarios returns the named scenarios, or the whole catalog, that
// carry every tag
func selectScenarios(names []string, tags map[string]string) ([]scenario.Scenario, error) {
	var candidates []scenario.Scenario
	if len(names) == 0 {
		candidates = scenario.List()
	}
	for _, name := range names {
		s, err := scenario.Get(name)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, s)
	}
	var selected []scenario.Scenario
	for _, s := range candidates {
		matches := true
		for k, v := range tags {
			if s.Tags[k] != v {
				matches = false
				break
			}
		}
		if matches {
			selected = append(selected, s)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no scenario matches %v with tags %v", names, tags)
	}
	return selected, nil
}

// lockRun makes sure one harness at a time drives the backend from this
// machine
func lockRun(dir string) (*flock.Flock, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	l := flock.New(filepath.Join(dir, lockFileName))
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %v", l.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("another run holds %s", l.Path())
	}
	return l, nil
}

func newStatusServer(addr string, collector *scenario.Collector) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/results", func(c *gin.Context) {
		c.JSON(http.StatusOK, collector.Results())
	})
	return &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
}

func writeResults(out io.Writer, results []scenario.Result) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Scenario", "Status", "Category", "Duration", "Jobs", "Result"})
	table.SetAutoWrapText(false)
	for _, r := range results {
		table.Append([]string{
			r.Name,
			r.Status,
			string(r.Category),
			r.Duration.Round(time.Second).String(),
			strings.Join(r.Jobs, ","),
			r.ResultString,
		})
	}
	table.Render()
}

func newRunCommand(o *options) *cobra.Command {
	var names []string
	var tags map[string]string
	var statusAddr string
	runCommand := &cobra.Command{
		Use:   "run",
		Short: "Run scenarios from the catalog",
		RunE: func(c *cobra.Command, args []string) error {
			selected, err := selectScenarios(append(names, args...), tags)
			if err != nil {
				return err
			}
			lock, err := lockRun(o.cfg.Log.Dir)
			if err != nil {
				return err
			}
			defer lock.Unlock()

			ctx, cancel := signalContext()
			defer cancel()
			env, err := scenario.NewEnv(ctx, o.cfg)
			if err != nil {
				return err
			}
			defer env.Close()
			collector, reporters, err := scenario.BuildReporters(ctx, o.cfg, env)
			if err != nil {
				return err
			}

			if statusAddr == "" {
				statusAddr = o.cfg.Metrics.ListenAddr
			}
			if statusAddr != "" {
				srv := newStatusServer(statusAddr, collector)
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Errorf("Status server on %s stopped: %v", statusAddr, err)
					}
				}()
				defer func() {
					sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer scancel()
					srv.Shutdown(sctx)
				}()
				log.Infof("Serving status on %s", statusAddr)
			}

			results := scenario.NewRunner(env, reporters...).RunAll(ctx, selected)
			writeResults(o.out, results)
			failed := 0
			for _, r := range results {
				if r.Status == scenario.FAIL {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenario(s) failed", failed, len(results))
			}
			if len(results) < len(selected) {
				return fmt.Errorf("run aborted after %d of %d scenario(s)", len(results), len(selected))
			}
			return nil
		},
	}
	runCommand.Flags().StringSliceVarP(&names, "scenario", "s", nil, "Scenarios to run. Default is the whole catalog.")
	runCommand.Flags().StringToStringVarP(&tags, "tag", "t", nil, "Only run scenarios with these tags, e.g. fault=service")
	runCommand.Flags().StringVar(&statusAddr, "status-addr", "", "Serve /healthz, /metrics and /results on this address during the run")
	return runCommand
}

func newListCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the scenario catalog",
		RunE: func(c *cobra.Command, args []string) error {
			catalog := scenario.List()
			if len(catalog) == 0 {
				printMsg("No scenarios found.", o.out)
				return nil
			}
			table := tablewriter.NewWriter(o.out)
			table.SetHeader([]string{"Name", "TestRail", "Min Version", "Tags", "Description"})
			table.SetAutoWrapText(false)
			for _, s := range catalog {
				var tags []string
				for k, v := range s.Tags {
					tags = append(tags, k+"="+v)
				}
				sort.Strings(tags)
				table.Append([]string{s.Name, s.TestRailID, s.MinBackendVersion, strings.Join(tags, ","), s.Description})
			}
			table.Render()
			return nil
		},
	}
}
