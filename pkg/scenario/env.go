package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/drivers/node"
	"github.com/portworx/jobharness/pkg/config"
	"github.com/portworx/jobharness/pkg/dashboard"
	"github.com/portworx/jobharness/pkg/errors"
	"github.com/portworx/jobharness/pkg/injector"
	"github.com/portworx/jobharness/pkg/jobmanager"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/portworx/jobharness/pkg/probe"
	"github.com/portworx/jobharness/pkg/stats"
)

// Env holds the drivers and helpers shared by every scenario of a run
type Env struct {
	Config    *config.Config
	Jobs      job.Driver
	Nodes     node.Driver
	Manager   *jobmanager.Manager
	Injector  *injector.Injector
	Logs      *probe.LogProbe
	SQL       *probe.SQLProbe
	Dashboard *dashboard.Dashboard

	recorder *stats.InfluxRecorder
}

func nodeFromConfig(h config.HostConfig) node.Node {
	t := node.TypeLinux
	if h.Type != "" {
		t = node.Type(h.Type)
	}
	return node.Node{Name: h.Name, Addresses: h.Addresses, Type: t, LogDir: h.LogDir}
}

func lookupHost(cfg *config.Config, name string) node.Node {
	if n, err := node.GetNodeByName(name); err == nil {
		return n
	}
	if h, ok := cfg.Host(name); ok {
		return nodeFromConfig(h)
	}
	return node.Node{Name: name, Addresses: []string{name}}
}

// Host returns the host called name from the node inventory, falling back
// to the configured hosts
func (e *Env) Host(name string) node.Node {
	return lookupHost(e.Config, name)
}

// connectionOpts never retries a host slower than jobs are polled
func connectionOpts(cfg *config.Config) node.ConnectionOpts {
	retry := node.DefaultRetryInterval
	if cfg.Poll.Interval > 0 && cfg.Poll.Interval < retry {
		retry = cfg.Poll.Interval
	}
	return node.ConnectionOpts{Timeout: node.DefaultTimeout, TimeBeforeRetry: retry}
}

// NewEnv initializes the drivers named in cfg, registers the host inventory
// and opens the metadata store when one is configured
func NewEnv(ctx context.Context, cfg *config.Config) (*Env, error) {
	jobs, err := job.Get(cfg.Drivers.Job)
	if err != nil {
		return nil, &errors.ErrSetup{Resource: "job driver " + cfg.Drivers.Job, Cause: err.Error()}
	}
	err = jobs.Init(job.InitOptions{
		Endpoint: cfg.Backend.URL,
		Username: cfg.Backend.Username,
		Password: cfg.Backend.Password,
		Insecure: cfg.Backend.Insecure,
		Timeout:  cfg.Backend.Timeout,
	})
	if err != nil {
		return nil, &errors.ErrSetup{Resource: "job driver " + cfg.Drivers.Job, Cause: err.Error()}
	}

	var hosts []node.Node
	for _, h := range cfg.Hosts {
		n := nodeFromConfig(h)
		if err := node.AddNode(n); err != nil && !strings.Contains(err.Error(), "already registered") {
			return nil, &errors.ErrSetup{Resource: "host " + h.Name, Cause: err.Error()}
		}
		hosts = append(hosts, n)
	}
	nodes, err := node.Get(cfg.Drivers.Node)
	if err != nil {
		return nil, &errors.ErrSetup{Resource: "node driver " + cfg.Drivers.Node, Cause: err.Error()}
	}
	err = nodes.Init(node.InitOptions{
		Username: cfg.SSH.User,
		Password: cfg.SSH.Password,
		KeyPath:  cfg.SSH.KeyPath,
		Port:     cfg.SSH.Port,
		Nodes:    hosts,
	})
	if err != nil {
		return nil, &errors.ErrSetup{Resource: "node driver " + cfg.Drivers.Node, Cause: err.Error()}
	}

	conn := connectionOpts(cfg)
	env := &Env{
		Config:    cfg,
		Jobs:      jobs,
		Nodes:     nodes,
		Manager:   jobmanager.New(jobs, jobmanager.OptsFromConfig(cfg.Poll)),
		Injector:  injector.New(nodes, conn),
		Logs:      probe.NewLogProbe(nodes, conn),
		Dashboard: dashboard.New(cfg.Dashboard.URL, cfg.Dashboard.Enabled, log.GetLogInstance()),
	}
	if cfg.Database.Driver != "" {
		env.SQL, err = probe.OpenSQLProbe(ctx, cfg.Database.Driver, cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, err
		}
	}
	if cfg.Influx.Enabled {
		env.recorder = stats.NewInfluxRecorder(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket)
		if v, err := jobs.Version(ctx); err == nil {
			env.recorder.SetVersion(v)
		}
		env.Injector.SetRecorder(env.recorder)
	}
	log.Infof("Using job driver %s and node driver %s with %d host(s)", jobs, nodes, len(hosts))
	return env, nil
}

// Close releases the metadata store connection and the stats client
func (e *Env) Close() error {
	if e.recorder != nil {
		e.recorder.Close()
	}
	if e.SQL == nil {
		return nil
	}
	if err := e.SQL.Close(); err != nil {
		return fmt.Errorf("failed to close database: %v", err)
	}
	return nil
}
