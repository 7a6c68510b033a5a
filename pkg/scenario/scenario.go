// Package scenario sequences jobs, interruptions and verifications into
// named test scenarios and turns each run into a pass/fail result.
package scenario

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/drivers/node"
	"github.com/portworx/jobharness/pkg/config"
	"github.com/portworx/jobharness/pkg/dashboard"
	"github.com/portworx/jobharness/pkg/errors"
	"github.com/portworx/jobharness/pkg/injector"
	"github.com/portworx/jobharness/pkg/jobmanager"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/portworx/jobharness/pkg/probe"
)

// Func is one stage of a scenario
type Func func(c *Context) error

// Scenario is a named sequence of job operations with its cleanup
type Scenario struct {
	Name        string
	Description string
	// TestRailID is the test case the result is reported against
	TestRailID string
	Tags       map[string]string
	// MinBackendVersion skips the scenario on older backends
	MinBackendVersion string
	// Setup creates what Run needs. A failure skips Run.
	Setup Func
	Run   Func
	// Teardown always runs. Its errors are logged and never fail the scenario.
	Teardown Func
}

var (
	registry     = map[string]Scenario{}
	registryLock sync.RWMutex
)

// Register adds s to the catalog
func Register(s Scenario) error {
	if s.Name == "" || s.Run == nil {
		return fmt.Errorf("scenario needs a name and a run function")
	}
	registryLock.Lock()
	defer registryLock.Unlock()
	if _, ok := registry[s.Name]; ok {
		return fmt.Errorf("scenario %s is already registered", s.Name)
	}
	registry[s.Name] = s
	return nil
}

// Get returns the registered scenario called name
func Get(name string) (Scenario, error) {
	registryLock.RLock()
	defer registryLock.RUnlock()
	s, ok := registry[name]
	if !ok {
		return Scenario{}, &errors.ErrNotFound{ID: name, Type: "Scenario"}
	}
	return s, nil
}

// List returns the catalog sorted by name
func List() []Scenario {
	registryLock.RLock()
	defer registryLock.RUnlock()
	out := make([]Scenario, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Context is what a scenario works with during one run
type Context struct {
	ctx       context.Context
	RunID     string
	Config    *config.Config
	Jobs      job.Driver
	Nodes     node.Driver
	Manager   *jobmanager.Manager
	Injector  *injector.Injector
	Logs      *probe.LogProbe
	SQL       *probe.SQLProbe
	Dashboard *dashboard.Dashboard

	mu      sync.Mutex
	values  map[string]interface{}
	jobs    []string
	steps   []string
	cleanup []func(ctx context.Context) error
}

func newContext(ctx context.Context, runID string, env *Env) *Context {
	return &Context{
		ctx:       ctx,
		RunID:     runID,
		Config:    env.Config,
		Jobs:      env.Jobs,
		Nodes:     env.Nodes,
		Manager:   env.Manager,
		Injector:  env.Injector,
		Logs:      env.Logs,
		SQL:       env.SQL,
		Dashboard: env.Dashboard,
		values:    map[string]interface{}{},
	}
}

// Ctx is cancelled when the run is aborted
func (c *Context) Ctx() context.Context {
	return c.ctx
}

// Inputs are the configured scenario inputs
func (c *Context) Inputs() config.ScenarioInputs {
	return c.Config.Scenario
}

// Set stores a value for a later stage
func (c *Context) Set(key string, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = v
}

// Get returns a value stored with Set
func (c *Context) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// GetString returns the string stored under key or ""
func (c *Context) GetString(key string) string {
	v, _ := c.Get(key)
	s, _ := v.(string)
	return s
}

// Step runs fn as a named step of the scenario
func (c *Context) Step(description string, fn func() error) error {
	c.mu.Lock()
	c.steps = append(c.steps, description)
	c.mu.Unlock()
	log.InfoD("STEP: %s", description)
	if err := fn(); err != nil {
		log.Errorf("Step [%s] failed: %v", description, err)
		return err
	}
	return nil
}

// Steps returns the steps started so far
func (c *Context) Steps() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.steps...)
}

// Verify records the comparison and fails the scenario when actual and
// expected differ
func (c *Context) Verify(actual, expected interface{}, description string) error {
	if c.Dashboard.VerifySafely(actual, expected, description) {
		return nil
	}
	return &errors.ErrValidation{
		Description: description,
		Expected:    fmt.Sprintf("%v", expected),
		Actual:      fmt.Sprintf("%v", actual),
	}
}

// VerifySafely records the comparison and lets the scenario continue. A
// mismatch still fails the scenario at the end.
func (c *Context) VerifySafely(actual, expected interface{}, description string) bool {
	return c.Dashboard.VerifySafely(actual, expected, description)
}

// Submit starts a job and remembers it so teardown can kill it
func (c *Context) Submit(req job.SubmitRequest) (*job.Info, error) {
	info, err := c.Jobs.Submit(c.ctx, req)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.jobs = append(c.jobs, info.ID)
	c.mu.Unlock()
	log.InfoD("Started %s job %s for client %s", info.Type, info.ID, info.Client)
	return info, nil
}

// StartedJobs returns the ids of the jobs submitted through c
func (c *Context) StartedJobs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.jobs...)
}

// Defer registers fn to run during teardown, last registered first
func (c *Context) Defer(fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanup = append(c.cleanup, fn)
}

// Host returns the host called name from the node inventory, falling back
// to the configured hosts
func (c *Context) Host(name string) node.Node {
	return lookupHost(c.Config, name)
}

// JobHost is the host job info ran on, or the configured target host when
// the backend does not report one
func (c *Context) JobHost(info *job.Info) node.Node {
	if info != nil && info.Host != "" {
		return c.Host(info.Host)
	}
	return c.Host(c.Inputs().TargetHost)
}
