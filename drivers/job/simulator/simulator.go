// Package simulator is an in-memory backend that runs jobs through their
// phases one tick per inspection. It exposes the same job API as the REST
// backend, a node driver over its hosts and writes job log lines into a
// per host in-memory filesystem, so complete scenarios run without a lab.
package simulator

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/portworx/jobharness/drivers/job"
	"github.com/portworx/jobharness/drivers/node"
	"github.com/portworx/jobharness/pkg/errors"
	"github.com/portworx/jobharness/pkg/log"
)

const (
	// DriverName is the name the simulator registers as job and node driver
	DriverName = "simulator"
	// DefaultTicksPerPhase is the number of inspections a phase lasts
	DefaultTicksPerPhase = 3
	// DefaultLogFile is the log every job writes to on its host
	DefaultLogFile = "perf.log"
	// DefaultVersion reported by the simulated backend
	DefaultVersion = "11.32.0"
	// DefaultProcess whose death interrupts jobs on a host
	DefaultProcess = "backupd"
	// DefaultService whose restart interrupts jobs on a host
	DefaultService = "backupsvc"
	// DefaultLogDir is used for hosts registered without a log dir
	DefaultLogDir = "/var/log/backend"
)

// Options tune the simulated backend
type Options struct {
	// TicksPerPhase is how many inspections each phase takes
	TicksPerPhase int
	// Hosts the jobs are assigned to, round robin unless ClientHosts names one
	Hosts []node.Node
	// ClientHosts pins the jobs of a client to a host
	ClientHosts map[string]string
	// LogFile is written under the LogDir of every host
	LogFile string
	// Version reported by Version()
	Version string
	// Process is the backend process name on every host
	Process string
	// Service is the backend service name on every host
	Service string
	// FailClients makes the jobs of the named clients fail with the given reason
	FailClients map[string]string
	// Username and Password enable basic auth on the HTTP handler
	Username string
	Password string
	// Now returns the current time
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TicksPerPhase <= 0 {
		o.TicksPerPhase = DefaultTicksPerPhase
	}
	if o.LogFile == "" {
		o.LogFile = DefaultLogFile
	}
	if o.Version == "" {
		o.Version = DefaultVersion
	}
	if o.Process == "" {
		o.Process = DefaultProcess
	}
	if o.Service == "" {
		o.Service = DefaultService
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// phasesOf returns the phases a job of the given type and level runs through
func phasesOf(t job.Type, level job.BackupLevel) []string {
	switch t {
	case job.TypeBackup:
		if level == job.LevelSyntheticFull {
			return []string{"Synthetic Full Backup", "Archive Index"}
		}
		return []string{"Scan", "Backup", "Archive Index"}
	case job.TypeRestore:
		return []string{"Restore"}
	case job.TypeAuxCopy:
		return []string{"Auxcopy"}
	case job.TypeDataVerification:
		return []string{"Data Verification"}
	case job.TypeDataAging:
		return []string{"Data Aging"}
	}
	return []string{"Run"}
}

type simJob struct {
	info     job.Info
	phases   []string
	phaseIdx int
	tick     int
}

// Backend is the simulated backend. It implements job.Driver.
type Backend struct {
	job.Driver
	mu     sync.Mutex
	opts   Options
	jobs   map[string]*simJob
	order  []string
	nextID int
	hosts  map[string]*host
	names  []string
	rr     int
}

// New returns a simulated backend with the given options
func New(opts Options) *Backend {
	b := &Backend{
		Driver: job.NotSupportedDriver,
		opts:   opts.withDefaults(),
		jobs:   make(map[string]*simJob),
		nextID: 1000,
		hosts:  make(map[string]*host),
	}
	for _, n := range b.opts.Hosts {
		b.addHost(n)
	}
	return b
}

// SetOptions replaces the options of b. Known hosts and jobs are kept.
func (b *Backend) SetOptions(opts Options) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opts = opts.withDefaults()
	for _, n := range b.opts.Hosts {
		b.addHost(n)
	}
}

func (b *Backend) String() string {
	return DriverName
}

// Init is a no-op. The backend lives in process.
func (b *Backend) Init(options job.InitOptions) error {
	return nil
}

// Version returns the configured backend version
func (b *Backend) Version(ctx context.Context) (string, error) {
	return b.opts.Version, nil
}

// Submit starts a job in the created state on its host
func (b *Backend) Submit(ctx context.Context, req job.SubmitRequest) (*job.Info, error) {
	if err := req.Validate(); err != nil {
		return nil, &job.ErrFailedToSubmitJob{Type: req.Type, Client: req.Client, Cause: err.Error()}
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	h, err := b.pickHost(req.Client)
	if err != nil {
		return nil, &job.ErrFailedToSubmitJob{Type: req.Type, Client: req.Client, Cause: err.Error()}
	}
	b.nextID++
	j := &simJob{
		info: job.Info{
			ID:          strconv.Itoa(b.nextID),
			Type:        req.Type,
			Client:      req.Client,
			Subclient:   req.Subclient,
			BackupLevel: req.BackupLevel,
			Status:      job.StatusCreated,
			StartTime:   b.opts.Now(),
			Host:        h.node.Name,
		},
		phases: phasesOf(req.Type, req.BackupLevel),
	}
	b.jobs[j.info.ID] = j
	b.order = append(b.order, j.info.ID)
	b.writeLog(j, "[%s] job started for client [%s] subclient [%s] level [%s]",
		req.Type, req.Client, req.Subclient, req.BackupLevel)
	log.Debugf("Simulator accepted %s job %s on %s", req.Type, j.info.ID, h.node.Name)
	info := j.info
	return &info, nil
}

func (b *Backend) pickHost(client string) (*host, error) {
	if name, ok := b.opts.ClientHosts[client]; ok {
		if h, ok := b.hosts[name]; ok {
			return h, nil
		}
		return nil, fmt.Errorf("host %s of client %s is not known", name, client)
	}
	if len(b.names) == 0 {
		return nil, fmt.Errorf("no hosts are registered with the simulator")
	}
	h := b.hosts[b.names[b.rr%len(b.names)]]
	b.rr++
	return h, nil
}

func (b *Backend) get(id string) (*simJob, error) {
	j, ok := b.jobs[id]
	if !ok {
		return nil, &errors.ErrNotFound{ID: id, Type: "Job"}
	}
	return j, nil
}

// Inspect advances the job by one tick and returns its snapshot
func (b *Backend) Inspect(ctx context.Context, id string) (*job.Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	j, err := b.get(id)
	if err != nil {
		return nil, err
	}
	b.advance(j)
	info := j.info
	info.Errors = append([]string(nil), j.info.Errors...)
	return &info, nil
}

func (b *Backend) advance(j *simJob) {
	switch j.info.Status {
	case job.StatusCreated, job.StatusQueued:
		j.info.Status = job.StatusRunning
		j.info.Phase = j.phases[0]
		b.writeLog(j, "Phase [%s] started", j.info.Phase)
		return
	case job.StatusRunning, job.StatusWaiting:
	default:
		return
	}

	j.tick++
	if j.tick >= b.opts.TicksPerPhase {
		j.tick = 0
		b.writeLog(j, "Phase [%s] completed", j.info.Phase)
		j.phaseIdx++
		if j.phaseIdx == len(j.phases) {
			b.finish(j)
			return
		}
		j.info.Phase = j.phases[j.phaseIdx]
		b.writeLog(j, "Phase [%s] started", j.info.Phase)
	}
	total := len(j.phases) * b.opts.TicksPerPhase
	j.info.PercentComplete = (j.phaseIdx*b.opts.TicksPerPhase + j.tick) * 100 / total
}

func (b *Backend) finish(j *simJob) {
	j.info.EndTime = b.opts.Now()
	j.info.PercentComplete = 100
	j.info.Status = job.StatusCompleted
	if reason, ok := b.opts.FailClients[j.info.Client]; ok {
		j.info.Status = job.StatusFailed
		j.info.DelayReason = reason
		j.info.Errors = append(j.info.Errors, reason)
	}
	b.writeLog(j, "Job finished with status [%s]", j.info.Status)
}

func (b *Backend) transition(j *simJob, to job.Status) error {
	if j.info.Status.IsTerminal() || !job.CanTransition(j.info.Status, to) {
		return &job.ErrInvalidTransition{ID: j.info.ID, From: j.info.Status, To: to}
	}
	j.info.Status = to
	return nil
}

func (b *Backend) apply(j *simJob, action job.Action) error {
	switch action {
	case job.ActionSuspend:
		if err := b.transition(j, job.StatusSuspended); err != nil {
			return err
		}
		b.writeLog(j, "Job suspended by user")
	case job.ActionResume:
		if !j.info.Status.In(job.StatusSuspended, job.StatusPending) {
			return &job.ErrInvalidTransition{ID: j.info.ID, From: j.info.Status, To: job.StatusRunning}
		}
		if h := b.hosts[j.info.Host]; h != nil && h.serviceDown {
			return &job.ErrFailedToModifyJob{
				ID:     j.info.ID,
				Action: action,
				Cause:  fmt.Sprintf("services on host %s are not running", j.info.Host),
			}
		}
		if err := b.transition(j, job.StatusRunning); err != nil {
			return err
		}
		j.info.DelayReason = ""
		b.writeLog(j, "Job resumed in phase [%s]", j.info.Phase)
	case job.ActionKill:
		if err := b.transition(j, job.StatusKilled); err != nil {
			return err
		}
		j.info.EndTime = b.opts.Now()
		b.writeLog(j, "Job killed by user")
	default:
		return fmt.Errorf("unknown job action %q", action)
	}
	return nil
}

func (b *Backend) modify(id string, action job.Action) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	j, err := b.get(id)
	if err != nil {
		return err
	}
	return b.apply(j, action)
}

// Suspend pauses a running job
func (b *Backend) Suspend(ctx context.Context, id string) error {
	return b.modify(id, job.ActionSuspend)
}

// Resume resumes a suspended or pending job. Pending jobs on a host whose
// service is stopped cannot resume.
func (b *Backend) Resume(ctx context.Context, id string) error {
	return b.modify(id, job.ActionResume)
}

// Kill kills a job that is not finished
func (b *Backend) Kill(ctx context.Context, id string) error {
	return b.modify(id, job.ActionKill)
}

// List returns every job matching filter in submission order
func (b *Backend) List(filter job.Filter) []job.Info {
	b.mu.Lock()
	defer b.mu.Unlock()
	var jobs []job.Info
	for _, id := range b.order {
		if info := b.jobs[id].info; filter.Match(info) {
			jobs = append(jobs, info)
		}
	}
	return jobs
}

// ActiveJobs returns the jobs matching filter that are not finished
func (b *Backend) ActiveJobs(ctx context.Context, filter job.Filter) ([]job.Info, error) {
	var active []job.Info
	for _, info := range b.List(filter) {
		if !info.Status.IsTerminal() {
			active = append(active, info)
		}
	}
	return active, nil
}

// ModifyAll applies action to the active jobs matching filter. Jobs the
// action does not apply to are skipped.
func (b *Backend) ModifyAll(ctx context.Context, action job.Action, filter job.Filter) error {
	if _, err := job.ParseAction(string(action)); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.order {
		j := b.jobs[id]
		if j.info.Status.IsTerminal() || !filter.Match(j.info) {
			continue
		}
		if err := b.apply(j, action); err != nil {
			log.Debugf("Skipping job %s: %v", id, err)
		}
	}
	return nil
}

// interrupt moves the unfinished jobs on hostName to pending
func (b *Backend) interrupt(hostName, reason string) []string {
	var ids []string
	for _, id := range b.order {
		j := b.jobs[id]
		if j.info.Host != hostName || j.info.Status.IsTerminal() {
			continue
		}
		if !j.info.Status.In(job.StatusRunning, job.StatusWaiting, job.StatusCreated, job.StatusQueued) {
			continue
		}
		j.info.Status = job.StatusPending
		j.info.DelayReason = reason
		b.writeLog(j, "Job interrupted, moved to pending. Reason [%s]", reason)
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
