package job

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/portworx/jobharness/pkg/errors"
)

// Status is the state of a job as reported by the backend
type Status string

const (
	// StatusCreated the job was accepted but has not started
	StatusCreated Status = "Created"
	// StatusQueued the job waits for resources before it starts
	StatusQueued Status = "Queued"
	// StatusRunning the job is making progress
	StatusRunning Status = "Running"
	// StatusWaiting the job is running but waits on a backend resource
	StatusWaiting Status = "Waiting"
	// StatusSuspended the job was paused on request
	StatusSuspended Status = "Suspended"
	// StatusPending the job was interrupted and waits to be resumed
	StatusPending Status = "Pending"
	// StatusCompleted the job finished successfully
	StatusCompleted Status = "Completed"
	// StatusCompletedWithErrors the job finished but some items failed
	StatusCompletedWithErrors Status = "Completed w/ one or more errors"
	// StatusFailed the job finished unsuccessfully
	StatusFailed Status = "Failed"
	// StatusKilled the job was killed
	StatusKilled Status = "Killed"
)

var knownStatuses = []Status{
	StatusCreated, StatusQueued, StatusRunning, StatusWaiting, StatusSuspended,
	StatusPending, StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusKilled,
}

// ParseStatus maps a backend status string to a Status ignoring case.
// Unknown strings are returned unchanged.
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	for _, known := range knownStatuses {
		if strings.EqualFold(s, string(known)) {
			return known
		}
	}
	return Status(s)
}

// Is compares two statuses ignoring case
func (s Status) Is(other Status) bool {
	return strings.EqualFold(string(s), string(other))
}

// In reports whether s is one of set
func (s Status) In(set ...Status) bool {
	for _, o := range set {
		if s.Is(o) {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions happen after s
func (s Status) IsTerminal() bool {
	return s.In(StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusKilled)
}

// IsUnsuccessful reports whether s is terminal but not a plain completion
func (s Status) IsUnsuccessful() bool {
	return s.In(StatusCompletedWithErrors, StatusFailed, StatusKilled)
}

var transitions = map[Status][]Status{
	StatusCreated:   {StatusQueued, StatusRunning, StatusPending, StatusKilled, StatusFailed},
	StatusQueued:    {StatusRunning, StatusPending, StatusKilled, StatusFailed},
	StatusRunning:   {StatusWaiting, StatusSuspended, StatusPending, StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusKilled},
	StatusWaiting:   {StatusRunning, StatusSuspended, StatusPending, StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusKilled},
	StatusSuspended: {StatusRunning, StatusKilled},
	StatusPending:   {StatusRunning, StatusSuspended, StatusKilled, StatusFailed},
}

// CanTransition reports whether a job may move from one status to another
func CanTransition(from, to Status) bool {
	from, to = ParseStatus(string(from)), ParseStatus(string(to))
	if from == to {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Type is the kind of backend operation a job performs
type Type string

const (
	// TypeBackup backs up a subclient
	TypeBackup Type = "backup"
	// TypeRestore restores data to a client
	TypeRestore Type = "restore"
	// TypeAuxCopy copies data between storage copies
	TypeAuxCopy Type = "auxcopy"
	// TypeDataVerification verifies stored data
	TypeDataVerification Type = "dataverification"
	// TypeDataAging prunes aged data
	TypeDataAging Type = "dataaging"
)

// BackupLevel of a backup job
type BackupLevel string

const (
	// LevelFull full backup
	LevelFull BackupLevel = "Full"
	// LevelIncremental incremental backup
	LevelIncremental BackupLevel = "Incremental"
	// LevelDifferential differential backup
	LevelDifferential BackupLevel = "Differential"
	// LevelSyntheticFull synthetic full backup
	LevelSyntheticFull BackupLevel = "Synthetic_full"
)

// Info is a snapshot of a job as seen by the backend
type Info struct {
	ID              string      `json:"id"`
	Type            Type        `json:"type"`
	Client          string      `json:"client"`
	Subclient       string      `json:"subclient,omitempty"`
	BackupLevel     BackupLevel `json:"backupLevel,omitempty"`
	Status          Status      `json:"status"`
	Phase           string      `json:"phase"`
	DelayReason     string      `json:"delayReason,omitempty"`
	PercentComplete int         `json:"percentComplete"`
	Errors          []string    `json:"errors,omitempty"`
	Host            string      `json:"host,omitempty"`
	StartTime       time.Time   `json:"startTime"`
	EndTime         time.Time   `json:"endTime,omitempty"`
}

// Options are the recognized job options. Unset fields keep backend defaults.
type Options struct {
	// Priority of the job, lower runs first
	Priority int `json:"priority,omitempty" validate:"gte=0,lte=999"`
	// StoragePolicy overrides the subclient storage policy
	StoragePolicy string `json:"storagePolicy,omitempty"`
	// CopyName is the destination copy of an aux copy
	CopyName string `json:"copyName,omitempty"`
	// DestinationClient receives the data of a restore
	DestinationClient string `json:"destinationClient,omitempty"`
	// Paths selects what a restore brings back
	Paths []string `json:"paths,omitempty"`
	// Overwrite allows a restore to replace existing files
	Overwrite bool `json:"overwrite,omitempty"`
}

// SubmitRequest describes a job to start
type SubmitRequest struct {
	Type        Type        `json:"type" validate:"required,oneof=backup restore auxcopy dataverification dataaging"`
	Client      string      `json:"client" validate:"required"`
	Subclient   string      `json:"subclient,omitempty"`
	BackupLevel BackupLevel `json:"backupLevel,omitempty" validate:"omitempty,oneof=Full Incremental Differential Synthetic_full"`
	Options     Options     `json:"options"`
}

var validate = validator.New()

// Validate checks the request fields
func (r SubmitRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Type == TypeBackup && r.Subclient == "" {
		return fmt.Errorf("backup of client %s needs a subclient", r.Client)
	}
	if r.Type == TypeRestore && len(r.Options.Paths) == 0 {
		return fmt.Errorf("restore of client %s needs at least one path", r.Client)
	}
	return nil
}

// Filter selects jobs. Empty fields match everything.
type Filter struct {
	Client   string
	Type     Type
	Statuses []Status
}

// Match reports whether info passes the filter
func (f Filter) Match(info Info) bool {
	if f.Client != "" && !strings.EqualFold(f.Client, info.Client) {
		return false
	}
	if f.Type != "" && f.Type != info.Type {
		return false
	}
	if len(f.Statuses) > 0 && !info.Status.In(f.Statuses...) {
		return false
	}
	return true
}

// Action is a control operation on a job
type Action string

const (
	// ActionSuspend pauses a job
	ActionSuspend Action = "suspend"
	// ActionResume resumes a suspended or pending job
	ActionResume Action = "resume"
	// ActionKill kills a job
	ActionKill Action = "kill"
)

// ParseAction returns the action called s
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionSuspend:
		return ActionSuspend, nil
	case ActionResume:
		return ActionResume, nil
	case ActionKill:
		return ActionKill, nil
	}
	return "", fmt.Errorf("unknown job action %q", s)
}

// ExpectedStatusAfter returns the statuses that show a successful action
func ExpectedStatusAfter(a Action) []Status {
	switch a {
	case ActionSuspend:
		return []Status{StatusSuspended}
	case ActionResume:
		return []Status{StatusRunning, StatusWaiting, StatusCompleted}
	case ActionKill:
		return []Status{StatusKilled}
	}
	return nil
}

// Apply issues the action against job id
func (a Action) Apply(ctx context.Context, d Driver, id string) error {
	switch a {
	case ActionSuspend:
		return d.Suspend(ctx, id)
	case ActionResume:
		return d.Resume(ctx, id)
	case ActionKill:
		return d.Kill(ctx, id)
	}
	return fmt.Errorf("unknown job action %q", a)
}

// InitOptions configures how a job driver reaches the backend
type InitOptions struct {
	Endpoint string
	Username string
	Password string
	Insecure bool
	Timeout  time.Duration
}

//go:generate mockgen -destination=../../mocks/mock_drivers/mock_job/mock_job.go github.com/portworx/jobharness/drivers/job Driver

// Driver is the handle to the backend job API
type Driver interface {
	// Init initializes the driver
	Init(options InitOptions) error

	// String returns the name of this driver
	String() string

	// Submit starts a job and returns its first snapshot
	Submit(ctx context.Context, req SubmitRequest) (*Info, error)

	// Inspect returns the current snapshot of a job
	Inspect(ctx context.Context, id string) (*Info, error)

	// Suspend pauses a job
	Suspend(ctx context.Context, id string) error

	// Resume resumes a suspended or pending job
	Resume(ctx context.Context, id string) error

	// Kill kills a job
	Kill(ctx context.Context, id string) error

	// ActiveJobs lists the jobs that are not terminal and match filter
	ActiveJobs(ctx context.Context, filter Filter) ([]Info, error)

	// ModifyAll applies action to every active job matching filter
	ModifyAll(ctx context.Context, action Action, filter Filter) error

	// Version returns the backend version
	Version(ctx context.Context) (string, error)
}

var (
	jobDrivers = make(map[string]Driver)
	lock       sync.RWMutex
)

// Register registers the given job driver
func Register(name string, d Driver) error {
	lock.Lock()
	defer lock.Unlock()
	if _, ok := jobDrivers[name]; ok {
		return fmt.Errorf("job driver: %s is already registered", name)
	}
	jobDrivers[name] = d
	return nil
}

// Get returns a registered job driver
func Get(name string) (Driver, error) {
	lock.RLock()
	defer lock.RUnlock()
	if d, ok := jobDrivers[name]; ok {
		return d, nil
	}
	return nil, &errors.ErrNotFound{
		ID:   name,
		Type: "Job Driver",
	}
}

type notSupportedDriver struct{}

// NotSupportedDriver provides the default driver with none of the operations supported
var NotSupportedDriver = &notSupportedDriver{}

func notSupported(op string) error {
	return &errors.ErrNotSupported{
		Type:      "Function",
		Operation: op,
	}
}

func (d *notSupportedDriver) Init(options InitOptions) error {
	return notSupported("Init()")
}

func (d *notSupportedDriver) String() string {
	return "Operation String() is not supported"
}

func (d *notSupportedDriver) Submit(ctx context.Context, req SubmitRequest) (*Info, error) {
	return nil, notSupported("Submit()")
}

func (d *notSupportedDriver) Inspect(ctx context.Context, id string) (*Info, error) {
	return nil, notSupported("Inspect()")
}

func (d *notSupportedDriver) Suspend(ctx context.Context, id string) error {
	return notSupported("Suspend()")
}

func (d *notSupportedDriver) Resume(ctx context.Context, id string) error {
	return notSupported("Resume()")
}

func (d *notSupportedDriver) Kill(ctx context.Context, id string) error {
	return notSupported("Kill()")
}

func (d *notSupportedDriver) ActiveJobs(ctx context.Context, filter Filter) ([]Info, error) {
	return nil, notSupported("ActiveJobs()")
}

func (d *notSupportedDriver) ModifyAll(ctx context.Context, action Action, filter Filter) error {
	return notSupported("ModifyAll()")
}

func (d *notSupportedDriver) Version(ctx context.Context) (string, error) {
	return "", notSupported("Version()")
}
