package node

import (
	"fmt"
	"time"

	"github.com/portworx/jobharness/pkg/errors"
	"github.com/portworx/jobharness/pkg/task"
)

// Type identifies the operating system family of a host
type Type string

const (
	// TypeLinux identifies a linux host
	TypeLinux Type = "linux"
	// TypeWindows identifies a windows host
	TypeWindows Type = "windows"
)

const (
	// DefaultTimeout bounds node operations when the caller sets none
	DefaultTimeout = 1 * time.Minute
	// DefaultRetryInterval is the delay between two attempts of a node operation
	DefaultRetryInterval = 10 * time.Second
)

// Node encapsulates a host the harness can reach
type Node struct {
	Name       string
	Addresses  []string
	UsableAddr string
	Type       Type
	// LogDir is where the backend writes its logs on this host
	LogDir string
	uuid   string
}

// ConnectionOpts provide basic options for all operations and can be embedded by other options
type ConnectionOpts struct {
	Timeout         time.Duration
	TimeBeforeRetry time.Duration
	IgnoreError     bool
}

// WithDefaults fills zero durations with DefaultTimeout and DefaultRetryInterval
func (o ConnectionOpts) WithDefaults() ConnectionOpts {
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.TimeBeforeRetry == 0 {
		o.TimeBeforeRetry = DefaultRetryInterval
	}
	return o
}

// Retry runs t under the retry policy of o
func (o ConnectionOpts) Retry(t task.Task) (interface{}, error) {
	o = o.WithDefaults()
	return task.DoRetryWithTimeout(t, o.Timeout, o.TimeBeforeRetry)
}

// RebootNodeOpts provide additional options for reboot operation
type RebootNodeOpts struct {
	Force bool
	ConnectionOpts
}

// KillProcessOpts selects how a process is killed. A positive PID is
// killed with SIGKILL, otherwise every process whose command line matches
// the name is killed.
type KillProcessOpts struct {
	PID int
	ConnectionOpts
}

// SystemctlOpts provide options for systemctl operation
type SystemctlOpts struct {
	Action string
	ConnectionOpts
}

// FindType is the type of file to find
type FindType string

const (
	// File type of file
	File FindType = "f"
	// Directory type of file
	Directory FindType = "d"
)

// FindOpts provide options for find operation
type FindOpts struct {
	Name     string
	MinDepth int
	MaxDepth int
	Type     FindType
	ConnectionOpts
}

// InitOptions carries the credentials and inventory a node driver starts with
type InitOptions struct {
	Username string
	Password string
	KeyPath  string
	Port     int
	// Nodes are tested for connectivity during Init when set
	Nodes []Node
}

var (
	nodeDrivers = make(map[string]Driver)
)

//go:generate mockgen -destination=../../mocks/mock_drivers/mock_node/mock_node.go github.com/portworx/jobharness/drivers/node Driver

// Driver provides the node driver interface
type Driver interface {
	// Init initializes the node driver
	Init(options InitOptions) error

	// String returns the string name of this driver.
	String() string

	// TestConnection tests connection to given node. returns nil if driver can connect to given node
	TestConnection(node Node, options ConnectionOpts) error

	// RunCommand runs the given command on the node and returns the output
	RunCommand(node Node, command string, options ConnectionOpts) (string, error)

	// KillProcess kills the named process or the given pid on the node
	KillProcess(node Node, processName string, options KillProcessOpts) error

	// Systemctl runs systemctl options.Action against service on the node
	Systemctl(node Node, service string, options SystemctlOpts) error

	// DeletePath removes the file or directory at path
	DeletePath(node Node, path string, options ConnectionOpts) error

	// RebootNode reboots the given node
	RebootNode(node Node, options RebootNodeOpts) error

	// CheckIfPathExists checks whether the given path is present in the node
	CheckIfPathExists(path string, node Node, options ConnectionOpts) (bool, error)

	// FindFiles returns the paths under path matching options
	FindFiles(path string, node Node, options FindOpts) ([]string, error)

	// ReadFile returns the contents of the file at path
	ReadFile(path string, node Node, options ConnectionOpts) ([]byte, error)
}

// Register registers the given node driver
func Register(name string, d Driver) error {
	lock.Lock()
	defer lock.Unlock()
	if _, ok := nodeDrivers[name]; ok {
		return fmt.Errorf("node driver: %s is already registered", name)
	}
	nodeDrivers[name] = d
	return nil
}

// Get returns a registered node driver
func Get(name string) (Driver, error) {
	lock.RLock()
	defer lock.RUnlock()
	if d, ok := nodeDrivers[name]; ok {
		return d, nil
	}
	return nil, &errors.ErrNotFound{
		ID:   name,
		Type: "Node Driver",
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

func (d *notSupportedDriver) TestConnection(node Node, options ConnectionOpts) error {
	return notSupported("TestConnection()")
}

func (d *notSupportedDriver) RunCommand(node Node, command string, options ConnectionOpts) (string, error) {
	return "", notSupported("RunCommand()")
}

func (d *notSupportedDriver) KillProcess(node Node, processName string, options KillProcessOpts) error {
	return notSupported("KillProcess()")
}

func (d *notSupportedDriver) Systemctl(node Node, service string, options SystemctlOpts) error {
	return notSupported("Systemctl()")
}

func (d *notSupportedDriver) DeletePath(node Node, path string, options ConnectionOpts) error {
	return notSupported("DeletePath()")
}

func (d *notSupportedDriver) RebootNode(node Node, options RebootNodeOpts) error {
	return notSupported("RebootNode()")
}

func (d *notSupportedDriver) CheckIfPathExists(path string, node Node, options ConnectionOpts) (bool, error) {
	return false, notSupported("CheckIfPathExists()")
}

func (d *notSupportedDriver) FindFiles(path string, node Node, options FindOpts) ([]string, error) {
	return nil, notSupported("FindFiles()")
}

func (d *notSupportedDriver) ReadFile(path string, node Node, options ConnectionOpts) ([]byte, error) {
	return nil, notSupported("ReadFile()")
}
