// Package local implements the node driver for the machine the harness runs
// on. Commands go through os/exec and file operations through afero so the
// driver can run against an in-memory filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/portworx/jobharness/drivers/node"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/spf13/afero"
)

const (
	// DriverName is the name of the local driver
	DriverName = "local"
)

// CommandRunner runs a shell command and returns its combined output
type CommandRunner func(ctx context.Context, command string) (string, error)

func shellRunner(ctx context.Context, command string) (string, error) {
	out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	return string(out), err
}

// Local is the local node driver
type Local struct {
	node.Driver
	mu     sync.Mutex
	fs     afero.Fs
	runner CommandRunner
}

// New returns a local driver over fs running commands with runner. nil
// arguments select the OS filesystem and sh -c.
func New(fs afero.Fs, runner CommandRunner) *Local {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if runner == nil {
		runner = shellRunner
	}
	return &Local{Driver: node.NotSupportedDriver, fs: fs, runner: runner}
}

func (l *Local) String() string {
	return DriverName
}

// Fs returns the filesystem the driver works on
func (l *Local) Fs() afero.Fs {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fs
}

// SetFs replaces the filesystem
func (l *Local) SetFs(fs afero.Fs) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fs = fs
}

func (l *Local) Init(options node.InitOptions) error {
	return nil
}

func (l *Local) TestConnection(n node.Node, options node.ConnectionOpts) error {
	return nil
}

func (l *Local) run(n node.Node, command string, options node.ConnectionOpts) (string, error) {
	opts := options.WithDefaults()
	t := func() (interface{}, bool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		defer cancel()
		out, err := l.runner(ctx, command)
		if err != nil && !opts.IgnoreError {
			return out, true, &node.ErrFailedToRunCommand{
				Addr:  n.Name,
				Cause: fmt.Sprintf("unable to run cmd (%v): %v. Output: %s", command, err, out),
			}
		}
		return out, false, nil
	}
	out, err := opts.Retry(t)
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (l *Local) RunCommand(n node.Node, command string, options node.ConnectionOpts) (string, error) {
	return l.run(n, command, options)
}

func (l *Local) KillProcess(n node.Node, processName string, options node.KillProcessOpts) error {
	cmd := node.KillCommand(processName)
	target := processName
	if options.PID > 0 {
		cmd = fmt.Sprintf("kill -9 %d", options.PID)
		target = strconv.Itoa(options.PID)
	}
	if _, err := l.run(n, cmd, options.ConnectionOpts); err != nil {
		return &node.ErrFailedToKillProcess{Node: n, Process: target, Cause: err.Error()}
	}
	return nil
}

func (l *Local) Systemctl(n node.Node, service string, options node.SystemctlOpts) error {
	cmd := fmt.Sprintf("systemctl %v %v", options.Action, service)
	if _, err := l.run(n, cmd, options.ConnectionOpts); err != nil {
		return &node.ErrFailedToRunSystemctlOnNode{Node: n, Cause: err.Error()}
	}
	return nil
}

func (l *Local) DeletePath(n node.Node, path string, options node.ConnectionOpts) error {
	if err := l.Fs().RemoveAll(path); err != nil {
		return &node.ErrFailedToDeletePath{Node: n, Path: path, Cause: err.Error()}
	}
	log.Debugf("Deleted %s on %s", path, n.Name)
	return nil
}

func (l *Local) RebootNode(n node.Node, options node.RebootNodeOpts) error {
	cmd := "reboot"
	if options.Force {
		cmd += " -f"
	}
	if _, err := l.run(n, cmd, options.ConnectionOpts); err != nil {
		return &node.ErrFailedToRebootNode{Node: n, Cause: err.Error()}
	}
	return nil
}

func (l *Local) CheckIfPathExists(path string, n node.Node, options node.ConnectionOpts) (bool, error) {
	exists, err := afero.Exists(l.Fs(), path)
	if err != nil {
		return false, &node.ErrFailedToCheckPathOnNode{Node: n, Cause: err.Error()}
	}
	return exists, nil
}

// FindFiles walks path and returns the matches sorted by path
func (l *Local) FindFiles(path string, n node.Node, options node.FindOpts) ([]string, error) {
	fs := l.Fs()
	var files []string
	err := afero.Walk(fs, path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		depth := depthBelow(path, p)
		if options.MaxDepth > 0 && depth > options.MaxDepth {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if depth < options.MinDepth {
			return nil
		}
		switch options.Type {
		case node.File:
			if info.IsDir() {
				return nil
			}
		case node.Directory:
			if !info.IsDir() {
				return nil
			}
		}
		if options.Name != "" {
			matched, err := filepath.Match(options.Name, info.Name())
			if err != nil {
				return err
			}
			if !matched {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, &node.ErrFailedToFindFileOnNode{Node: n, Cause: err.Error()}
	}
	sort.Strings(files)
	return files, nil
}

func depthBelow(root, p string) int {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return 0
	}
	depth := 1
	for _, c := range rel {
		if c == filepath.Separator {
			depth++
		}
	}
	return depth
}

func (l *Local) ReadFile(path string, n node.Node, options node.ConnectionOpts) ([]byte, error) {
	content, err := afero.ReadFile(l.Fs(), path)
	if err != nil {
		return nil, &node.ErrFailedToReadFile{Node: n, Path: path, Cause: err.Error()}
	}
	return content, nil
}

func init() {
	if err := node.Register(DriverName, New(nil, nil)); err != nil {
		log.Errorf("Failed to register node driver %s: %v", DriverName, err)
	}
}
