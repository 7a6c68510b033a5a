package simulator

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/portworx/jobharness/drivers/node"
	"github.com/portworx/jobharness/drivers/node/local"
	"github.com/portworx/jobharness/pkg/errors"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/spf13/afero"
)

type host struct {
	node        node.Node
	fs          afero.Fs
	files       *local.Local
	pid         int
	serviceDown bool
	rotations   int
}

func noCommands(ctx context.Context, command string) (string, error) {
	return "", fmt.Errorf("simulated hosts do not run commands: %s", command)
}

func (b *Backend) addHost(n node.Node) {
	if _, ok := b.hosts[n.Name]; ok {
		return
	}
	if n.LogDir == "" {
		n.LogDir = DefaultLogDir
	}
	fs := afero.NewMemMapFs()
	b.hosts[n.Name] = &host{
		node:  n,
		fs:    fs,
		files: local.New(fs, noCommands),
		pid:   4000 + 100*len(b.names),
	}
	b.names = append(b.names, n.Name)
}

// AddHost registers a host jobs can run on
func (b *Backend) AddHost(n node.Node) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addHost(n)
}

// HostFs returns the filesystem of the named host
func (b *Backend) HostFs(name string) (afero.Fs, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, err := b.host(name)
	if err != nil {
		return nil, err
	}
	return h.fs, nil
}

// LogPath returns the path of the current job log on the named host
func (b *Backend) LogPath(name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, err := b.host(name)
	if err != nil {
		return "", err
	}
	return path.Join(h.node.LogDir, b.opts.LogFile), nil
}

func (b *Backend) host(name string) (*host, error) {
	h, ok := b.hosts[name]
	if !ok {
		return nil, &errors.ErrNotFound{ID: name, Type: "Host"}
	}
	return h, nil
}

// writeLog appends a line for j to the log of its host in the backend log
// layout: pid tid date time jobid message
func (b *Backend) writeLog(j *simJob, format string, args ...interface{}) {
	h, ok := b.hosts[j.info.Host]
	if !ok {
		return
	}
	tid, _ := strconv.Atoi(j.info.ID)
	line := fmt.Sprintf("%-6d %-6x %s %s Job-ID: %s %s\n",
		h.pid, 0x1000+tid, b.opts.Now().Format("01/02 15:04:05"),
		j.info.ID, j.info.ID, fmt.Sprintf(format, args...))
	if err := h.fs.MkdirAll(h.node.LogDir, 0755); err != nil {
		log.Warnf("Failed to create %s on %s: %v", h.node.LogDir, h.node.Name, err)
		return
	}
	f, err := h.fs.OpenFile(path.Join(h.node.LogDir, b.opts.LogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Warnf("Failed to open job log on %s: %v", h.node.Name, err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		log.Warnf("Failed to write job log on %s: %v", h.node.Name, err)
	}
}

// RotateLog moves the current job log of the named host aside as
// <name>_<n><ext>, zipped when compress is set, and returns the new path.
func (b *Backend) RotateLog(name string, compress bool) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, err := b.host(name)
	if err != nil {
		return "", err
	}
	current := path.Join(h.node.LogDir, b.opts.LogFile)
	content, err := afero.ReadFile(h.fs, current)
	if err != nil {
		return "", err
	}
	h.rotations++
	ext := path.Ext(b.opts.LogFile)
	rotated := fmt.Sprintf("%s_%d%s", strings.TrimSuffix(b.opts.LogFile, ext), h.rotations, ext)
	target := path.Join(h.node.LogDir, rotated)

	if compress {
		target += ".zip"
		f, err := h.fs.Create(target)
		if err != nil {
			return "", err
		}
		zw := zip.NewWriter(f)
		w, err := zw.Create(rotated)
		if err == nil {
			_, err = w.Write(content)
		}
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return "", err
		}
		if err := h.fs.Remove(current); err != nil {
			return "", err
		}
	} else if err := h.fs.Rename(current, target); err != nil {
		return "", err
	}
	log.Debugf("Rotated %s on %s to %s", current, name, target)
	return target, nil
}

// Interrupt moves the unfinished jobs on the named host to pending and
// returns their ids
func (b *Backend) Interrupt(name, reason string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.host(name); err != nil {
		return nil, err
	}
	return b.interrupt(name, reason), nil
}

// Nodes returns a node driver acting on the simulated hosts
func (b *Backend) Nodes() node.Driver {
	return &nodeView{Driver: node.NotSupportedDriver, b: b}
}

type nodeView struct {
	node.Driver
	b *Backend
}

func (v *nodeView) String() string {
	return DriverName
}

// Init registers options.Nodes as simulated hosts
func (v *nodeView) Init(options node.InitOptions) error {
	for _, n := range options.Nodes {
		v.b.AddHost(n)
	}
	return nil
}

func (v *nodeView) lookup(n node.Node) (*host, error) {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	return v.b.host(n.Name)
}

func (v *nodeView) TestConnection(n node.Node, options node.ConnectionOpts) error {
	if _, err := v.lookup(n); err != nil {
		return &node.ErrFailedToTestConnection{Node: n, Cause: err.Error()}
	}
	return nil
}

// KillProcess terminates the backend process when name is part of its
// command line or the pid matches. The service manager brings it back
// with a new pid while the jobs it ran stay pending.
func (v *nodeView) KillProcess(n node.Node, name string, options node.KillProcessOpts) error {
	b := v.b
	b.mu.Lock()
	defer b.mu.Unlock()
	h, err := b.host(n.Name)
	if err != nil {
		return &node.ErrFailedToKillProcess{Node: n, Process: name, Cause: err.Error()}
	}
	if options.PID > 0 {
		if options.PID != h.pid {
			return &node.ErrFailedToKillProcess{Node: n, Process: strconv.Itoa(options.PID), Cause: "no such process"}
		}
	} else if name == "" || !strings.Contains(b.opts.Process, name) {
		log.Debugf("No process matching %s on %s", name, n.Name)
		return nil
	}
	ids := b.interrupt(n.Name, fmt.Sprintf("The process [%s] on [%s] terminated unexpectedly", b.opts.Process, n.Name))
	h.pid++
	log.Infof("Killed %s on %s, interrupted jobs %v", b.opts.Process, n.Name, ids)
	return nil
}

func (v *nodeView) Systemctl(n node.Node, service string, options node.SystemctlOpts) error {
	b := v.b
	b.mu.Lock()
	defer b.mu.Unlock()
	h, err := b.host(n.Name)
	if err != nil {
		return &node.ErrFailedToRunSystemctlOnNode{Node: n, Cause: err.Error()}
	}
	if service != b.opts.Service {
		return &node.ErrFailedToRunSystemctlOnNode{Node: n, Cause: fmt.Sprintf("Unit %s.service not found", service)}
	}
	switch options.Action {
	case "stop":
		b.interrupt(n.Name, fmt.Sprintf("Services on [%s] were stopped", n.Name))
		h.serviceDown = true
	case "start":
		if h.serviceDown {
			h.pid++
		}
		h.serviceDown = false
	case "restart":
		b.interrupt(n.Name, fmt.Sprintf("Services on [%s] were restarted", n.Name))
		h.serviceDown = false
		h.pid++
	case "status", "is-active":
		if h.serviceDown {
			return &node.ErrFailedToRunSystemctlOnNode{Node: n, Cause: fmt.Sprintf("%s is inactive", service)}
		}
	default:
		return &node.ErrFailedToRunSystemctlOnNode{Node: n, Cause: fmt.Sprintf("unknown action %q", options.Action)}
	}
	log.Infof("systemctl %s %s on %s", options.Action, service, n.Name)
	return nil
}

func (v *nodeView) RebootNode(n node.Node, options node.RebootNodeOpts) error {
	b := v.b
	b.mu.Lock()
	defer b.mu.Unlock()
	h, err := b.host(n.Name)
	if err != nil {
		return &node.ErrFailedToRebootNode{Node: n, Cause: err.Error()}
	}
	b.interrupt(n.Name, fmt.Sprintf("Host [%s] went down", n.Name))
	h.serviceDown = false
	h.pid++
	return nil
}

func (v *nodeView) DeletePath(n node.Node, p string, options node.ConnectionOpts) error {
	h, err := v.lookup(n)
	if err != nil {
		return &node.ErrFailedToDeletePath{Node: n, Path: p, Cause: err.Error()}
	}
	return h.files.DeletePath(n, p, options)
}

func (v *nodeView) CheckIfPathExists(p string, n node.Node, options node.ConnectionOpts) (bool, error) {
	h, err := v.lookup(n)
	if err != nil {
		return false, &node.ErrFailedToCheckPathOnNode{Node: n, Cause: err.Error()}
	}
	return h.files.CheckIfPathExists(p, n, options)
}

func (v *nodeView) FindFiles(p string, n node.Node, options node.FindOpts) ([]string, error) {
	h, err := v.lookup(n)
	if err != nil {
		return nil, &node.ErrFailedToFindFileOnNode{Node: n, Cause: err.Error()}
	}
	return h.files.FindFiles(p, n, options)
}

func (v *nodeView) ReadFile(p string, n node.Node, options node.ConnectionOpts) ([]byte, error) {
	h, err := v.lookup(n)
	if err != nil {
		return nil, &node.ErrFailedToReadFile{Node: n, Path: p, Cause: err.Error()}
	}
	return h.files.ReadFile(p, n, options)
}
