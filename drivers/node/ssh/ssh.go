package ssh

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/portworx/jobharness/drivers/node"
	"github.com/portworx/jobharness/pkg/log"
	"github.com/povsister/scp"
	ssh_pkg "golang.org/x/crypto/ssh"
)

const (
	// DriverName is the name of the ssh driver
	DriverName = "ssh"
	// DefaultUsername is the default username used for ssh operations
	DefaultUsername = "root"
	// DefaultSSHPort is the default port used for ssh operations
	DefaultSSHPort = 22
	// DefaultSSHKey is the default private key path used for ssh operations
	DefaultSSHKey = "/root/.ssh/id_rsa"

	dialTimeout = 30 * time.Second
)

type ssh struct {
	node.Driver
	username  string
	password  string
	keyPath   string
	port      int
	sshConfig *ssh_pkg.ClientConfig
}

func (s *ssh) String() string {
	return DriverName
}

func getKeyFile(keypath string) (ssh_pkg.Signer, error) {
	buf, err := os.ReadFile(keypath)
	if err != nil {
		return nil, err
	}

	pubkey, err := ssh_pkg.ParsePrivateKey(buf)
	if err != nil {
		return nil, err
	}

	return pubkey, nil
}

func (s *ssh) Init(options node.InitOptions) error {
	if options.Username != "" {
		s.username = options.Username
	}
	if options.Password != "" {
		s.password = options.Password
	}
	if options.KeyPath != "" {
		s.keyPath = options.KeyPath
	}
	if options.Port != 0 {
		s.port = options.Port
	}

	if s.password != "" {
		s.sshConfig = &ssh_pkg.ClientConfig{
			User: s.username,
			Auth: []ssh_pkg.AuthMethod{
				ssh_pkg.Password(s.password),
			},
			HostKeyCallback: ssh_pkg.InsecureIgnoreHostKey(),
			Timeout:         dialTimeout,
		}
	} else if s.keyPath != "" {
		pubkey, err := getKeyFile(s.keyPath)
		if err != nil {
			return fmt.Errorf("Error getting public keyPath from keyfile %s: %v", s.keyPath, err)
		}
		s.sshConfig = &ssh_pkg.ClientConfig{
			User: s.username,
			Auth: []ssh_pkg.AuthMethod{
				ssh_pkg.PublicKeys(pubkey),
			},
			HostKeyCallback: ssh_pkg.InsecureIgnoreHostKey(),
			Timeout:         dialTimeout,
		}
	} else {
		return fmt.Errorf("Unknown auth type")
	}

	for _, n := range options.Nodes {
		if err := s.TestConnection(n, node.ConnectionOpts{
			Timeout:         1 * time.Minute,
			TimeBeforeRetry: 10 * time.Second,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *ssh) TestConnection(n node.Node, options node.ConnectionOpts) error {
	if _, err := s.getAddrToConnect(n, options); err != nil {
		return &node.ErrFailedToTestConnection{
			Node:  n,
			Cause: fmt.Sprintf("failed to get node address due to: %v", err),
		}
	}
	return nil
}

func (s *ssh) RunCommand(n node.Node, command string, options node.ConnectionOpts) (string, error) {
	addr, err := s.getAddrToConnect(n, options)
	if err != nil {
		return "", &node.ErrFailedToRunCommand{
			Addr:  n.Name,
			Cause: fmt.Sprintf("failed to get node address due to: %v", err),
		}
	}

	t := func() (interface{}, bool, error) {
		output, err := s.doCmd(addr, command, options.IgnoreError)
		if err != nil {
			return "", true, &node.ErrFailedToRunCommand{
				Addr:  n.Name,
				Cause: fmt.Sprintf("unable to run cmd (%v): %v", command, err),
			}
		}
		return output, false, nil
	}

	output, err := options.Retry(t)
	if err != nil {
		return "", err
	}
	return output.(string), nil
}

// killCommand is pkill -f for names and kill -9 for pids
func killCommand(processName string, options node.KillProcessOpts) string {
	if options.PID > 0 {
		return fmt.Sprintf("sudo kill -9 %d", options.PID)
	}
	return "sudo " + node.KillCommand(processName)
}

func (s *ssh) KillProcess(n node.Node, processName string, options node.KillProcessOpts) error {
	target := processName
	if options.PID > 0 {
		target = strconv.Itoa(options.PID)
	}
	addr, err := s.getAddrToConnect(n, options.ConnectionOpts)
	if err != nil {
		return &node.ErrFailedToKillProcess{
			Node:    n,
			Process: target,
			Cause:   fmt.Sprintf("failed to get node address due to: %v", err),
		}
	}

	cmd := killCommand(processName, options)
	t := func() (interface{}, bool, error) {
		out, err := s.doCmd(addr, cmd, options.IgnoreError)
		return out, true, err
	}
	if _, err := options.Retry(t); err != nil {
		return &node.ErrFailedToKillProcess{
			Node:    n,
			Process: target,
			Cause:   err.Error(),
		}
	}
	return nil
}

func (s *ssh) Systemctl(n node.Node, service string, options node.SystemctlOpts) error {
	addr, err := s.getAddrToConnect(n, options.ConnectionOpts)
	if err != nil {
		return &node.ErrFailedToRunSystemctlOnNode{
			Node:  n,
			Cause: fmt.Sprintf("failed to get node address due to: %v", err),
		}
	}

	systemctlCmd := fmt.Sprintf("sudo systemctl %v %v", options.Action, service)
	t := func() (interface{}, bool, error) {
		out, err := s.doCmd(addr, systemctlCmd, false)
		return out, true, err
	}

	if _, err := options.Retry(t); err != nil {
		return &node.ErrFailedToRunSystemctlOnNode{
			Node:  n,
			Cause: err.Error(),
		}
	}
	return nil
}

func (s *ssh) DeletePath(n node.Node, path string, options node.ConnectionOpts) error {
	addr, err := s.getAddrToConnect(n, options)
	if err != nil {
		return &node.ErrFailedToDeletePath{
			Node:  n,
			Path:  path,
			Cause: fmt.Sprintf("failed to get node address due to: %v", err),
		}
	}

	cmd := fmt.Sprintf("sudo rm -rf %s", path)
	t := func() (interface{}, bool, error) {
		out, err := s.doCmd(addr, cmd, false)
		return out, true, err
	}
	if _, err := options.Retry(t); err != nil {
		return &node.ErrFailedToDeletePath{
			Node:  n,
			Path:  path,
			Cause: err.Error(),
		}
	}
	return nil
}

func (s *ssh) RebootNode(n node.Node, options node.RebootNodeOpts) error {
	addr, err := s.getAddrToConnect(n, options.ConnectionOpts)
	if err != nil {
		return &node.ErrFailedToRebootNode{
			Node:  n,
			Cause: fmt.Sprintf("failed to get node address due to: %v", err),
		}
	}

	rebootCmd := "sudo reboot"
	if options.Force {
		rebootCmd = rebootCmd + " -f"
	}

	t := func() (interface{}, bool, error) {
		out, err := s.doCmd(addr, rebootCmd, true)
		return out, true, err
	}

	if _, err := options.Retry(t); err != nil {
		return &node.ErrFailedToRebootNode{
			Node:  n,
			Cause: err.Error(),
		}
	}
	return nil
}

func (s *ssh) CheckIfPathExists(path string, n node.Node, options node.ConnectionOpts) (bool, error) {
	addr, err := s.getAddrToConnect(n, options)
	if err != nil {
		return false, &node.ErrFailedToCheckPathOnNode{
			Node:  n,
			Cause: fmt.Sprintf("failed to get node address due to: %v", err),
		}
	}

	// An error is returned if path is not present on the remote node
	if _, err := s.doCmd(addr, "sudo ls "+path, false); err != nil {
		return false, nil
	}
	return true, nil
}

func findCommand(path string, options node.FindOpts) string {
	findCmd := "sudo find " + node.ShellQuote(path)
	if options.Name != "" {
		findCmd += " -name " + node.ShellQuote(options.Name)
	}
	if options.MinDepth > 0 {
		findCmd += " -mindepth " + strconv.Itoa(options.MinDepth)
	}
	if options.MaxDepth > 0 {
		findCmd += " -maxdepth " + strconv.Itoa(options.MaxDepth)
	}
	if options.Type != "" {
		findCmd += " -type " + string(options.Type)
	}
	return findCmd + " 2>/dev/null"
}

func (s *ssh) FindFiles(path string, n node.Node, options node.FindOpts) ([]string, error) {
	addr, err := s.getAddrToConnect(n, options.ConnectionOpts)
	if err != nil {
		return nil, &node.ErrFailedToFindFileOnNode{
			Node:  n,
			Cause: fmt.Sprintf("failed to get node address due to: %v", err),
		}
	}

	findCmd := findCommand(path, options)
	t := func() (interface{}, bool, error) {
		out, err := s.doCmd(addr, findCmd, true)
		return out, true, err
	}

	out, err := options.Retry(t)
	if err != nil {
		return nil, &node.ErrFailedToFindFileOnNode{
			Node:  n,
			Cause: err.Error(),
		}
	}
	return findResults(path, out.(string)), nil
}

// findResults keeps the lines of find output that are paths under root.
// Diagnostics such as "find: ...: No such file or directory" are dropped.
func findResults(root, out string) []string {
	var files []string
	for _, f := range splitLines(out) {
		if strings.HasPrefix(f, root) {
			files = append(files, f)
		}
	}
	return files
}

func splitLines(out string) []string {
	var files []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			files = append(files, l)
		}
	}
	return files
}

// ReadFile copies the remote file to a local temp file over scp and returns its content
func (s *ssh) ReadFile(path string, n node.Node, options node.ConnectionOpts) ([]byte, error) {
	addr, err := s.getAddrToConnect(n, options)
	if err != nil {
		return nil, &node.ErrFailedToReadFile{
			Node:  n,
			Path:  path,
			Cause: fmt.Sprintf("failed to get node address due to: %v", err),
		}
	}

	tmpDir, err := os.MkdirTemp("", "jobharness-scp")
	if err != nil {
		return nil, &node.ErrFailedToReadFile{Node: n, Path: path, Cause: err.Error()}
	}
	defer os.RemoveAll(tmpDir)
	localPath := filepath.Join(tmpDir, filepath.Base(path))

	t := func() (interface{}, bool, error) {
		connection, err := s.dial(addr)
		if err != nil {
			return nil, true, err
		}
		defer connection.Close()

		scpClient, err := scp.NewClientFromExistingSSH(connection, &scp.ClientOption{})
		if err != nil {
			return nil, true, err
		}
		if err := scpClient.CopyFileFromRemote(path, localPath, &scp.FileTransferOption{}); err != nil {
			return nil, true, err
		}
		return nil, false, nil
	}
	if _, err := options.Retry(t); err != nil {
		return nil, &node.ErrFailedToReadFile{Node: n, Path: path, Cause: err.Error()}
	}

	content, err := os.ReadFile(localPath)
	if err != nil {
		return nil, &node.ErrFailedToReadFile{Node: n, Path: path, Cause: err.Error()}
	}
	return content, nil
}

func (s *ssh) dial(addr string) (*ssh_pkg.Client, error) {
	if s.sshConfig == nil {
		return nil, fmt.Errorf("ssh driver is not initialized")
	}
	return ssh_pkg.Dial("tcp", fmt.Sprintf("%s:%d", addr, s.port), s.sshConfig)
}

func (s *ssh) doCmd(addr string, cmd string, ignoreErr bool) (string, error) {
	connection, err := s.dial(addr)
	if err != nil {
		return "", &node.ErrFailedToRunCommand{
			Addr:  addr,
			Cause: fmt.Sprintf("failed to dial: %v", err),
		}
	}
	defer connection.Close()

	session, err := connection.NewSession()
	if err != nil {
		return "", &node.ErrFailedToRunCommand{
			Addr:  addr,
			Cause: fmt.Sprintf("failed to create session: %s", err),
		}
	}
	defer session.Close()

	log.Debugf("Running [%s] on %s", cmd, addr)
	byteout, err := session.CombinedOutput(cmd)
	out := string(byteout)
	if !ignoreErr && err != nil {
		return out, &node.ErrFailedToRunCommand{
			Addr:  addr,
			Cause: fmt.Sprintf("failed to run command due to: %v. Output: %s", err, out),
		}
	}
	return out, nil
}

func (s *ssh) getAddrToConnect(n node.Node, options node.ConnectionOpts) (string, error) {
	if len(n.Addresses) == 0 {
		return "", fmt.Errorf("no address available to connect")
	}
	if n.UsableAddr != "" {
		return n.UsableAddr, nil
	}
	return s.getOneUsableAddr(n, options)
}

func (s *ssh) getOneUsableAddr(n node.Node, options node.ConnectionOpts) (string, error) {
	for _, addr := range n.Addresses {
		t := func() (interface{}, bool, error) {
			out, err := s.doCmd(addr, "hostname", false)
			return out, true, err
		}
		if _, err := options.Retry(t); err == nil {
			n.UsableAddr = addr
			if err := node.UpdateNode(n); err != nil {
				log.Debugf("Node %s is not in the inventory, usable address not cached", n.Name)
			}
			return addr, nil
		}
	}
	return "", fmt.Errorf("no usable address found. Tried: %v. "+
		"Ensure the hosts are set up for ssh access", n.Addresses)
}

func init() {
	s := &ssh{
		Driver:   node.NotSupportedDriver,
		username: DefaultUsername,
		keyPath:  DefaultSSHKey,
		port:     DefaultSSHPort,
	}

	if err := node.Register(DriverName, s); err != nil {
		log.Errorf("Failed to register node driver %s: %v", DriverName, err)
	}
}
