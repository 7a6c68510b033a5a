package node

import (
	"fmt"
)

// ErrFailedToTestConnection error type when failing to test connection
type ErrFailedToTestConnection struct {
	Node  Node
	Cause string
}

func (e *ErrFailedToTestConnection) Error() string {
	return fmt.Sprintf("Failed to test connnection to %v. Cause: %v", e.Node.Name, e.Cause)
}

// ErrFailedToRebootNode error type when failing to reboot a node
type ErrFailedToRebootNode struct {
	Node  Node
	Cause string
}

func (e *ErrFailedToRebootNode) Error() string {
	return fmt.Sprintf("Failed to reboot node: %v. Cause: %v", e.Node.Name, e.Cause)
}

// ErrFailedToRunCommand error type when failing to run command
type ErrFailedToRunCommand struct {
	Addr  string
	Cause string
}

func (e *ErrFailedToRunCommand) Error() string {
	return fmt.Sprintf("Failed to run command on: %v. Cause: %v", e.Addr, e.Cause)
}

// ErrFailedToKillProcess error type when failing to kill a process
type ErrFailedToKillProcess struct {
	Node    Node
	Process string
	Cause   string
}

func (e *ErrFailedToKillProcess) Error() string {
	return fmt.Sprintf("Failed to kill process %v on node: %v. Cause: %v", e.Process, e.Node.Name, e.Cause)
}

// ErrFailedToRunSystemctlOnNode error type when failing to run systemctl on a node
type ErrFailedToRunSystemctlOnNode struct {
	Node  Node
	Cause string
}

func (e *ErrFailedToRunSystemctlOnNode) Error() string {
	return fmt.Sprintf("Failed to run systemctl on node: %v. Cause: %v", e.Node.Name, e.Cause)
}

// ErrFailedToDeletePath error type when failing to delete a path
type ErrFailedToDeletePath struct {
	Node  Node
	Path  string
	Cause string
}

func (e *ErrFailedToDeletePath) Error() string {
	return fmt.Sprintf("Failed to delete %v on node: %v. Cause: %v", e.Path, e.Node.Name, e.Cause)
}

// ErrFailedToCheckPathOnNode error type when failing to check a path
type ErrFailedToCheckPathOnNode struct {
	Node  Node
	Cause string
}

func (e *ErrFailedToCheckPathOnNode) Error() string {
	return fmt.Sprintf("Failed to check path on node: %v. Cause: %v", e.Node.Name, e.Cause)
}

// ErrFailedToFindFileOnNode error type when failing to find a file on a node
type ErrFailedToFindFileOnNode struct {
	Node  Node
	Cause string
}

func (e *ErrFailedToFindFileOnNode) Error() string {
	return fmt.Sprintf("Failed to find file on node: %v. Cause: %v", e.Node.Name, e.Cause)
}

// ErrFailedToReadFile error type when failing to read a file from a node
type ErrFailedToReadFile struct {
	Node  Node
	Path  string
	Cause string
}

func (e *ErrFailedToReadFile) Error() string {
	return fmt.Sprintf("Failed to read %v from node: %v. Cause: %v", e.Path, e.Node.Name, e.Cause)
}
