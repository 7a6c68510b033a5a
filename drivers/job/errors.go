package job

import (
	"fmt"
)

// ErrFailedToSubmitJob error type when the backend rejects a job
type ErrFailedToSubmitJob struct {
	Type   Type
	Client string
	Cause  string
}

func (e *ErrFailedToSubmitJob) Error() string {
	return fmt.Sprintf("Failed to submit %v job for client %v. Cause: %v", e.Type, e.Client, e.Cause)
}

// ErrFailedToInspectJob error type when a job cannot be read
type ErrFailedToInspectJob struct {
	ID    string
	Cause string
}

func (e *ErrFailedToInspectJob) Error() string {
	return fmt.Sprintf("Failed to inspect job %v. Cause: %v", e.ID, e.Cause)
}

// ErrFailedToModifyJob error type when a control action is rejected
type ErrFailedToModifyJob struct {
	ID     string
	Action Action
	Cause  string
}

func (e *ErrFailedToModifyJob) Error() string {
	return fmt.Sprintf("Failed to %v job %v. Cause: %v", e.Action, e.ID, e.Cause)
}

// ErrInvalidTransition error type when an action does not apply to the current status
// From is empty when the backend refused the action without naming the status.
type ErrInvalidTransition struct {
	ID     string
	From   Status
	To     Status
	Reason string
}

func (e *ErrInvalidTransition) Error() string {
	if e.From == "" {
		return fmt.Sprintf("job %v cannot move to [%v]: %v", e.ID, e.To, e.Reason)
	}
	return fmt.Sprintf("job %v cannot move from [%v] to [%v]", e.ID, e.From, e.To)
}
