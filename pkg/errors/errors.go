package errors

import (
	"errors"
	"fmt"
)

// FailureCategory classifies why a scenario failed
type FailureCategory string

const (
	// CategoryNone is used when there is no failure
	CategoryNone FailureCategory = ""
	// CategorySetup resource creation or driver initialization failed
	CategorySetup FailureCategory = "setup"
	// CategoryJob a job ended in a state other than the expected one
	CategoryJob FailureCategory = "job"
	// CategoryValidation a verification found actual != expected
	CategoryValidation FailureCategory = "validation"
	// CategoryTimeout a bounded wait exhausted its budget
	CategoryTimeout FailureCategory = "timeout"
	// CategoryUnknown anything else
	CategoryUnknown FailureCategory = "unknown"
)

// ErrNotFound error type for objects not found
type ErrNotFound struct {
	// ID unique object identifier.
	ID string
	// Type of the object which wasn't found
	Type string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%v with UID/Name: %v not found", e.Type, e.ID)
}

// ErrNotSupported error type for APIs that are not supported
type ErrNotSupported struct {
	// Type is the type of the object that is not supported
	Type string
	// Operation is the operation that is not supported
	Operation string
}

func (e *ErrNotSupported) Error() string {
	return fmt.Sprintf("%v is not supported for %v", e.Operation, e.Type)
}

// ErrSetup is returned when a resource a scenario depends on could not be prepared
type ErrSetup struct {
	Resource string
	Cause    string
}

func (e *ErrSetup) Error() string {
	return fmt.Sprintf("Failed to set up %v. Cause: %v", e.Resource, e.Cause)
}

// ErrJobFailed is returned when a job reached a terminal state other than the expected one
type ErrJobFailed struct {
	JobID       string
	Status      string
	DelayReason string
}

func (e *ErrJobFailed) Error() string {
	if e.DelayReason == "" {
		return fmt.Sprintf("job [%v] finished with status [%v]", e.JobID, e.Status)
	}
	return fmt.Sprintf("job [%v] finished with status [%v]. Reason: [%v]", e.JobID, e.Status, e.DelayReason)
}

// ErrValidation is returned when a verification mismatches
type ErrValidation struct {
	Description string
	Expected    string
	Actual      string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation failed: %v. Expected: [%v], Actual: [%v]", e.Description, e.Expected, e.Actual)
}

// timeoutError is satisfied by the retry package's ErrTimedOut without importing it
type timeoutError interface {
	Timeout() bool
}

// Category maps an error to the failure taxonomy
func Category(err error) FailureCategory {
	if err == nil {
		return CategoryNone
	}

	var setupErr *ErrSetup
	var jobErr *ErrJobFailed
	var validationErr *ErrValidation
	var tErr timeoutError

	switch {
	case errors.As(err, &setupErr):
		return CategorySetup
	case errors.As(err, &jobErr):
		return CategoryJob
	case errors.As(err, &validationErr):
		return CategoryValidation
	case errors.As(err, &tErr) && tErr.Timeout():
		return CategoryTimeout
	}
	return CategoryUnknown
}
