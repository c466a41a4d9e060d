package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionConflict is returned by a Store when the expected version does not
	// match the stored one.
	ErrVersionConflict = errors.New("workflow version conflict")

	// ErrNoActiveStep indicates every step of the workflow is already complete.
	ErrNoActiveStep = errors.New("workflow has no active step")

	// ErrDuplicate is returned by a Store when a workflow id already exists.
	ErrDuplicate = errors.New("workflow already exists")
)

// NotFoundError reports an unknown workflow id.
type NotFoundError struct {
	WorkflowID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("workflow %q not found", e.WorkflowID)
}

// InvalidTransitionError reports an action the state machine does not allow from
// the workflow's current status. The workflow is left unmodified.
type InvalidTransitionError struct {
	WorkflowID string
	From       Status
	To         Status
	Action     Action
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("workflow %s: unknown action %q", e.WorkflowID, e.Action)
	}
	return fmt.Sprintf("workflow %s: invalid transition from %s to %s (action %s)",
		e.WorkflowID, e.From, e.To, e.Action)
}

// ValidationError reports unusable input to an engine operation.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StorageError represents an error from a workflow store backend.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("workflow storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
