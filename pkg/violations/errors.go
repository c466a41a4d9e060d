package violations

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStatus indicates a status outside the violation status enum.
	ErrInvalidStatus = errors.New("invalid violation status")

	// ErrDuplicate indicates a violation id that is already stored.
	ErrDuplicate = errors.New("violation already exists")
)

// NotFoundError reports an unknown violation id.
type NotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("violation %q not found", e.ID)
}

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // "sqlite", "memory"
	Operation string // "save", "list", "update_status", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}
