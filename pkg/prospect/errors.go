package prospect

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed or unsupported input. It is a producer-side
// bug and is never retried.
type ValidationError struct {
	Field   string // Offending field ("version", "candidates[3].url", ...)
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error [field=%s]: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// BatchTooLargeError is returned when a single delete call asks for more IDs
// than the configured ceiling. It is a contract violation and fails before any
// backend call.
type BatchTooLargeError struct {
	Requested int
	Max       int
}

// Error implements the error interface.
func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("batch too large: %d ids requested, max %d per delete", e.Requested, e.Max)
}

// NewBatchTooLargeError creates a new BatchTooLargeError.
func NewBatchTooLargeError(requested, limit int) *BatchTooLargeError {
	return &BatchTooLargeError{
		Requested: requested,
		Max:       limit,
	}
}

// PersistenceError represents a backend failure that survived the Store's
// retry budget.
type PersistenceError struct {
	Backend   string // Backend name ("sqlite", "redis", ...)
	Operation string // Operation that failed ("insert", "get", "query", "delete")
	Attempts  int    // Attempts made before giving up
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error [backend=%s, operation=%s, attempts=%d]: %v",
		e.Backend, e.Operation, e.Attempts, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// NewPersistenceError creates a new PersistenceError.
func NewPersistenceError(backend, operation string, attempts int, cause error) *PersistenceError {
	return &PersistenceError{
		Backend:   backend,
		Operation: operation,
		Attempts:  attempts,
		Cause:     cause,
	}
}

// PartialDeleteError names the IDs a bulk delete left unprocessed after the
// retry budget was spent.
type PartialDeleteError struct {
	Unprocessed []string
	Attempts    int
}

// Error implements the error interface.
func (e *PartialDeleteError) Error() string {
	const maxListed = 5
	listed := e.Unprocessed
	suffix := ""
	if len(listed) > maxListed {
		listed = listed[:maxListed]
		suffix = fmt.Sprintf(", ... (%d more)", len(e.Unprocessed)-maxListed)
	}
	return fmt.Sprintf("partial delete [attempts=%d]: %d ids unprocessed: %s%s",
		e.Attempts, len(e.Unprocessed), strings.Join(listed, ", "), suffix)
}

// NewPartialDeleteError creates a new PartialDeleteError. The id slice is
// copied.
func NewPartialDeleteError(unprocessed []string, attempts int) *PartialDeleteError {
	ids := make([]string, len(unprocessed))
	copy(ids, unprocessed)
	return &PartialDeleteError{
		Unprocessed: ids,
		Attempts:    attempts,
	}
}
