package engine

import (
	"errors"
	"fmt"
)

// Error kinds categorize engine errors by their type.
const (
	// KindNotFound represents errors where a referenced identity or node
	// was not found.
	KindNotFound = "not_found"

	// KindConflict represents violations of the single-node-per-identity
	// invariant.
	KindConflict = "conflict"

	// KindValidation represents errors related to input validation.
	KindValidation = "validation"

	// KindStorage represents failures of the backing lineage store.
	KindStorage = "storage"

	// KindInternal represents internal engine errors.
	KindInternal = "internal"
)

// EngineError is a structured error type that wraps underlying errors with
// the operation that failed and the category of error.
//
// EngineError implements the error interface and supports error unwrapping,
// making it compatible with errors.Is() and errors.As().
type EngineError struct {
	// Op is the operation that failed (e.g., "Engine.RecordNode").
	Op string

	// Kind categorizes the error (e.g., KindNotFound, KindConflict).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional).
	Context map[string]any
}

// Error implements the error interface, returning a formatted message that
// includes the operation, kind, and underlying error.
func (e *EngineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("engine: %s: %s", e.Op, e.Kind)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("engine: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}
	return fmt.Sprintf("engine: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and errors.As()
// to work correctly with wrapped errors.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error matching for EngineError, allowing comparison based
// on the underlying error or another EngineError's Kind and Op.
func (e *EngineError) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*EngineError); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}
	return errors.Is(e.Err, target)
}

// WithContext returns a copy of the error with the provided context added.
func (e *EngineError) WithContext(ctx map[string]any) *EngineError {
	newErr := *e
	if newErr.Context == nil {
		newErr.Context = make(map[string]any)
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// NewNotFoundError creates a new EngineError with KindNotFound.
func NewNotFoundError(op string, err error) *EngineError {
	return &EngineError{Op: op, Kind: KindNotFound, Err: err}
}

// NewConflictError creates a new EngineError with KindConflict.
func NewConflictError(op string, err error) *EngineError {
	return &EngineError{Op: op, Kind: KindConflict, Err: err}
}

// NewValidationError creates a new EngineError with KindValidation.
func NewValidationError(op string, err error) *EngineError {
	return &EngineError{Op: op, Kind: KindValidation, Err: err}
}

// NewStorageError creates a new EngineError with KindStorage.
func NewStorageError(op string, err error) *EngineError {
	return &EngineError{Op: op, Kind: KindStorage, Err: err}
}

// NewInternalError creates a new EngineError with KindInternal.
func NewInternalError(op string, err error) *EngineError {
	return &EngineError{Op: op, Kind: KindInternal, Err: err}
}
