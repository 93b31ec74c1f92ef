// Package errs defines the orchestrator-wide error taxonomy (spec §7).
//
// Each kind is a sentinel error; call sites wrap it with contextual detail
// types so callers can both errors.Is against the kind and recover structured
// fields with errors.As.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. These are never returned bare — always wrapped by one
// of the detail types below, or by fmt.Errorf("...: %w", Kind).
var (
	// ErrInvalidState marks a state-machine transition violation.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrNotFound marks a missing entity lookup.
	ErrNotFound = errors.New("not found")
	// ErrBoundaryViolation marks a file write outside a task's safety boundary.
	ErrBoundaryViolation = errors.New("boundary violation")
	// ErrTimeoutExceeded marks a subprocess timeout.
	ErrTimeoutExceeded = errors.New("timeout exceeded")
	// ErrToolExecution marks an LLM or subprocess spawn failure.
	ErrToolExecution = errors.New("tool execution failed")
	// ErrGateFailure marks a regression or type-check failure.
	ErrGateFailure = errors.New("gate failure")
	// ErrCancellationRequested marks cooperative cancellation.
	ErrCancellationRequested = errors.New("cancellation requested")
)

// InvalidStateError wraps ErrInvalidState with the attempted transition.
type InvalidStateError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: invalid transition from %q to %q", e.Entity, e.From, e.To)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// NotFoundError wraps ErrNotFound with the entity kind and id that were missing.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// BoundaryViolationError wraps ErrBoundaryViolation with the offending path.
type BoundaryViolationError struct {
	TaskID string
	Path   string
	Reason string
}

func (e *BoundaryViolationError) Error() string {
	return fmt.Sprintf("task %s: write to %q denied: %s", e.TaskID, e.Path, e.Reason)
}

func (e *BoundaryViolationError) Unwrap() error { return ErrBoundaryViolation }

// GateFailureError wraps ErrGateFailure with the human-readable recommendations
// produced by RegressionGate.
type GateFailureError struct {
	TaskID          string
	Recommendations []string
}

func (e *GateFailureError) Error() string {
	return fmt.Sprintf("task %s failed regression gate: %v", e.TaskID, e.Recommendations)
}

func (e *GateFailureError) Unwrap() error { return ErrGateFailure }

// ToolExecutionError wraps ErrToolExecution with the underlying cause.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return ErrToolExecution }
