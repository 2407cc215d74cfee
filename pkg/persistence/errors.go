// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"

	"github.com/hrflow/hrflow/pkg/models"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow definition was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInstanceNotFound indicates a workflow instance was not found.
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrPendingActionNotFound indicates a pending action was not found.
	ErrPendingActionNotFound = errors.New("pending action not found")

	// ErrAlreadyDecided indicates a pending action was closed by an earlier decision.
	ErrAlreadyDecided = errors.New("pending action already decided")

	// ErrConcurrentModification indicates an instance changed since it was loaded.
	ErrConcurrentModification = errors.New("workflow instance was modified concurrently")

	// ErrDuplicatePendingAction indicates an open pending action already exists for the instance and node.
	ErrDuplicatePendingAction = errors.New("pending action already open for instance node")
)

// EntityError wraps repository errors with the operation and entity they concern.
type EntityError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Save", "Close")
	Entity string // "workflow", "instance", "pending_action", "audit"
	ID     string
	Err    error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for entity errors.
func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, id string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "workflow", ID: id, Err: err}
}

// NewInstanceError creates a new instance error with context.
func NewInstanceError(op, id string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "instance", ID: id, Err: err}
}

// NewPendingActionError creates a new pending action error with context.
func NewPendingActionError(op, id string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "pending_action", ID: id, Err: err}
}

// AlreadyDecidedError carries the final state of an action that lost a decision race.
type AlreadyDecidedError struct {
	Action *models.PendingAction
}

func (e *AlreadyDecidedError) Error() string {
	return fmt.Sprintf("pending action %s already %s by %s", e.Action.ID, e.Action.Status, e.Action.DecidedBy)
}

func (e *AlreadyDecidedError) Unwrap() error {
	return ErrAlreadyDecided
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsInstanceNotFound checks if an error indicates an instance was not found.
func IsInstanceNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}

// IsPendingActionNotFound checks if an error indicates a pending action was not found.
func IsPendingActionNotFound(err error) bool {
	return errors.Is(err, ErrPendingActionNotFound)
}

// IsAlreadyDecided checks if an error indicates a lost decision race.
func IsAlreadyDecided(err error) bool {
	return errors.Is(err, ErrAlreadyDecided)
}

// IsNotFound checks if an error indicates any entity was not found.
func IsNotFound(err error) bool {
	return IsWorkflowNotFound(err) || IsInstanceNotFound(err) || IsPendingActionNotFound(err)
}

// IsConcurrentModification checks if an error indicates a lost optimistic update.
func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
