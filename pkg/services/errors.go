// Package services implements the workflow use cases on top of the engine and persistence layers.
package services

import (
	"errors"
	"fmt"

	"github.com/hrflow/hrflow/pkg/condition"
	"github.com/hrflow/hrflow/pkg/graph"
	"github.com/hrflow/hrflow/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")
	ErrReasonRequired = errors.New("a reason is required to reject")

	// Authorization Errors (403 Forbidden).
	ErrNotAuthorized = errors.New("actor is not authorized for this action")

	// Not Found Errors (404 Not Found).
	ErrNoMatchingDefinition = errors.New("no active workflow matches the event type")

	// Business Logic Conflicts (409 Conflict).
	ErrDefinitionNotActive = errors.New("workflow definition is not active")
	ErrDefinitionArchived  = errors.New("workflow definition is archived")
	ErrInvalidTransition   = errors.New("invalid workflow status transition")
	ErrInstanceNotRunning  = errors.New("workflow instance is not running")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, graph.ErrInvalidGraph) ||
		errors.Is(err, condition.ErrInvalidRule)
}

// IsForbiddenError checks if an error should return HTTP 403.
func IsForbiddenError(err error) bool {
	return errors.Is(err, ErrNotAuthorized)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsNotFound(err) || errors.Is(err, ErrNoMatchingDefinition)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrDefinitionNotActive) ||
		errors.Is(err, ErrDefinitionArchived) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInstanceNotRunning) ||
		errors.Is(err, persistence.ErrAlreadyDecided) ||
		errors.Is(err, persistence.ErrConcurrentModification) ||
		errors.Is(err, persistence.ErrDuplicatePendingAction)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func newError(op, code string, err error) *ServiceError {
	return &ServiceError{Op: op, Code: code, Err: err}
}
