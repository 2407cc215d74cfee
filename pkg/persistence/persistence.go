// Package persistence provides data storage abstraction layer for workflows, instances and approvals.
package persistence

import (
	"context"

	"github.com/hrflow/hrflow/pkg/models"
)

// Persistence groups the repositories of one storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	InstanceRepository() InstanceRepository
	PendingActionRepository() PendingActionRepository
	AuditRepository() AuditRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions filters workflow listings.
type ListWorkflowsOptions struct {
	Status    *models.WorkflowStatus
	EventType string
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, tenantID, id string) (*models.Workflow, error)
	List(ctx context.Context, tenantID string, opts ListWorkflowsOptions) ([]*models.Workflow, error)
	Delete(ctx context.Context, tenantID, id string) error
}

// ListInstancesOptions filters instance listings.
type ListInstancesOptions struct {
	Status       *models.InstanceStatus
	DefinitionID string
}

// InstanceRepository stores workflow instances and their append-only history.
type InstanceRepository interface {
	// Save inserts (Version == 0) or updates the instance, failing with ErrConcurrentModification
	// when the stored version differs from instance.Version. On success instance.Version is bumped.
	// A non-nil action is created in the same atomic write; at most one pending action may be
	// open per (instance, node), otherwise ErrDuplicatePendingAction.
	Save(ctx context.Context, instance *models.WorkflowInstance, action *models.PendingAction) error
	GetByID(ctx context.Context, tenantID, id string) (*models.WorkflowInstance, error)
	List(ctx context.Context, tenantID string, opts ListInstancesOptions) ([]*models.WorkflowInstance, error)
}

// PendingActionRepository stores approvals in flight and historically closed.
type PendingActionRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*models.PendingAction, error)
	// ListOpen returns pending actions assigned to any of roles or directly to userID.
	ListOpen(ctx context.Context, tenantID string, roles []string, userID string) ([]*models.PendingAction, error)
	ListByInstance(ctx context.Context, tenantID, instanceID string) ([]*models.PendingAction, error)
	// Close atomically moves a pending action to its decided status. If the action is no longer
	// pending it returns an *AlreadyDecidedError carrying the stored action.
	Close(ctx context.Context, tenantID, id string, closure models.ActionClosure) (*models.PendingAction, error)
}

// AuditRepository stores audit records.
type AuditRepository interface {
	Append(ctx context.Context, record *models.AuditRecord) error
	ListByInstance(ctx context.Context, tenantID, instanceID string) ([]*models.AuditRecord, error)
}
