package services

import (
	"context"
	"fmt"

	"github.com/hrflow/hrflow/pkg/models"
)

// Publish makes a draft definition eligible for triggering.
func (w *Workflows) Publish(ctx context.Context, tenantID, id string) (*models.Workflow, error) {
	return w.setStatus(ctx, tenantID, id, models.WorkflowStatusActive)
}

// Unpublish moves an active definition back to draft.
func (w *Workflows) Unpublish(ctx context.Context, tenantID, id string) (*models.Workflow, error) {
	return w.setStatus(ctx, tenantID, id, models.WorkflowStatusDraft)
}

// Archive freezes a definition. Running instances continue on their snapshot.
func (w *Workflows) Archive(ctx context.Context, tenantID, id string) (*models.Workflow, error) {
	return w.setStatus(ctx, tenantID, id, models.WorkflowStatusArchived)
}

func (w *Workflows) setStatus(ctx context.Context, tenantID, id string, status models.WorkflowStatus) (*models.Workflow, error) {
	return w.Update(ctx, UpdateWorkflowRequest{TenantID: tenantID, ID: id, Status: &status})
}

func transition(workflow *models.Workflow, next models.WorkflowStatus) error {
	if !next.IsValid() {
		return NewValidationError("transition", "INVALID_STATUS", fmt.Sprintf("unknown status %q", next), ErrInvalidRequest)
	}

	if !workflow.Status.CanTransitionTo(next) {
		return NewValidationError("transition", "INVALID_TRANSITION",
			fmt.Sprintf("cannot move workflow from %s to %s", workflow.Status, next), ErrInvalidTransition)
	}

	workflow.Status = next

	return nil
}
