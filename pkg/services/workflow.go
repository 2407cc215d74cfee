package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hrflow/hrflow/pkg/graph"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
)

const minNameLength = 3

// Workflows manages tenant workflow definitions.
type Workflows struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	rules       graph.RuleValidator
}

// NewWorkflows creates a new workflow definition service.
func NewWorkflows(logger *slog.Logger, persistence persistence.Persistence, rules graph.RuleValidator) *Workflows {
	return &Workflows{
		logger:      logger.With("module", "workflows"),
		persistence: persistence,
		rules:       rules,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflows) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateWorkflowRequest describes a new definition. Status defaults to draft.
type CreateWorkflowRequest struct {
	TenantID    string
	ActorID     string
	Name        string
	Description string
	Graph       *models.Graph
	Status      models.WorkflowStatus
}

// Create validates and stores a new definition.
func (w *Workflows) Create(ctx context.Context, req CreateWorkflowRequest) (*models.Workflow, error) {
	status := req.Status
	if status == "" {
		status = models.WorkflowStatusDraft
	}

	if status == models.WorkflowStatusArchived || !status.IsValid() {
		return nil, NewValidationError("Create", "INVALID_STATUS",
			fmt.Sprintf("a new workflow must be draft or active, got %q", status), ErrInvalidRequest)
	}

	if err := w.validate("Create", req.Name, req.Graph); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	workflow := &models.Workflow{
		ID:          newID(),
		TenantID:    req.TenantID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Status:      status,
		Graph:       req.Graph,
		CreatedBy:   req.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Created workflow",
		"tenant_id", workflow.TenantID,
		"workflow_id", workflow.ID,
		"status", workflow.Status)

	return workflow, nil
}

// Get returns a definition of the tenant.
func (w *Workflows) Get(ctx context.Context, tenantID, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	return workflow, nil
}

// List returns the tenant's definitions, optionally filtered by status.
func (w *Workflows) List(ctx context.Context, tenantID string, status *models.WorkflowStatus) ([]*models.Workflow, error) {
	if status != nil && !status.IsValid() {
		return nil, NewValidationError("List", "INVALID_STATUS", fmt.Sprintf("unknown status %q", *status), ErrInvalidRequest)
	}

	workflows, err := w.persistence.WorkflowRepository().List(ctx, tenantID, persistence.ListWorkflowsOptions{Status: status})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// UpdateWorkflowRequest is a partial update; nil fields are left as they are.
type UpdateWorkflowRequest struct {
	TenantID    string
	ID          string
	Name        *string
	Description *string
	Graph       *models.Graph
	Status      *models.WorkflowStatus
}

// Update applies a partial update. Archived definitions cannot change; status changes follow
// the lifecycle transitions.
func (w *Workflows) Update(ctx context.Context, req UpdateWorkflowRequest) (*models.Workflow, error) {
	workflow, err := w.Get(ctx, req.TenantID, req.ID)
	if err != nil {
		return nil, err
	}

	if workflow.Status == models.WorkflowStatusArchived {
		return nil, newError("Update", "WORKFLOW_ARCHIVED", ErrDefinitionArchived)
	}

	name, g := workflow.Name, workflow.Graph
	if req.Name != nil {
		name = *req.Name
	}

	if req.Graph != nil {
		g = req.Graph
	}

	if err := w.validate("Update", name, g); err != nil {
		return nil, err
	}

	workflow.Name = strings.TrimSpace(name)
	workflow.Graph = g

	if req.Description != nil {
		workflow.Description = *req.Description
	}

	if req.Status != nil {
		if err := transition(workflow, *req.Status); err != nil {
			return nil, err
		}
	}

	workflow.UpdatedAt = time.Now().UTC()

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// Delete removes a definition. Running instances keep their snapshot.
func (w *Workflows) Delete(ctx context.Context, tenantID, id string) error {
	if err := w.persistence.WorkflowRepository().Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Deleted workflow", "tenant_id", tenantID, "workflow_id", id)

	return nil
}

func (w *Workflows) validate(op, name string, g *models.Graph) error {
	if len(strings.TrimSpace(name)) < minNameLength {
		return NewValidationError(op, "INVALID_NAME",
			fmt.Sprintf("workflow name must have at least %d characters", minNameLength), ErrInvalidRequest)
	}

	if g == nil {
		return NewValidationError(op, "GRAPH_REQUIRED", "workflow graph is required", ErrInvalidRequest)
	}

	if err := graph.Validate(g, w.rules); err != nil {
		return newError(op, "INVALID_GRAPH", err)
	}

	return nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
