package file

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	fp *Persistence
}

// Save writes a workflow definition, creating or replacing it.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	path, err := wr.fp.path(workflow.TenantID, workflowsDir, workflow.ID)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	wr.fp.mu.Lock()
	defer wr.fp.mu.Unlock()

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	if workflow.UpdatedAt.IsZero() {
		workflow.UpdatedAt = now
	}

	if err := writeDocument(path, workflow); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, tenantID, id string) (*models.Workflow, error) {
	path, err := wr.fp.path(tenantID, workflowsDir, id)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	wr.fp.mu.RLock()
	defer wr.fp.mu.RUnlock()

	var workflow models.Workflow

	found, err := readDocument(path, &workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	if !found {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

// List returns the tenant's workflows, most recently updated first.
func (wr *WorkflowRepository) List(_ context.Context, tenantID string, opts persistence.ListWorkflowsOptions) ([]*models.Workflow, error) {
	dir, err := wr.fp.dir(tenantID, workflowsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	wr.fp.mu.RLock()
	all, err := readCollection[models.Workflow](dir)
	wr.fp.mu.RUnlock()

	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(all))

	for _, workflow := range all {
		if opts.Status != nil && workflow.Status != *opts.Status {
			continue
		}

		if opts.EventType != "" && workflow.Summary().EventType != opts.EventType {
			continue
		}

		workflows = append(workflows, workflow)
	}

	sort.SliceStable(workflows, func(i, j int) bool {
		return workflows[i].UpdatedAt.After(workflows[j].UpdatedAt)
	})

	return workflows, nil
}

// Delete removes a workflow by its ID.
func (wr *WorkflowRepository) Delete(_ context.Context, tenantID, id string) error {
	path, err := wr.fp.path(tenantID, workflowsDir, id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	wr.fp.mu.Lock()
	defer wr.fp.mu.Unlock()

	err = os.Remove(path)
	if os.IsNotExist(err) {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}
