package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
	goredis "github.com/redis/go-redis/v9"
)

// WorkflowRepository handles workflow documents.
type WorkflowRepository struct {
	p *Persistence
}

// Save writes a workflow and indexes it.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	if workflow.UpdatedAt.IsZero() {
		workflow.UpdatedAt = now
	}

	data, err := json.Marshal(workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	k := r.p.keys

	_, err = r.p.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, k.workflow(workflow.TenantID, workflow.ID), data, 0)
		pipe.SAdd(ctx, k.workflows(workflow.TenantID), workflow.ID)

		return nil
	})
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// GetByID retrieves a workflow by tenant and id.
func (r *WorkflowRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	found, err := getDocument(ctx, r.p.client, r.p.keys.workflow(tenantID, id), &workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	if !found {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

// List returns the tenant's workflows, most recently updated first.
func (r *WorkflowRepository) List(ctx context.Context, tenantID string, opts persistence.ListWorkflowsOptions) ([]*models.Workflow, error) {
	all, err := loadIndexed[models.Workflow](ctx, r.p.client, r.p.keys.workflows(tenantID), func(id string) string {
		return r.p.keys.workflow(tenantID, id)
	})
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

// Delete removes a workflow and its index entry.
func (r *WorkflowRepository) Delete(ctx context.Context, tenantID, id string) error {
	k := r.p.keys

	var deleted *goredis.IntCmd

	_, err := r.p.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		deleted = pipe.Del(ctx, k.workflow(tenantID, id))
		pipe.SRem(ctx, k.workflows(tenantID), id)

		return nil
	})
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if deleted.Val() == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}
