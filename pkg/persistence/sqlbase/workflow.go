package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	s *Store
}

const workflowColumns = `
	id
  , tenant_id
  , name
  , description
  , status
  , graph
  , created_by
  , created_at
  , updated_at`

// Save upserts a workflow definition.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	if workflow.UpdatedAt.IsZero() {
		workflow.UpdatedAt = now
	}

	graph, err := json.Marshal(workflow.Graph)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("failed to marshal graph: %w", err))
	}

	eventType := workflow.Summary().EventType

	query := `
		INSERT INTO workflows (id, tenant_id, name, description, status, event_type, graph, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = excluded.name
		  , description = excluded.description
		  , status = excluded.status
		  , event_type = excluded.event_type
		  , graph = excluded.graph
		  , updated_at = excluded.updated_at
	`

	_, err = r.s.db.ExecContext(ctx, r.s.dialect.Rebind(query),
		workflow.ID,
		workflow.TenantID,
		workflow.Name,
		workflow.Description,
		string(workflow.Status),
		eventType,
		string(graph),
		workflow.CreatedBy,
		workflow.CreatedAt.UTC(),
		workflow.UpdatedAt.UTC(),
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// GetByID retrieves a workflow by tenant and id.
func (r *WorkflowRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Workflow, error) {
	query := `SELECT` + workflowColumns + ` FROM workflows WHERE tenant_id = ? AND id = ?`

	workflow, err := scanWorkflow(r.s.db.QueryRowContext(ctx, r.s.dialect.Rebind(query), tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

// List returns the tenant's workflows, most recently updated first.
func (r *WorkflowRepository) List(ctx context.Context, tenantID string, opts persistence.ListWorkflowsOptions) ([]*models.Workflow, error) {
	query := `SELECT` + workflowColumns + ` FROM workflows WHERE tenant_id = ?`
	args := []any{tenantID}

	if opts.Status != nil {
		query += ` AND status = ?`

		args = append(args, string(*opts.Status))
	}

	if opts.EventType != "" {
		query += ` AND event_type = ?`

		args = append(args, opts.EventType)
	}

	query += ` ORDER BY updated_at DESC`

	rows, err := r.s.db.QueryContext(ctx, r.s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer r.s.closeRows(ctx, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// Delete removes a workflow definition. Instances keep their own graph snapshot.
func (r *WorkflowRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.s.db.ExecContext(ctx, r.s.dialect.Rebind(`DELETE FROM workflows WHERE tenant_id = ? AND id = ?`), tenantID, id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow models.Workflow
		status   string
		graph    string
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.TenantID,
		&workflow.Name,
		&workflow.Description,
		&status,
		&graph,
		&workflow.CreatedBy,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.Status = models.WorkflowStatus(status)
	workflow.CreatedAt = workflow.CreatedAt.UTC()
	workflow.UpdatedAt = workflow.UpdatedAt.UTC()
	workflow.Graph = &models.Graph{}

	if err := json.Unmarshal([]byte(graph), workflow.Graph); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph of workflow %s: %w", workflow.ID, err)
	}

	return &workflow, nil
}
