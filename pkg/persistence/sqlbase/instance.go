package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
)

// InstanceRepository handles workflow instance database operations. History entries live in
// their own append-only table keyed by (tenant, instance, seq).
type InstanceRepository struct {
	s *Store
}

const instanceColumns = `
	id
  , tenant_id
  , definition_id
  , name
  , graph
  , initiated_by
  , payload
  , status
  , current_node_id
  , error
  , version
  , created_at
  , updated_at
  , completed_at`

// Save inserts or version-checks and updates the instance, appends new history entries and
// creates the optional pending action, all in one transaction.
func (r *InstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance, action *models.PendingAction) error {
	graph, err := json.Marshal(instance.Graph)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID, fmt.Errorf("failed to marshal graph: %w", err))
	}

	payload, err := json.Marshal(instance.Payload)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID, fmt.Errorf("failed to marshal payload: %w", err))
	}

	var instanceErr sql.NullString

	if instance.Error != nil {
		raw, err := json.Marshal(instance.Error)
		if err != nil {
			return persistence.NewInstanceError("Save", instance.ID, fmt.Errorf("failed to marshal error: %w", err))
		}

		instanceErr = sql.NullString{String: string(raw), Valid: true}
	}

	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() { _ = tx.Rollback() }()

	if instance.Version == 0 {
		err = r.insert(ctx, tx, instance, string(graph), string(payload), instanceErr)
	} else {
		err = r.update(ctx, tx, instance, string(payload), instanceErr)
	}

	if err != nil {
		return err
	}

	if err := r.appendHistory(ctx, tx, instance); err != nil {
		return persistence.NewInstanceError("Save", instance.ID, err)
	}

	if action != nil {
		if err := r.s.pendingActionRepo.insert(ctx, tx, action); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return persistence.NewInstanceError("Save", instance.ID, fmt.Errorf("failed to commit: %w", err))
	}

	instance.Version++

	return nil
}

func (r *InstanceRepository) insert(ctx context.Context, tx *sql.Tx, instance *models.WorkflowInstance, graph, payload string, instanceErr sql.NullString) error {
	query := `
		INSERT INTO workflow_instances (` + instanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, r.s.dialect.Rebind(query),
		instance.ID,
		instance.TenantID,
		instance.DefinitionID,
		instance.Name,
		graph,
		instance.InitiatedBy,
		payload,
		string(instance.Status),
		instance.CurrentNodeID,
		instanceErr,
		instance.CreatedAt.UTC(),
		instance.UpdatedAt.UTC(),
		toNullTime(instance.CompletedAt),
	)
	if err != nil {
		if r.s.dialect.IsUniqueViolation(err) {
			return persistence.NewInstanceError("Save", instance.ID, persistence.ErrConcurrentModification)
		}

		return persistence.NewInstanceError("Save", instance.ID, err)
	}

	return nil
}

// update writes the mutable columns when the stored version still matches. The graph snapshot is never rewritten.
func (r *InstanceRepository) update(ctx context.Context, tx *sql.Tx, instance *models.WorkflowInstance, payload string, instanceErr sql.NullString) error {
	query := `
		UPDATE workflow_instances SET
			payload = ?
		  , status = ?
		  , current_node_id = ?
		  , error = ?
		  , version = version + 1
		  , updated_at = ?
		  , completed_at = ?
		WHERE tenant_id = ? AND id = ? AND version = ?
	`

	result, err := tx.ExecContext(ctx, r.s.dialect.Rebind(query),
		payload,
		string(instance.Status),
		instance.CurrentNodeID,
		instanceErr,
		instance.UpdatedAt.UTC(),
		toNullTime(instance.CompletedAt),
		instance.TenantID,
		instance.ID,
		instance.Version,
	)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID, err)
	}

	if affected == 1 {
		return nil
	}

	var exists int

	err = tx.QueryRowContext(ctx, r.s.dialect.Rebind(`SELECT COUNT(*) FROM workflow_instances WHERE tenant_id = ? AND id = ?`),
		instance.TenantID, instance.ID).Scan(&exists)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID, err)
	}

	if exists == 0 {
		return persistence.NewInstanceError("Save", instance.ID, persistence.ErrInstanceNotFound)
	}

	return persistence.NewInstanceError("Save", instance.ID, persistence.ErrConcurrentModification)
}

// appendHistory inserts entries the table does not hold yet; existing rows are never rewritten.
func (r *InstanceRepository) appendHistory(ctx context.Context, tx *sql.Tx, instance *models.WorkflowInstance) error {
	query := r.s.dialect.Rebind(`
		INSERT INTO instance_history (tenant_id, instance_id, seq, node_id, kind, outcome, detail, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, instance_id, seq) DO NOTHING
	`)

	for _, entry := range instance.History {
		_, err := tx.ExecContext(ctx, query,
			instance.TenantID,
			instance.ID,
			entry.Seq,
			entry.NodeID,
			string(entry.Kind),
			string(entry.Outcome),
			entry.Detail,
			entry.At.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to append history entry %d: %w", entry.Seq, err)
		}
	}

	return nil
}

// GetByID retrieves an instance with its history.
func (r *InstanceRepository) GetByID(ctx context.Context, tenantID, id string) (*models.WorkflowInstance, error) {
	query := `SELECT` + instanceColumns + ` FROM workflow_instances WHERE tenant_id = ? AND id = ?`

	instance, err := scanInstance(r.s.db.QueryRowContext(ctx, r.s.dialect.Rebind(query), tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewInstanceError("GetByID", id, persistence.ErrInstanceNotFound)
	}

	if err != nil {
		return nil, persistence.NewInstanceError("GetByID", id, err)
	}

	if err := r.loadHistory(ctx, instance); err != nil {
		return nil, persistence.NewInstanceError("GetByID", id, err)
	}

	return instance, nil
}

// List returns the tenant's instances, newest first.
func (r *InstanceRepository) List(ctx context.Context, tenantID string, opts persistence.ListInstancesOptions) ([]*models.WorkflowInstance, error) {
	query := `SELECT` + instanceColumns + ` FROM workflow_instances WHERE tenant_id = ?`
	args := []any{tenantID}

	if opts.Status != nil {
		query += ` AND status = ?`

		args = append(args, string(*opts.Status))
	}

	if opts.DefinitionID != "" {
		query += ` AND definition_id = ?`

		args = append(args, opts.DefinitionID)
	}

	query += ` ORDER BY created_at DESC`

	rows, err := r.s.db.QueryContext(ctx, r.s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}

	instances := make([]*models.WorkflowInstance, 0)

	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			r.s.closeRows(ctx, rows)

			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}

		instances = append(instances, instance)
	}

	err = rows.Err()
	r.s.closeRows(ctx, rows)

	if err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}

	// History is loaded after the cursor closes so single-connection pools do not deadlock.
	for _, instance := range instances {
		if err := r.loadHistory(ctx, instance); err != nil {
			return nil, err
		}
	}

	return instances, nil
}

func (r *InstanceRepository) loadHistory(ctx context.Context, instance *models.WorkflowInstance) error {
	query := `
		SELECT seq, node_id, kind, outcome, detail, at
		FROM instance_history
		WHERE tenant_id = ? AND instance_id = ?
		ORDER BY seq
	`

	rows, err := r.s.db.QueryContext(ctx, r.s.dialect.Rebind(query), instance.TenantID, instance.ID)
	if err != nil {
		return fmt.Errorf("failed to query history of instance %s: %w", instance.ID, err)
	}

	defer r.s.closeRows(ctx, rows)

	instance.History = make([]models.HistoryEntry, 0)

	for rows.Next() {
		var (
			entry   models.HistoryEntry
			kind    string
			outcome string
		)

		if err := rows.Scan(&entry.Seq, &entry.NodeID, &kind, &outcome, &entry.Detail, &entry.At); err != nil {
			return fmt.Errorf("failed to scan history entry: %w", err)
		}

		entry.Kind = models.NodeKind(kind)
		entry.Outcome = models.Outcome(outcome)
		entry.At = entry.At.UTC()
		instance.History = append(instance.History, entry)
	}

	return rows.Err()
}

func scanInstance(row scanner) (*models.WorkflowInstance, error) {
	var (
		instance    models.WorkflowInstance
		graph       string
		payload     string
		status      string
		instanceErr sql.NullString
		completedAt sql.NullTime
	)

	err := row.Scan(
		&instance.ID,
		&instance.TenantID,
		&instance.DefinitionID,
		&instance.Name,
		&graph,
		&instance.InitiatedBy,
		&payload,
		&status,
		&instance.CurrentNodeID,
		&instanceErr,
		&instance.Version,
		&instance.CreatedAt,
		&instance.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	instance.Status = models.InstanceStatus(status)
	instance.CreatedAt = instance.CreatedAt.UTC()
	instance.UpdatedAt = instance.UpdatedAt.UTC()
	instance.CompletedAt = nullTime(completedAt)
	instance.Graph = &models.Graph{}

	if err := json.Unmarshal([]byte(graph), instance.Graph); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph of instance %s: %w", instance.ID, err)
	}

	if err := json.Unmarshal([]byte(payload), &instance.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload of instance %s: %w", instance.ID, err)
	}

	if instanceErr.Valid {
		instance.Error = &models.InstanceError{}
		if err := json.Unmarshal([]byte(instanceErr.String), instance.Error); err != nil {
			return nil, fmt.Errorf("failed to unmarshal error of instance %s: %w", instance.ID, err)
		}
	}

	return &instance, nil
}
