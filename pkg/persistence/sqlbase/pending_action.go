package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
)

// PendingActionRepository handles pending action database operations. A partial unique index on
// (tenant_id, instance_id, node_id) WHERE status = 'pending' keeps one open action per approval node.
type PendingActionRepository struct {
	s *Store
}

const pendingActionColumns = `
	id
  , tenant_id
  , instance_id
  , node_id
  , node_name
  , assigned_role
  , assigned_user
  , status
  , decided_by
  , decided_at
  , reason
  , created_at`

func (r *PendingActionRepository) insert(ctx context.Context, tx *sql.Tx, action *models.PendingAction) error {
	query := `
		INSERT INTO pending_actions (` + pendingActionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, r.s.dialect.Rebind(query),
		action.ID,
		action.TenantID,
		action.InstanceID,
		action.NodeID,
		action.NodeName,
		action.AssignedRole,
		action.AssignedUser,
		string(action.Status),
		action.DecidedBy,
		toNullTime(action.DecidedAt),
		action.Reason,
		action.CreatedAt.UTC(),
	)
	if err != nil {
		if r.s.dialect.IsUniqueViolation(err) {
			return persistence.NewPendingActionError("Save", action.ID, persistence.ErrDuplicatePendingAction)
		}

		return persistence.NewPendingActionError("Save", action.ID, err)
	}

	return nil
}

// GetByID retrieves a pending action by tenant and id.
func (r *PendingActionRepository) GetByID(ctx context.Context, tenantID, id string) (*models.PendingAction, error) {
	return r.get(ctx, "GetByID", tenantID, id)
}

func (r *PendingActionRepository) get(ctx context.Context, op, tenantID, id string) (*models.PendingAction, error) {
	query := `SELECT` + pendingActionColumns + ` FROM pending_actions WHERE tenant_id = ? AND id = ?`

	action, err := scanPendingAction(r.s.db.QueryRowContext(ctx, r.s.dialect.Rebind(query), tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewPendingActionError(op, id, persistence.ErrPendingActionNotFound)
	}

	if err != nil {
		return nil, persistence.NewPendingActionError(op, id, err)
	}

	return action, nil
}

// ListOpen returns open actions assigned to any of roles or directly to userID, oldest first.
func (r *PendingActionRepository) ListOpen(ctx context.Context, tenantID string, roles []string, userID string) ([]*models.PendingAction, error) {
	var (
		clauses []string
		args    = []any{tenantID, string(models.PendingActionStatusPending)}
	)

	if userID != "" {
		clauses = append(clauses, `assigned_user = ?`)
		args = append(args, userID)
	}

	if len(roles) > 0 {
		clauses = append(clauses, `assigned_role IN (`+In(len(roles))+`)`)

		for _, role := range roles {
			args = append(args, role)
		}
	}

	if len(clauses) == 0 {
		return []*models.PendingAction{}, nil
	}

	query := `SELECT` + pendingActionColumns + ` FROM pending_actions WHERE tenant_id = ? AND status = ? AND (` +
		strings.Join(clauses, ` OR `) + `) ORDER BY created_at`

	return r.list(ctx, query, args...)
}

// ListByInstance returns every action of an instance, oldest first.
func (r *PendingActionRepository) ListByInstance(ctx context.Context, tenantID, instanceID string) ([]*models.PendingAction, error) {
	query := `SELECT` + pendingActionColumns + ` FROM pending_actions WHERE tenant_id = ? AND instance_id = ? ORDER BY created_at`

	return r.list(ctx, query, tenantID, instanceID)
}

func (r *PendingActionRepository) list(ctx context.Context, query string, args ...any) ([]*models.PendingAction, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending actions: %w", err)
	}

	defer r.s.closeRows(ctx, rows)

	actions := make([]*models.PendingAction, 0)

	for rows.Next() {
		action, err := scanPendingAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending action: %w", err)
		}

		actions = append(actions, action)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending actions: %w", err)
	}

	return actions, nil
}

// Close is a conditional update on status = 'pending'; exactly one concurrent caller sees a row change.
func (r *PendingActionRepository) Close(ctx context.Context, tenantID, id string, closure models.ActionClosure) (*models.PendingAction, error) {
	query := `
		UPDATE pending_actions SET
			status = ?
		  , decided_by = ?
		  , decided_at = ?
		  , reason = ?
		WHERE tenant_id = ? AND id = ? AND status = ?
	`

	result, err := r.s.db.ExecContext(ctx, r.s.dialect.Rebind(query),
		string(closure.Status),
		closure.DecidedBy,
		closure.DecidedAt.UTC(),
		closure.Reason,
		tenantID,
		id,
		string(models.PendingActionStatusPending),
	)
	if err != nil {
		return nil, persistence.NewPendingActionError("Close", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, persistence.NewPendingActionError("Close", id, err)
	}

	action, err := r.get(ctx, "Close", tenantID, id)
	if err != nil {
		return nil, err
	}

	if affected == 0 {
		return nil, &persistence.AlreadyDecidedError{Action: action}
	}

	return action, nil
}

func scanPendingAction(row scanner) (*models.PendingAction, error) {
	var (
		action    models.PendingAction
		status    string
		decidedAt sql.NullTime
	)

	err := row.Scan(
		&action.ID,
		&action.TenantID,
		&action.InstanceID,
		&action.NodeID,
		&action.NodeName,
		&action.AssignedRole,
		&action.AssignedUser,
		&status,
		&action.DecidedBy,
		&decidedAt,
		&action.Reason,
		&action.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	action.Status = models.PendingActionStatus(status)
	action.DecidedAt = nullTime(decidedAt)
	action.CreatedAt = action.CreatedAt.UTC()

	return &action, nil
}
