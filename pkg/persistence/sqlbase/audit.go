package sqlbase

import (
	"context"
	"fmt"

	"github.com/hrflow/hrflow/pkg/models"
)

// AuditRepository handles audit record database operations.
type AuditRepository struct {
	s *Store
}

// Append inserts an audit record.
func (r *AuditRepository) Append(ctx context.Context, record *models.AuditRecord) error {
	query := `
		INSERT INTO audit_records (id, tenant_id, actor_id, action, instance_id, node_id, action_id, decision, reason, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.s.db.ExecContext(ctx, r.s.dialect.Rebind(query),
		record.ID,
		record.TenantID,
		record.ActorID,
		string(record.Action),
		record.InstanceID,
		record.NodeID,
		record.ActionID,
		string(record.Decision),
		record.Reason,
		record.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record %s: %w", record.ID, err)
	}

	return nil
}

// ListByInstance returns the instance's audit trail in time order.
func (r *AuditRepository) ListByInstance(ctx context.Context, tenantID, instanceID string) ([]*models.AuditRecord, error) {
	query := `
		SELECT id, tenant_id, actor_id, action, instance_id, node_id, action_id, decision, reason, at
		FROM audit_records
		WHERE tenant_id = ? AND instance_id = ?
		ORDER BY at, seq
	`

	rows, err := r.s.db.QueryContext(ctx, r.s.dialect.Rebind(query), tenantID, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}

	defer r.s.closeRows(ctx, rows)

	records := make([]*models.AuditRecord, 0)

	for rows.Next() {
		var (
			record   models.AuditRecord
			action   string
			decision string
		)

		err := rows.Scan(
			&record.ID,
			&record.TenantID,
			&record.ActorID,
			&action,
			&record.InstanceID,
			&record.NodeID,
			&record.ActionID,
			&decision,
			&record.Reason,
			&record.At,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}

		record.Action = models.AuditAction(action)
		record.Decision = models.Decision(decision)
		record.At = record.At.UTC()
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return records, nil
}
