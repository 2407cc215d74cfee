package redis

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/hrflow/hrflow/pkg/models"
)

// AuditRepository keeps one Redis list per instance.
type AuditRepository struct {
	p *Persistence
}

// Append pushes a record onto the instance's audit list.
func (r *AuditRepository) Append(ctx context.Context, record *models.AuditRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record %s: %w", record.ID, err)
	}

	if err := r.p.client.RPush(ctx, r.p.keys.audit(record.TenantID, record.InstanceID), data).Err(); err != nil {
		return fmt.Errorf("failed to append audit record %s: %w", record.ID, err)
	}

	return nil
}

// ListByInstance returns the instance's audit trail in append order.
func (r *AuditRepository) ListByInstance(ctx context.Context, tenantID, instanceID string) ([]*models.AuditRecord, error) {
	values, err := r.p.client.LRange(ctx, r.p.keys.audit(tenantID, instanceID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records for %s: %w", instanceID, err)
	}

	records := make([]*models.AuditRecord, 0, len(values))

	for _, value := range values {
		var record models.AuditRecord
		if err := json.Unmarshal([]byte(value), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit record: %w", err)
		}

		records = append(records, &record)
	}

	return records, nil
}
