package file

import (
	"context"
	"fmt"

	"github.com/hrflow/hrflow/pkg/models"
)

// AuditRepository appends audit records to one document per instance.
type AuditRepository struct {
	fp *Persistence
}

// Append adds a record to the instance's audit trail.
func (ar *AuditRepository) Append(_ context.Context, record *models.AuditRecord) error {
	path, err := ar.fp.path(record.TenantID, auditDir, record.InstanceID)
	if err != nil {
		return fmt.Errorf("failed to append audit record %s: %w", record.ID, err)
	}

	ar.fp.mu.Lock()
	defer ar.fp.mu.Unlock()

	var records []*models.AuditRecord
	if _, err := readDocument(path, &records); err != nil {
		return fmt.Errorf("failed to append audit record %s: %w", record.ID, err)
	}

	records = append(records, record)

	if err := writeDocument(path, records); err != nil {
		return fmt.Errorf("failed to append audit record %s: %w", record.ID, err)
	}

	return nil
}

// ListByInstance returns the instance's audit trail in append order.
func (ar *AuditRepository) ListByInstance(_ context.Context, tenantID, instanceID string) ([]*models.AuditRecord, error) {
	path, err := ar.fp.path(tenantID, auditDir, instanceID)
	if err != nil {
		return nil, nil
	}

	ar.fp.mu.RLock()
	defer ar.fp.mu.RUnlock()

	var records []*models.AuditRecord
	if _, err := readDocument(path, &records); err != nil {
		return nil, fmt.Errorf("failed to list audit records for %s: %w", instanceID, err)
	}

	return records, nil
}
