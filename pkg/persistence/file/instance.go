package file

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
)

// InstanceRepository handles workflow instance file operations.
type InstanceRepository struct {
	fp *Persistence
}

// Save writes the instance when its version matches the stored one, together with an optional new pending action.
func (ir *InstanceRepository) Save(_ context.Context, instance *models.WorkflowInstance, action *models.PendingAction) error {
	path, err := ir.fp.path(instance.TenantID, instancesDir, instance.ID)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID, err)
	}

	ir.fp.mu.Lock()
	defer ir.fp.mu.Unlock()

	var stored models.WorkflowInstance

	found, err := readDocument(path, &stored)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID, err)
	}

	switch {
	case instance.Version == 0 && found:
		return persistence.NewInstanceError("Save", instance.ID, persistence.ErrConcurrentModification)
	case instance.Version > 0 && !found:
		return persistence.NewInstanceError("Save", instance.ID, persistence.ErrInstanceNotFound)
	case found && stored.Version != instance.Version:
		return persistence.NewInstanceError("Save", instance.ID, persistence.ErrConcurrentModification)
	}

	actionPath := ""

	if action != nil {
		actionPath, err = ir.createAction(action)
		if err != nil {
			return err
		}
	}

	next := *instance
	next.Version++

	if err := writeDocument(path, &next); err != nil {
		if actionPath != "" {
			_ = os.Remove(actionPath)
		}

		return persistence.NewInstanceError("Save", instance.ID, err)
	}

	instance.Version = next.Version

	return nil
}

// createAction must be called with the write lock held.
func (ir *InstanceRepository) createAction(action *models.PendingAction) (string, error) {
	path, err := ir.fp.path(action.TenantID, pendingActionsDir, action.ID)
	if err != nil {
		return "", persistence.NewPendingActionError("Save", action.ID, err)
	}

	dir, _ := ir.fp.dir(action.TenantID, pendingActionsDir)

	existing, err := readCollection[models.PendingAction](dir)
	if err != nil {
		return "", persistence.NewPendingActionError("Save", action.ID, err)
	}

	for _, other := range existing {
		if other.IsOpen() && other.InstanceID == action.InstanceID && other.NodeID == action.NodeID {
			return "", persistence.NewPendingActionError("Save", action.ID, persistence.ErrDuplicatePendingAction)
		}
	}

	if err := writeDocument(path, action); err != nil {
		return "", persistence.NewPendingActionError("Save", action.ID, err)
	}

	return path, nil
}

// GetByID retrieves an instance by its ID.
func (ir *InstanceRepository) GetByID(_ context.Context, tenantID, id string) (*models.WorkflowInstance, error) {
	path, err := ir.fp.path(tenantID, instancesDir, id)
	if err != nil {
		return nil, persistence.NewInstanceError("GetByID", id, persistence.ErrInstanceNotFound)
	}

	ir.fp.mu.RLock()
	defer ir.fp.mu.RUnlock()

	var instance models.WorkflowInstance

	found, err := readDocument(path, &instance)
	if err != nil {
		return nil, persistence.NewInstanceError("GetByID", id, err)
	}

	if !found {
		return nil, persistence.NewInstanceError("GetByID", id, persistence.ErrInstanceNotFound)
	}

	return &instance, nil
}

// List returns the tenant's instances, newest first.
func (ir *InstanceRepository) List(_ context.Context, tenantID string, opts persistence.ListInstancesOptions) ([]*models.WorkflowInstance, error) {
	dir, err := ir.fp.dir(tenantID, instancesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	ir.fp.mu.RLock()
	all, err := readCollection[models.WorkflowInstance](dir)
	ir.fp.mu.RUnlock()

	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	instances := make([]*models.WorkflowInstance, 0, len(all))

	for _, instance := range all {
		if opts.Status != nil && instance.Status != *opts.Status {
			continue
		}

		if opts.DefinitionID != "" && instance.DefinitionID != opts.DefinitionID {
			continue
		}

		instances = append(instances, instance)
	}

	sort.SliceStable(instances, func(i, j int) bool {
		return instances[i].CreatedAt.After(instances[j].CreatedAt)
	})

	return instances, nil
}
