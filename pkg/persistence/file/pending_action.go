package file

import (
	"context"
	"fmt"
	"sort"

	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
)

// PendingActionRepository handles pending action file operations.
type PendingActionRepository struct {
	fp *Persistence
}

// GetByID retrieves a pending action by its ID.
func (pr *PendingActionRepository) GetByID(_ context.Context, tenantID, id string) (*models.PendingAction, error) {
	path, err := pr.fp.path(tenantID, pendingActionsDir, id)
	if err != nil {
		return nil, persistence.NewPendingActionError("GetByID", id, persistence.ErrPendingActionNotFound)
	}

	pr.fp.mu.RLock()
	defer pr.fp.mu.RUnlock()

	return pr.read(path, "GetByID", id)
}

func (pr *PendingActionRepository) read(path, op, id string) (*models.PendingAction, error) {
	var action models.PendingAction

	found, err := readDocument(path, &action)
	if err != nil {
		return nil, persistence.NewPendingActionError(op, id, err)
	}

	if !found {
		return nil, persistence.NewPendingActionError(op, id, persistence.ErrPendingActionNotFound)
	}

	return &action, nil
}

// ListOpen returns open actions assigned to any of roles or directly to userID, oldest first.
func (pr *PendingActionRepository) ListOpen(_ context.Context, tenantID string, roles []string, userID string) ([]*models.PendingAction, error) {
	return pr.list(tenantID, func(a *models.PendingAction) bool {
		return a.IsOpen() && a.AssignedTo(userID, roles)
	})
}

// ListByInstance returns every action of an instance, oldest first.
func (pr *PendingActionRepository) ListByInstance(_ context.Context, tenantID, instanceID string) ([]*models.PendingAction, error) {
	return pr.list(tenantID, func(a *models.PendingAction) bool {
		return a.InstanceID == instanceID
	})
}

func (pr *PendingActionRepository) list(tenantID string, keep func(*models.PendingAction) bool) ([]*models.PendingAction, error) {
	dir, err := pr.fp.dir(tenantID, pendingActionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending actions: %w", err)
	}

	pr.fp.mu.RLock()
	all, err := readCollection[models.PendingAction](dir)
	pr.fp.mu.RUnlock()

	if err != nil {
		return nil, fmt.Errorf("failed to list pending actions: %w", err)
	}

	actions := make([]*models.PendingAction, 0, len(all))

	for _, action := range all {
		if keep(action) {
			actions = append(actions, action)
		}
	}

	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].CreatedAt.Before(actions[j].CreatedAt)
	})

	return actions, nil
}

// Close moves a pending action to its decided status under the write lock.
func (pr *PendingActionRepository) Close(_ context.Context, tenantID, id string, closure models.ActionClosure) (*models.PendingAction, error) {
	path, err := pr.fp.path(tenantID, pendingActionsDir, id)
	if err != nil {
		return nil, persistence.NewPendingActionError("Close", id, persistence.ErrPendingActionNotFound)
	}

	pr.fp.mu.Lock()
	defer pr.fp.mu.Unlock()

	action, err := pr.read(path, "Close", id)
	if err != nil {
		return nil, err
	}

	if !action.IsOpen() {
		return nil, &persistence.AlreadyDecidedError{Action: action}
	}

	closure.Apply(action)

	if err := writeDocument(path, action); err != nil {
		return nil, persistence.NewPendingActionError("Close", id, err)
	}

	return action, nil
}
