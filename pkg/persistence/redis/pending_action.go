package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
	goredis "github.com/redis/go-redis/v9"
)

const maxCloseAttempts = 16

// PendingActionRepository handles pending action documents.
type PendingActionRepository struct {
	p *Persistence
}

// GetByID retrieves a pending action by tenant and id.
func (r *PendingActionRepository) GetByID(ctx context.Context, tenantID, id string) (*models.PendingAction, error) {
	var action models.PendingAction

	found, err := getDocument(ctx, r.p.client, r.p.keys.action(tenantID, id), &action)
	if err != nil {
		return nil, persistence.NewPendingActionError("GetByID", id, err)
	}

	if !found {
		return nil, persistence.NewPendingActionError("GetByID", id, persistence.ErrPendingActionNotFound)
	}

	return &action, nil
}

// ListOpen returns open actions assigned to any of roles or directly to userID, oldest first.
func (r *PendingActionRepository) ListOpen(ctx context.Context, tenantID string, roles []string, userID string) ([]*models.PendingAction, error) {
	return r.list(ctx, tenantID, r.p.keys.openActions(tenantID), func(a *models.PendingAction) bool {
		return a.IsOpen() && a.AssignedTo(userID, roles)
	})
}

// ListByInstance returns every action of an instance, oldest first.
func (r *PendingActionRepository) ListByInstance(ctx context.Context, tenantID, instanceID string) ([]*models.PendingAction, error) {
	return r.list(ctx, tenantID, r.p.keys.instanceActions(tenantID, instanceID), func(*models.PendingAction) bool {
		return true
	})
}

func (r *PendingActionRepository) list(ctx context.Context, tenantID, index string, keep func(*models.PendingAction) bool) ([]*models.PendingAction, error) {
	all, err := loadIndexed[models.PendingAction](ctx, r.p.client, index, func(id string) string {
		return r.p.keys.action(tenantID, id)
	})
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

// Close moves the action out of pending under WATCH. A lost race retries, then observes the winner's state.
func (r *PendingActionRepository) Close(ctx context.Context, tenantID, id string, closure models.ActionClosure) (*models.PendingAction, error) {
	k := r.p.keys
	key := k.action(tenantID, id)

	var closed *models.PendingAction

	txf := func(tx *goredis.Tx) error {
		var action models.PendingAction

		found, err := getDocument(ctx, tx, key, &action)
		if err != nil {
			return persistence.NewPendingActionError("Close", id, err)
		}

		if !found {
			return persistence.NewPendingActionError("Close", id, persistence.ErrPendingActionNotFound)
		}

		if !action.IsOpen() {
			return &persistence.AlreadyDecidedError{Action: &action}
		}

		closure.Apply(&action)

		data, err := json.Marshal(&action)
		if err != nil {
			return persistence.NewPendingActionError("Close", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SRem(ctx, k.openActions(tenantID), id)
			pipe.Del(ctx, k.slot(tenantID, action.InstanceID, action.NodeID))

			return nil
		})
		if err != nil {
			return err
		}

		closed = &action

		return nil
	}

	for range maxCloseAttempts {
		err := r.p.client.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}

		if err != nil {
			return nil, err
		}

		return closed, nil
	}

	return nil, persistence.NewPendingActionError("Close", id, goredis.TxFailedErr)
}
