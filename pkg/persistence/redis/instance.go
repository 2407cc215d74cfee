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

// InstanceRepository handles instance documents.
type InstanceRepository struct {
	p *Persistence
}

// Save checks the stored version under WATCH and writes the instance plus the optional action in one MULTI.
// A concurrent writer aborts the transaction, which surfaces as ErrConcurrentModification.
func (r *InstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance, action *models.PendingAction) error {
	k := r.p.keys
	instanceKey := k.instance(instance.TenantID, instance.ID)
	watched := []string{instanceKey}

	if action != nil {
		watched = append(watched, k.slot(action.TenantID, action.InstanceID, action.NodeID))
	}

	next := *instance
	next.Version++

	data, err := json.Marshal(&next)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID, err)
	}

	var actionData []byte

	if action != nil {
		actionData, err = json.Marshal(action)
		if err != nil {
			return persistence.NewPendingActionError("Save", action.ID, err)
		}
	}

	err = r.p.client.Watch(ctx, func(tx *goredis.Tx) error {
		var stored models.WorkflowInstance

		found, err := getDocument(ctx, tx, instanceKey, &stored)
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

		if action != nil {
			taken, err := tx.Exists(ctx, watched[1]).Result()
			if err != nil {
				return persistence.NewPendingActionError("Save", action.ID, err)
			}

			if taken > 0 {
				return persistence.NewPendingActionError("Save", action.ID, persistence.ErrDuplicatePendingAction)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, instanceKey, data, 0)
			pipe.SAdd(ctx, k.instances(instance.TenantID), instance.ID)

			if action != nil {
				pipe.Set(ctx, k.action(action.TenantID, action.ID), actionData, 0)
				pipe.SAdd(ctx, k.instanceActions(action.TenantID, action.InstanceID), action.ID)
				pipe.SAdd(ctx, k.openActions(action.TenantID), action.ID)
				pipe.Set(ctx, watched[1], action.ID, 0)
			}

			return nil
		})

		return err
	}, watched...)

	if errors.Is(err, goredis.TxFailedErr) {
		return persistence.NewInstanceError("Save", instance.ID, persistence.ErrConcurrentModification)
	}

	if err != nil {
		var entityErr *persistence.EntityError
		if errors.As(err, &entityErr) {
			return err
		}

		return persistence.NewInstanceError("Save", instance.ID, err)
	}

	instance.Version = next.Version

	return nil
}

// GetByID retrieves an instance by tenant and id.
func (r *InstanceRepository) GetByID(ctx context.Context, tenantID, id string) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance

	found, err := getDocument(ctx, r.p.client, r.p.keys.instance(tenantID, id), &instance)
	if err != nil {
		return nil, persistence.NewInstanceError("GetByID", id, err)
	}

	if !found {
		return nil, persistence.NewInstanceError("GetByID", id, persistence.ErrInstanceNotFound)
	}

	return &instance, nil
}

// List returns the tenant's instances, newest first.
func (r *InstanceRepository) List(ctx context.Context, tenantID string, opts persistence.ListInstancesOptions) ([]*models.WorkflowInstance, error) {
	all, err := loadIndexed[models.WorkflowInstance](ctx, r.p.client, r.p.keys.instances(tenantID), func(id string) string {
		return r.p.keys.instance(tenantID, id)
	})
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
