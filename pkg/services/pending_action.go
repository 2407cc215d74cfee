package services

import (
	"context"
	"fmt"

	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
	"github.com/hrflow/hrflow/pkg/roles"
)

// PendingActions answers "what is waiting for me" queries.
type PendingActions struct {
	persistence persistence.Persistence
	roles       roles.Resolver
}

func NewPendingActions(persistence persistence.Persistence, resolver roles.Resolver) *PendingActions {
	return &PendingActions{
		persistence: persistence,
		roles:       resolver,
	}
}

// ListFor returns the open actions assigned to the user directly or to any role the user holds.
func (p *PendingActions) ListFor(ctx context.Context, tenantID, userID string) ([]*models.PendingAction, error) {
	held, err := p.roles.Roles(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve roles: %w", err)
	}

	actions, err := p.persistence.PendingActionRepository().ListOpen(ctx, tenantID, held, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending actions: %w", err)
	}

	return actions, nil
}

// Get returns a pending action of the tenant.
func (p *PendingActions) Get(ctx context.Context, tenantID, id string) (*models.PendingAction, error) {
	action, err := p.persistence.PendingActionRepository().GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending action: %w", err)
	}

	return action, nil
}

// ListByInstance returns every action, open or closed, of an instance in creation order.
func (p *PendingActions) ListByInstance(ctx context.Context, tenantID, instanceID string) ([]*models.PendingAction, error) {
	actions, err := p.persistence.PendingActionRepository().ListByInstance(ctx, tenantID, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending actions: %w", err)
	}

	return actions, nil
}
