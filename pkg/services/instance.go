package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/hrflow/hrflow/pkg/engine"
	"github.com/hrflow/hrflow/pkg/eventbus"
	"github.com/hrflow/hrflow/pkg/events"
	"github.com/hrflow/hrflow/pkg/graph"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
	"github.com/hrflow/hrflow/pkg/roles"
)

// AdminRole may cancel any instance of its tenant.
const AdminRole = "admin"

// Instances starts, reads and cancels workflow instances.
type Instances struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      *engine.Engine
	roles       roles.Resolver
	recorder    recorder
}

// NewInstances creates a new instance service. publisher may be nil.
func NewInstances(logger *slog.Logger, persistence persistence.Persistence, engine *engine.Engine, resolver roles.Resolver, publisher eventbus.EventPublisher) *Instances {
	logger = logger.With("module", "instances")

	return &Instances{
		logger:      logger,
		persistence: persistence,
		engine:      engine,
		roles:       resolver,
		recorder: recorder{
			logger:    logger,
			audit:     persistence.AuditRepository(),
			publisher: publisher,
		},
	}
}

// TriggerRequest starts an instance from a stored definition or from an inline graph.
type TriggerRequest struct {
	TenantID     string
	ActorID      string
	DefinitionID string
	Graph        *models.Graph
	Name         string
	Payload      map[string]any
}

// Trigger starts one instance. A stored definition must be active.
func (s *Instances) Trigger(ctx context.Context, req TriggerRequest) (*models.WorkflowInstance, error) {
	if (req.DefinitionID == "") == (req.Graph == nil) {
		return nil, NewValidationError("Trigger", "DEFINITION_OR_GRAPH",
			"exactly one of definition_id or graph is required", ErrInvalidRequest)
	}

	start := engine.StartRequest{
		TenantID: req.TenantID,
		Name:     req.Name,
		Graph:    req.Graph,
		Payload:  req.Payload,
		ActorID:  req.ActorID,
	}

	if req.DefinitionID != "" {
		workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, req.TenantID, req.DefinitionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get workflow: %w", err)
		}

		switch workflow.Status {
		case models.WorkflowStatusArchived:
			return nil, newError("Trigger", "WORKFLOW_ARCHIVED", ErrDefinitionArchived)
		case models.WorkflowStatusDraft:
			return nil, newError("Trigger", "WORKFLOW_NOT_ACTIVE", ErrDefinitionNotActive)
		}

		start.DefinitionID = workflow.ID
		start.Graph = workflow.Graph

		if start.Name == "" {
			start.Name = workflow.Name
		}
	}

	if start.Name == "" {
		start.Name = "ad-hoc workflow"
	}

	return s.start(ctx, start)
}

// TriggerEvent starts one instance per active definition whose trigger matches eventType.
func (s *Instances) TriggerEvent(ctx context.Context, tenantID, actorID, eventType string, payload map[string]any) ([]*models.WorkflowInstance, error) {
	if eventType == "" {
		return nil, NewValidationError("TriggerEvent", "EVENT_TYPE_REQUIRED", "event_type is required", ErrInvalidRequest)
	}

	active := models.WorkflowStatusActive

	workflows, err := s.persistence.WorkflowRepository().List(ctx, tenantID, persistence.ListWorkflowsOptions{
		Status:    &active,
		EventType: eventType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	if len(workflows) == 0 {
		return nil, newError("TriggerEvent", "NO_MATCHING_WORKFLOW", fmt.Errorf("%w: %s", ErrNoMatchingDefinition, eventType))
	}

	instances := make([]*models.WorkflowInstance, 0, len(workflows))

	for _, workflow := range workflows {
		instance, err := s.start(ctx, engine.StartRequest{
			TenantID:     tenantID,
			DefinitionID: workflow.ID,
			Name:         workflow.Name,
			Graph:        workflow.Graph,
			Payload:      maps.Clone(payload),
			ActorID:      actorID,
		})
		if err != nil {
			return instances, fmt.Errorf("failed to start workflow %s: %w", workflow.ID, err)
		}

		instances = append(instances, instance)
	}

	return instances, nil
}

func (s *Instances) start(ctx context.Context, req engine.StartRequest) (*models.WorkflowInstance, error) {
	instance, action, err := s.engine.Start(ctx, req)
	if err != nil {
		if errors.Is(err, graph.ErrInvalidGraph) {
			return nil, newError("Trigger", "INVALID_GRAPH", err)
		}

		return nil, fmt.Errorf("failed to start instance: %w", err)
	}

	if err := s.persistence.InstanceRepository().Save(ctx, instance, action); err != nil {
		return nil, fmt.Errorf("failed to save instance: %w", err)
	}

	s.recorder.audited(ctx, &models.AuditRecord{
		TenantID:   instance.TenantID,
		ActorID:    req.ActorID,
		Action:     models.AuditActionStart,
		InstanceID: instance.ID,
		NodeID:     instance.CurrentNodeID,
	})
	s.recorder.publish(ctx, events.NewInstanceStarted(instance))
	s.recorder.published(ctx, instance, action, req.ActorID, "")

	return instance, nil
}

// Get returns an instance of the tenant.
func (s *Instances) Get(ctx context.Context, tenantID, id string) (*models.WorkflowInstance, error) {
	instance, err := s.persistence.InstanceRepository().GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return instance, nil
}

// List returns the tenant's instances, newest first.
func (s *Instances) List(ctx context.Context, tenantID string, opts persistence.ListInstancesOptions) ([]*models.WorkflowInstance, error) {
	instances, err := s.persistence.InstanceRepository().List(ctx, tenantID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	return instances, nil
}

// Audit returns the audit trail of an instance.
func (s *Instances) Audit(ctx context.Context, tenantID, id string) ([]*models.AuditRecord, error) {
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return nil, err
	}

	records, err := s.persistence.AuditRepository().ListByInstance(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}

	return records, nil
}

// Cancel stops a running or suspended instance on behalf of its initiator or a tenant admin.
// The cancelled instance is saved first; only then is its open pending action closed as rejected
// so it disappears from approvers' lists. A closed action on a cancelled instance never resumes it.
func (s *Instances) Cancel(ctx context.Context, tenantID, actorID, id, reason string) (*models.WorkflowInstance, error) {
	instance, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if instance.InitiatedBy != actorID {
		held, err := s.roles.Roles(ctx, tenantID, actorID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve roles: %w", err)
		}

		if !slices.Contains(held, AdminRole) {
			return nil, newError("Cancel", "NOT_AUTHORIZED", ErrNotAuthorized)
		}
	}

	if instance.Status.IsTerminal() {
		if instance.Status == models.InstanceStatusCancelled {
			// Actions left open by an earlier cancel that failed after its save.
			if err := s.closeOpenActions(ctx, instance, actorID); err != nil {
				return nil, err
			}
		}

		return nil, newError("Cancel", "INSTANCE_NOT_RUNNING", fmt.Errorf("%w: %s", ErrInstanceNotRunning, instance.Status))
	}

	if err := s.engine.Cancel(ctx, instance, actorID, reason); err != nil {
		return nil, newError("Cancel", "INSTANCE_NOT_RUNNING", errors.Join(ErrInstanceNotRunning, err))
	}

	if err := s.persistence.InstanceRepository().Save(ctx, instance, nil); err != nil {
		return nil, fmt.Errorf("failed to save instance: %w", err)
	}

	if err := s.closeOpenActions(ctx, instance, actorID); err != nil {
		return nil, err
	}

	s.recorder.audited(ctx, &models.AuditRecord{
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     models.AuditActionCancel,
		InstanceID: instance.ID,
		NodeID:     instance.CurrentNodeID,
		Reason:     reason,
	})
	s.recorder.published(ctx, instance, nil, actorID, reason)

	return instance, nil
}

func (s *Instances) closeOpenActions(ctx context.Context, instance *models.WorkflowInstance, actorID string) error {
	actions, err := s.persistence.PendingActionRepository().ListByInstance(ctx, instance.TenantID, instance.ID)
	if err != nil {
		return fmt.Errorf("failed to list pending actions: %w", err)
	}

	closure := models.ActionClosure{
		Status:    models.PendingActionStatusRejected,
		DecidedBy: actorID,
		Reason:    "cancelled by " + actorID,
		DecidedAt: time.Now().UTC(),
	}

	for _, action := range actions {
		if !action.IsOpen() {
			continue
		}

		// A decision racing the cancel finds the instance no longer suspended and leaves it alone.
		if _, err := s.persistence.PendingActionRepository().Close(ctx, instance.TenantID, action.ID, closure); err != nil && !persistence.IsAlreadyDecided(err) {
			return fmt.Errorf("failed to close pending action %s: %w", action.ID, err)
		}
	}

	return nil
}
