package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrflow/hrflow/pkg/engine"
	"github.com/hrflow/hrflow/pkg/eventbus"
	"github.com/hrflow/hrflow/pkg/events"
	"github.com/hrflow/hrflow/pkg/log"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/otelhelper"
	"github.com/hrflow/hrflow/pkg/persistence"
	"github.com/hrflow/hrflow/pkg/roles"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxResumeAttempts bounds retries of the instance save after a concurrent modification.
const maxResumeAttempts = 3

// Decisions records approve/reject decisions and resumes the affected instances.
type Decisions struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      *engine.Engine
	roles       roles.Resolver
	tracer      trace.Tracer
	recorder    recorder
}

// NewDecisions creates a new decision service. publisher may be nil.
func NewDecisions(logger *slog.Logger, persistence persistence.Persistence, engine *engine.Engine, resolver roles.Resolver, publisher eventbus.EventPublisher, tracer trace.Tracer) *Decisions {
	logger = logger.With("module", "decisions")

	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	return &Decisions{
		logger:      logger,
		persistence: persistence,
		engine:      engine,
		roles:       resolver,
		tracer:      tracer,
		recorder: recorder{
			logger:    logger,
			audit:     persistence.AuditRepository(),
			publisher: publisher,
		},
	}
}

// DecideRequest is an actor's decision on a pending action.
type DecideRequest struct {
	TenantID string
	ActorID  string
	ActionID string
	Decision models.Decision
	Reason   string
}

// Decide closes the pending action with the actor's decision and resumes its instance.
// Authorization is checked before anything is written. When two actors race, exactly one wins;
// the other gets a *persistence.AlreadyDecidedError carrying the winning decision.
func (d *Decisions) Decide(ctx context.Context, req DecideRequest) (*models.WorkflowInstance, error) {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "decisions.decide",
		attribute.String(otelhelper.TenantIDKey, req.TenantID),
		attribute.String(otelhelper.ActionIDKey, req.ActionID),
		attribute.String(otelhelper.ActorIDKey, req.ActorID),
		attribute.String(otelhelper.DecisionKey, string(req.Decision)),
	)
	defer span.End()

	ctx = log.WithLogger(ctx, d.logger.With("tenant_id", req.TenantID, "action_id", req.ActionID))

	instance, err := d.decide(ctx, req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(
		attribute.String(otelhelper.InstanceIDKey, instance.ID),
		attribute.String(otelhelper.StatusKey, string(instance.Status)),
	)

	return instance, nil
}

func (d *Decisions) decide(ctx context.Context, req DecideRequest) (*models.WorkflowInstance, error) {
	if !req.Decision.IsValid() {
		return nil, NewValidationError("Decide", "INVALID_DECISION",
			fmt.Sprintf("decision must be approve or reject, got %q", req.Decision), ErrInvalidRequest)
	}

	reason := strings.TrimSpace(req.Reason)
	if req.Decision == models.DecisionReject && reason == "" {
		return nil, newError("Decide", "REASON_REQUIRED", ErrReasonRequired)
	}

	action, err := d.persistence.PendingActionRepository().GetByID(ctx, req.TenantID, req.ActionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending action: %w", err)
	}

	if err := d.authorize(ctx, req, action); err != nil {
		return nil, err
	}

	if !action.IsOpen() {
		return d.redrive(ctx, req.ActorID, action)
	}

	closed, err := d.persistence.PendingActionRepository().Close(ctx, req.TenantID, req.ActionID, models.ActionClosure{
		Status:    req.Decision.Status(),
		DecidedBy: req.ActorID,
		Reason:    reason,
		DecidedAt: time.Now().UTC(),
	})
	if err != nil {
		var decided *persistence.AlreadyDecidedError
		if errors.As(err, &decided) && decided.Action != nil {
			return d.redrive(ctx, req.ActorID, decided.Action)
		}

		return nil, fmt.Errorf("failed to close pending action: %w", err)
	}

	instance, _, err := d.complete(ctx, closed)

	return instance, err
}

// redrive finishes a decision whose action is closed but whose instance is still suspended at
// the action's node, as left behind by a failed instance save. Only the actor who closed the
// action gets the resumed instance back; everyone else learns the action was already decided.
func (d *Decisions) redrive(ctx context.Context, actorID string, action *models.PendingAction) (*models.WorkflowInstance, error) {
	instance, advanced, err := d.complete(ctx, action)
	if err != nil {
		return nil, err
	}

	if advanced {
		d.logger.WarnContext(ctx, "Resumed instance left suspended at a decided action",
			"tenant_id", action.TenantID,
			"action_id", action.ID,
			"instance_id", instance.ID,
			"decided_by", action.DecidedBy,
			"actor_id", actorID)
	}

	if !advanced || action.DecidedBy != actorID {
		return nil, &persistence.AlreadyDecidedError{Action: action}
	}

	return instance, nil
}

// complete resumes the instance past a closed action. The decision is recorded under the actor
// who closed the action, and only by the call that actually advanced the instance.
func (d *Decisions) complete(ctx context.Context, closed *models.PendingAction) (*models.WorkflowInstance, bool, error) {
	instance, next, advanced, err := d.resume(ctx, closed)
	if err != nil {
		return nil, false, err
	}

	if !advanced {
		return instance, false, nil
	}

	decision, _ := closed.Decision()

	d.logger.InfoContext(ctx, "Recorded decision",
		"tenant_id", closed.TenantID,
		"action_id", closed.ID,
		"instance_id", instance.ID,
		"decision", decision,
		"actor_id", closed.DecidedBy,
		"status", instance.Status)

	d.recorder.audited(ctx, &models.AuditRecord{
		TenantID:   closed.TenantID,
		ActorID:    closed.DecidedBy,
		Action:     models.AuditActionDecide,
		InstanceID: instance.ID,
		NodeID:     closed.NodeID,
		ActionID:   closed.ID,
		Decision:   decision,
		Reason:     closed.Reason,
	})
	d.recorder.publish(ctx, events.NewActionDecided(closed))
	d.recorder.published(ctx, instance, next, closed.DecidedBy, closed.Reason)

	return instance, true, nil
}

func (d *Decisions) authorize(ctx context.Context, req DecideRequest, action *models.PendingAction) error {
	held, err := d.roles.Roles(ctx, req.TenantID, req.ActorID)
	if err != nil {
		return fmt.Errorf("failed to resolve roles: %w", err)
	}

	if !action.AssignedTo(req.ActorID, held) {
		d.logger.WarnContext(ctx, "Rejected unauthorized decision",
			"tenant_id", req.TenantID,
			"action_id", action.ID,
			"actor_id", req.ActorID)

		return newError("Decide", "NOT_AUTHORIZED", ErrNotAuthorized)
	}

	return nil
}

// resume advances the instance past the closed action. A concurrent save of the same instance
// is retried on a fresh copy; resuming is a no-op once the instance has moved on, reported by a
// false advanced.
func (d *Decisions) resume(ctx context.Context, action *models.PendingAction) (*models.WorkflowInstance, *models.PendingAction, bool, error) {
	var err error

	for range maxResumeAttempts {
		var instance *models.WorkflowInstance

		instance, err = d.persistence.InstanceRepository().GetByID(ctx, action.TenantID, action.InstanceID)
		if err != nil {
			return nil, nil, false, fmt.Errorf("failed to get instance: %w", err)
		}

		if !instance.IsSuspendedAt(action.NodeID) {
			return instance, nil, false, nil
		}

		next, resumeErr := d.engine.Resume(ctx, instance, action)
		if resumeErr != nil {
			return nil, nil, false, fmt.Errorf("failed to resume instance: %w", resumeErr)
		}

		err = d.persistence.InstanceRepository().Save(ctx, instance, next)
		if err == nil {
			return instance, next, true, nil
		}

		if !persistence.IsConcurrentModification(err) {
			return nil, nil, false, fmt.Errorf("failed to save instance: %w", err)
		}

		d.logger.WarnContext(ctx, "Instance changed while resuming, retrying",
			"instance_id", action.InstanceID,
			"action_id", action.ID)
	}

	return nil, nil, false, fmt.Errorf("failed to save instance: %w", err)
}
