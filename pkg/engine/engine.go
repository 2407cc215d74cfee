// Package engine walks workflow graphs: it starts instances, suspends them at approvals and resumes
// them from persisted state once a decision is recorded. It holds no state between calls.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hrflow/hrflow/pkg/graph"
	"github.com/hrflow/hrflow/pkg/log"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/notify"
	"github.com/hrflow/hrflow/pkg/otelhelper"
	"github.com/hrflow/hrflow/pkg/template"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultStepLimit bounds the nodes visited by one walk.
const DefaultStepLimit = 1000

var (
	// ErrActionOpen is returned when resuming with an action that has not been decided.
	ErrActionOpen = errors.New("pending action has not been decided")

	// ErrActionMismatch is returned when the action belongs to another instance.
	ErrActionMismatch = errors.New("pending action does not belong to instance")

	// ErrInstanceTerminal is returned when cancelling an instance that already ended.
	ErrInstanceTerminal = errors.New("workflow instance already ended")
)

// Rules evaluates condition rules against payloads.
type Rules interface {
	Validate(rule string) error
	Evaluate(rule string, payload map[string]any) (bool, error)
}

// StartRequest describes a new instance.
type StartRequest struct {
	TenantID     string
	DefinitionID string
	Name         string
	Graph        *models.Graph
	Payload      map[string]any
	ActorID      string
}

// Engine runs workflow instances over their graph snapshots. It is safe for concurrent use.
type Engine struct {
	logger    *slog.Logger
	rules     Rules
	notifier  notify.Notifier
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
	stepLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier replaces the default log notifier used by notify nodes.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithTracer sets the tracer for Start and Resume spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithClock overrides the source of history and instance timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithStepLimit bounds the nodes one walk may visit before the instance fails.
func WithStepLimit(limit int) Option {
	return func(e *Engine) { e.stepLimit = limit }
}

// New creates an Engine evaluating condition nodes with rules. Notifications go to the log and
// spans to a no-op tracer unless overridden by opts.
func New(logger *slog.Logger, rules Rules, opts ...Option) *Engine {
	e := &Engine{
		logger:    logger.With("module", "engine"),
		rules:     rules,
		notifier:  notify.NewLogNotifier(logger),
		tracer:    otelhelper.NoopTracer(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     newID,
		stepLimit: DefaultStepLimit,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

// Start validates the graph, creates an instance holding it as its frozen snapshot and walks from
// the trigger until the instance suspends or ends. The returned action is non-nil when the walk
// suspended at an approval; callers persist it together with the instance.
func (e *Engine) Start(ctx context.Context, req StartRequest) (*models.WorkflowInstance, *models.PendingAction, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.start",
		attribute.String(otelhelper.TenantIDKey, req.TenantID),
		attribute.String(otelhelper.WorkflowIDKey, req.DefinitionID),
	)
	defer span.End()

	if err := graph.Validate(req.Graph, e.rules); err != nil {
		otelhelper.SetError(span, err)

		return nil, nil, err
	}

	trigger, _ := req.Graph.Trigger()

	payload := req.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	now := e.now()
	instance := &models.WorkflowInstance{
		ID:            e.newID(),
		TenantID:      req.TenantID,
		DefinitionID:  req.DefinitionID,
		Name:          req.Name,
		Graph:         req.Graph,
		InitiatedBy:   req.ActorID,
		Payload:       payload,
		Status:        models.InstanceStatusRunning,
		CurrentNodeID: trigger.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	span.SetAttributes(attribute.String(otelhelper.InstanceIDKey, instance.ID))

	action := e.advance(ctx, instance, trigger.ID)

	span.SetAttributes(attribute.String(otelhelper.StatusKey, string(instance.Status)))

	e.logger.InfoContext(ctx, "Started workflow instance",
		"tenant_id", instance.TenantID,
		"instance_id", instance.ID,
		"definition_id", instance.DefinitionID,
		"status", instance.Status)

	return instance, action, nil
}

// Resume continues an instance suspended at the closed action's node. An instance that is not
// suspended there is returned unchanged, so replaying a decision has no effect.
func (e *Engine) Resume(ctx context.Context, instance *models.WorkflowInstance, action *models.PendingAction) (*models.PendingAction, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.resume",
		attribute.String(otelhelper.TenantIDKey, instance.TenantID),
		attribute.String(otelhelper.InstanceIDKey, instance.ID),
		attribute.String(otelhelper.ActionIDKey, action.ID),
		attribute.String(otelhelper.NodeIDKey, action.NodeID),
	)
	defer span.End()

	decision, decided := action.Decision()
	if !decided {
		otelhelper.SetError(span, ErrActionOpen)

		return nil, fmt.Errorf("resume %s: %w", action.ID, ErrActionOpen)
	}

	if action.InstanceID != instance.ID {
		otelhelper.SetError(span, ErrActionMismatch)

		return nil, fmt.Errorf("resume %s on %s: %w", action.ID, instance.ID, ErrActionMismatch)
	}

	span.SetAttributes(attribute.String(otelhelper.DecisionKey, string(decision)))

	if !instance.IsSuspendedAt(action.NodeID) {
		e.logger.InfoContext(ctx, "Instance not suspended at decided node, nothing to resume",
			"instance_id", instance.ID,
			"node_id", action.NodeID,
			"status", instance.Status,
			"current_node_id", instance.CurrentNodeID)

		return nil, nil
	}

	instance.Status = models.InstanceStatusRunning
	instance.UpdatedAt = e.now()

	node, ok := instance.Graph.Node(action.NodeID)
	if !ok {
		e.fail(ctx, instance, action.NodeID, "", "node not found in graph snapshot")

		return nil, nil
	}

	next, ok := e.decisionEdge(ctx, instance, node, decision, action)
	if !ok {
		return nil, nil
	}

	pending := e.advance(ctx, instance, next)

	span.SetAttributes(attribute.String(otelhelper.StatusKey, string(instance.Status)))

	return pending, nil
}

// decisionEdge picks the edge selected by the decision. It returns false when the instance ended
// instead: cancelled on a reject with no reject edge, failed on any other missing edge.
func (e *Engine) decisionEdge(ctx context.Context, instance *models.WorkflowInstance, node models.Node, decision models.Decision, action *models.PendingAction) (string, bool) {
	detail := action.DecidedBy
	if action.Reason != "" {
		detail += ": " + action.Reason
	}

	out := instance.Graph.Outgoing(node.NodeID())

	for _, edge := range out {
		if edge.Label == decision.EdgeLabel() {
			if decision == models.DecisionReject {
				instance.Append(node, models.OutcomeRejected, detail, e.now())
			}

			return edge.To, true
		}
	}

	if decision == models.DecisionReject {
		instance.Append(node, models.OutcomeCancelled, "rejected by "+detail, e.now())
		e.finish(instance, models.InstanceStatusCancelled)

		return "", false
	}

	var unlabeled []models.Edge

	for _, edge := range out {
		if edge.Label == models.EdgeLabelNone {
			unlabeled = append(unlabeled, edge)
		}
	}

	if len(unlabeled) != 1 {
		e.fail(ctx, instance, node.NodeID(), node.Kind(), fmt.Sprintf("no edge for decision %s", decision))

		return "", false
	}

	return unlabeled[0].To, true
}

// Cancel ends a running or suspended instance. Closing its open pending action is up to the caller.
func (e *Engine) Cancel(ctx context.Context, instance *models.WorkflowInstance, actorID, reason string) error {
	if instance.Status.IsTerminal() {
		return fmt.Errorf("cancel %s (%s): %w", instance.ID, instance.Status, ErrInstanceTerminal)
	}

	detail := "cancelled by " + actorID
	if reason != "" {
		detail += ": " + reason
	}

	kind := models.NodeKind("")
	if node, ok := instance.Graph.Node(instance.CurrentNodeID); ok {
		kind = node.Kind()
	}

	e.record(instance, instance.CurrentNodeID, kind, models.OutcomeCancelled, detail)
	e.finish(instance, models.InstanceStatusCancelled)

	e.logger.InfoContext(ctx, "Cancelled workflow instance",
		"instance_id", instance.ID,
		"actor_id", actorID)

	return nil
}

// advance walks from nodeID until the instance suspends or ends.
func (e *Engine) advance(ctx context.Context, instance *models.WorkflowInstance, nodeID string) *models.PendingAction {
	for step := 0; ; step++ {
		if step >= e.stepLimit {
			e.fail(ctx, instance, nodeID, "", fmt.Sprintf("step limit of %d exceeded", e.stepLimit))

			return nil
		}

		node, ok := instance.Graph.Node(nodeID)
		if !ok {
			e.fail(ctx, instance, nodeID, "", "node not found in graph snapshot")

			return nil
		}

		instance.CurrentNodeID = nodeID

		var next string

		switch n := node.(type) {
		case models.Trigger:
			instance.Append(n, models.OutcomeTriggered, n.EventType, e.now())
			next, ok = e.single(ctx, instance, n)
		case models.Task:
			instance.Append(n, models.OutcomeTracked, n.Label, e.now())
			next, ok = e.single(ctx, instance, n)
		case models.Notify:
			instance.Append(n, models.OutcomeNotified, e.notify(ctx, instance, n), e.now())
			next, ok = e.single(ctx, instance, n)
		case models.Condition:
			next, ok = e.branch(ctx, instance, n)
		case models.Approval:
			return e.suspend(instance, n)
		case models.Complete:
			instance.Append(n, models.OutcomeCompleted, "", e.now())
			e.finish(instance, models.InstanceStatusCompleted)

			return nil
		default:
			e.fail(ctx, instance, nodeID, node.Kind(), fmt.Sprintf("unsupported node kind %q", node.Kind()))

			return nil
		}

		if !ok {
			return nil
		}

		nodeID = next
	}
}

func (e *Engine) single(ctx context.Context, instance *models.WorkflowInstance, node models.Node) (string, bool) {
	out := instance.Graph.Outgoing(node.NodeID())
	if len(out) != 1 {
		e.fail(ctx, instance, node.NodeID(), node.Kind(), fmt.Sprintf("expected exactly one outgoing edge, found %d", len(out)))

		return "", false
	}

	return out[0].To, true
}

func (e *Engine) branch(ctx context.Context, instance *models.WorkflowInstance, node models.Condition) (string, bool) {
	result, err := e.rules.Evaluate(node.Rule, instance.Payload)
	if err != nil {
		e.fail(ctx, instance, node.ID, node.Kind(), err.Error())

		return "", false
	}

	outcome, label := models.OutcomeFalse, models.EdgeLabelFalse
	if result {
		outcome, label = models.OutcomeTrue, models.EdgeLabelTrue
	}

	instance.Append(node, outcome, node.Rule, e.now())

	for _, edge := range instance.Graph.Outgoing(node.ID) {
		if edge.Label == label {
			return edge.To, true
		}
	}

	e.fail(ctx, instance, node.ID, node.Kind(), fmt.Sprintf("dead end: no %s edge", label))

	return "", false
}

func (e *Engine) suspend(instance *models.WorkflowInstance, node models.Approval) *models.PendingAction {
	now := e.now()

	instance.Status = models.InstanceStatusSuspended
	instance.UpdatedAt = now
	instance.Append(node, models.OutcomeSuspended, node.DisplayName(), now)

	return &models.PendingAction{
		ID:           e.newID(),
		TenantID:     instance.TenantID,
		InstanceID:   instance.ID,
		NodeID:       node.ID,
		NodeName:     node.DisplayName(),
		AssignedRole: node.ApproverRole,
		AssignedUser: node.ApproverUser,
		Status:       models.PendingActionStatusPending,
		CreatedAt:    now,
	}
}

// notify renders and delivers the node's message. Rendering and delivery failures are logged and
// noted in the history detail; they never fail the instance.
func (e *Engine) notify(ctx context.Context, instance *models.WorkflowInstance, node models.Notify) string {
	logger := log.FromContextOr(ctx, e.logger)

	message, err := template.Render(node.Message, template.Data{
		InstanceID: instance.ID,
		Name:       instance.Name,
		Payload:    instance.Payload,
	})
	if err != nil {
		logger.WarnContext(ctx, "Notification message could not be rendered",
			"instance_id", instance.ID,
			"node_id", node.ID,
			"error", err)

		message = node.Message
	}

	err = e.notifier.Notify(ctx, notify.Notification{
		TenantID:   instance.TenantID,
		InstanceID: instance.ID,
		NodeID:     node.ID,
		Message:    message,
		Payload:    instance.Payload,
	})
	if err != nil {
		logger.WarnContext(ctx, "Notification delivery failed",
			"instance_id", instance.ID,
			"node_id", node.ID,
			"error", err)

		return fmt.Sprintf("%s (delivery failed: %v)", message, err)
	}

	return message
}

func (e *Engine) fail(ctx context.Context, instance *models.WorkflowInstance, nodeID string, kind models.NodeKind, reason string) {
	e.record(instance, nodeID, kind, models.OutcomeFailed, reason)
	instance.Error = &models.InstanceError{NodeID: nodeID, Reason: reason}
	e.finish(instance, models.InstanceStatusFailed)

	log.FromContextOr(ctx, e.logger).WarnContext(ctx, "Workflow instance failed",
		"instance_id", instance.ID,
		"node_id", nodeID,
		"reason", reason)
}

func (e *Engine) record(instance *models.WorkflowInstance, nodeID string, kind models.NodeKind, outcome models.Outcome, detail string) {
	instance.History = append(instance.History, models.HistoryEntry{
		Seq:     len(instance.History) + 1,
		NodeID:  nodeID,
		Kind:    kind,
		Outcome: outcome,
		Detail:  detail,
		At:      e.now(),
	})
}

func (e *Engine) finish(instance *models.WorkflowInstance, status models.InstanceStatus) {
	now := e.now()

	instance.Status = status
	instance.UpdatedAt = now
	instance.CompletedAt = &now
}
