// Package events defines event types and structures for workflow instance lifecycle notifications.
package events

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hrflow/hrflow/pkg/models"
)

type EventType string

// Event is implemented by every event of this package.
type Event interface {
	GetType() EventType
	Key() string
}

// Kafka topics.
const Topic = "hrflow.events"            // Lifecycle, decision and notification events
const HREventsTopic = "hrflow.hr-events" // Inbound HR events that trigger workflows

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"
const TenantMetadataKey = "tenant_id"

const (
	// Instance lifecycle events.
	InstanceStartedEvent   EventType = "instance.started"
	InstanceSuspendedEvent EventType = "instance.suspended"
	InstanceCompletedEvent EventType = "instance.completed"
	InstanceFailedEvent    EventType = "instance.failed"
	InstanceCancelledEvent EventType = "instance.cancelled"

	// Approval and side-effect events.
	ActionDecidedEvent         EventType = "action.decided"
	NotificationRequestedEvent EventType = "notification.requested"

	// Inbound.
	HREventReceivedEvent EventType = "hr.event.received"
)

var (
	ErrMissingTenant    = errors.New("tenant_id is required")
	ErrMissingEventType = errors.New("event_type is required")
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	TenantID   string    `json:"tenant_id"`
	InstanceID string    `json:"instance_id,omitempty"`
}

func newBase(eventType EventType, tenantID, instanceID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		TenantID:   tenantID,
		InstanceID: instanceID,
	}
}

// Key is the partitioning key: events of one instance stay ordered.
func (b BaseEvent) Key() string {
	if b.InstanceID != "" {
		return b.InstanceID
	}

	return b.TenantID
}

type InstanceStarted struct {
	BaseEvent

	DefinitionID string `json:"definition_id,omitempty"`
	Name         string `json:"name"`
	InitiatedBy  string `json:"initiated_by"`
}

func (e InstanceStarted) GetType() EventType {
	return InstanceStartedEvent
}

type InstanceSuspended struct {
	BaseEvent

	NodeID       string `json:"node_id"`
	ActionID     string `json:"action_id"`
	AssignedRole string `json:"assigned_role,omitempty"`
	AssignedUser string `json:"assigned_user,omitempty"`
}

func (e InstanceSuspended) GetType() EventType {
	return InstanceSuspendedEvent
}

type InstanceCompleted struct {
	BaseEvent

	NodeID string `json:"node_id"`
}

func (e InstanceCompleted) GetType() EventType {
	return InstanceCompletedEvent
}

type InstanceFailed struct {
	BaseEvent

	NodeID string `json:"node_id"`
	Reason string `json:"reason"`
}

func (e InstanceFailed) GetType() EventType {
	return InstanceFailedEvent
}

type InstanceCancelled struct {
	BaseEvent

	ActorID string `json:"actor_id"`
	Reason  string `json:"reason,omitempty"`
}

func (e InstanceCancelled) GetType() EventType {
	return InstanceCancelledEvent
}

type ActionDecided struct {
	BaseEvent

	ActionID string          `json:"action_id"`
	NodeID   string          `json:"node_id"`
	Decision models.Decision `json:"decision"`
	ActorID  string          `json:"actor_id"`
	Reason   string          `json:"reason,omitempty"`
}

func (e ActionDecided) GetType() EventType {
	return ActionDecidedEvent
}

type NotificationRequested struct {
	BaseEvent

	NodeID  string         `json:"node_id"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`
}

func (e NotificationRequested) GetType() EventType {
	return NotificationRequestedEvent
}

// HREventReceived is an inbound HR event (leave.created, expense.submitted, ...) that starts every
// active workflow whose trigger matches EventType.
type HREventReceived struct {
	BaseEvent

	EventType string         `json:"event_type"`
	ActorID   string         `json:"actor_id"`
	Payload   map[string]any `json:"payload"`
}

func (e HREventReceived) GetType() EventType {
	return HREventReceivedEvent
}

func (e HREventReceived) Validate() error {
	if e.TenantID == "" {
		return ErrMissingTenant
	}

	if e.EventType == "" {
		return ErrMissingEventType
	}

	return nil
}

func NewHREventReceived(tenantID, eventType, actorID string, payload map[string]any) *HREventReceived {
	return &HREventReceived{
		BaseEvent: newBase(HREventReceivedEvent, tenantID, ""),
		EventType: eventType,
		ActorID:   actorID,
		Payload:   payload,
	}
}

func NewInstanceStarted(inst *models.WorkflowInstance) *InstanceStarted {
	return &InstanceStarted{
		BaseEvent:    newBase(InstanceStartedEvent, inst.TenantID, inst.ID),
		DefinitionID: inst.DefinitionID,
		Name:         inst.Name,
		InitiatedBy:  inst.InitiatedBy,
	}
}

func NewInstanceSuspended(inst *models.WorkflowInstance, action *models.PendingAction) *InstanceSuspended {
	return &InstanceSuspended{
		BaseEvent:    newBase(InstanceSuspendedEvent, inst.TenantID, inst.ID),
		NodeID:       action.NodeID,
		ActionID:     action.ID,
		AssignedRole: action.AssignedRole,
		AssignedUser: action.AssignedUser,
	}
}

func NewActionDecided(action *models.PendingAction) *ActionDecided {
	decision, _ := action.Decision()

	return &ActionDecided{
		BaseEvent: newBase(ActionDecidedEvent, action.TenantID, action.InstanceID),
		ActionID:  action.ID,
		NodeID:    action.NodeID,
		Decision:  decision,
		ActorID:   action.DecidedBy,
		Reason:    action.Reason,
	}
}

func NewNotificationRequested(tenantID, instanceID, nodeID, message string, payload map[string]any) *NotificationRequested {
	return &NotificationRequested{
		BaseEvent: newBase(NotificationRequestedEvent, tenantID, instanceID),
		NodeID:    nodeID,
		Message:   message,
		Payload:   payload,
	}
}

// ForOutcome returns the terminal lifecycle event matching the instance's state, or nil when it is not terminal.
// Suspension events are built with NewInstanceSuspended since they carry the pending action.
func ForOutcome(inst *models.WorkflowInstance, actorID, reason string) Event {
	switch inst.Status {
	case models.InstanceStatusCompleted:
		return &InstanceCompleted{
			BaseEvent: newBase(InstanceCompletedEvent, inst.TenantID, inst.ID),
			NodeID:    inst.CurrentNodeID,
		}
	case models.InstanceStatusFailed:
		e := &InstanceFailed{BaseEvent: newBase(InstanceFailedEvent, inst.TenantID, inst.ID)}
		if inst.Error != nil {
			e.NodeID, e.Reason = inst.Error.NodeID, inst.Error.Reason
		}

		return e
	case models.InstanceStatusCancelled:
		return &InstanceCancelled{
			BaseEvent: newBase(InstanceCancelledEvent, inst.TenantID, inst.ID),
			ActorID:   actorID,
			Reason:    reason,
		}
	default:
		return nil
	}
}

// New returns an empty event of the given type for decoding, or false for unknown types.
func New(eventType EventType) (Event, bool) {
	switch eventType {
	case InstanceStartedEvent:
		return &InstanceStarted{}, true
	case InstanceSuspendedEvent:
		return &InstanceSuspended{}, true
	case InstanceCompletedEvent:
		return &InstanceCompleted{}, true
	case InstanceFailedEvent:
		return &InstanceFailed{}, true
	case InstanceCancelledEvent:
		return &InstanceCancelled{}, true
	case ActionDecidedEvent:
		return &ActionDecided{}, true
	case NotificationRequestedEvent:
		return &NotificationRequested{}, true
	case HREventReceivedEvent:
		return &HREventReceived{}, true
	default:
		return nil, false
	}
}
