package models

import "time"

// InstanceStatus represents the execution state of a workflow instance.
type InstanceStatus string

const (
	InstanceStatusRunning   InstanceStatus = "running"
	InstanceStatusSuspended InstanceStatus = "suspended" // Waiting on an approval decision
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusFailed    InstanceStatus = "failed"
	InstanceStatusCancelled InstanceStatus = "cancelled"
)

// IsTerminal reports whether no further progress is possible.
func (s InstanceStatus) IsTerminal() bool {
	return s == InstanceStatusCompleted || s == InstanceStatusFailed || s == InstanceStatusCancelled
}

// Outcome describes what happened at a node in the execution history.
type Outcome string

const (
	OutcomeTriggered Outcome = "triggered"
	OutcomeTrue      Outcome = "true"
	OutcomeFalse     Outcome = "false"
	OutcomeSuspended Outcome = "suspended"
	OutcomeRejected  Outcome = "rejected"
	OutcomeNotified  Outcome = "notified"
	OutcomeTracked   Outcome = "tracked"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// HistoryEntry is one append-only record of the walk.
type HistoryEntry struct {
	Seq     int       `json:"seq"`
	NodeID  string    `json:"node_id"`
	Kind    NodeKind  `json:"kind"`
	Outcome Outcome   `json:"outcome"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// InstanceError records where and why an instance failed.
type InstanceError struct {
	NodeID string `json:"node_id"`
	Reason string `json:"reason"`
}

// WorkflowInstance is one execution of a workflow against a triggering event.
// Graph is the snapshot captured at creation; later edits to the definition never reach it.
type WorkflowInstance struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	DefinitionID  string         `json:"definition_id,omitempty"`
	Name          string         `json:"name"`
	Graph         *Graph         `json:"graph"`
	InitiatedBy   string         `json:"initiated_by"`
	Payload       map[string]any `json:"payload"`
	Status        InstanceStatus `json:"status"`
	CurrentNodeID string         `json:"current_node_id"`
	History       []HistoryEntry `json:"history"`
	Error         *InstanceError `json:"error,omitempty"`
	Version       int            `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// Append adds a history entry with the next sequence number.
func (i *WorkflowInstance) Append(node Node, outcome Outcome, detail string, at time.Time) {
	i.History = append(i.History, HistoryEntry{
		Seq:     len(i.History) + 1,
		NodeID:  node.NodeID(),
		Kind:    node.Kind(),
		Outcome: outcome,
		Detail:  detail,
		At:      at,
	})
}

// IsSuspendedAt reports whether the instance is waiting for a decision at nodeID.
func (i *WorkflowInstance) IsSuspendedAt(nodeID string) bool {
	return i.Status == InstanceStatusSuspended && i.CurrentNodeID == nodeID
}
