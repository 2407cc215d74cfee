package models

import (
	"slices"
	"time"
)

// PendingActionStatus is the state of an approval in flight or historically closed.
type PendingActionStatus string

const (
	PendingActionStatusPending  PendingActionStatus = "pending"
	PendingActionStatusApproved PendingActionStatus = "approved"
	PendingActionStatusRejected PendingActionStatus = "rejected"
)

// Decision is an actor's resolution of a pending action.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// IsValid reports whether d is approve or reject.
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Status maps the decision to the closed action status.
func (d Decision) Status() PendingActionStatus {
	if d == DecisionApprove {
		return PendingActionStatusApproved
	}

	return PendingActionStatusRejected
}

// EdgeLabel maps the decision to the approval edge label it selects.
func (d Decision) EdgeLabel() EdgeLabel {
	if d == DecisionApprove {
		return EdgeLabelApprove
	}

	return EdgeLabelReject
}

// PendingAction is the durable record of one approval step awaiting (or having received) a decision.
type PendingAction struct {
	ID           string              `json:"id"`
	TenantID     string              `json:"tenant_id"`
	InstanceID   string              `json:"instance_id"`
	NodeID       string              `json:"node_id"`
	NodeName     string              `json:"node_name"`
	AssignedRole string              `json:"assigned_role,omitempty"`
	AssignedUser string              `json:"assigned_user,omitempty"`
	Status       PendingActionStatus `json:"status"`
	DecidedBy    string              `json:"decided_by,omitempty"`
	DecidedAt    *time.Time          `json:"decided_at,omitempty"`
	Reason       string              `json:"reason,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// IsOpen reports whether the action still awaits a decision.
func (a *PendingAction) IsOpen() bool {
	return a.Status == PendingActionStatusPending
}

// Decision returns the decision that closed the action, if any.
func (a *PendingAction) Decision() (Decision, bool) {
	switch a.Status {
	case PendingActionStatusApproved:
		return DecisionApprove, true
	case PendingActionStatusRejected:
		return DecisionReject, true
	default:
		return "", false
	}
}

// AssignedTo reports whether a user with the given id and roles may decide the action.
func (a *PendingAction) AssignedTo(userID string, roles []string) bool {
	if a.AssignedUser != "" && a.AssignedUser == userID {
		return true
	}

	return a.AssignedRole != "" && slices.Contains(roles, a.AssignedRole)
}

// ActionClosure carries the fields written by the compare-and-set that closes a pending action.
type ActionClosure struct {
	Status    PendingActionStatus
	DecidedBy string
	Reason    string
	DecidedAt time.Time
}

// Apply writes the closure onto the action.
func (c ActionClosure) Apply(a *PendingAction) {
	at := c.DecidedAt
	a.Status = c.Status
	a.DecidedBy = c.DecidedBy
	a.Reason = c.Reason
	a.DecidedAt = &at
}
