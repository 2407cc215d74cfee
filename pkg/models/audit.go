package models

import "time"

// AuditAction names what an audit record attests to.
type AuditAction string

const (
	AuditActionStart  AuditAction = "start"
	AuditActionDecide AuditAction = "decide"
	AuditActionCancel AuditAction = "cancel"
)

// AuditRecord is an immutable trace of an actor mutating workflow state.
type AuditRecord struct {
	ID         string      `json:"id"`
	TenantID   string      `json:"tenant_id"`
	ActorID    string      `json:"actor_id"`
	Action     AuditAction `json:"action"`
	InstanceID string      `json:"instance_id"`
	NodeID     string      `json:"node_id,omitempty"`
	ActionID   string      `json:"action_id,omitempty"`
	Decision   Decision    `json:"decision,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	At         time.Time   `json:"at"`
}
