// Package models defines the core domain models for approval workflow automation
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, cannot be triggered
	WorkflowStatusActive   WorkflowStatus = "active"   // Eligible for triggering
	WorkflowStatusArchived WorkflowStatus = "archived" // Read-only, running instances continue
)

// IsValid reports whether s is a known lifecycle status.
func (s WorkflowStatus) IsValid() bool {
	switch s {
	case WorkflowStatusDraft, WorkflowStatusActive, WorkflowStatusArchived:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a definition in status s may move to next.
func (s WorkflowStatus) CanTransitionTo(next WorkflowStatus) bool {
	if s == next {
		return true
	}

	switch s {
	case WorkflowStatusDraft:
		return next == WorkflowStatusActive || next == WorkflowStatusArchived
	case WorkflowStatusActive:
		return next == WorkflowStatusDraft || next == WorkflowStatusArchived
	default:
		return false
	}
}

// Workflow is a tenant-scoped workflow definition: the authored graph plus its lifecycle state.
type Workflow struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	Name        string         `json:"name"                 validate:"required,min=3"`
	Description string         `json:"description"`
	Status      WorkflowStatus `json:"status"               validate:"required,oneof=draft active archived"`
	Graph       *Graph         `json:"graph"                validate:"required"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// WorkflowSummary is the listing projection of a workflow definition.
type WorkflowSummary struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Status      WorkflowStatus `json:"status"`
	EventType   string         `json:"event_type,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Summary returns the listing projection of the workflow.
func (w *Workflow) Summary() WorkflowSummary {
	summary := WorkflowSummary{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Status:      w.Status,
		UpdatedAt:   w.UpdatedAt,
	}

	if w.Graph != nil {
		if trigger, ok := w.Graph.Trigger(); ok {
			summary.EventType = trigger.EventType
		}
	}

	return summary
}
