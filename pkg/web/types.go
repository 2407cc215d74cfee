// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"github.com/goccy/go-json"
	"github.com/hrflow/hrflow/pkg/models"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string          `json:"name"             validate:"required,min=3"`
	Description string          `json:"description"`
	Graph       json.RawMessage `json:"graph"            validate:"required"`
	Status      string          `json:"status,omitempty" validate:"omitempty,oneof=draft active"`
}

// UpdateWorkflowRequest represents the request body for updating an existing workflow.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string         `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string         `json:"description,omitempty"`
	Graph       json.RawMessage `json:"graph,omitempty"`
	Status      *string         `json:"status,omitempty"      validate:"omitempty,oneof=draft active archived"`
}

// PreviewRequest is a dry run of a graph against a sample payload.
type PreviewRequest struct {
	Graph   json.RawMessage `json:"graph"   validate:"required"`
	Payload map[string]any  `json:"payload"`
}

// TriggerInstanceRequest starts an instance from a definition or an inline graph.
type TriggerInstanceRequest struct {
	DefinitionID string          `json:"definition_id,omitempty" validate:"required_without=Graph"`
	Graph        json.RawMessage `json:"graph,omitempty"`
	Name         string          `json:"name,omitempty"`
	Payload      map[string]any  `json:"payload"`
}

// TriggerEventRequest starts every active workflow matching an HR event.
type TriggerEventRequest struct {
	EventType string         `json:"event_type" validate:"required"`
	Payload   map[string]any `json:"payload"`
}

// CancelInstanceRequest represents the request body for cancelling an instance.
type CancelInstanceRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// DecisionRequest represents an approve or reject decision.
type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Reason   string `json:"reason"   validate:"max=1000"`
}

// TriggerEventResponse lists the instances an event started.
type TriggerEventResponse struct {
	InstanceIDs []string `json:"instance_ids"`
}

// WorkflowListResponse wraps workflow summaries.
type WorkflowListResponse struct {
	Workflows []models.WorkflowSummary `json:"workflows"`
}

// InstanceListResponse wraps instances.
type InstanceListResponse struct {
	Instances []*models.WorkflowInstance `json:"instances"`
}

// PendingActionListResponse wraps pending actions.
type PendingActionListResponse struct {
	PendingActions []*models.PendingAction `json:"pending_actions"`
}
