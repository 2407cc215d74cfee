// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/google/uuid"
	"github.com/hrflow/hrflow/pkg/models"
)

// GraphBuilder assembles graphs for tests.
type GraphBuilder struct {
	nodes []models.Node
	edges []models.Edge
}

// NewGraph starts an empty graph.
func NewGraph() *GraphBuilder {
	return &GraphBuilder{}
}

// Node adds any node.
func (b *GraphBuilder) Node(n models.Node) *GraphBuilder {
	b.nodes = append(b.nodes, n)

	return b
}

// Trigger adds a trigger node.
func (b *GraphBuilder) Trigger(id, eventType string) *GraphBuilder {
	return b.Node(models.Trigger{ID: id, EventType: eventType})
}

// Condition adds a condition node.
func (b *GraphBuilder) Condition(id, rule string) *GraphBuilder {
	return b.Node(models.Condition{ID: id, Rule: rule})
}

// Approval adds an approval node assigned to a role.
func (b *GraphBuilder) Approval(id, role string) *GraphBuilder {
	return b.Node(models.Approval{ID: id, Name: role + " approval", ApproverRole: role})
}

// DelegatedApproval adds an approval node assigned to a specific user.
func (b *GraphBuilder) DelegatedApproval(id, userID string) *GraphBuilder {
	return b.Node(models.Approval{ID: id, ApproverUser: userID})
}

// Notify adds a notify node.
func (b *GraphBuilder) Notify(id, message string) *GraphBuilder {
	return b.Node(models.Notify{ID: id, Message: message})
}

// Task adds a task node.
func (b *GraphBuilder) Task(id, label string) *GraphBuilder {
	return b.Node(models.Task{ID: id, Label: label})
}

// Complete adds a complete node.
func (b *GraphBuilder) Complete(id string) *GraphBuilder {
	return b.Node(models.Complete{ID: id})
}

// Edge adds an unlabeled edge.
func (b *GraphBuilder) Edge(from, to string) *GraphBuilder {
	return b.LabeledEdge(from, to, models.EdgeLabelNone)
}

// LabeledEdge adds a labeled edge.
func (b *GraphBuilder) LabeledEdge(from, to string, label models.EdgeLabel) *GraphBuilder {
	b.edges = append(b.edges, models.Edge{From: from, To: to, Label: label})

	return b
}

// Build returns the immutable graph.
func (b *GraphBuilder) Build() *models.Graph {
	return models.NewGraph(b.nodes, b.edges)
}

// LeaveApprovalGraph is trigger -> condition(days > 10) -> manager approval -> hr approval -> complete,
// with only the "true" path of the condition wired.
func LeaveApprovalGraph() *models.Graph {
	return NewGraph().
		Trigger("trigger", "leave.created").
		Condition("long-leave", "days > 10").
		Approval("manager", "manager").
		Approval("hr", "hr").
		Complete("done").
		Edge("trigger", "long-leave").
		LabeledEdge("long-leave", "manager", models.EdgeLabelTrue).
		Edge("manager", "hr").
		Edge("hr", "done").
		Build()
}

// ExpenseGraph branches on amount and routes rejections to a notification.
//
//	trigger -> notify -> condition(amount > 1000)
//	  true  -> finance approval -approve-> complete
//	                            -reject--> notify rejection -> complete
//	  false -> task -> complete
func ExpenseGraph() *models.Graph {
	return NewGraph().
		Trigger("trigger", "expense.created").
		Notify("ack", "expense received").
		Condition("large", "amount > 1000").
		Approval("finance", "finance").
		Notify("rejected", "expense rejected").
		Task("file", "file receipt").
		Complete("done").
		Edge("trigger", "ack").
		Edge("ack", "large").
		LabeledEdge("large", "finance", models.EdgeLabelTrue).
		LabeledEdge("large", "file", models.EdgeLabelFalse).
		LabeledEdge("finance", "done", models.EdgeLabelApprove).
		LabeledEdge("finance", "rejected", models.EdgeLabelReject).
		Edge("rejected", "done").
		Edge("file", "done").
		Build()
}

// CreateTestWorkflow creates a draft leave-approval workflow definition.
func CreateTestWorkflow(tenantID string) *models.Workflow {
	return &models.Workflow{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Name:        "Long leave approval",
		Description: "Leave longer than ten days needs manager and HR sign-off",
		Status:      models.WorkflowStatusDraft,
		Graph:       LeaveApprovalGraph(),
		CreatedBy:   "author-1",
	}
}
