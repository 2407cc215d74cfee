// Package models defines core node-based workflow models for graph execution
package models

// NodeKind names a node variant on the wire and in execution history.
type NodeKind string

const (
	NodeKindTrigger   NodeKind = "trigger"
	NodeKindCondition NodeKind = "condition"
	NodeKindApproval  NodeKind = "approval"
	NodeKindNotify    NodeKind = "notify"
	NodeKindTask      NodeKind = "task"
	NodeKindComplete  NodeKind = "complete"
)

// Node is a typed step in a workflow graph. The set of implementations is closed:
// Trigger, Condition, Approval, Notify, Task and Complete.
type Node interface {
	NodeID() string
	DisplayName() string
	Kind() NodeKind

	node()
}

// Trigger is the entry point of a graph, matched against external event types.
type Trigger struct {
	ID        string
	Name      string
	EventType string
}

// Condition routes the walk along its "true" or "false" edge depending on Rule.
type Condition struct {
	ID   string
	Name string
	Rule string
}

// Approval suspends the walk until a user holding ApproverRole (or ApproverUser) decides.
type Approval struct {
	ID           string
	Name         string
	ApproverRole string
	ApproverUser string
}

// Notify sends a notification and continues.
type Notify struct {
	ID      string
	Name    string
	Message string
}

// Task is a manual-tracking marker; it does not block the walk.
type Task struct {
	ID    string
	Name  string
	Label string
}

// Complete terminates the walk.
type Complete struct {
	ID   string
	Name string
}

func (n Trigger) NodeID() string   { return n.ID }
func (n Condition) NodeID() string { return n.ID }
func (n Approval) NodeID() string  { return n.ID }
func (n Notify) NodeID() string    { return n.ID }
func (n Task) NodeID() string      { return n.ID }
func (n Complete) NodeID() string  { return n.ID }

func (n Trigger) Kind() NodeKind   { return NodeKindTrigger }
func (n Condition) Kind() NodeKind { return NodeKindCondition }
func (n Approval) Kind() NodeKind  { return NodeKindApproval }
func (n Notify) Kind() NodeKind    { return NodeKindNotify }
func (n Task) Kind() NodeKind      { return NodeKindTask }
func (n Complete) Kind() NodeKind  { return NodeKindComplete }

func (n Trigger) DisplayName() string   { return displayName(n.Name, n.EventType, n.ID) }
func (n Condition) DisplayName() string { return displayName(n.Name, n.Rule, n.ID) }
func (n Approval) DisplayName() string  { return displayName(n.Name, approvalLabel(n), n.ID) }
func (n Notify) DisplayName() string    { return displayName(n.Name, n.ID) }
func (n Task) DisplayName() string      { return displayName(n.Name, n.Label, n.ID) }
func (n Complete) DisplayName() string  { return displayName(n.Name, n.ID) }

func (Trigger) node()   {}
func (Condition) node() {}
func (Approval) node()  {}
func (Notify) node()    {}
func (Task) node()      {}
func (Complete) node()  {}

func displayName(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}

	return ""
}

func approvalLabel(n Approval) string {
	if n.ApproverRole != "" {
		return n.ApproverRole + " approval"
	}

	if n.ApproverUser != "" {
		return "approval by " + n.ApproverUser
	}

	return ""
}
