package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// EdgeLabel selects an outgoing edge of a branching node.
type EdgeLabel string

const (
	EdgeLabelNone    EdgeLabel = ""
	EdgeLabelTrue    EdgeLabel = "true"
	EdgeLabelFalse   EdgeLabel = "false"
	EdgeLabelApprove EdgeLabel = "approve"
	EdgeLabelReject  EdgeLabel = "reject"
)

// Edge is a directed, optionally labeled connection between two nodes.
type Edge struct {
	From  string    `json:"from"`
	To    string    `json:"to"`
	Label EdgeLabel `json:"label,omitempty"`
}

// Graph is an immutable arena of nodes addressed by id plus the edges between them.
// A *Graph is safe to share between a definition and any number of instance snapshots.
type Graph struct {
	nodes    []Node
	edges    []Edge
	index    map[string]int
	outgoing map[string][]int
}

// NewGraph builds a graph from the given nodes and edges. The slices are copied.
// When several nodes share an id the first one is addressable by id; the validator reports the rest.
func NewGraph(nodes []Node, edges []Edge) *Graph {
	g := &Graph{
		nodes:    make([]Node, len(nodes)),
		edges:    make([]Edge, len(edges)),
		index:    make(map[string]int, len(nodes)),
		outgoing: make(map[string][]int),
	}

	copy(g.nodes, nodes)
	copy(g.edges, edges)

	for i, n := range g.nodes {
		if _, exists := g.index[n.NodeID()]; !exists {
			g.index[n.NodeID()] = i
		}
	}

	for i, e := range g.edges {
		g.outgoing[e.From] = append(g.outgoing[e.From], i)
	}

	return g
}

// Nodes returns the nodes in authoring order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)

	return out
}

// Edges returns the edges in authoring order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)

	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node looks a node up by id.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}

	return g.nodes[i], true
}

// Outgoing returns the edges leaving the node with the given id.
func (g *Graph) Outgoing(id string) []Edge {
	idx := g.outgoing[id]
	out := make([]Edge, 0, len(idx))

	for _, i := range idx {
		out = append(out, g.edges[i])
	}

	return out
}

// Triggers returns every trigger node of the graph.
func (g *Graph) Triggers() []Trigger {
	var triggers []Trigger

	for _, n := range g.nodes {
		if t, ok := n.(Trigger); ok {
			triggers = append(triggers, t)
		}
	}

	return triggers
}

// Trigger returns the first trigger node of the graph.
func (g *Graph) Trigger() (Trigger, bool) {
	triggers := g.Triggers()
	if len(triggers) == 0 {
		return Trigger{}, false
	}

	return triggers[0], true
}

type wireNode struct {
	ID           string   `json:"id"`
	Type         NodeKind `json:"type"`
	Name         string   `json:"name,omitempty"`
	EventType    string   `json:"event_type,omitempty"`
	Rule         string   `json:"rule,omitempty"`
	ApproverRole string   `json:"approver_role,omitempty"`
	ApproverUser string   `json:"approver_user,omitempty"`
	Message      string   `json:"message,omitempty"`
	Label        string   `json:"label,omitempty"`
}

type wireGraph struct {
	Nodes []wireNode `json:"nodes"`
	Edges []Edge     `json:"edges"`
}

// MarshalJSON encodes the graph as {"nodes": [...], "edges": [...]}.
func (g *Graph) MarshalJSON() ([]byte, error) {
	wire := wireGraph{
		Nodes: make([]wireNode, 0, len(g.nodes)),
		Edges: g.Edges(),
	}

	for _, n := range g.nodes {
		wire.Nodes = append(wire.Nodes, toWire(n))
	}

	return json.Marshal(wire)
}

// UnmarshalJSON decodes the wire form, rejecting unknown node types.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var wire wireGraph
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	nodes := make([]Node, 0, len(wire.Nodes))

	for i, wn := range wire.Nodes {
		n, err := fromWire(wn)
		if err != nil {
			return fmt.Errorf("nodes[%d]: %w", i, err)
		}

		nodes = append(nodes, n)
	}

	*g = *NewGraph(nodes, wire.Edges)

	return nil
}

func toWire(n Node) wireNode {
	w := wireNode{ID: n.NodeID(), Type: n.Kind()}

	switch v := n.(type) {
	case Trigger:
		w.Name, w.EventType = v.Name, v.EventType
	case Condition:
		w.Name, w.Rule = v.Name, v.Rule
	case Approval:
		w.Name, w.ApproverRole, w.ApproverUser = v.Name, v.ApproverRole, v.ApproverUser
	case Notify:
		w.Name, w.Message = v.Name, v.Message
	case Task:
		w.Name, w.Label = v.Name, v.Label
	case Complete:
		w.Name = v.Name
	}

	return w
}

func fromWire(w wireNode) (Node, error) {
	switch w.Type {
	case NodeKindTrigger:
		return Trigger{ID: w.ID, Name: w.Name, EventType: w.EventType}, nil
	case NodeKindCondition:
		return Condition{ID: w.ID, Name: w.Name, Rule: w.Rule}, nil
	case NodeKindApproval:
		return Approval{ID: w.ID, Name: w.Name, ApproverRole: w.ApproverRole, ApproverUser: w.ApproverUser}, nil
	case NodeKindNotify:
		return Notify{ID: w.ID, Name: w.Name, Message: w.Message}, nil
	case NodeKindTask:
		return Task{ID: w.ID, Name: w.Name, Label: w.Label}, nil
	case NodeKindComplete:
		return Complete{ID: w.ID, Name: w.Name}, nil
	default:
		return nil, fmt.Errorf("unknown node type %q for node %q", w.Type, w.ID)
	}
}
