// Package graph validates workflow graphs before they are saved or executed.
package graph

import (
	"errors"
	"fmt"

	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/template"
)

// ErrInvalidGraph is wrapped by every validation failure.
var ErrInvalidGraph = errors.New("invalid workflow graph")

// ValidationError reports a single structural problem, attributed to a node when possible.
type ValidationError struct {
	NodeID string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("node %q: %s", e.NodeID, e.Reason)
	}

	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidGraph
}

// RuleValidator checks condition rule syntax.
type RuleValidator interface {
	Validate(rule string) error
}

func invalid(nodeID, format string, args ...any) error {
	return &ValidationError{NodeID: nodeID, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the structural invariants of a workflow graph. All problems found are
// returned joined; errors.Is(err, ErrInvalidGraph) holds for any non-nil result.
func Validate(g *models.Graph, rules RuleValidator) error {
	if g == nil || g.Len() == 0 {
		return invalid("", "graph has no nodes")
	}

	var errs []error

	seen := make(map[string]bool, g.Len())

	for i, n := range g.Nodes() {
		switch {
		case n.NodeID() == "":
			errs = append(errs, invalid("", "nodes[%d] has an empty id", i))
		case seen[n.NodeID()]:
			errs = append(errs, invalid(n.NodeID(), "duplicate node id"))
		}

		seen[n.NodeID()] = true
	}

	triggers := g.Triggers()
	if len(triggers) != 1 {
		errs = append(errs, invalid("", "graph must contain exactly one trigger node, found %d", len(triggers)))
	}

	for _, e := range g.Edges() {
		if _, ok := g.Node(e.From); !ok {
			errs = append(errs, invalid(e.From, "edge %s -> %s references a missing source node", e.From, e.To))
		}

		if _, ok := g.Node(e.To); !ok {
			errs = append(errs, invalid(e.To, "edge %s -> %s references a missing target node", e.From, e.To))
		}
	}

	if len(triggers) == 1 {
		errs = append(errs, checkReachability(g, triggers[0].ID)...)
	}

	for _, n := range g.Nodes() {
		errs = append(errs, checkOutgoing(g, n, rules)...)

		if v, ok := n.(models.Notify); ok && template.NeedsTemplating(v.Message) {
			if err := template.Parse(v.Message); err != nil {
				errs = append(errs, invalid(v.ID, "invalid message template: %v", err))
			}
		}
	}

	errs = append(errs, checkCycles(g)...)

	return errors.Join(errs...)
}

func checkReachability(g *models.Graph, triggerID string) []error {
	var errs []error

	visited := map[string]bool{}
	stack := []string{triggerID}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[id] {
			continue
		}

		visited[id] = true

		for _, e := range g.Outgoing(id) {
			if _, ok := g.Node(e.To); ok && !visited[e.To] {
				stack = append(stack, e.To)
			}
		}
	}

	for _, n := range g.Nodes() {
		if !visited[n.NodeID()] && n.NodeID() != "" {
			errs = append(errs, invalid(n.NodeID(), "node is not reachable from trigger %q", triggerID))
		}
	}

	for _, e := range g.Edges() {
		if e.To == triggerID {
			errs = append(errs, invalid(triggerID, "trigger node cannot have incoming edges (from %q)", e.From))
		}
	}

	return errs
}

func checkOutgoing(g *models.Graph, n models.Node, rules RuleValidator) []error {
	out := g.Outgoing(n.NodeID())

	switch v := n.(type) {
	case models.Trigger, models.Notify, models.Task:
		return checkSinglePath(n, out)
	case models.Condition:
		return checkCondition(v, out, rules)
	case models.Approval:
		return checkApproval(v, out)
	case models.Complete:
		if len(out) > 0 {
			return []error{invalid(n.NodeID(), "complete node cannot have outgoing edges")}
		}

		return nil
	default:
		return []error{invalid(n.NodeID(), "unsupported node kind %q", n.Kind())}
	}
}

func checkSinglePath(n models.Node, out []models.Edge) []error {
	if len(out) != 1 {
		return []error{invalid(n.NodeID(), "%s node must have exactly one outgoing edge, found %d", n.Kind(), len(out))}
	}

	if out[0].Label != models.EdgeLabelNone {
		return []error{invalid(n.NodeID(), "%s node edge cannot be labeled %q", n.Kind(), out[0].Label)}
	}

	return nil
}

func checkCondition(n models.Condition, out []models.Edge, rules RuleValidator) []error {
	var errs []error

	if rules != nil {
		if err := rules.Validate(n.Rule); err != nil {
			errs = append(errs, invalid(n.ID, "%v", err))
		}
	}

	if len(out) == 0 {
		return append(errs, invalid(n.ID, "condition node must have at least one outgoing edge"))
	}

	labels := map[models.EdgeLabel]bool{}

	for _, e := range out {
		if e.Label != models.EdgeLabelTrue && e.Label != models.EdgeLabelFalse {
			errs = append(errs, invalid(n.ID, "condition edge to %q must be labeled true or false, got %q", e.To, e.Label))

			continue
		}

		if labels[e.Label] {
			errs = append(errs, invalid(n.ID, "condition has more than one %q edge", e.Label))
		}

		labels[e.Label] = true
	}

	return errs
}

func checkApproval(n models.Approval, out []models.Edge) []error {
	var errs []error

	if n.ApproverRole == "" && n.ApproverUser == "" {
		errs = append(errs, invalid(n.ID, "approval node requires an approver role or user"))
	}

	if len(out) == 0 {
		return append(errs, invalid(n.ID, "approval node must have at least one outgoing edge"))
	}

	if len(out) == 1 {
		if out[0].Label != models.EdgeLabelNone && out[0].Label != models.EdgeLabelApprove {
			errs = append(errs, invalid(n.ID, "a single approval edge must be unlabeled or labeled approve, got %q", out[0].Label))
		}

		return errs
	}

	labels := map[models.EdgeLabel]bool{}

	for _, e := range out {
		if e.Label != models.EdgeLabelApprove && e.Label != models.EdgeLabelReject {
			errs = append(errs, invalid(n.ID, "approval edge to %q must be labeled approve or reject, got %q", e.To, e.Label))

			continue
		}

		if labels[e.Label] {
			errs = append(errs, invalid(n.ID, "approval has more than one %q edge", e.Label))
		}

		labels[e.Label] = true
	}

	if !labels[models.EdgeLabelApprove] && len(errs) == 0 {
		errs = append(errs, invalid(n.ID, "approval node has no approve edge"))
	}

	return errs
}

// checkCycles rejects cycles made only of non-blocking nodes: the payload never changes during a
// walk, so such a cycle, once entered, would never be left.
func checkCycles(g *models.Graph) []error {
	const (
		white = iota
		grey
		black
	)

	color := map[string]int{}

	var errs []error

	var visit func(id string) bool

	visit = func(id string) bool {
		color[id] = grey

		for _, e := range g.Outgoing(id) {
			next, ok := g.Node(e.To)
			if !ok || next.Kind() == models.NodeKindApproval {
				continue
			}

			switch color[e.To] {
			case grey:
				errs = append(errs, invalid(e.To, "cycle through %q does not pass an approval node", e.To))

				return true
			case white:
				if visit(e.To) {
					return true
				}
			}
		}

		color[id] = black

		return false
	}

	for _, n := range g.Nodes() {
		if n.Kind() == models.NodeKindApproval || color[n.NodeID()] != white {
			continue
		}

		visit(n.NodeID())
	}

	return errs
}
