package graph_test

import (
	"errors"
	"testing"

	"github.com/hrflow/hrflow/pkg/condition"
	"github.com/hrflow/hrflow/pkg/graph"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidGraphs(t *testing.T) {
	rules := condition.NewEvaluator()

	assert.NoError(t, graph.Validate(testutil.LeaveApprovalGraph(), rules))
	assert.NoError(t, graph.Validate(testutil.ExpenseGraph(), rules))
}

func TestValidate_RevalidationIsStable(t *testing.T) {
	rules := condition.NewEvaluator()
	g := testutil.ExpenseGraph()

	require.NoError(t, graph.Validate(g, rules))
	require.NoError(t, graph.Validate(g, rules))
}

func TestValidate_InvalidGraphs(t *testing.T) {
	tests := []struct {
		name   string
		graph  *models.Graph
		reason string
	}{
		{
			name:   "empty graph",
			graph:  testutil.NewGraph().Build(),
			reason: "graph has no nodes",
		},
		{
			name:   "nil graph",
			graph:  nil,
			reason: "graph has no nodes",
		},
		{
			name: "no trigger",
			graph: testutil.NewGraph().
				Approval("a", "manager").
				Complete("done").
				Edge("a", "done").
				Build(),
			reason: "exactly one trigger node, found 0",
		},
		{
			name: "two triggers",
			graph: testutil.NewGraph().
				Trigger("t1", "leave.created").
				Trigger("t2", "leave.updated").
				Complete("done").
				Edge("t1", "done").
				Edge("t2", "done").
				Build(),
			reason: "exactly one trigger node, found 2",
		},
		{
			name: "dangling edge",
			graph: testutil.NewGraph().
				Trigger("t", "leave.created").
				Complete("done").
				Edge("t", "done").
				Edge("done", "ghost").
				Build(),
			reason: "missing target node",
		},
		{
			name: "unreachable node",
			graph: testutil.NewGraph().
				Trigger("t", "leave.created").
				Complete("done").
				Task("orphan", "never runs").
				Edge("t", "done").
				Edge("orphan", "done").
				Build(),
			reason: "not reachable",
		},
		{
			name: "approval without outgoing edge",
			graph: testutil.NewGraph().
				Trigger("t", "leave.created").
				Approval("a", "manager").
				Edge("t", "a").
				Build(),
			reason: "approval node must have at least one outgoing edge",
		},
		{
			name: "approval without approver",
			graph: testutil.NewGraph().
				Trigger("t", "leave.created").
				Node(models.Approval{ID: "a"}).
				Complete("done").
				Edge("t", "a").
				Edge("a", "done").
				Build(),
			reason: "requires an approver role or user",
		},
		{
			name: "ambiguous task edges",
			graph: testutil.NewGraph().
				Trigger("t", "leave.created").
				Task("k", "collect documents").
				Complete("a").
				Complete("b").
				Edge("t", "k").
				Edge("k", "a").
				Edge("k", "b").
				Build(),
			reason: "exactly one outgoing edge, found 2",
		},
		{
			name: "unlabeled condition edge",
			graph: testutil.NewGraph().
				Trigger("t", "leave.created").
				Condition("c", "days > 10").
				Complete("done").
				Edge("t", "c").
				Edge("c", "done").
				Build(),
			reason: "must be labeled true or false",
		},
		{
			name: "malformed rule",
			graph: testutil.NewGraph().
				Trigger("t", "leave.created").
				Condition("c", "days >").
				Complete("done").
				Edge("t", "c").
				LabeledEdge("c", "done", models.EdgeLabelTrue).
				Build(),
			reason: "invalid rule",
		},
		{
			name: "unlabeled edges on branching approval",
			graph: testutil.NewGraph().
				Trigger("t", "leave.created").
				Approval("a", "manager").
				Complete("x").
				Complete("y").
				Edge("t", "a").
				Edge("a", "x").
				Edge("a", "y").
				Build(),
			reason: "must be labeled approve or reject",
		},
		{
			name: "complete with outgoing edge",
			graph: testutil.NewGraph().
				Trigger("t", "leave.created").
				Complete("done").
				Task("k", "after the end").
				Edge("t", "done").
				Edge("done", "k").
				Edge("k", "done").
				Build(),
			reason: "complete node cannot have outgoing edges",
		},
		{
			name: "cycle without approval",
			graph: testutil.NewGraph().
				Trigger("t", "leave.created").
				Task("a", "first").
				Notify("b", "second").
				Edge("t", "a").
				Edge("a", "b").
				Edge("b", "a").
				Build(),
			reason: "does not pass an approval node",
		},
		{
			name: "malformed message template",
			graph: testutil.NewGraph().
				Trigger("t", "leave.created").
				Notify("n", "{{ .Payload.days ").
				Complete("done").
				Edge("t", "n").
				Edge("n", "done").
				Build(),
			reason: "invalid message template",
		},
		{
			name: "duplicate node id",
			graph: testutil.NewGraph().
				Trigger("t", "leave.created").
				Complete("done").
				Complete("done").
				Edge("t", "done").
				Build(),
			reason: "duplicate node id",
		},
	}

	rules := condition.NewEvaluator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := graph.Validate(tt.graph, rules)
			require.Error(t, err)
			assert.True(t, errors.Is(err, graph.ErrInvalidGraph))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestValidate_CycleThroughApprovalIsAllowed(t *testing.T) {
	g := testutil.NewGraph().
		Trigger("t", "expense.created").
		Task("prepare", "prepare claim").
		Approval("review", "finance").
		Complete("done").
		Edge("t", "prepare").
		Edge("prepare", "review").
		LabeledEdge("review", "done", models.EdgeLabelApprove).
		LabeledEdge("review", "prepare", models.EdgeLabelReject).
		Build()

	assert.NoError(t, graph.Validate(g, condition.NewEvaluator()))
}

func TestValidate_ReportsNodeID(t *testing.T) {
	g := testutil.NewGraph().
		Trigger("t", "leave.created").
		Approval("a", "manager").
		Edge("t", "a").
		Build()

	err := graph.Validate(g, nil)

	var validationErr *graph.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "a", validationErr.NodeID)
}

func TestDecode(t *testing.T) {
	raw := []byte(`{
		"nodes": [
			{"id": "t", "type": "trigger", "event_type": "leave.created"},
			{"id": "a", "type": "approval", "approver_role": "manager"},
			{"id": "done", "type": "complete"}
		],
		"edges": [
			{"from": "t", "to": "a"},
			{"from": "a", "to": "done", "label": "approve"}
		]
	}`)

	g, err := graph.Decode(raw)
	require.NoError(t, err)
	require.NoError(t, graph.Validate(g, nil))

	n, ok := g.Node("a")
	require.True(t, ok)
	assert.Equal(t, models.Approval{ID: "a", ApproverRole: "manager"}, n)
}

func TestDecode_SchemaViolations(t *testing.T) {
	tests := map[string]string{
		"unknown node type":    `{"nodes":[{"id":"t","type":"timer"}],"edges":[]}`,
		"missing rule":         `{"nodes":[{"id":"c","type":"condition"}],"edges":[]}`,
		"approval no approver": `{"nodes":[{"id":"a","type":"approval"}],"edges":[]}`,
		"bad edge label":       `{"nodes":[{"id":"t","type":"trigger","event_type":"x"}],"edges":[{"from":"t","to":"t","label":"maybe"}]}`,
		"not an object":        `[]`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := graph.Decode([]byte(raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, graph.ErrInvalidGraph))
		})
	}
}
