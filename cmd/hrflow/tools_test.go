package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hrflow/hrflow/pkg/graph"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v3"
)

func writeGraph(t *testing.T, g *models.Graph) string {
	t.Helper()

	raw, err := json.Marshal(g)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := &cli.Command{
		Name:     "hrflow",
		Writer:   &out,
		Commands: []*cli.Command{ValidateCommand(), PreviewCommand()},
	}

	err := root.Run(context.Background(), append([]string{"hrflow"}, args...))

	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := runCommand(t, "validate", writeGraph(t, testutil.ExpenseGraph()))
	require.NoError(t, err)
	assert.Contains(t, out, "graph is valid: 7 nodes")

	broken := testutil.NewGraph().
		Trigger("t", "leave.created").
		Approval("a", "manager").
		Edge("t", "a").
		Build()

	_, err = runCommand(t, "validate", writeGraph(t, broken))
	assert.ErrorIs(t, err, graph.ErrInvalidGraph)

	_, err = runCommand(t, "validate")
	assert.ErrorIs(t, err, errMissingFile)
}

func TestPreviewCommand(t *testing.T) {
	out, err := runCommand(t, "preview", "--payload", `{"amount": 5000}`, writeGraph(t, testutil.ExpenseGraph()))
	require.NoError(t, err)

	var preview struct {
		Outcome   models.InstanceStatus `json:"outcome"`
		Approvals []struct {
			NodeID string `json:"node_id"`
		} `json:"approvals"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &preview), out)

	assert.Equal(t, models.InstanceStatusCompleted, preview.Outcome)
	require.Len(t, preview.Approvals, 1)
	assert.Equal(t, "finance", preview.Approvals[0].NodeID)

	_, err = runCommand(t, "preview", "--payload", "not json", writeGraph(t, testutil.ExpenseGraph()))
	assert.ErrorContains(t, err, "invalid payload")
}
