package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hrflow/hrflow/pkg/persistence/persistencetest"
	"github.com/hrflow/hrflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	p := NewPersistence("/tmp/test")
	assert.Equal(t, "/tmp/test", p.(*Persistence).root)

	p = NewPersistence("file:///tmp/test")
	assert.Equal(t, "/tmp/test", p.(*Persistence).root)
}

func TestPersistence_Contract(t *testing.T) {
	persistencetest.Run(t, NewPersistence(t.TempDir()))
}

func TestPersistence_Layout(t *testing.T) {
	root := t.TempDir()
	p := NewPersistence(root)

	workflow := testutil.CreateTestWorkflow("acme")
	require.NoError(t, p.WorkflowRepository().Save(t.Context(), workflow))

	_, err := os.Stat(filepath.Join(root, "acme", "workflows", workflow.ID+".json"))
	assert.NoError(t, err)
}

func TestPersistence_RejectsPathTraversal(t *testing.T) {
	p := NewPersistence(t.TempDir())

	workflow := testutil.CreateTestWorkflow("../escape")
	assert.Error(t, p.WorkflowRepository().Save(t.Context(), workflow))

	workflow = testutil.CreateTestWorkflow("acme")
	workflow.ID = "a/b"
	assert.Error(t, p.WorkflowRepository().Save(t.Context(), workflow))
}
