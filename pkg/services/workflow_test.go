package services

import (
	"errors"
	"testing"

	"github.com/hrflow/hrflow/pkg/graph"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
	"github.com/hrflow/hrflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflows_Create(t *testing.T) {
	f := newFixture(t)

	created, err := f.workflows.Create(t.Context(), CreateWorkflowRequest{
		TenantID:    tenant,
		ActorID:     "author-1",
		Name:        "  Long leave  ",
		Description: "needs two approvals",
		Graph:       testutil.LeaveApprovalGraph(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Long leave", created.Name)
	assert.Equal(t, models.WorkflowStatusDraft, created.Status)
	assert.Equal(t, "author-1", created.CreatedBy)
	assert.False(t, created.CreatedAt.IsZero())

	fetched, err := f.workflows.Get(t.Context(), tenant, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)

	_, err = f.workflows.Get(t.Context(), "globex", created.ID)
	assert.True(t, IsNotFoundError(err))
}

func TestWorkflows_CreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := map[string]CreateWorkflowRequest{
		"short name":      {Name: "ab", Graph: testutil.LeaveApprovalGraph()},
		"missing graph":   {Name: "Leave"},
		"archived status": {Name: "Leave", Graph: testutil.LeaveApprovalGraph(), Status: models.WorkflowStatusArchived},
		"unknown status":  {Name: "Leave", Graph: testutil.LeaveApprovalGraph(), Status: "published"},
		"invalid graph":   {Name: "Leave", Graph: testutil.NewGraph().Complete("done").Build()},
	}

	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			req.TenantID = tenant

			_, err := f.workflows.Create(t.Context(), req)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}

	_, err := f.workflows.Create(t.Context(), tests["invalid graph"])
	assert.True(t, errors.Is(err, graph.ErrInvalidGraph))

	var serviceErr *ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, "INVALID_GRAPH", serviceErr.Code)
}

func TestWorkflows_Lifecycle(t *testing.T) {
	f := newFixture(t)

	created, err := f.workflows.Create(t.Context(), CreateWorkflowRequest{TenantID: tenant, Name: "Leave", Graph: testutil.LeaveApprovalGraph()})
	require.NoError(t, err)

	active, err := f.workflows.Publish(t.Context(), tenant, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusActive, active.Status)

	draft, err := f.workflows.Unpublish(t.Context(), tenant, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusDraft, draft.Status)

	archived, err := f.workflows.Archive(t.Context(), tenant, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusArchived, archived.Status)

	name := "Renamed"
	_, err = f.workflows.Update(t.Context(), UpdateWorkflowRequest{TenantID: tenant, ID: created.ID, Name: &name})
	assert.ErrorIs(t, err, ErrDefinitionArchived)
	assert.True(t, IsConflictError(err))

	_, err = f.workflows.Publish(t.Context(), tenant, created.ID)
	assert.ErrorIs(t, err, ErrDefinitionArchived)
}

func TestWorkflows_TransitionRules(t *testing.T) {
	archived := &models.Workflow{Status: models.WorkflowStatusArchived}
	assert.ErrorIs(t, transition(archived, models.WorkflowStatusActive), ErrInvalidTransition)

	draft := &models.Workflow{Status: models.WorkflowStatusDraft}
	assert.ErrorIs(t, transition(draft, "retired"), ErrInvalidRequest)
	require.NoError(t, transition(draft, models.WorkflowStatusActive))
	assert.Equal(t, models.WorkflowStatusActive, draft.Status)
}

func TestWorkflows_UpdatePartial(t *testing.T) {
	f := newFixture(t)

	created, err := f.workflows.Create(t.Context(), CreateWorkflowRequest{TenantID: tenant, Name: "Leave", Description: "v1", Graph: testutil.LeaveApprovalGraph()})
	require.NoError(t, err)

	description := "v2"
	updated, err := f.workflows.Update(t.Context(), UpdateWorkflowRequest{
		TenantID:    tenant,
		ID:          created.ID,
		Description: &description,
		Graph:       testutil.ExpenseGraph(),
	})
	require.NoError(t, err)

	assert.Equal(t, "Leave", updated.Name)
	assert.Equal(t, "v2", updated.Description)
	assert.Equal(t, "expense.created", updated.Summary().EventType)

	bad := testutil.NewGraph().Trigger("t", "x").Build()
	_, err = f.workflows.Update(t.Context(), UpdateWorkflowRequest{TenantID: tenant, ID: created.ID, Graph: bad})
	assert.True(t, IsValidationError(err))

	_, err = f.workflows.Update(t.Context(), UpdateWorkflowRequest{TenantID: tenant, ID: "missing"})
	assert.True(t, IsNotFoundError(err))
}

func TestWorkflows_ListAndDelete(t *testing.T) {
	f := newFixture(t)

	active := f.activeWorkflow(t, testutil.LeaveApprovalGraph())
	_, err := f.workflows.Create(t.Context(), CreateWorkflowRequest{TenantID: tenant, Name: "Expense", Graph: testutil.ExpenseGraph()})
	require.NoError(t, err)

	all, err := f.workflows.List(t.Context(), tenant, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	status := models.WorkflowStatusActive
	onlyActive, err := f.workflows.List(t.Context(), tenant, &status)
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, active.ID, onlyActive[0].ID)

	unknown := models.WorkflowStatus("published")
	_, err = f.workflows.List(t.Context(), tenant, &unknown)
	assert.True(t, IsValidationError(err))

	require.NoError(t, f.workflows.Delete(t.Context(), tenant, active.ID))

	_, err = f.workflows.Get(t.Context(), tenant, active.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = f.workflows.Delete(t.Context(), tenant, active.ID)
	assert.True(t, IsNotFoundError(err))
}

func TestWorkflows_HealthCheck(t *testing.T) {
	message, ok := newFixture(t).workflows.HealthCheck(t.Context())

	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)

	message, ok = (&Workflows{}).HealthCheck(t.Context())
	assert.False(t, ok)
	assert.Contains(t, message, "not initialized")
}
