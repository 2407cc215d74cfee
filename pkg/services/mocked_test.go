package services

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/hrflow/hrflow/pkg/condition"
	"github.com/hrflow/hrflow/pkg/engine"
	"github.com/hrflow/hrflow/pkg/mocks"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDecide_RoleLookupFailureWritesNothing(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	p := mocks.NewMockPersistence()
	resolver := &mocks.MockRoleResolver{}

	action := &models.PendingAction{
		ID:           "action-1",
		TenantID:     tenant,
		AssignedRole: "manager",
		Status:       models.PendingActionStatusPending,
	}

	p.PendingActions.On("GetByID", mock.Anything, tenant, "action-1").Return(action, nil)
	resolver.On("Roles", mock.Anything, tenant, "manager-1").Return(nil, errors.New("directory unavailable"))

	decisions := NewDecisions(logger, p, engine.New(logger, condition.NewEvaluator()), resolver, nil, nil)

	_, err := decisions.Decide(t.Context(), DecideRequest{
		TenantID: tenant,
		ActorID:  "manager-1",
		ActionID: "action-1",
		Decision: models.DecisionApprove,
	})

	require.ErrorContains(t, err, "directory unavailable")
	p.PendingActions.AssertNotCalled(t, "Close", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	p.Instances.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	resolver.AssertExpectations(t)
}

func TestTrigger_AuditFailureIsBestEffort(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	p := mocks.NewMockPersistence()

	workflow := testutil.CreateTestWorkflow(tenant)
	workflow.Status = models.WorkflowStatusActive

	p.Workflows.On("GetByID", mock.Anything, tenant, workflow.ID).Return(workflow, nil)
	p.Instances.On("Save", mock.Anything, mock.AnythingOfType("*models.WorkflowInstance"), mock.AnythingOfType("*models.PendingAction")).
		Return(nil).Once()
	p.Audit.On("Append", mock.Anything, mock.AnythingOfType("*models.AuditRecord")).Return(errors.New("disk full")).Once()

	instances := NewInstances(logger, p, engine.New(logger, condition.NewEvaluator()), &mocks.MockRoleResolver{}, nil)

	instance, err := instances.Trigger(t.Context(), TriggerRequest{
		TenantID:     tenant,
		ActorID:      "employee-1",
		DefinitionID: workflow.ID,
		Payload:      map[string]any{"days": 12},
	})

	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusSuspended, instance.Status)
	assert.Equal(t, workflow.ID, instance.DefinitionID)
	p.Instances.AssertExpectations(t)
	p.Audit.AssertExpectations(t)
}

func TestTrigger_SaveFailureIsReturned(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	p := mocks.NewMockPersistence()

	p.Instances.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	instances := NewInstances(logger, p, engine.New(logger, condition.NewEvaluator()), &mocks.MockRoleResolver{}, nil)

	_, err := instances.Trigger(t.Context(), TriggerRequest{
		TenantID: tenant,
		ActorID:  "employee-1",
		Graph:    testutil.ExpenseGraph(),
		Payload:  map[string]any{"amount": 50},
	})

	require.ErrorContains(t, err, "connection reset")
	p.Audit.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}
