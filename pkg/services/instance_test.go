package services

import (
	"log/slog"
	"testing"

	"github.com/hrflow/hrflow/pkg/events"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
	"github.com/hrflow/hrflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstances_TriggerDefinition(t *testing.T) {
	f := newFixture(t)

	instance := f.longLeave(t)

	assert.Equal(t, models.InstanceStatusSuspended, instance.Status)
	assert.Equal(t, "manager", instance.CurrentNodeID)
	assert.Equal(t, "Leave approval", instance.Name)
	assert.Equal(t, 1, instance.Version)

	stored, err := f.instances.Get(t.Context(), tenant, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, instance.History, stored.History)

	action := f.openAction(t, instance.ID)
	assert.Equal(t, "manager", action.AssignedRole)

	audit, err := f.instances.Audit(t.Context(), tenant, instance.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, models.AuditActionStart, audit[0].Action)
	assert.Equal(t, "employee-1", audit[0].ActorID)

	assert.Equal(t, 1, f.published(events.InstanceStartedEvent))
	assert.Equal(t, 1, f.published(events.InstanceSuspendedEvent))
}

func TestInstances_TriggerRequiresActiveDefinition(t *testing.T) {
	f := newFixture(t)

	draft, err := f.workflows.Create(t.Context(), CreateWorkflowRequest{TenantID: tenant, Name: "Leave", Graph: testutil.LeaveApprovalGraph()})
	require.NoError(t, err)

	_, err = f.instances.Trigger(t.Context(), TriggerRequest{TenantID: tenant, DefinitionID: draft.ID})
	assert.ErrorIs(t, err, ErrDefinitionNotActive)
	assert.True(t, IsConflictError(err))

	_, err = f.workflows.Archive(t.Context(), tenant, draft.ID)
	require.NoError(t, err)

	_, err = f.instances.Trigger(t.Context(), TriggerRequest{TenantID: tenant, DefinitionID: draft.ID})
	assert.ErrorIs(t, err, ErrDefinitionArchived)

	_, err = f.instances.Trigger(t.Context(), TriggerRequest{TenantID: tenant, DefinitionID: "missing"})
	assert.True(t, IsNotFoundError(err))
}

func TestInstances_TriggerInlineGraph(t *testing.T) {
	f := newFixture(t)

	instance, err := f.instances.Trigger(t.Context(), TriggerRequest{
		TenantID: tenant,
		ActorID:  "employee-1",
		Graph:    testutil.ExpenseGraph(),
		Payload:  map[string]any{"amount": 50},
	})
	require.NoError(t, err)

	assert.Empty(t, instance.DefinitionID)
	assert.Equal(t, "ad-hoc workflow", instance.Name)
	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
	assert.Equal(t, 1, f.published(events.InstanceCompletedEvent))
	assert.Equal(t, 1, f.published(events.InstanceStartedEvent))

	_, err = f.instances.Trigger(t.Context(), TriggerRequest{TenantID: tenant, Graph: testutil.NewGraph().Build()})
	assert.True(t, IsValidationError(err))
}

func TestInstances_TriggerNeedsExactlyOneSource(t *testing.T) {
	f := newFixture(t)

	_, err := f.instances.Trigger(t.Context(), TriggerRequest{TenantID: tenant})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.instances.Trigger(t.Context(), TriggerRequest{TenantID: tenant, DefinitionID: "x", Graph: testutil.ExpenseGraph()})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestInstances_FailedWalkIsStored(t *testing.T) {
	f := newFixture(t)

	workflow := f.activeWorkflow(t, testutil.LeaveApprovalGraph())

	instance, err := f.instances.Trigger(t.Context(), TriggerRequest{TenantID: tenant, DefinitionID: workflow.ID, Payload: map[string]any{"days": 3}})
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusFailed, instance.Status)
	assert.Contains(t, instance.Error.Reason, "dead end")
	assert.Equal(t, 1, f.published(events.InstanceFailedEvent))

	failed := models.InstanceStatusFailed
	list, err := f.instances.List(t.Context(), tenant, persistence.ListInstancesOptions{Status: &failed})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, instance.ID, list[0].ID)
}

func TestInstances_TriggerEvent(t *testing.T) {
	f := newFixture(t)

	f.activeWorkflow(t, testutil.LeaveApprovalGraph())
	f.activeWorkflow(t, testutil.LeaveApprovalGraph())
	f.activeWorkflow(t, testutil.ExpenseGraph())

	_, err := f.workflows.Create(t.Context(), CreateWorkflowRequest{TenantID: tenant, Name: "Draft leave", Graph: testutil.LeaveApprovalGraph()})
	require.NoError(t, err)

	instances, err := f.instances.TriggerEvent(t.Context(), tenant, "employee-1", "leave.created", map[string]any{"days": 12})
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.NotEqual(t, instances[0].ID, instances[1].ID)

	_, err = f.instances.TriggerEvent(t.Context(), tenant, "employee-1", "payroll.closed", nil)
	assert.ErrorIs(t, err, ErrNoMatchingDefinition)
	assert.True(t, IsNotFoundError(err))

	_, err = f.instances.TriggerEvent(t.Context(), tenant, "employee-1", "", nil)
	assert.True(t, IsValidationError(err))
}

func TestInstances_CancelByInitiator(t *testing.T) {
	f := newFixture(t)

	instance := f.longLeave(t)
	action := f.openAction(t, instance.ID)

	cancelled, err := f.instances.Cancel(t.Context(), tenant, "employee-1", instance.ID, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCancelled, cancelled.Status)

	closed, err := f.pending.Get(t.Context(), tenant, action.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PendingActionStatusRejected, closed.Status)
	assert.Equal(t, "cancelled by employee-1", closed.Reason)

	open, err := f.pending.ListFor(t.Context(), tenant, "manager-1")
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = f.instances.Cancel(t.Context(), tenant, "employee-1", instance.ID, "")
	assert.ErrorIs(t, err, ErrInstanceNotRunning)

	audit, err := f.instances.Audit(t.Context(), tenant, instance.ID)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	assert.Equal(t, models.AuditActionCancel, audit[1].Action)
	assert.Equal(t, "plans changed", audit[1].Reason)
	assert.Equal(t, 1, f.published(events.InstanceCancelledEvent))
}

func TestInstances_CancelAuthorization(t *testing.T) {
	f := newFixture(t)

	instance := f.longLeave(t)

	_, err := f.instances.Cancel(t.Context(), tenant, "manager-1", instance.ID, "")
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.True(t, IsForbiddenError(err))

	cancelled, err := f.instances.Cancel(t.Context(), tenant, "admin-1", instance.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCancelled, cancelled.Status)
}

// flakyInstanceService returns an Instances whose next update of an existing instance fails.
func flakyInstanceService(f *fixture) *Instances {
	p := flakyPersistence{
		Persistence: f.persistence,
		instances:   &flakyInstances{InstanceRepository: f.persistence.InstanceRepository(), failures: 1},
	}

	return NewInstances(slog.New(slog.DiscardHandler), p, f.engine, f.roles, f.bus)
}

func TestInstances_CancelAfterFailedSaveStaysCancelled(t *testing.T) {
	f := newFixture(t)

	instance := f.longLeave(t)
	action := f.openAction(t, instance.ID)
	instances := flakyInstanceService(f)

	_, err := instances.Cancel(t.Context(), tenant, "employee-1", instance.ID, "plans changed")
	require.ErrorContains(t, err, "connection reset")

	stillOpen, err := f.pending.Get(t.Context(), tenant, action.ID)
	require.NoError(t, err)
	assert.True(t, stillOpen.IsOpen())

	cancelled, err := instances.Cancel(t.Context(), tenant, "employee-1", instance.ID, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCancelled, cancelled.Status)

	_, err = f.decisions.Decide(t.Context(), DecideRequest{TenantID: tenant, ActorID: "manager-1", ActionID: action.ID, Decision: models.DecisionApprove})
	assert.True(t, persistence.IsAlreadyDecided(err))

	stored, err := f.instances.Get(t.Context(), tenant, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCancelled, stored.Status)
	assert.Equal(t, "manager", stored.CurrentNodeID)

	audit, err := f.instances.Audit(t.Context(), tenant, instance.ID)
	require.NoError(t, err)

	for _, record := range audit {
		assert.NotEqual(t, models.AuditActionDecide, record.Action)
	}
}

func TestInstances_DecisionAfterFailedCancelBelongsToApprover(t *testing.T) {
	f := newFixture(t)

	instance := f.longLeave(t)
	action := f.openAction(t, instance.ID)

	_, err := flakyInstanceService(f).Cancel(t.Context(), tenant, "employee-1", instance.ID, "")
	require.Error(t, err)

	resumed, err := f.decisions.Decide(t.Context(), DecideRequest{TenantID: tenant, ActorID: "manager-1", ActionID: action.ID, Decision: models.DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusSuspended, resumed.Status)
	assert.Equal(t, "hr", resumed.CurrentNodeID)

	audit, err := f.instances.Audit(t.Context(), tenant, instance.ID)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	assert.Equal(t, models.AuditActionDecide, audit[1].Action)
	assert.Equal(t, "manager-1", audit[1].ActorID)
}

func TestInstances_CancelClosesActionsLeftOpen(t *testing.T) {
	f := newFixture(t)

	instance := f.longLeave(t)
	action := f.openAction(t, instance.ID)

	stored, err := f.instances.Get(t.Context(), tenant, instance.ID)
	require.NoError(t, err)
	require.NoError(t, f.engine.Cancel(t.Context(), stored, "employee-1", ""))
	require.NoError(t, f.persistence.InstanceRepository().Save(t.Context(), stored, nil))

	_, err = f.instances.Cancel(t.Context(), tenant, "employee-1", instance.ID, "")
	assert.ErrorIs(t, err, ErrInstanceNotRunning)

	closed, err := f.pending.Get(t.Context(), tenant, action.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PendingActionStatusRejected, closed.Status)

	open, err := f.pending.ListFor(t.Context(), tenant, "manager-1")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestInstances_HREventHandler(t *testing.T) {
	f := newFixture(t)
	f.activeWorkflow(t, testutil.LeaveApprovalGraph())

	handle := f.instances.HREventHandler()

	require.NoError(t, handle(t.Context(), events.NewHREventReceived(tenant, "leave.created", "employee-1", map[string]any{"days": 12})))

	list, err := f.instances.List(t.Context(), tenant, persistence.ListInstancesOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.NoError(t, handle(t.Context(), events.NewHREventReceived(tenant, "payroll.closed", "employee-1", nil)))
	assert.NoError(t, handle(t.Context(), events.NewHREventReceived("", "leave.created", "employee-1", nil)))
	assert.Error(t, handle(t.Context(), events.NewActionDecided(&models.PendingAction{})))
}
