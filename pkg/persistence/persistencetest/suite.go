// Package persistencetest holds the behavioral suite every persistence backend must pass.
package persistencetest

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
	"github.com/hrflow/hrflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises p against the repository contracts. Every subtest works in a fresh tenant
// so a single backend instance can be shared.
func Run(t *testing.T, p persistence.Persistence) {
	t.Helper()

	t.Run("health check", func(t *testing.T) {
		require.NoError(t, p.HealthCheck(t.Context()))
	})
	t.Run("workflow round trip", func(t *testing.T) { testWorkflowRoundTrip(t, p) })
	t.Run("workflow list filters", func(t *testing.T) { testWorkflowListFilters(t, p) })
	t.Run("workflow tenant isolation", func(t *testing.T) { testWorkflowTenantIsolation(t, p) })
	t.Run("workflow delete", func(t *testing.T) { testWorkflowDelete(t, p) })
	t.Run("instance versioning", func(t *testing.T) { testInstanceVersioning(t, p) })
	t.Run("instance list", func(t *testing.T) { testInstanceList(t, p) })
	t.Run("pending action created with instance", func(t *testing.T) { testPendingActionCreated(t, p) })
	t.Run("duplicate pending action", func(t *testing.T) { testDuplicatePendingAction(t, p) })
	t.Run("close is compare and set", func(t *testing.T) { testCloseCompareAndSet(t, p) })
	t.Run("concurrent close has one winner", func(t *testing.T) { testConcurrentClose(t, p) })
	t.Run("list open by role and user", func(t *testing.T) { testListOpen(t, p) })
	t.Run("audit trail", func(t *testing.T) { testAuditTrail(t, p) })
}

func tenant() string {
	return "tenant-" + uuid.NewString()
}

// NewInstance returns an unsaved suspended instance of the leave graph waiting at "manager".
func NewInstance(tenantID string) *models.WorkflowInstance {
	now := time.Now().UTC().Truncate(time.Millisecond)
	g := testutil.LeaveApprovalGraph()
	inst := &models.WorkflowInstance{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		Name:          "Long leave approval",
		Graph:         g,
		InitiatedBy:   "employee-1",
		Payload:       map[string]any{"days": float64(12), "employee": map[string]any{"id": "e-1"}},
		Status:        models.InstanceStatusSuspended,
		CurrentNodeID: "manager",
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, id := range []string{"trigger", "long-leave", "manager"} {
		n, _ := g.Node(id)
		outcome := models.OutcomeTriggered

		switch n.Kind() {
		case models.NodeKindCondition:
			outcome = models.OutcomeTrue
		case models.NodeKindApproval:
			outcome = models.OutcomeSuspended
		}

		inst.Append(n, outcome, "", now)
	}

	return inst
}

// NewPendingAction returns an open action for the instance's current node.
func NewPendingAction(inst *models.WorkflowInstance, role string) *models.PendingAction {
	return &models.PendingAction{
		ID:           uuid.NewString(),
		TenantID:     inst.TenantID,
		InstanceID:   inst.ID,
		NodeID:       inst.CurrentNodeID,
		NodeName:     role + " approval",
		AssignedRole: role,
		Status:       models.PendingActionStatusPending,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
}

func testWorkflowRoundTrip(t *testing.T, p persistence.Persistence) {
	repo := p.WorkflowRepository()
	workflow := testutil.CreateTestWorkflow(tenant())

	require.NoError(t, repo.Save(t.Context(), workflow))

	got, err := repo.GetByID(t.Context(), workflow.TenantID, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, got.Name)
	assert.Equal(t, workflow.Description, got.Description)
	assert.Equal(t, models.WorkflowStatusDraft, got.Status)
	assert.Equal(t, workflow.CreatedBy, got.CreatedBy)
	assert.Equal(t, workflow.Graph.Nodes(), got.Graph.Nodes())
	assert.Equal(t, workflow.Graph.Edges(), got.Graph.Edges())
	assert.False(t, got.CreatedAt.IsZero())

	got.Status = models.WorkflowStatusActive
	got.Name = "Renamed"
	require.NoError(t, repo.Save(t.Context(), got))

	again, err := repo.GetByID(t.Context(), workflow.TenantID, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", again.Name)
	assert.Equal(t, models.WorkflowStatusActive, again.Status)

	_, err = repo.GetByID(t.Context(), workflow.TenantID, uuid.NewString())
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func testWorkflowListFilters(t *testing.T, p persistence.Persistence) {
	repo := p.WorkflowRepository()
	tenantID := tenant()

	leave := testutil.CreateTestWorkflow(tenantID)
	leave.Status = models.WorkflowStatusActive

	expense := testutil.CreateTestWorkflow(tenantID)
	expense.Name = "Expense approval"
	expense.Graph = testutil.ExpenseGraph()

	require.NoError(t, repo.Save(t.Context(), leave))
	require.NoError(t, repo.Save(t.Context(), expense))

	all, err := repo.List(t.Context(), tenantID, persistence.ListWorkflowsOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active := models.WorkflowStatusActive
	onlyActive, err := repo.List(t.Context(), tenantID, persistence.ListWorkflowsOptions{Status: &active})
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, leave.ID, onlyActive[0].ID)

	byEvent, err := repo.List(t.Context(), tenantID, persistence.ListWorkflowsOptions{EventType: "expense.created"})
	require.NoError(t, err)
	require.Len(t, byEvent, 1)
	assert.Equal(t, expense.ID, byEvent[0].ID)
}

func testWorkflowTenantIsolation(t *testing.T, p persistence.Persistence) {
	repo := p.WorkflowRepository()
	workflow := testutil.CreateTestWorkflow(tenant())
	require.NoError(t, repo.Save(t.Context(), workflow))

	other := tenant()

	_, err := repo.GetByID(t.Context(), other, workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	list, err := repo.List(t.Context(), other, persistence.ListWorkflowsOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testWorkflowDelete(t *testing.T, p persistence.Persistence) {
	repo := p.WorkflowRepository()
	workflow := testutil.CreateTestWorkflow(tenant())
	require.NoError(t, repo.Save(t.Context(), workflow))

	require.NoError(t, repo.Delete(t.Context(), workflow.TenantID, workflow.ID))

	_, err := repo.GetByID(t.Context(), workflow.TenantID, workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = repo.Delete(t.Context(), workflow.TenantID, workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func testInstanceVersioning(t *testing.T, p persistence.Persistence) {
	repo := p.InstanceRepository()
	inst := NewInstance(tenant())

	require.NoError(t, repo.Save(t.Context(), inst, nil))
	assert.Equal(t, 1, inst.Version)

	loaded, err := repo.GetByID(t.Context(), inst.TenantID, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Version)
	assert.Equal(t, inst.History, loaded.History)
	assert.Equal(t, inst.Payload, loaded.Payload)
	assert.Equal(t, inst.Graph.Nodes(), loaded.Graph.Nodes())
	assert.Equal(t, models.InstanceStatusSuspended, loaded.Status)

	stale := *loaded

	n, _ := loaded.Graph.Node("hr")
	loaded.CurrentNodeID = "hr"
	loaded.Append(n, models.OutcomeSuspended, "", time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, repo.Save(t.Context(), loaded, nil))
	assert.Equal(t, 2, loaded.Version)

	stale.Status = models.InstanceStatusCancelled
	err = repo.Save(t.Context(), &stale, nil)
	assert.True(t, errors.Is(err, persistence.ErrConcurrentModification))

	latest, err := repo.GetByID(t.Context(), inst.TenantID, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, "hr", latest.CurrentNodeID)
	assert.Len(t, latest.History, 4)

	_, err = repo.GetByID(t.Context(), tenant(), inst.ID)
	assert.True(t, persistence.IsInstanceNotFound(err))
}

func testInstanceList(t *testing.T, p persistence.Persistence) {
	repo := p.InstanceRepository()
	tenantID := tenant()

	suspended := NewInstance(tenantID)
	suspended.DefinitionID = "def-1"

	completed := NewInstance(tenantID)
	completed.Status = models.InstanceStatusCompleted
	completed.CreatedAt = completed.CreatedAt.Add(time.Second)

	require.NoError(t, repo.Save(t.Context(), suspended, nil))
	require.NoError(t, repo.Save(t.Context(), completed, nil))

	all, err := repo.List(t.Context(), tenantID, persistence.ListInstancesOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, completed.ID, all[0].ID)

	status := models.InstanceStatusSuspended
	filtered, err := repo.List(t.Context(), tenantID, persistence.ListInstancesOptions{Status: &status})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, suspended.ID, filtered[0].ID)

	byDefinition, err := repo.List(t.Context(), tenantID, persistence.ListInstancesOptions{DefinitionID: "def-1"})
	require.NoError(t, err)
	require.Len(t, byDefinition, 1)
	assert.Equal(t, suspended.ID, byDefinition[0].ID)
}

func testPendingActionCreated(t *testing.T, p persistence.Persistence) {
	inst := NewInstance(tenant())
	action := NewPendingAction(inst, "manager")

	require.NoError(t, p.InstanceRepository().Save(t.Context(), inst, action))

	got, err := p.PendingActionRepository().GetByID(t.Context(), inst.TenantID, action.ID)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, got.InstanceID)
	assert.Equal(t, "manager", got.NodeID)
	assert.Equal(t, "manager", got.AssignedRole)
	assert.True(t, got.IsOpen())
	assert.Nil(t, got.DecidedAt)

	byInstance, err := p.PendingActionRepository().ListByInstance(t.Context(), inst.TenantID, inst.ID)
	require.NoError(t, err)
	assert.Len(t, byInstance, 1)

	_, err = p.PendingActionRepository().GetByID(t.Context(), tenant(), action.ID)
	assert.True(t, persistence.IsPendingActionNotFound(err))
}

func testDuplicatePendingAction(t *testing.T, p persistence.Persistence) {
	repo := p.InstanceRepository()
	inst := NewInstance(tenant())
	require.NoError(t, repo.Save(t.Context(), inst, NewPendingAction(inst, "manager")))

	err := repo.Save(t.Context(), inst, NewPendingAction(inst, "manager"))
	assert.True(t, errors.Is(err, persistence.ErrDuplicatePendingAction))

	stored, err := repo.GetByID(t.Context(), inst.TenantID, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)

	open, err := p.PendingActionRepository().ListByInstance(t.Context(), inst.TenantID, inst.ID)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func testCloseCompareAndSet(t *testing.T, p persistence.Persistence) {
	inst := NewInstance(tenant())
	action := NewPendingAction(inst, "manager")
	require.NoError(t, p.InstanceRepository().Save(t.Context(), inst, action))

	repo := p.PendingActionRepository()
	at := time.Now().UTC().Truncate(time.Millisecond)

	closed, err := repo.Close(t.Context(), inst.TenantID, action.ID, models.ActionClosure{
		Status:    models.PendingActionStatusRejected,
		DecidedBy: "manager-1",
		Reason:    "team is short-staffed",
		DecidedAt: at,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PendingActionStatusRejected, closed.Status)
	assert.Equal(t, "manager-1", closed.DecidedBy)
	assert.Equal(t, "team is short-staffed", closed.Reason)
	require.NotNil(t, closed.DecidedAt)
	assert.True(t, at.Equal(*closed.DecidedAt))

	_, err = repo.Close(t.Context(), inst.TenantID, action.ID, models.ActionClosure{
		Status:    models.PendingActionStatusApproved,
		DecidedBy: "manager-2",
		DecidedAt: at,
	})

	var decided *persistence.AlreadyDecidedError
	require.True(t, errors.As(err, &decided))
	assert.Equal(t, models.PendingActionStatusRejected, decided.Action.Status)
	assert.Equal(t, "manager-1", decided.Action.DecidedBy)

	_, err = repo.Close(t.Context(), inst.TenantID, uuid.NewString(), models.ActionClosure{})
	assert.True(t, persistence.IsPendingActionNotFound(err))

	// A closed action frees the (instance, node) slot for a new one.
	require.NoError(t, p.InstanceRepository().Save(t.Context(), inst, NewPendingAction(inst, "manager")))
}

func testConcurrentClose(t *testing.T, p persistence.Persistence) {
	inst := NewInstance(tenant())
	action := NewPendingAction(inst, "manager")
	require.NoError(t, p.InstanceRepository().Save(t.Context(), inst, action))

	const deciders = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losers  int
	)

	for i := range deciders {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			actor := "manager-" + string(rune('a'+i))

			_, err := p.PendingActionRepository().Close(t.Context(), inst.TenantID, action.ID, models.ActionClosure{
				Status:    models.PendingActionStatusApproved,
				DecidedBy: actor,
				DecidedAt: time.Now().UTC(),
			})

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				winners = append(winners, actor)
			case persistence.IsAlreadyDecided(err):
				losers++
			default:
				t.Errorf("unexpected close error: %v", err)
			}
		}(i)
	}

	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, deciders-1, losers)

	stored, err := p.PendingActionRepository().GetByID(t.Context(), inst.TenantID, action.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], stored.DecidedBy)
}

func testListOpen(t *testing.T, p persistence.Persistence) {
	tenantID := tenant()

	forManager := NewInstance(tenantID)
	managerAction := NewPendingAction(forManager, "manager")
	require.NoError(t, p.InstanceRepository().Save(t.Context(), forManager, managerAction))

	forUser := NewInstance(tenantID)
	userAction := NewPendingAction(forUser, "")
	userAction.AssignedRole = ""
	userAction.AssignedUser = "delegate-1"
	require.NoError(t, p.InstanceRepository().Save(t.Context(), forUser, userAction))

	decided := NewInstance(tenantID)
	decidedAction := NewPendingAction(decided, "manager")
	require.NoError(t, p.InstanceRepository().Save(t.Context(), decided, decidedAction))
	_, err := p.PendingActionRepository().Close(t.Context(), tenantID, decidedAction.ID, models.ActionClosure{
		Status: models.PendingActionStatusApproved, DecidedBy: "manager-1", DecidedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	repo := p.PendingActionRepository()

	managers, err := repo.ListOpen(t.Context(), tenantID, []string{"manager"}, "manager-1")
	require.NoError(t, err)
	require.Len(t, managers, 1)
	assert.Equal(t, managerAction.ID, managers[0].ID)

	delegate, err := repo.ListOpen(t.Context(), tenantID, nil, "delegate-1")
	require.NoError(t, err)
	require.Len(t, delegate, 1)
	assert.Equal(t, userAction.ID, delegate[0].ID)

	both, err := repo.ListOpen(t.Context(), tenantID, []string{"manager", "hr"}, "delegate-1")
	require.NoError(t, err)
	assert.Len(t, both, 2)

	nobody, err := repo.ListOpen(t.Context(), tenantID, []string{"finance"}, "someone")
	require.NoError(t, err)
	assert.Empty(t, nobody)

	anonymous, err := repo.ListOpen(t.Context(), tenantID, nil, "")
	require.NoError(t, err)
	assert.Empty(t, anonymous)

	rolesOnly, err := repo.ListOpen(t.Context(), tenantID, []string{"hr"}, "")
	require.NoError(t, err)
	assert.Empty(t, rolesOnly)
}

func testAuditTrail(t *testing.T, p persistence.Persistence) {
	repo := p.AuditRepository()
	tenantID := tenant()
	instanceID := uuid.NewString()
	at := time.Now().UTC().Truncate(time.Millisecond)

	start := &models.AuditRecord{
		ID: uuid.NewString(), TenantID: tenantID, ActorID: "employee-1",
		Action: models.AuditActionStart, InstanceID: instanceID, At: at,
	}
	decide := &models.AuditRecord{
		ID: uuid.NewString(), TenantID: tenantID, ActorID: "manager-1",
		Action: models.AuditActionDecide, InstanceID: instanceID, NodeID: "manager",
		ActionID: uuid.NewString(), Decision: models.DecisionReject, Reason: "no cover", At: at.Add(time.Second),
	}

	require.NoError(t, repo.Append(t.Context(), start))
	require.NoError(t, repo.Append(t.Context(), decide))

	records, err := repo.ListByInstance(t.Context(), tenantID, instanceID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.AuditActionStart, records[0].Action)
	assert.Equal(t, models.DecisionReject, records[1].Decision)
	assert.Equal(t, "no cover", records[1].Reason)

	other, err := repo.ListByInstance(t.Context(), tenant(), instanceID)
	require.NoError(t, err)
	assert.Empty(t, other)
}
