package services

import (
	"log/slog"
	"testing"

	"github.com/hrflow/hrflow/pkg/condition"
	"github.com/hrflow/hrflow/pkg/engine"
	"github.com/hrflow/hrflow/pkg/events"
	"github.com/hrflow/hrflow/pkg/mocks"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
	"github.com/hrflow/hrflow/pkg/persistence/file"
	"github.com/hrflow/hrflow/pkg/roles"
	"github.com/hrflow/hrflow/pkg/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const tenant = "acme"

type fixture struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	roles       roles.Resolver
	bus         *mocks.MockEventBus
	workflows   *Workflows
	instances   *Instances
	pending     *PendingActions
	decisions   *Decisions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	p := file.NewPersistence(t.TempDir())
	rules := condition.NewEvaluator()
	eng := engine.New(logger, rules)

	resolver := roles.NewStatic(roles.Directory{
		tenant: {
			"manager-1": {"manager"},
			"manager-2": {"manager"},
			"hr-1":      {"hr"},
			"finance-1": {"finance"},
			"admin-1":   {"admin"},
		},
	})

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	return &fixture{
		persistence: p,
		engine:      eng,
		roles:       resolver,
		bus:         bus,
		workflows:   NewWorkflows(logger, p, rules),
		instances:   NewInstances(logger, p, eng, resolver, bus),
		pending:     NewPendingActions(p, resolver),
		decisions:   NewDecisions(logger, p, eng, resolver, bus, nil),
	}
}

// activeWorkflow stores an active workflow built on g.
func (f *fixture) activeWorkflow(t *testing.T, g *models.Graph) *models.Workflow {
	t.Helper()

	workflow, err := f.workflows.Create(t.Context(), CreateWorkflowRequest{
		TenantID: tenant,
		ActorID:  "author-1",
		Name:     "Leave approval",
		Graph:    g,
		Status:   models.WorkflowStatusActive,
	})
	require.NoError(t, err)

	return workflow
}

// longLeave starts the leave workflow for a twelve day request by employee-1.
func (f *fixture) longLeave(t *testing.T) *models.WorkflowInstance {
	t.Helper()

	workflow := f.activeWorkflow(t, testutil.LeaveApprovalGraph())

	instance, err := f.instances.Trigger(t.Context(), TriggerRequest{
		TenantID:     tenant,
		ActorID:      "employee-1",
		DefinitionID: workflow.ID,
		Payload:      map[string]any{"days": 12},
	})
	require.NoError(t, err)

	return instance
}

// openAction returns the single open action of the instance.
func (f *fixture) openAction(t *testing.T, instanceID string) *models.PendingAction {
	t.Helper()

	actions, err := f.pending.ListByInstance(t.Context(), tenant, instanceID)
	require.NoError(t, err)

	var open []*models.PendingAction

	for _, a := range actions {
		if a.IsOpen() {
			open = append(open, a)
		}
	}

	require.Len(t, open, 1)

	return open[0]
}

func (f *fixture) published(eventType events.EventType) int {
	count := 0

	for _, call := range f.bus.Calls {
		if call.Method != "Publish" {
			continue
		}

		if e, ok := call.Arguments.Get(2).(events.Event); ok && e.GetType() == eventType {
			count++
		}
	}

	return count
}
