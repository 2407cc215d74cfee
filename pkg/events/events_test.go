package events

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHREventReceived_Validation(t *testing.T) {
	tests := []struct {
		name        string
		event       *HREventReceived
		expectedErr error
	}{
		{
			name:  "valid_event",
			event: NewHREventReceived("acme", "leave.created", "employee-1", map[string]any{"days": 12}),
		},
		{
			name:        "missing_tenant",
			event:       NewHREventReceived("", "leave.created", "employee-1", nil),
			expectedErr: ErrMissingTenant,
		},
		{
			name:        "missing_event_type",
			event:       NewHREventReceived("acme", "", "employee-1", nil),
			expectedErr: ErrMissingEventType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.expectedErr == nil {
				assert.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestActionDecided_JSON(t *testing.T) {
	at := time.Now().UTC()
	action := &models.PendingAction{
		ID:         "action-1",
		TenantID:   "acme",
		InstanceID: "instance-1",
		NodeID:     "manager",
		Status:     models.PendingActionStatusRejected,
		DecidedBy:  "manager-1",
		DecidedAt:  &at,
		Reason:     "policy violation",
	}

	original := NewActionDecided(action)

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"decision":"reject"`)
	assert.Contains(t, string(data), `"type":"action.decided"`)

	decoded, ok := New(ActionDecidedEvent)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(data, decoded))

	got := decoded.(*ActionDecided)
	assert.Equal(t, "policy violation", got.Reason)
	assert.Equal(t, models.DecisionReject, got.Decision)
	assert.Equal(t, "instance-1", got.Key())
}

func TestForOutcome(t *testing.T) {
	inst := &models.WorkflowInstance{ID: "i-1", TenantID: "acme", CurrentNodeID: "done"}

	inst.Status = models.InstanceStatusRunning
	assert.Nil(t, ForOutcome(inst, "", ""))

	inst.Status = models.InstanceStatusCompleted
	assert.Equal(t, InstanceCompletedEvent, ForOutcome(inst, "", "").GetType())

	inst.Status = models.InstanceStatusFailed
	inst.Error = &models.InstanceError{NodeID: "long-leave", Reason: "dead end"}
	failed := ForOutcome(inst, "", "").(*InstanceFailed)
	assert.Equal(t, "long-leave", failed.NodeID)
	assert.Equal(t, "dead end", failed.Reason)

	inst.Status = models.InstanceStatusCancelled
	cancelled := ForOutcome(inst, "hr-1", "duplicate request").(*InstanceCancelled)
	assert.Equal(t, "hr-1", cancelled.ActorID)
}

func TestNew_Unknown(t *testing.T) {
	_, ok := New("workflow.triggered")
	assert.False(t, ok)
}

func TestKey_FallsBackToTenant(t *testing.T) {
	e := NewHREventReceived("acme", "leave.created", "", nil)
	assert.Equal(t, "acme", e.Key())
}
