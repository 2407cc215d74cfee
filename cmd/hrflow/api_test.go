package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/hrflow/hrflow/pkg/cmd"
	"github.com/hrflow/hrflow/pkg/condition"
	"github.com/hrflow/hrflow/pkg/engine"
	"github.com/hrflow/hrflow/pkg/events"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/notify"
	"github.com/hrflow/hrflow/pkg/otelhelper"
	"github.com/hrflow/hrflow/pkg/persistence"
	"github.com/hrflow/hrflow/pkg/persistence/file"
	"github.com/hrflow/hrflow/pkg/roles"
	"github.com/hrflow/hrflow/pkg/testutil"
	"github.com/hrflow/hrflow/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenant = "acme"

func setupTestAPI(t *testing.T) (*API, persistence.Persistence) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	p := file.NewPersistence(t.TempDir())
	rules := condition.NewEvaluator()
	eng := engine.New(logger, rules)
	resolver := roles.NewStatic(roles.Directory{
		tenant: {"manager-1": {"manager"}, "hr-1": {"hr"}},
	})

	return NewAPI(logger, p, rules, eng, resolver, nil, otelhelper.NoopTracer()), p
}

func send(t *testing.T, app *fiber.App, method, path, user string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if user != "" {
		req.Header.Set(web.TenantHeader, tenant)
		req.Header.Set(web.UserHeader, user)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, out
}

func TestAPI_RootEndpoint(t *testing.T) {
	api, _ := setupTestAPI(t)

	code, body := send(t, api.App(), http.MethodGet, "/", "", nil)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "hrflow API", string(body))
}

func TestAPI_HealthChecks(t *testing.T) {
	api, _ := setupTestAPI(t)
	app := api.App()

	for _, path := range []string{"/livez", "/readyz", "/health"} {
		t.Run(path, func(t *testing.T) {
			code, _ := send(t, app, http.MethodGet, path, "", nil)
			assert.Equal(t, http.StatusOK, code)
		})
	}
}

func TestAPI_RequiresIdentity(t *testing.T) {
	api, _ := setupTestAPI(t)

	code, _ := send(t, api.App(), http.MethodGet, "/api/workflows", "", nil)

	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAPI_LeaveApprovalFlow(t *testing.T) {
	api, _ := setupTestAPI(t)
	app := api.App()

	code, body := send(t, app, http.MethodPost, "/api/workflows", "author-1", map[string]any{
		"name":   "Long leave approval",
		"graph":  testutil.LeaveApprovalGraph(),
		"status": "active",
	})
	require.Equal(t, http.StatusCreated, code, string(body))

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))

	code, body = send(t, app, http.MethodPost, "/api/instances", "employee-1", map[string]any{
		"definition_id": workflow.ID,
		"payload":       map[string]any{"days": 12},
	})
	require.Equal(t, http.StatusCreated, code, string(body))

	var instance models.WorkflowInstance
	require.NoError(t, json.Unmarshal(body, &instance))
	assert.Equal(t, models.InstanceStatusSuspended, instance.Status)

	for _, approver := range []string{"manager-1", "hr-1"} {
		code, body = send(t, app, http.MethodGet, "/api/pending-actions", approver, nil)
		require.Equal(t, http.StatusOK, code, string(body))

		var pending web.PendingActionListResponse
		require.NoError(t, json.Unmarshal(body, &pending))
		require.Len(t, pending.PendingActions, 1)

		code, body = send(t, app, http.MethodPost, "/api/pending-actions/"+pending.PendingActions[0].ID+"/decision", approver,
			map[string]any{"decision": "approve"})
		require.Equal(t, http.StatusOK, code, string(body))
	}

	require.NoError(t, json.Unmarshal(body, &instance))
	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
	assert.Len(t, instance.History, 5)
}

func TestAPI_ConsumesHREvents(t *testing.T) {
	api, p := setupTestAPI(t)
	ctx := context.Background()

	workflow := testutil.CreateTestWorkflow(tenant)
	workflow.Status = models.WorkflowStatusActive
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	bus, err := cmd.NewEventBus("gochannel", slog.New(slog.DiscardHandler), false)
	require.NoError(t, err)

	t.Cleanup(func() { _ = bus.Close() })

	require.NoError(t, bus.Handle(events.HREventReceivedEvent, api.Instances().HREventHandler()))
	require.NoError(t, bus.Subscribe(ctx))

	event := events.NewHREventReceived(tenant, "leave.created", "employee-1", map[string]any{"days": 14})
	require.NoError(t, bus.Publish(ctx, event.Key(), event))

	assert.Eventually(t, func() bool {
		instances, err := p.InstanceRepository().List(ctx, tenant, persistence.ListInstancesOptions{})

		return err == nil && len(instances) == 1 && instances[0].Status == models.InstanceStatusSuspended
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNotifierFanOut(t *testing.T) {
	bus, err := cmd.NewEventBus("gochannel", slog.New(slog.DiscardHandler), false)
	require.NoError(t, err)

	t.Cleanup(func() { _ = bus.Close() })

	notifier := notify.Multi{notify.NewLogNotifier(slog.New(slog.DiscardHandler)), notify.NewBusNotifier(bus)}

	assert.NoError(t, notifier.Notify(context.Background(), notify.Notification{
		TenantID: tenant, InstanceID: "i-1", NodeID: "n-1", Message: "leave approved",
	}))
}
