package web_test

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/hrflow/hrflow/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringPtr(s string) *string {
	return &s
}

func TestRequestValidation(t *testing.T) {
	t.Parallel()

	v := validator.New(validator.WithRequiredStructEnabled())
	graph := []byte(`{"nodes":[],"edges":[]}`)

	tests := []struct {
		name      string
		request   any
		errFields []string
	}{
		{name: "valid create", request: web.CreateWorkflowRequest{Name: "Leave", Graph: graph}},
		{name: "create without name", request: web.CreateWorkflowRequest{Graph: graph}, errFields: []string{"Name"}},
		{name: "create archived", request: web.CreateWorkflowRequest{Name: "Leave", Graph: graph, Status: "archived"}, errFields: []string{"Status"}},
		{name: "create without graph", request: web.CreateWorkflowRequest{Name: "Leave"}, errFields: []string{"Graph"}},
		{name: "empty update", request: web.UpdateWorkflowRequest{}},
		{name: "update short name", request: web.UpdateWorkflowRequest{Name: stringPtr("ab")}, errFields: []string{"Name"}},
		{name: "update unknown status", request: web.UpdateWorkflowRequest{Status: stringPtr("published")}, errFields: []string{"Status"}},
		{name: "trigger by definition", request: web.TriggerInstanceRequest{DefinitionID: "wf-1"}},
		{name: "trigger inline", request: web.TriggerInstanceRequest{Graph: graph}},
		{name: "trigger without source", request: web.TriggerInstanceRequest{}, errFields: []string{"DefinitionID"}},
		{name: "event without type", request: web.TriggerEventRequest{}, errFields: []string{"EventType"}},
		{name: "approve", request: web.DecisionRequest{Decision: "approve"}},
		{name: "unknown decision", request: web.DecisionRequest{Decision: "escalate"}, errFields: []string{"Decision"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := v.Struct(tt.request)
			if len(tt.errFields) == 0 {
				assert.NoError(t, err)

				return
			}

			var validationErrs validator.ValidationErrors
			require.True(t, errors.As(err, &validationErrs))

			fields := make([]string, 0, len(validationErrs))
			for _, fe := range validationErrs {
				fields = append(fields, fe.Field())
			}

			assert.Equal(t, tt.errFields, fields)
		})
	}
}
