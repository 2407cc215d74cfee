package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_PlainMessage(t *testing.T) {
	result, err := Render("expense received", Data{})
	require.NoError(t, err)
	assert.Equal(t, "expense received", result)
}

func TestRender_PayloadFields(t *testing.T) {
	data := Data{
		InstanceID: "instance-1",
		Name:       "Long leave approval",
		Payload: map[string]any{
			"days":     12,
			"employee": map[string]any{"name": "Alice"},
		},
	}

	result, err := Render("{{ .Payload.employee.name }} requested {{ .Payload.days }} days ({{ .Name }})", data)
	require.NoError(t, err)
	assert.Equal(t, "Alice requested 12 days (Long leave approval)", result)
}

func TestRender_Functions(t *testing.T) {
	data := Data{Payload: map[string]any{"department": "sales"}}

	result, err := Render(`{{ upper .Payload.department }} / {{ default "unassigned" .Payload.manager }}`, data)
	require.NoError(t, err)
	assert.Equal(t, "SALES / unassigned", result)

	result, err = Render("{{ now }}", data)
	require.NoError(t, err)
	assert.NotEmpty(t, result)
}

func TestRender_Errors(t *testing.T) {
	_, err := Render("{{ .Payload.days ", Data{})
	assert.ErrorContains(t, err, "failed to parse template")

	_, err = Render("{{ .Missing.field }}", Data{})
	assert.ErrorContains(t, err, "failed to execute template")
}

func TestParse(t *testing.T) {
	assert.NoError(t, Parse("hello {{ .Name }}"))
	assert.Error(t, Parse("{{ if }}"))
}
