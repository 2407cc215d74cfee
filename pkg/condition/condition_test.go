package condition

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidRules(t *testing.T) {
	tests := []struct {
		rule     string
		field    string
		operator string
		literal  any
	}{
		{"days > 10", "days", ">", 10},
		{"amount >= 10000.5", "amount", ">=", 10000.5},
		{"employee.level <= 3", "employee.level", "<=", 3},
		{`category == "travel"`, "category", "==", "travel"},
		{"remote == true", "remote", "==", true},
		{"balance < -5", "balance", "<", -5},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			rule, err := Parse(tt.rule)
			require.NoError(t, err)
			assert.Equal(t, tt.field, rule.Field)
			assert.Equal(t, tt.operator, rule.Operator)
			assert.EqualValues(t, tt.literal, rule.Literal)
		})
	}
}

func TestParse_InvalidRules(t *testing.T) {
	rules := []string{
		"",
		"days >",
		"days",
		"days != 10",
		"10 > days",
		"days > other",
		"days > 10 && amount < 5",
		"len(days) > 1",
		"days ? 1 : 2",
	}

	for _, rule := range rules {
		t.Run(rule, func(t *testing.T) {
			_, err := Parse(rule)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRule))
		})
	}
}

func TestEvaluator_Evaluate(t *testing.T) {
	evaluator := NewEvaluator()

	tests := []struct {
		name    string
		rule    string
		payload map[string]any
		want    bool
	}{
		{"greater than, above", "days > 10", map[string]any{"days": 11}, true},
		{"greater than, below", "days > 10", map[string]any{"days": 5}, false},
		{"missing field is false", "amount > 10000", map[string]any{}, false},
		{"nil payload is false", "amount > 10000", nil, false},
		{"null field is false", "amount > 10000", map[string]any{"amount": nil}, false},
		{"json float against int literal", "days >= 12", map[string]any{"days": float64(12)}, true},
		{"nested path", "employee.level < 3", map[string]any{"employee": map[string]any{"level": 2}}, true},
		{"nested path missing", "employee.level < 3", map[string]any{"employee": "bob"}, false},
		{"string equality", `category == "travel"`, map[string]any{"category": "travel"}, true},
		{"bool equality", "remote == true", map[string]any{"remote": false}, false},
		{"field named type", `type == "leave"`, map[string]any{"type": "leave"}, true},
		{"field named count", "count > 3", map[string]any{"count": 4}, true},
		{"field named duration", "duration > 2", map[string]any{"duration": 5}, true},
		{"field named now", "now > 1", map[string]any{"now": 2}, true},
		{"field named len", "len > 2", map[string]any{"len": 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluator.Evaluate(tt.rule, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_Validate_FieldsShadowingFunctionNames(t *testing.T) {
	evaluator := NewEvaluator()

	for _, rule := range []string{`type == "leave"`, "count > 3", "duration > 2", "now > 1", "len > 2", "upper == 1"} {
		assert.NoError(t, evaluator.Validate(rule), rule)
	}
}

func TestEvaluator_Evaluate_TypeMismatch(t *testing.T) {
	evaluator := NewEvaluator()

	_, err := evaluator.Evaluate("days > 10", map[string]any{"days": "eleven"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEvaluation))
}

func TestEvaluator_Evaluate_InvalidRule(t *testing.T) {
	evaluator := NewEvaluator()

	_, err := evaluator.Evaluate("days >> 10", map[string]any{"days": 11})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRule))
}

func TestEvaluator_CachesPrograms(t *testing.T) {
	evaluator := NewEvaluator()

	require.NoError(t, evaluator.Validate("days > 10"))
	require.NoError(t, evaluator.Validate("days > 10"))

	assert.Equal(t, 1, evaluator.cache.Len())
}

func TestEvaluator_CacheIsBounded(t *testing.T) {
	evaluator := NewEvaluatorSize(2)

	for i := range 10 {
		require.NoError(t, evaluator.Validate(fmt.Sprintf("days > %d", i)))
	}

	assert.Equal(t, 2, evaluator.cache.Len())

	ok, err := evaluator.Evaluate("days > 0", map[string]any{"days": 1})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, evaluator.cache.Len())
}

func TestNewEvaluatorSize_NonPositive(t *testing.T) {
	evaluator := NewEvaluatorSize(0)

	require.NoError(t, evaluator.Validate("days > 10"))
	assert.Equal(t, 1, evaluator.cache.Len())
}

func TestLookup(t *testing.T) {
	doc := map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 1}},
	}

	v, ok := Lookup(doc, "a.b.c")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = Lookup(doc, "a.x.c")
	assert.False(t, ok)
}
