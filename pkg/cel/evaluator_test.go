package cel

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{"valid comparison", `payload.type == "SHIP_REQUIRED"`, false},
		{"attributes lookup", `attributes["source"] == "orders"`, false},
		{"invalid syntax", `invalid syntax here!!!`, true},
		{"undefined variable", `undefinedVar == "test"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCompileRule_RequiresBool(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	_, err = eval.CompileRule("quantity", `payload.quantity`)
	assert.Error(t, err)

	_, err = eval.CompileRule("broken", `payload.quantity >`)
	assert.Error(t, err)

	rule, err := eval.CompileRule("positive", `payload.quantity > 0.0`)
	require.NoError(t, err)
	assert.Equal(t, "positive", rule.Name)
}

func TestRule_Evaluate(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		expr    string
		in      Input
		want    bool
		wantErr bool
	}{
		{
			name: "numeric payload field",
			expr: `payload.quantity > 0.0`,
			in:   Input{Payload: map[string]interface{}{"quantity": float64(3)}},
			want: true,
		},
		{
			name: "decoded JSON number in nested list",
			expr: `payload.lines[0].qty >= 2.0`,
			in: Input{Payload: map[string]interface{}{
				"lines": []interface{}{map[string]interface{}{"qty": json.Number("2")}},
			}},
			want: true,
		},
		{
			name: "has guard on absent field",
			expr: `!has(payload.warehouse) || payload.warehouse != ""`,
			in:   Input{Payload: map[string]interface{}{"item": "SKU1"}},
			want: true,
		},
		{
			name: "attribute match",
			expr: `"source" in attributes && attributes["source"] == "orders"`,
			in:   Input{Attributes: map[string]string{"source": "billing"}},
			want: false,
		},
		{
			name: "nil maps are treated as empty",
			expr: `size(payload) == 0 && size(attributes) == 0`,
			in:   Input{},
			want: true,
		},
		{
			name:    "missing key is an evaluation error",
			expr:    `payload.quantity > 0.0`,
			in:      Input{Payload: map[string]interface{}{}},
			wantErr: true,
		},
		{
			name: "message id",
			expr: `message_id.startsWith("m-")`,
			in:   Input{MessageID: "m-1"},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := eval.CompileRule(tt.name, tt.expr)
			require.NoError(t, err)

			got, err := rule.Evaluate(context.Background(), tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
