package ingestion

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanout/internal/config"
	"fanout/internal/logger"
	"fanout/pkg/models"
)

func TestValidator_Validate(t *testing.T) {
	v, err := NewValidator(pipelineConfig(), logger.NopLogger())
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload models.DomainPayload
		reason  string
	}{
		{"null payload", nil, "payload is null"},
		{"missing type", models.DomainPayload{"item": "SKU1"}, "type is missing"},
		{"null type", models.DomainPayload{"item": "SKU1", "type": nil}, "type is missing"},
		{"numeric type", models.DomainPayload{"item": "SKU1", "type": 3.0}, "type is missing"},
		{"unrecognized type", models.DomainPayload{"item": "SKU2", "type": "NO_SHIP"}, "unrecognized type"},
		{"allowed type", models.DomainPayload{"item": "SKU1", "type": "SHIP_REQUIRED"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(context.Background(), models.NotificationEnvelope{}, tt.payload, "m-1")
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			outcome := outcomeOf(err)
			assert.Equal(t, models.OutcomeValidationFailed, outcome.Kind)
			assert.Equal(t, tt.reason, outcome.Reason)
		})
	}
}

func TestValidator_Rules(t *testing.T) {
	cfg := pipelineConfig()
	cfg.Rules = []config.RuleConfig{
		{Name: "positive_qty", Expression: `payload.qty > 0.0`},
		{Name: "from_checkout", Expression: `attributes.origin == "checkout"`},
	}
	v, err := NewValidator(cfg, logger.NopLogger())
	require.NoError(t, err)

	ctx := context.Background()
	env := models.NotificationEnvelope{Attributes: map[string]string{"origin": "checkout"}}

	err = v.Validate(ctx, env, models.DomainPayload{"item": "SKU1", "type": "SHIP_REQUIRED", "qty": 2.0}, "m-1")
	assert.NoError(t, err)

	err = v.Validate(ctx, env, models.DomainPayload{"item": "SKU1", "type": "SHIP_REQUIRED", "qty": 0.0}, "m-1")
	assert.Equal(t, "rule positive_qty rejected payload", outcomeOf(err).Reason)

	err = v.Validate(ctx, env, models.DomainPayload{"item": "SKU1", "type": "SHIP_REQUIRED"}, "m-1")
	assert.Equal(t, "rule positive_qty rejected payload", outcomeOf(err).Reason, "evaluation errors reject")

	err = v.Validate(ctx, models.NotificationEnvelope{Attributes: map[string]string{"origin": "admin"}},
		models.DomainPayload{"item": "SKU1", "type": "SHIP_REQUIRED", "qty": 1.0}, "m-1")
	assert.Equal(t, "rule from_checkout rejected payload", outcomeOf(err).Reason)

	err = v.Validate(ctx, env, models.DomainPayload{"item": "SKU1", "type": "SHIP_REQUIRED", "qty": json.Number("2")}, "m-1")
	assert.NoError(t, err, "decoded JSON numbers compare as doubles")

	err = v.Validate(ctx, env, models.DomainPayload{"item": "SKU1", "type": "SHIP_REQUIRED", "qty": json.Number("0")}, "m-1")
	assert.Equal(t, "rule positive_qty rejected payload", outcomeOf(err).Reason)

	err = v.Validate(ctx, env, models.DomainPayload{"item": "SKU2", "type": "NO_SHIP", "qty": 1.0}, "m-1")
	assert.Equal(t, "unrecognized type", outcomeOf(err).Reason, "rules run after the type checks")
}

func TestNewValidator_ConfigurationErrors(t *testing.T) {
	cfg := pipelineConfig()
	cfg.AllowedTypes = nil
	_, err := NewValidator(cfg, logger.NopLogger())
	assert.ErrorIs(t, err, ErrConfiguration)

	cfg = pipelineConfig()
	cfg.Rules = []config.RuleConfig{{Name: "broken", Expression: `payload.qty >`}}
	_, err = NewValidator(cfg, logger.NopLogger())
	assert.ErrorIs(t, err, ErrConfiguration)

	cfg.Rules = []config.RuleConfig{{Name: "not_bool", Expression: `message_id`}}
	_, err = NewValidator(cfg, logger.NopLogger())
	assert.ErrorIs(t, err, ErrConfiguration)
}
