package ingestion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanout/pkg/models"
)

func TestTransformer_DerivesKeyFromItem(t *testing.T) {
	tr := NewTransformer(pipelineConfig())

	payload := models.DomainPayload{"item": "SKU1", "type": "SHIP_REQUIRED"}
	rec, err := tr.Transform(payload)
	require.NoError(t, err)

	assert.Equal(t, "SKU1", rec.Key)
	assert.Equal(t, "code", rec.KeyField)
	assert.Equal(t, map[string]interface{}{"code": "SKU1", "item": "SKU1", "type": "SHIP_REQUIRED"}, rec.Item)
	assert.NotContains(t, payload, "code", "input payload is not modified")
}

func TestTransformer_StripsNulls(t *testing.T) {
	tr := NewTransformer(pipelineConfig())

	rec, err := tr.Transform(models.DomainPayload{
		"item":    "SKU1",
		"type":    "SHIP_REQUIRED",
		"note":    nil,
		"address": map[string]interface{}{"city": "Oslo", "zip": nil},
		"tags":    []interface{}{"a", nil, map[string]interface{}{"x": nil}},
	})
	require.NoError(t, err)

	assert.NotContains(t, rec.Item, "note")
	assert.Equal(t, map[string]interface{}{"city": "Oslo"}, rec.Item["address"])
	assert.Equal(t, []interface{}{"a", map[string]interface{}{}}, rec.Item["tags"])
}

func TestTransformer_KeyRendering(t *testing.T) {
	tr := NewTransformer(pipelineConfig())

	rec, err := tr.Transform(models.DomainPayload{"item": 1234567.0, "type": "SHIP_REQUIRED"})
	require.NoError(t, err)
	assert.Equal(t, "1234567", rec.Key)
	assert.Equal(t, "1234567", rec.Item["code"])

	rec, err = tr.Transform(models.DomainPayload{"item": 1.5, "type": "SHIP_REQUIRED"})
	require.NoError(t, err)
	assert.Equal(t, "1.5", rec.Key)
}

func TestTransformer_LargeIntegerKeysStayDistinct(t *testing.T) {
	tr := NewTransformer(pipelineConfig())

	a, err := tr.Transform(models.DomainPayload{"item": json.Number("9007199254740993"), "type": "SHIP_REQUIRED"})
	require.NoError(t, err)
	b, err := tr.Transform(models.DomainPayload{"item": json.Number("9007199254740992"), "type": "SHIP_REQUIRED"})
	require.NoError(t, err)

	assert.Equal(t, "9007199254740993", a.Key)
	assert.Equal(t, "9007199254740992", b.Key)
	assert.Equal(t, json.Number("9007199254740993"), a.Item["item"])
}

func TestTransformer_MissingKeySource(t *testing.T) {
	tr := NewTransformer(pipelineConfig())

	for _, p := range []models.DomainPayload{
		{"type": "SHIP_REQUIRED"},
		{"type": "SHIP_REQUIRED", "item": nil},
		{"type": "SHIP_REQUIRED", "item": ""},
		{"type": "SHIP_REQUIRED", "item": map[string]interface{}{"sku": "SKU1"}},
	} {
		_, err := tr.Transform(p)
		require.Error(t, err)
		outcome := outcomeOf(err)
		assert.Equal(t, models.OutcomeValidationFailed, outcome.Kind)
		assert.Equal(t, "key source field item missing", outcome.Reason)
	}
}

func TestTransformer_IsDeterministic(t *testing.T) {
	tr := NewTransformer(pipelineConfig())
	payload := models.DomainPayload{"item": "SKU1", "type": "SHIP_REQUIRED", "qty": 3.0}

	a, err := tr.Transform(payload)
	require.NoError(t, err)
	b, err := tr.Transform(payload)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
