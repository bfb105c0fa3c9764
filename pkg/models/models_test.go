package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainPayload_TypeTag(t *testing.T) {
	tests := []struct {
		name    string
		payload DomainPayload
		want    string
		wantOK  bool
	}{
		{"nil payload", nil, "", false},
		{"missing", DomainPayload{"item": "SKU1"}, "", false},
		{"null", DomainPayload{"type": nil}, "", false},
		{"not a string", DomainPayload{"type": 42.0}, "", false},
		{"empty string", DomainPayload{"type": ""}, "", false},
		{"present", DomainPayload{"type": "SHIP_REQUIRED"}, "SHIP_REQUIRED", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.payload.TypeTag("type")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestBatchReport_CountsAndSplit(t *testing.T) {
	report := &BatchReport{
		Entries: []ReportEntry{
			{Message: TransportMessage{ID: "a"}, Outcome: Persisted("SKU1")},
			{Message: TransportMessage{ID: "b"}, Outcome: Failed(OutcomeValidationFailed, "validate", "unrecognized type")},
			{Message: TransportMessage{ID: "c"}, Outcome: Failed(OutcomeNotProcessed, "", "batch timeout")},
			{Message: TransportMessage{ID: "d"}, Outcome: Persisted("SKU2")},
		},
	}

	assert.Equal(t, BatchCounts{Persisted: 2, Failed: 1, NotProcessed: 1}, report.Counts())

	persisted, remaining := report.Split()
	assert.Len(t, persisted, 2)
	assert.Equal(t, "a", persisted[0].Message.ID)
	assert.Equal(t, "d", persisted[1].Message.ID)
	assert.Len(t, remaining, 2)
	assert.Equal(t, "b", remaining[0].Message.ID)
}

func TestValidateTransportMessage(t *testing.T) {
	assert.ErrorIs(t, ValidateTransportMessage(nil), ErrNilTransportMessage)

	var missing *MissingFieldError
	require.ErrorAs(t, ValidateTransportMessage(&TransportMessage{ReceiptToken: "r"}), &missing)
	assert.Equal(t, "id", missing.Field)
	require.ErrorAs(t, ValidateTransportMessage(&TransportMessage{ID: "m"}), &missing)
	assert.Equal(t, "receipt_token", missing.Field)

	assert.Error(t, ValidateTransportMessage(&TransportMessage{ID: "m", ReceiptToken: "r", DeliveryCount: -1}))
	assert.NoError(t, ValidateTransportMessage(&TransportMessage{ID: "m", ReceiptToken: "r"}))
}

func TestMapNumbers(t *testing.T) {
	in := map[string]interface{}{
		"id":    json.Number("9007199254740993"),
		"lines": []interface{}{map[string]interface{}{"qty": json.Number("1.5")}, "x"},
	}

	out := MapNumbers(in, func(n json.Number) interface{} { return "n:" + n.String() })
	assert.Equal(t, map[string]interface{}{
		"id":    "n:9007199254740993",
		"lines": []interface{}{map[string]interface{}{"qty": "n:1.5"}, "x"},
	}, out)
	assert.Equal(t, json.Number("9007199254740993"), in["id"], "input is not modified")

	assert.Equal(t, 1.5, NumberToFloat(json.Number("1.5")))
}
