package ingestion

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanout/internal/config"
	"fanout/internal/constants"
	"fanout/pkg/models"
)

func TestDecodeSNSEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		want    models.NotificationEnvelope
	}{
		{
			name: "notification",
			body: `{"Type":"Notification","MessageId":"n-1","TopicArn":"arn:topic","Message":"{\"item\":\"SKU1\"}","MessageAttributes":{"origin":{"Type":"String","Value":"checkout"}}}`,
			want: models.NotificationEnvelope{
				TopicID:    "arn:topic",
				MessageID:  "n-1",
				Message:    `{"item":"SKU1"}`,
				Attributes: map[string]string{"origin": "checkout"},
			},
		},
		{
			name: "flat attributes",
			body: `{"Message":"{}","MessageAttributes":{"origin":"checkout"}}`,
			want: models.NotificationEnvelope{Message: "{}", Attributes: map[string]string{"origin": "checkout"}},
		},
		{name: "not json", body: `hello`, wantErr: true},
		{name: "truncated", body: `{"Message":`, wantErr: true},
		{name: "array", body: `[{"Message":"{}"}]`, wantErr: true},
		{name: "missing message", body: `{"TopicArn":"arn:topic"}`, wantErr: true},
		{name: "message is not a string", body: `{"Message":{"item":"SKU1"}}`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSNSEnvelope([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeJSONPayload(t *testing.T) {
	payload, err := DecodeJSONPayload(models.NotificationEnvelope{Message: `{"item":"SKU1","qty":2}`})
	require.NoError(t, err)
	assert.Equal(t, models.DomainPayload{"item": "SKU1", "qty": json.Number("2")}, payload)

	payload, err = DecodeJSONPayload(models.NotificationEnvelope{Message: ` null `})
	require.NoError(t, err)
	assert.Nil(t, payload)

	payload, err = DecodeJSONPayload(models.NotificationEnvelope{Message: `{"item":9007199254740993}`})
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), payload["item"])

	for _, msg := range []string{`[1,2]`, `"SKU1"`, `{"item":`, ``, `{"item":"SKU1"} {}`, `{"item":"SKU1"}x`} {
		_, err := DecodeJSONPayload(models.NotificationEnvelope{Message: msg})
		assert.Error(t, err, msg)
	}
}

func TestDecoder_ReportsFailingStage(t *testing.T) {
	d, err := DecoderForFormat(config.EnvelopeFormatSNS)
	require.NoError(t, err)

	_, _, err = d.Decode([]byte(`not json`))
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, models.OutcomeDecodeFailed, stageErr.Kind)
	assert.Equal(t, constants.StageEnvelope, stageErr.Stage)

	_, _, err = d.Decode([]byte(`{"Message":"not json"}`))
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, models.OutcomeDecodeFailed, stageErr.Kind)
	assert.Equal(t, constants.StagePayload, stageErr.Stage)
}

func TestDecoderForFormat(t *testing.T) {
	raw, err := DecoderForFormat(config.EnvelopeFormatRaw)
	require.NoError(t, err)

	env, payload, err := raw.Decode([]byte(`{"item":"SKU1","type":"SHIP_REQUIRED"}`))
	require.NoError(t, err)
	assert.Empty(t, env.TopicID)
	assert.Equal(t, "SKU1", payload["item"])

	_, err = DecoderForFormat("xml")
	assert.ErrorIs(t, err, ErrConfiguration)
}
