package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"fanout/internal/config"
	"fanout/internal/constants"
	"fanout/pkg/models"
)

// EnvelopeStage turns a transport body into a notification envelope.
type EnvelopeStage func(body []byte) (models.NotificationEnvelope, error)

// PayloadStage turns the envelope's message into the domain payload.
type PayloadStage func(env models.NotificationEnvelope) (models.DomainPayload, error)

// Decoder chains an envelope stage and a payload stage. Each stage failure
// is reported as DecodeFailed with the stage that failed.
type Decoder struct {
	envelope EnvelopeStage
	payload  PayloadStage
}

func NewDecoder(envelope EnvelopeStage, payload PayloadStage) *Decoder {
	return &Decoder{envelope: envelope, payload: payload}
}

// DecoderForFormat returns the decoder for an envelope_format setting.
func DecoderForFormat(format string) (*Decoder, error) {
	switch format {
	case "", config.EnvelopeFormatSNS:
		return NewDecoder(DecodeSNSEnvelope, DecodeJSONPayload), nil
	case config.EnvelopeFormatRaw:
		return NewDecoder(RawEnvelope, DecodeJSONPayload), nil
	default:
		return nil, fmt.Errorf("%w: unknown envelope format %q", ErrConfiguration, format)
	}
}

func (d *Decoder) Decode(body []byte) (models.NotificationEnvelope, models.DomainPayload, error) {
	env, err := d.envelope(body)
	if err != nil {
		return models.NotificationEnvelope{}, nil, decodeFailed(constants.StageEnvelope, err)
	}

	payload, err := d.payload(env)
	if err != nil {
		return env, nil, decodeFailed(constants.StagePayload, err)
	}

	return env, payload, nil
}

type snsEnvelope struct {
	Type              string                     `json:"Type"`
	MessageID         string                     `json:"MessageId"`
	TopicArn          string                     `json:"TopicArn"`
	Message           *json.RawMessage           `json:"Message"`
	MessageAttributes map[string]json.RawMessage `json:"MessageAttributes"`
}

type snsAttribute struct {
	Type  string `json:"Type"`
	Value string `json:"Value"`
}

// DecodeSNSEnvelope parses an SNS notification as delivered to SQS.
func DecodeSNSEnvelope(body []byte) (models.NotificationEnvelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return models.NotificationEnvelope{}, errors.New("envelope is not a JSON object")
	}

	var raw snsEnvelope
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return models.NotificationEnvelope{}, fmt.Errorf("invalid envelope JSON: %w", err)
	}

	if raw.Message == nil {
		return models.NotificationEnvelope{}, errors.New("envelope has no Message field")
	}
	var message string
	if err := json.Unmarshal(*raw.Message, &message); err != nil {
		return models.NotificationEnvelope{}, errors.New("envelope Message is not a string")
	}

	attrs, err := flattenAttributes(raw.MessageAttributes)
	if err != nil {
		return models.NotificationEnvelope{}, err
	}

	return models.NotificationEnvelope{
		TopicID:    raw.TopicArn,
		MessageID:  raw.MessageID,
		Message:    message,
		Attributes: attrs,
	}, nil
}

// flattenAttributes accepts both {"k":{"Type":"String","Value":"v"}} and
// {"k":"v"}.
func flattenAttributes(in map[string]json.RawMessage) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(in))
	for k, v := range in {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		var attr snsAttribute
		if err := json.Unmarshal(v, &attr); err != nil {
			return nil, fmt.Errorf("invalid message attribute %q: %w", k, err)
		}
		out[k] = attr.Value
	}
	return out, nil
}

// RawEnvelope wraps the body as-is, for raw message delivery.
func RawEnvelope(body []byte) (models.NotificationEnvelope, error) {
	return models.NotificationEnvelope{Message: string(body)}, nil
}

// DecodeJSONPayload parses the envelope message as a JSON object. A JSON
// null decodes to a nil payload so the validator can reject it. Numbers are
// kept as json.Number so integers above 2^53 survive to the sink.
func DecodeJSONPayload(env models.NotificationEnvelope) (models.DomainPayload, error) {
	trimmed := bytes.TrimSpace([]byte(env.Message))
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("payload is not a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var payload models.DomainPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid payload JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid payload JSON: trailing data after object")
	}
	return payload, nil
}
