package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fanout/internal/config"
	"fanout/internal/queue"
	"fanout/pkg/models"
)

const testTable = "inventory"

func pipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		AllowedTypes:   []string{"SHIP_REQUIRED"},
		TypeField:      "type",
		KeyField:       "code",
		KeySourceField: "item",
		EnvelopeFormat: config.EnvelopeFormatSNS,
		Concurrency:    1,
	}
}

func snsBody(t *testing.T, message string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"Type":      "Notification",
		"MessageId": "sns-1",
		"TopicArn":  "arn:aws:sns:us-east-1:000000000000:orders",
		"Message":   message,
		"MessageAttributes": map[string]interface{}{
			"origin": map[string]string{"Type": "String", "Value": "checkout"},
		},
	})
	require.NoError(t, err)
	return body
}

func transportMessage(t *testing.T, i int, message string) models.TransportMessage {
	t.Helper()
	return models.TransportMessage{
		ID:            fmt.Sprintf("m-%d", i),
		ReceiptToken:  fmt.Sprintf("r-%d", i),
		Body:          snsBody(t, message),
		DeliveryCount: 1,
	}
}

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) Receive(ctx context.Context, opts queue.ReceiveOptions) ([]models.TransportMessage, error) {
	args := m.Called(ctx, opts)
	msgs, _ := args.Get(0).([]models.TransportMessage)
	return msgs, args.Error(1)
}

func (m *mockQueue) Acknowledge(ctx context.Context, receipts []string) ([]queue.AckFailure, error) {
	args := m.Called(ctx, receipts)
	failures, _ := args.Get(0).([]queue.AckFailure)
	return failures, args.Error(1)
}

func (m *mockQueue) Release(ctx context.Context, receipts []string) error {
	return m.Called(ctx, receipts).Error(0)
}

func (m *mockQueue) Name() string {
	return "mock"
}

func (m *mockQueue) Close() error {
	return nil
}

// blockingSink holds every write until the caller's context ends.
type blockingSink struct{}

func (blockingSink) Upsert(ctx context.Context, _ string, _ models.PersistenceRecord) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingSink) Name() string                { return "blocking" }
func (blockingSink) Close(context.Context) error { return nil }

type panicSink struct{}

func (panicSink) Upsert(context.Context, string, models.PersistenceRecord) error {
	panic("driver exploded")
}

func (panicSink) Name() string                { return "panic" }
func (panicSink) Close(context.Context) error { return nil }

var (
	mockAnyCtx      = mock.Anything
	mockAnyReceipts = mock.Anything
)
