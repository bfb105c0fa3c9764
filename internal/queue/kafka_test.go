package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"fanout/internal/logger"
	"fanout/pkg/tracing"
)

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
	commitErr error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		m := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commitErr != nil {
		return r.commitErr
	}
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeWriter struct {
	written []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func topicMessages(n int) []kafka.Message {
	out := make([]kafka.Message, n)
	for i := range out {
		out[i] = kafka.Message{
			Topic:     "orders",
			Partition: 0,
			Offset:    int64(100 + i),
			Value:     []byte(`{}`),
			Headers:   []kafka.Header{{Key: "source", Value: []byte("test")}},
		}
	}
	return out
}

func TestKafkaQueue_ReceiveAndCommitPrefix(t *testing.T) {
	reader := &fakeReader{pending: topicMessages(3)}
	q := newKafkaQueue(reader, nil, "", 0, logger.NopLogger())
	ctx := context.Background()

	msgs, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 3, WaitTime: 50 * time.Millisecond, VisibilityTimeout: time.Minute})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "orders-0-100", msgs[0].ID)
	assert.Equal(t, 1, msgs[0].DeliveryCount)
	assert.Equal(t, "test", msgs[0].Attributes["source"])

	failures, err := q.Acknowledge(ctx, []string{msgs[1].ReceiptToken})
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Empty(t, reader.committed, "offset 100 still in flight")

	failures, err = q.Acknowledge(ctx, []string{msgs[0].ReceiptToken})
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, reader.committed, 1)
	assert.Equal(t, int64(101), reader.committed[0].Offset)
}

func TestKafkaQueue_RedeliversUnackedRecords(t *testing.T) {
	reader := &fakeReader{pending: topicMessages(1)}
	q := newKafkaQueue(reader, nil, "", 0, logger.NopLogger())
	now := time.Now()
	q.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 1, WaitTime: 20 * time.Millisecond, VisibilityTimeout: time.Second})
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.NoError(t, q.Release(ctx, []string{first[0].ReceiptToken}))

	now = now.Add(2 * time.Second)
	second, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 1, WaitTime: 20 * time.Millisecond, VisibilityTimeout: time.Second})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 2, second[0].DeliveryCount)

	failures, err := q.Acknowledge(ctx, []string{first[0].ReceiptToken})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.True(t, failures[0].SenderFault)
}

func TestKafkaQueue_ReleaseRedeliversOnNextReceive(t *testing.T) {
	reader := &fakeReader{pending: topicMessages(1)}
	q := newKafkaQueue(reader, nil, "", 0, logger.NopLogger())
	now := time.Now()
	q.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 1, WaitTime: 20 * time.Millisecond, VisibilityTimeout: time.Hour})
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.NoError(t, q.Release(ctx, []string{first[0].ReceiptToken}))

	second, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 1, WaitTime: 20 * time.Millisecond, VisibilityTimeout: time.Hour})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 2, second[0].DeliveryCount)

	assert.Error(t, q.Release(ctx, []string{first[0].ReceiptToken}), "stale receipt")
}

func TestKafkaQueue_DeadLettersAfterMaxReceiveCount(t *testing.T) {
	reader := &fakeReader{pending: topicMessages(1)}
	dlq := &fakeWriter{}
	q := newKafkaQueue(reader, dlq, "orders-dlq", 1, logger.NopLogger())
	now := time.Now()
	q.now = func() time.Time { return now }
	ctx := context.Background()

	opts := ReceiveOptions{MaxMessages: 1, WaitTime: 20 * time.Millisecond, VisibilityTimeout: time.Second}
	first, err := q.Receive(ctx, opts)
	require.NoError(t, err)
	require.Len(t, first, 1)

	now = now.Add(2 * time.Second)
	second, err := q.Receive(ctx, opts)
	require.NoError(t, err)
	assert.Empty(t, second)

	require.Len(t, dlq.written, 1)
	assert.Equal(t, []byte(`{}`), dlq.written[0].Value)

	_, err = q.Acknowledge(ctx, nil)
	require.NoError(t, err)
	require.Len(t, reader.committed, 1)
	assert.Equal(t, int64(100), reader.committed[0].Offset)
	assert.Equal(t, 0, q.tracker.pending())
}

func TestKafkaQueue_DeadLetterCarriesTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	msgs := topicMessages(1)
	msgs[0].Headers = append(msgs[0].Headers, kafka.Header{Key: "traceparent", Value: []byte("00-stale")})
	reader := &fakeReader{pending: msgs}
	dlq := &fakeWriter{}
	q := newKafkaQueue(reader, dlq, "orders-dlq", 1, logger.NopLogger())
	now := time.Now()
	q.now = func() time.Time { return now }

	ctx, span := tp.Tracer("test").Start(context.Background(), "poll")
	defer span.End()

	opts := ReceiveOptions{MaxMessages: 1, WaitTime: 20 * time.Millisecond, VisibilityTimeout: time.Second}
	_, err := q.Receive(ctx, opts)
	require.NoError(t, err)
	now = now.Add(2 * time.Second)
	_, err = q.Receive(ctx, opts)
	require.NoError(t, err)

	require.Len(t, dlq.written, 1)
	attrs := tracing.KafkaHeadersToAttributes(dlq.written[0].Headers)
	assert.Contains(t, attrs["traceparent"], span.SpanContext().TraceID().String())
	assert.Equal(t, "test", attrs["source"])
	assert.Equal(t, "orders", attrs["x-source-topic"])

	var traceparents int
	for _, h := range dlq.written[0].Headers {
		if h.Key == "traceparent" {
			traceparents++
		}
	}
	assert.Equal(t, 1, traceparents)
}

func TestKafkaQueue_CommitFailureKeepsAcks(t *testing.T) {
	reader := &fakeReader{pending: topicMessages(1), commitErr: errors.New("broker gone")}
	q := newKafkaQueue(reader, nil, "", 0, logger.NopLogger())
	ctx := context.Background()

	msgs, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 1, WaitTime: 20 * time.Millisecond})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	failures, err := q.Acknowledge(ctx, []string{msgs[0].ReceiptToken})
	assert.Error(t, err)
	assert.Empty(t, failures)

	reader.commitErr = nil
	_, err = q.Acknowledge(ctx, nil)
	require.NoError(t, err)
	require.Len(t, reader.committed, 1)
}
