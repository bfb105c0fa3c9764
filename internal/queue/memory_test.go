package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_ReceiveAndAcknowledge(t *testing.T) {
	q := NewMemoryQueue(0)
	ctx := context.Background()
	q.Send([]byte(`one`), nil)
	q.Send([]byte(`two`), map[string]string{"k": "v"})

	msgs, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 10, VisibilityTimeout: time.Minute})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, 1, msgs[0].DeliveryCount)
	assert.NotEmpty(t, msgs[0].ReceiptToken)
	assert.Equal(t, "v", msgs[1].Attributes["k"])

	again, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 10})
	require.NoError(t, err)
	assert.Empty(t, again, "in-flight messages are invisible")

	failures, err := q.Acknowledge(ctx, []string{msgs[0].ReceiptToken})
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, 1, q.Len())
}

func TestMemoryQueue_RedeliversAfterVisibilityTimeout(t *testing.T) {
	q := NewMemoryQueue(0)
	ctx := context.Background()
	q.Send([]byte(`body`), nil)

	first, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 1, VisibilityTimeout: 20 * time.Millisecond})
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.NoError(t, q.Release(ctx, []string{first[0].ReceiptToken}))

	second, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 1, WaitTime: time.Second, VisibilityTimeout: time.Minute})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 2, second[0].DeliveryCount)
	assert.NotEqual(t, first[0].ReceiptToken, second[0].ReceiptToken)

	failures, err := q.Acknowledge(ctx, []string{first[0].ReceiptToken})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, AckCodeInvalidReceipt, failures[0].Code)
	assert.True(t, failures[0].SenderFault)

	failures, err = q.Acknowledge(ctx, []string{second[0].ReceiptToken})
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, 0, q.Len())
}

func TestMemoryQueue_ReleaseMakesMessageVisibleImmediately(t *testing.T) {
	q := NewMemoryQueue(0)
	ctx := context.Background()
	q.Send([]byte(`body`), nil)

	first, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 1, VisibilityTimeout: time.Hour})
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.NoError(t, q.Release(ctx, []string{first[0].ReceiptToken}))

	second, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 1, VisibilityTimeout: time.Hour})
	require.NoError(t, err)
	require.Len(t, second, 1, "released message is visible without waiting for the visibility timeout")
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 2, second[0].DeliveryCount)

	require.NoError(t, q.Release(ctx, []string{"unknown"}))
}

func TestMemoryQueue_DeadLettersAfterMaxReceiveCount(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()
	q.Send([]byte(`poison`), nil)

	opts := ReceiveOptions{MaxMessages: 1, VisibilityTimeout: time.Millisecond}
	for i := 0; i < 2; i++ {
		msgs, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 1, WaitTime: time.Second, VisibilityTimeout: time.Millisecond})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		time.Sleep(5 * time.Millisecond)
	}

	msgs, err := q.Receive(ctx, opts)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 0, q.Len())

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, []byte(`poison`), dead[0].Body)
	assert.Equal(t, 2, dead[0].DeliveryCount)
}

func TestMemoryQueue_LongPollWakesOnSend(t *testing.T) {
	q := NewMemoryQueue(0)

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Send([]byte(`late`), nil)
	}()

	msgs, err := q.Receive(context.Background(), ReceiveOptions{MaxMessages: 1, WaitTime: 2 * time.Second})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte(`late`), msgs[0].Body)
}

func TestMemoryQueue_ReceiveHonoursContext(t *testing.T) {
	q := NewMemoryQueue(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Receive(ctx, ReceiveOptions{MaxMessages: 1, WaitTime: time.Minute})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChunk(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunk(items, 2))
	assert.Nil(t, chunk(nil, 10))
	assert.Equal(t, [][]string{{"a", "b", "c", "d", "e"}}, chunk(items, 10))
}
