package queue

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(partition int, offset int64) kafka.Message {
	return kafka.Message{Topic: "orders", Partition: partition, Offset: offset}
}

func TestInflightTracker_CommitsOnlyContiguousAcks(t *testing.T) {
	tr := newInflightTracker()
	now := time.Now()

	e0 := tr.add(record(0, 10), now, time.Minute)
	e1 := tr.add(record(0, 11), now, time.Minute)
	e2 := tr.add(record(0, 12), now, time.Minute)

	require.True(t, tr.ack(e1.receipt))
	require.True(t, tr.ack(e2.receipt))
	assert.Empty(t, tr.committable(), "offset 10 is still in flight")

	require.True(t, tr.ack(e0.receipt))
	msgs := tr.committable()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(12), msgs[0].Offset)

	tr.committed(msgs)
	assert.Equal(t, 0, tr.pending())
}

func TestInflightTracker_PartitionsAreIndependent(t *testing.T) {
	tr := newInflightTracker()
	now := time.Now()

	a := tr.add(record(0, 1), now, time.Minute)
	tr.add(record(0, 2), now, time.Minute)
	b := tr.add(record(1, 7), now, time.Minute)

	tr.ack(a.receipt)
	tr.ack(b.receipt)

	msgs := tr.committable()
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(1), msgs[0].Offset)
	assert.Equal(t, int64(7), msgs[1].Offset)

	tr.committed(msgs)
	assert.Equal(t, 1, tr.pending())
}

func TestInflightTracker_RedeliversExpired(t *testing.T) {
	tr := newInflightTracker()
	now := time.Now()

	e := tr.add(record(0, 5), now, time.Second)
	oldReceipt := e.receipt

	assert.Empty(t, tr.redeliver(now, 10, time.Second))

	later := now.Add(2 * time.Second)
	again := tr.redeliver(later, 10, time.Second)
	require.Len(t, again, 1)
	assert.Equal(t, 2, again[0].deliveries)
	assert.NotEqual(t, oldReceipt, again[0].receipt)

	assert.False(t, tr.ack(oldReceipt), "stale receipt")
	assert.True(t, tr.ack(again[0].receipt))
	assert.False(t, tr.ack(again[0].receipt), "double ack")
}

func TestInflightTracker_RedeliverRespectsMax(t *testing.T) {
	tr := newInflightTracker()
	now := time.Now()
	for i := int64(0); i < 5; i++ {
		tr.add(record(0, i), now, time.Millisecond)
	}

	got := tr.redeliver(now.Add(time.Second), 3, time.Minute)
	assert.Len(t, got, 3)
}
