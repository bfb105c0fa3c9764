package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type inflightEntry struct {
	msg        kafka.Message
	receipt    string
	deliveries int
	deadline   time.Time
	acked      bool
}

// inflightTracker gives a Kafka partition log queue semantics. Fetched
// records stay tracked until acknowledged; unacknowledged records become
// visible again after their deadline. Offsets are only committable up to
// the lowest record that is still unacknowledged, so a restart redelivers
// everything that was not acknowledged.
type inflightTracker struct {
	mu         sync.Mutex
	partitions map[int][]*inflightEntry
	byReceipt  map[string]*inflightEntry
}

func newInflightTracker() *inflightTracker {
	return &inflightTracker{
		partitions: make(map[int][]*inflightEntry),
		byReceipt:  make(map[string]*inflightEntry),
	}
}

func (t *inflightTracker) add(msg kafka.Message, now time.Time, visibility time.Duration) *inflightEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := &inflightEntry{
		msg:        msg,
		receipt:    uuid.NewString(),
		deliveries: 1,
		deadline:   now.Add(visibility),
	}
	t.partitions[msg.Partition] = append(t.partitions[msg.Partition], e)
	t.byReceipt[e.receipt] = e
	return e
}

// redeliver hands out up to max expired entries with fresh receipts. The
// old receipt stops working.
func (t *inflightTracker) redeliver(now time.Time, max int, visibility time.Duration) []*inflightEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*inflightEntry
	for _, p := range t.sortedPartitions() {
		for _, e := range t.partitions[p] {
			if len(out) >= max {
				return out
			}
			if e.acked || e.deadline.After(now) {
				continue
			}
			delete(t.byReceipt, e.receipt)
			e.receipt = uuid.NewString()
			e.deliveries++
			e.deadline = now.Add(visibility)
			t.byReceipt[e.receipt] = e
			out = append(out, e)
		}
	}
	return out
}

// ack reports false when receipt is unknown or stale.
func (t *inflightTracker) ack(receipt string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byReceipt[receipt]
	if !ok {
		return false
	}
	e.acked = true
	delete(t.byReceipt, receipt)
	return true
}

// release moves the deadline of an unacknowledged entry to now.
func (t *inflightTracker) release(receipt string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byReceipt[receipt]
	if !ok {
		return false
	}
	e.deadline = now
	return true
}

// committable returns, per partition, the highest message whose offset and
// all earlier tracked offsets are acknowledged.
func (t *inflightTracker) committable() []kafka.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []kafka.Message
	for _, p := range t.sortedPartitions() {
		var last *inflightEntry
		for _, e := range t.partitions[p] {
			if !e.acked {
				break
			}
			last = e
		}
		if last != nil {
			out = append(out, last.msg)
		}
	}
	return out
}

// committed drops entries at or below the committed offsets.
func (t *inflightTracker) committed(msgs []kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range msgs {
		entries := t.partitions[m.Partition]
		i := 0
		for i < len(entries) && entries[i].msg.Offset <= m.Offset {
			i++
		}
		t.partitions[m.Partition] = entries[i:]
	}
}

func (t *inflightTracker) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, entries := range t.partitions {
		n += len(entries)
	}
	return n
}

func (t *inflightTracker) sortedPartitions() []int {
	ps := make([]int, 0, len(t.partitions))
	for p := range t.partitions {
		ps = append(ps, p)
	}
	sort.Ints(ps)
	return ps
}
