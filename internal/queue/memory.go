package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fanout/pkg/metrics"
	"fanout/pkg/models"
)

const defaultVisibilityTimeout = 30 * time.Second

type memoryMessage struct {
	msg          models.TransportMessage
	receipt      string
	invisibleTil time.Time
}

// MemoryQueue is an in-process queue with visibility timeouts and an
// optional redrive to a dead-letter list after MaxReceiveCount receives.
type MemoryQueue struct {
	mu              sync.Mutex
	messages        []*memoryMessage
	deadLetters     []models.TransportMessage
	maxReceiveCount int
	notify          chan struct{}
	now             func() time.Time
}

func NewMemoryQueue(maxReceiveCount int) *MemoryQueue {
	return &MemoryQueue{
		maxReceiveCount: maxReceiveCount,
		notify:          make(chan struct{}, 1),
		now:             time.Now,
	}
}

func (q *MemoryQueue) Name() string {
	return "memory"
}

// Send enqueues body and returns the new message ID.
func (q *MemoryQueue) Send(body []byte, attributes map[string]string) string {
	id := uuid.NewString()

	q.mu.Lock()
	q.messages = append(q.messages, &memoryMessage{
		msg: models.TransportMessage{
			ID:         id,
			Body:       append([]byte(nil), body...),
			Attributes: attributes,
		},
	})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return id
}

func (q *MemoryQueue) Receive(ctx context.Context, opts ReceiveOptions) ([]models.TransportMessage, error) {
	var timer <-chan time.Time
	if opts.WaitTime > 0 {
		t := time.NewTimer(opts.WaitTime)
		defer t.Stop()
		timer = t.C
	}

	for {
		if msgs := q.take(opts); len(msgs) > 0 || timer == nil {
			return msgs, nil
		}

		// Wake up for new sends and for visibility expiry.
		poll := time.NewTimer(10 * time.Millisecond)
		select {
		case <-ctx.Done():
			poll.Stop()
			return nil, ctx.Err()
		case <-timer:
			poll.Stop()
			return q.take(opts), nil
		case <-q.notify:
		case <-poll.C:
		}
		poll.Stop()
	}
}

func (q *MemoryQueue) take(opts ReceiveOptions) []models.TransportMessage {
	max := opts.MaxMessages
	if max <= 0 {
		max = 1
	}
	visibility := opts.VisibilityTimeout
	if visibility <= 0 {
		visibility = defaultVisibilityTimeout
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var out []models.TransportMessage
	kept := q.messages[:0]
	for _, m := range q.messages {
		if len(out) >= max || m.invisibleTil.After(now) {
			kept = append(kept, m)
			continue
		}

		if q.maxReceiveCount > 0 && m.msg.DeliveryCount >= q.maxReceiveCount {
			q.deadLetters = append(q.deadLetters, m.msg)
			metrics.IncDeadLettered(q.Name())
			continue
		}

		m.msg.DeliveryCount++
		m.msg.ReceivedAt = now
		m.receipt = uuid.NewString()
		m.msg.ReceiptToken = m.receipt
		m.invisibleTil = now.Add(visibility)
		out = append(out, m.msg)
		kept = append(kept, m)
	}
	q.messages = kept

	return out
}

// Acknowledge only accepts the receipt from the latest receive of a message.
func (q *MemoryQueue) Acknowledge(_ context.Context, receipts []string) ([]AckFailure, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var failures []AckFailure
	for _, r := range receipts {
		idx := q.indexOf(r)
		if idx < 0 {
			failures = append(failures, AckFailure{
				ReceiptToken: r,
				Code:         AckCodeInvalidReceipt,
				Reason:       "receipt does not match a received message",
				SenderFault:  true,
			})
			continue
		}
		q.messages = append(q.messages[:idx], q.messages[idx+1:]...)
	}
	return failures, nil
}

// Release makes the messages behind receipts visible again right away.
// Unknown receipts are ignored.
func (q *MemoryQueue) Release(_ context.Context, receipts []string) error {
	q.mu.Lock()
	now := q.now()
	released := false
	for _, r := range receipts {
		if idx := q.indexOf(r); idx >= 0 {
			q.messages[idx].invisibleTil = now
			released = true
		}
	}
	q.mu.Unlock()

	if released {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	return nil
}

func (q *MemoryQueue) indexOf(receipt string) int {
	for i, m := range q.messages {
		if m.receipt != "" && m.receipt == receipt {
			return i
		}
	}
	return -1
}

// Len returns the number of messages still held, visible or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

func (q *MemoryQueue) DeadLetters() []models.TransportMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.TransportMessage(nil), q.deadLetters...)
}

func (q *MemoryQueue) Close() error {
	return nil
}
