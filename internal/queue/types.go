// Package queue adapts external message queues to the receive, acknowledge
// and release operations the ingestion pipeline needs. Redelivery and
// dead-lettering stay the queue's business.
package queue

import (
	"context"
	"time"

	"fanout/pkg/models"
)

type ReceiveOptions struct {
	MaxMessages       int
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
}

// AckFailure describes a receipt the queue refused to acknowledge.
type AckFailure struct {
	ReceiptToken string
	Code         string
	Reason       string
	// SenderFault is true when retrying the same receipt cannot succeed.
	SenderFault bool
}

type Queue interface {
	Receive(ctx context.Context, opts ReceiveOptions) ([]models.TransportMessage, error)
	// Acknowledge removes messages for good. The returned failures cover
	// every receipt that was not acknowledged; err reports a call-level
	// problem.
	Acknowledge(ctx context.Context, receipts []string) ([]AckFailure, error)
	// Release gives up on messages without removing them, leaving them to
	// the queue's redelivery policy.
	Release(ctx context.Context, receipts []string) error
	Name() string
	Close() error
}

const (
	AckCodeInvalidReceipt = "ReceiptHandleIsInvalid"
	AckCodeRequestFailed  = "RequestFailed"
)

func failAll(receipts []string, code, reason string, senderFault bool) []AckFailure {
	failures := make([]AckFailure, 0, len(receipts))
	for _, r := range receipts {
		failures = append(failures, AckFailure{
			ReceiptToken: r,
			Code:         code,
			Reason:       reason,
			SenderFault:  senderFault,
		})
	}
	return failures
}

func chunk(items []string, size int) [][]string {
	var chunks [][]string
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[:size:size])
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}
