package ingestion

import (
	"context"
	"fmt"
	"time"

	"fanout/internal/logger"
	"fanout/internal/queue"
	"fanout/pkg/logging"
	"fanout/pkg/metrics"
	"fanout/pkg/models"
	"fanout/pkg/retry"
)

type AckSummary struct {
	BatchID           string
	Acknowledged      int
	LeftForRedelivery int
	// AckFailed counts persisted messages the queue refused to
	// acknowledge. They will be redelivered and upserted again.
	AckFailed int
}

// Acknowledger removes persisted messages from the queue and leaves every
// other message to the queue's redelivery policy.
type Acknowledger struct {
	queue  queue.Queue
	policy retry.Policy
	logger logger.Logger
}

func NewAcknowledger(q queue.Queue, policy retry.Policy, log logger.Logger) *Acknowledger {
	return &Acknowledger{queue: q, policy: policy, logger: log}
}

func (a *Acknowledger) Acknowledge(ctx context.Context, report *models.BatchReport) AckSummary {
	ctx = logging.WithBatchID(ctx, report.BatchID)
	persisted, remaining := report.Split()

	summary := AckSummary{BatchID: report.BatchID}
	summary.Acknowledged, summary.AckFailed = a.acknowledge(ctx, persisted)
	summary.LeftForRedelivery = a.release(ctx, remaining)

	counts := report.Counts()
	a.logger.InfowCtx(ctx, "Batch completed",
		"persisted", counts.Persisted,
		"failed", counts.Failed,
		"not_processed", counts.NotProcessed,
		"left_for_redelivery", summary.LeftForRedelivery,
		"acknowledged", summary.Acknowledged,
		"ack_failed", summary.AckFailed,
	)
	return summary
}

// acknowledge retries receipts that failed for a transient reason. Each
// round only resends what is still pending.
func (a *Acknowledger) acknowledge(ctx context.Context, entries []models.ReportEntry) (acked, failed int) {
	if len(entries) == 0 {
		return 0, 0
	}

	messageIDs := make(map[string]string, len(entries))
	pending := make([]string, 0, len(entries))
	for _, e := range entries {
		messageIDs[e.Message.ReceiptToken] = e.Message.ID
		pending = append(pending, e.Message.ReceiptToken)
	}

	var rejected []queue.AckFailure
	var lastFailures []queue.AckFailure
	err := retry.RetryWithCallback(ctx, a.policy, func() error {
		failures, callErr := a.queue.Acknowledge(ctx, pending)

		next := pending[:0:0]
		lastFailures = lastFailures[:0]
		for _, f := range failures {
			if f.SenderFault {
				rejected = append(rejected, f)
				continue
			}
			next = append(next, f.ReceiptToken)
			lastFailures = append(lastFailures, f)
		}
		pending = next

		if len(pending) == 0 {
			return nil
		}
		if callErr != nil {
			return fmt.Errorf("%d acknowledgements pending: %w", len(pending), callErr)
		}
		return fmt.Errorf("%d acknowledgements pending", len(pending))
	}, func(attempt int, err error, next time.Duration) {
		metrics.IncRetryAttempt("acknowledger", "acknowledge")
		a.logger.WarnwCtx(ctx, "Retrying acknowledgement",
			"attempt", attempt,
			"pending", len(pending),
			"next_delay", next.String(),
			"error", err,
		)
	})
	if err != nil {
		rejected = append(rejected, lastFailures...)
	}

	for _, f := range rejected {
		a.logger.ErrorwCtx(logging.WithMessageID(ctx, messageIDs[f.ReceiptToken]), "Acknowledgement failed, message will be redelivered",
			"code", f.Code,
			"reason", f.Reason,
			"sender_fault", f.SenderFault,
		)
	}

	failed = len(rejected)
	acked = len(entries) - failed
	metrics.AddAcks(a.queue.Name(), "acknowledged", acked)
	metrics.AddAcks(a.queue.Name(), "failed", failed)
	return acked, failed
}

func (a *Acknowledger) release(ctx context.Context, entries []models.ReportEntry) int {
	if len(entries) == 0 {
		return 0
	}

	receipts := make([]string, 0, len(entries))
	for _, e := range entries {
		a.logger.WarnwCtx(logging.WithMessageID(ctx, e.Message.ID), "Message left for redelivery",
			"outcome", e.Outcome.Kind,
			"stage", e.Outcome.Stage,
			"reason", e.Outcome.Reason,
			"delivery_count", e.Message.DeliveryCount,
		)
		if e.Message.ReceiptToken != "" {
			receipts = append(receipts, e.Message.ReceiptToken)
		}
	}

	if err := a.queue.Release(ctx, receipts); err != nil {
		a.logger.ErrorwCtx(ctx, "Failed to release messages, they reappear after the visibility timeout",
			"count", len(receipts),
			"error", err,
		)
	}
	metrics.AddAcks(a.queue.Name(), "released", len(entries))
	return len(entries)
}
