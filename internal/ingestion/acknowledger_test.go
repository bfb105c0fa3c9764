package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"fanout/internal/logger"
	"fanout/internal/queue"
	"fanout/pkg/models"
)

func reportOf(outcomes ...models.Outcome) *models.BatchReport {
	r := &models.BatchReport{BatchID: "batch-1"}
	for i, o := range outcomes {
		id := string(rune('0' + i))
		r.Entries = append(r.Entries, models.ReportEntry{
			Message: models.TransportMessage{ID: "m-" + id, ReceiptToken: "r-" + id},
			Outcome: o,
		})
	}
	return r
}

func TestAcknowledger_RetriesOnlyFailedReceipts(t *testing.T) {
	q := &mockQueue{}
	q.On("Acknowledge", mockAnyCtx, []string{"r-0", "r-1", "r-2"}).
		Return([]queue.AckFailure{{ReceiptToken: "r-1", Code: queue.AckCodeRequestFailed}}, nil).Once()
	q.On("Acknowledge", mockAnyCtx, []string{"r-1"}).Return(nil, nil).Once()

	report := reportOf(models.Persisted("A"), models.Persisted("B"), models.Persisted("C"))
	summary := NewAcknowledger(q, fastAckPolicy(), logger.NopLogger()).Acknowledge(context.Background(), report)

	assert.Equal(t, AckSummary{BatchID: "batch-1", Acknowledged: 3}, summary)
	q.AssertExpectations(t)
}

func TestAcknowledger_SenderFaultIsNotRetried(t *testing.T) {
	q := &mockQueue{}
	q.On("Acknowledge", mockAnyCtx, []string{"r-0", "r-1"}).
		Return([]queue.AckFailure{{ReceiptToken: "r-0", Code: queue.AckCodeInvalidReceipt, SenderFault: true}}, nil).Once()

	report := reportOf(models.Persisted("A"), models.Persisted("B"))
	summary := NewAcknowledger(q, fastAckPolicy(), logger.NopLogger()).Acknowledge(context.Background(), report)

	assert.Equal(t, 1, summary.Acknowledged)
	assert.Equal(t, 1, summary.AckFailed)
	q.AssertNumberOfCalls(t, "Acknowledge", 1)
}

func TestAcknowledger_GivesUpAfterPolicy(t *testing.T) {
	q := &mockQueue{}
	q.On("Acknowledge", mockAnyCtx, []string{"r-0"}).
		Return([]queue.AckFailure{{ReceiptToken: "r-0", Code: queue.AckCodeRequestFailed}}, errors.New("throttled"))

	report := reportOf(models.Persisted("A"))
	summary := NewAcknowledger(q, fastAckPolicy(), logger.NopLogger()).Acknowledge(context.Background(), report)

	assert.Equal(t, 0, summary.Acknowledged)
	assert.Equal(t, 1, summary.AckFailed)
	assert.Equal(t, 0, summary.LeftForRedelivery, "an ack failure is not a processing failure")
	q.AssertNumberOfCalls(t, "Acknowledge", 3)
}

func TestAcknowledger_ReleasesEverythingNotPersisted(t *testing.T) {
	q := &mockQueue{}
	q.On("Acknowledge", mockAnyCtx, []string{"r-1"}).Return(nil, nil).Once()
	q.On("Release", mockAnyCtx, []string{"r-0", "r-2", "r-3"}).Return(errors.New("ignored")).Once()

	report := reportOf(
		models.Failed(models.OutcomeDecodeFailed, "envelope", "not json"),
		models.Persisted("B"),
		models.Failed(models.OutcomeSinkFailed, "sink", "timeout"),
		models.Failed(models.OutcomeNotProcessed, "batch", "batch timeout"),
	)
	summary := NewAcknowledger(q, fastAckPolicy(), logger.NopLogger()).Acknowledge(context.Background(), report)

	assert.Equal(t, AckSummary{BatchID: "batch-1", Acknowledged: 1, LeftForRedelivery: 3}, summary)
	q.AssertExpectations(t)
}
