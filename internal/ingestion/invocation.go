package ingestion

import (
	"context"
	"strconv"
	"time"

	"fanout/internal/logger"
	"fanout/pkg/metrics"
	"fanout/pkg/models"
)

// SQSEvent is the batch a hosting runtime delivers from an SQS event source.
type SQSEvent struct {
	Records []SQSEventRecord `json:"Records"`
}

type SQSEventRecord struct {
	MessageID         string                         `json:"messageId"`
	ReceiptHandle     string                         `json:"receiptHandle"`
	Body              string                         `json:"body"`
	Attributes        map[string]string              `json:"attributes"`
	MessageAttributes map[string]SQSMessageAttribute `json:"messageAttributes"`
	EventSource       string                         `json:"eventSource,omitempty"`
	EventSourceARN    string                         `json:"eventSourceARN,omitempty"`
}

type SQSMessageAttribute struct {
	StringValue *string `json:"stringValue,omitempty"`
	DataType    string  `json:"dataType"`
}

type BatchItemFailure struct {
	ItemIdentifier string `json:"itemIdentifier"`
}

// BatchResponse reports partial batch failures. The runtime deletes every
// record not listed.
type BatchResponse struct {
	BatchItemFailures []BatchItemFailure `json:"batchItemFailures"`
}

// InvocationHandler processes runtime-delivered batches. Acknowledgement is
// left to the runtime.
type InvocationHandler struct {
	coordinator *Coordinator
	logger      logger.Logger
}

func NewInvocationHandler(c *Coordinator, log logger.Logger) *InvocationHandler {
	return &InvocationHandler{coordinator: c, logger: log}
}

// Handle returns an error only when no record could be processed at all, in
// which case the runtime retries the whole batch.
func (h *InvocationHandler) Handle(ctx context.Context, source string, event SQSEvent) (BatchResponse, error) {
	msgs := make([]models.TransportMessage, len(event.Records))
	for i, r := range event.Records {
		msgs[i] = r.toTransportMessage()
	}

	report, err := h.coordinator.ProcessBatch(WithSource(ctx, source), msgs)
	if err != nil {
		metrics.IncInvocation(source, "error")
		return BatchResponse{}, err
	}

	resp := BatchResponse{BatchItemFailures: []BatchItemFailure{}}
	for _, e := range report.Entries {
		if !e.Outcome.Persisted() {
			resp.BatchItemFailures = append(resp.BatchItemFailures, BatchItemFailure{ItemIdentifier: e.Message.ID})
		}
	}

	counts := report.Counts()
	h.logger.InfowCtx(ctx, "Batch completed",
		"batch_id", report.BatchID,
		"persisted", counts.Persisted,
		"failed", counts.Failed,
		"not_processed", counts.NotProcessed,
		"left_for_redelivery", len(resp.BatchItemFailures),
	)

	status := "success"
	if len(resp.BatchItemFailures) > 0 {
		status = "partial_failure"
	}
	metrics.IncInvocation(source, status)
	return resp, nil
}

func (r SQSEventRecord) toTransportMessage() models.TransportMessage {
	deliveryCount := 1
	if n, err := strconv.Atoi(r.Attributes["ApproximateReceiveCount"]); err == nil {
		deliveryCount = n
	}

	attrs := make(map[string]string, len(r.MessageAttributes))
	for k, v := range r.MessageAttributes {
		if v.StringValue != nil {
			attrs[k] = *v.StringValue
		}
	}

	return models.TransportMessage{
		ID:            r.MessageID,
		ReceiptToken:  r.ReceiptHandle,
		Body:          []byte(r.Body),
		DeliveryCount: deliveryCount,
		Attributes:    attrs,
		ReceivedAt:    time.Now(),
	}
}
