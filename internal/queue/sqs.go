package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"

	"fanout/internal/constants"
	"fanout/internal/logger"
	"fanout/pkg/models"
)

type SQSQueue struct {
	client   sqsiface.SQSAPI
	queueURL string
	logger   logger.Logger
	// releaseVisibility < 0 makes Release a no-op.
	releaseVisibility int64
}

func NewSQSQueue(client sqsiface.SQSAPI, queueURL string, releaseVisibilitySeconds int, log logger.Logger) *SQSQueue {
	return &SQSQueue{
		client:            client,
		queueURL:          queueURL,
		logger:            log,
		releaseVisibility: int64(releaseVisibilitySeconds),
	}
}

// ResolveQueueURL looks up the URL of a queue by name.
func ResolveQueueURL(ctx context.Context, client sqsiface.SQSAPI, name string) (string, error) {
	out, err := client.GetQueueUrlWithContext(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve queue url for %s: %w", name, err)
	}
	return aws.StringValue(out.QueueUrl), nil
}

func (q *SQSQueue) Name() string {
	return "sqs"
}

func (q *SQSQueue) Receive(ctx context.Context, opts ReceiveOptions) ([]models.TransportMessage, error) {
	max := opts.MaxMessages
	if max <= 0 || max > constants.SQSMaxBatchSize {
		max = constants.SQSMaxBatchSize
	}

	input := &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(q.queueURL),
		MaxNumberOfMessages:   aws.Int64(int64(max)),
		WaitTimeSeconds:       aws.Int64(int64(opts.WaitTime / time.Second)),
		AttributeNames:        aws.StringSlice([]string{sqs.MessageSystemAttributeNameApproximateReceiveCount}),
		MessageAttributeNames: aws.StringSlice([]string{sqs.QueueAttributeNameAll}),
	}
	if opts.VisibilityTimeout > 0 {
		input.VisibilityTimeout = aws.Int64(int64(opts.VisibilityTimeout / time.Second))
	}

	out, err := q.client.ReceiveMessageWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to receive from %s: %w", q.queueURL, err)
	}

	now := time.Now()
	msgs := make([]models.TransportMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, toTransportMessage(m, now))
	}
	return msgs, nil
}

func toTransportMessage(m *sqs.Message, receivedAt time.Time) models.TransportMessage {
	deliveryCount := 1
	if raw, ok := m.Attributes[sqs.MessageSystemAttributeNameApproximateReceiveCount]; ok {
		if n, err := strconv.Atoi(aws.StringValue(raw)); err == nil {
			deliveryCount = n
		}
	}

	attrs := make(map[string]string, len(m.MessageAttributes))
	for k, v := range m.MessageAttributes {
		if v != nil && v.StringValue != nil {
			attrs[k] = aws.StringValue(v.StringValue)
		}
	}

	return models.TransportMessage{
		ID:            aws.StringValue(m.MessageId),
		ReceiptToken:  aws.StringValue(m.ReceiptHandle),
		Body:          []byte(aws.StringValue(m.Body)),
		DeliveryCount: deliveryCount,
		Attributes:    attrs,
		ReceivedAt:    receivedAt,
	}
}

// Acknowledge deletes messages in batches of ten. Entries SQS reports as
// failed, and every entry of a batch whose call failed, are returned.
func (q *SQSQueue) Acknowledge(ctx context.Context, receipts []string) ([]AckFailure, error) {
	var failures []AckFailure
	var callErr error

	for _, batch := range chunk(receipts, constants.SQSMaxBatchSize) {
		entries := make([]*sqs.DeleteMessageBatchRequestEntry, len(batch))
		for i, r := range batch {
			entries[i] = &sqs.DeleteMessageBatchRequestEntry{
				Id:            aws.String(strconv.Itoa(i)),
				ReceiptHandle: aws.String(r),
			}
		}

		out, err := q.client.DeleteMessageBatchWithContext(ctx, &sqs.DeleteMessageBatchInput{
			QueueUrl: aws.String(q.queueURL),
			Entries:  entries,
		})
		if err != nil {
			callErr = fmt.Errorf("delete message batch failed: %w", err)
			failures = append(failures, failAll(batch, AckCodeRequestFailed, err.Error(), false)...)
			continue
		}

		for _, f := range out.Failed {
			idx, convErr := strconv.Atoi(aws.StringValue(f.Id))
			if convErr != nil || idx < 0 || idx >= len(batch) {
				q.logger.Warnw("SQS returned an unknown batch entry id", "id", aws.StringValue(f.Id))
				continue
			}
			failures = append(failures, AckFailure{
				ReceiptToken: batch[idx],
				Code:         aws.StringValue(f.Code),
				Reason:       aws.StringValue(f.Message),
				SenderFault:  aws.BoolValue(f.SenderFault),
			})
		}
	}

	return failures, callErr
}

// Release is a no-op unless a release visibility is configured, in which
// case the visibility timeout of every released message is reset to it.
func (q *SQSQueue) Release(ctx context.Context, receipts []string) error {
	if q.releaseVisibility < 0 || len(receipts) == 0 {
		return nil
	}

	for _, batch := range chunk(receipts, constants.SQSMaxBatchSize) {
		entries := make([]*sqs.ChangeMessageVisibilityBatchRequestEntry, len(batch))
		for i, r := range batch {
			entries[i] = &sqs.ChangeMessageVisibilityBatchRequestEntry{
				Id:                aws.String(strconv.Itoa(i)),
				ReceiptHandle:     aws.String(r),
				VisibilityTimeout: aws.Int64(q.releaseVisibility),
			}
		}

		out, err := q.client.ChangeMessageVisibilityBatchWithContext(ctx, &sqs.ChangeMessageVisibilityBatchInput{
			QueueUrl: aws.String(q.queueURL),
			Entries:  entries,
		})
		if err != nil {
			return fmt.Errorf("change message visibility batch failed: %w", err)
		}
		for _, f := range out.Failed {
			q.logger.WarnwCtx(ctx, "Failed to change message visibility",
				"id", aws.StringValue(f.Id),
				"code", aws.StringValue(f.Code),
				"reason", aws.StringValue(f.Message),
			)
		}
	}
	return nil
}

func (q *SQSQueue) Close() error {
	return nil
}
