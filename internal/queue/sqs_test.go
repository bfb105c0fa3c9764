package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanout/internal/logger"
)

type fakeSQS struct {
	sqsiface.SQSAPI

	receiveInput  *sqs.ReceiveMessageInput
	receiveOutput *sqs.ReceiveMessageOutput

	deleteCalls [][]string
	// failDelete maps receipt handles to the error code SQS reports for them.
	failDelete map[string]string
	deleteErr  error

	visibilityCalls []*sqs.ChangeMessageVisibilityBatchInput
}

func (f *fakeSQS) ReceiveMessageWithContext(_ aws.Context, in *sqs.ReceiveMessageInput, _ ...request.Option) (*sqs.ReceiveMessageOutput, error) {
	f.receiveInput = in
	if f.receiveOutput == nil {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	return f.receiveOutput, nil
}

func (f *fakeSQS) DeleteMessageBatchWithContext(_ aws.Context, in *sqs.DeleteMessageBatchInput, _ ...request.Option) (*sqs.DeleteMessageBatchOutput, error) {
	var handles []string
	out := &sqs.DeleteMessageBatchOutput{}
	for _, e := range in.Entries {
		h := aws.StringValue(e.ReceiptHandle)
		handles = append(handles, h)
		if code, ok := f.failDelete[h]; ok {
			out.Failed = append(out.Failed, &sqs.BatchResultErrorEntry{
				Id:          e.Id,
				Code:        aws.String(code),
				Message:     aws.String("rejected"),
				SenderFault: aws.Bool(true),
			})
			continue
		}
		out.Successful = append(out.Successful, &sqs.DeleteMessageBatchResultEntry{Id: e.Id})
	}
	f.deleteCalls = append(f.deleteCalls, handles)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return out, nil
}

func (f *fakeSQS) ChangeMessageVisibilityBatchWithContext(_ aws.Context, in *sqs.ChangeMessageVisibilityBatchInput, _ ...request.Option) (*sqs.ChangeMessageVisibilityBatchOutput, error) {
	f.visibilityCalls = append(f.visibilityCalls, in)
	return &sqs.ChangeMessageVisibilityBatchOutput{}, nil
}

func (f *fakeSQS) GetQueueUrlWithContext(_ aws.Context, in *sqs.GetQueueUrlInput, _ ...request.Option) (*sqs.GetQueueUrlOutput, error) {
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String("https://sqs.local/000000000000/" + aws.StringValue(in.QueueName))}, nil
}

func receipts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("rh-%d", i)
	}
	return out
}

func TestSQSQueue_Receive(t *testing.T) {
	client := &fakeSQS{receiveOutput: &sqs.ReceiveMessageOutput{
		Messages: []*sqs.Message{{
			MessageId:     aws.String("m-1"),
			ReceiptHandle: aws.String("rh-1"),
			Body:          aws.String(`{"Message":"{}"}`),
			Attributes: map[string]*string{
				sqs.MessageSystemAttributeNameApproximateReceiveCount: aws.String("3"),
			},
			MessageAttributes: map[string]*sqs.MessageAttributeValue{
				"traceparent": {DataType: aws.String("String"), StringValue: aws.String("00-abc")},
				"blob":        {DataType: aws.String("Binary"), BinaryValue: []byte{1}},
			},
		}},
	}}
	q := NewSQSQueue(client, "https://sqs.local/q", -1, logger.NopLogger())

	msgs, err := q.Receive(context.Background(), ReceiveOptions{MaxMessages: 50, WaitTime: 20 * time.Second, VisibilityTimeout: 45 * time.Second})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	assert.Equal(t, int64(10), aws.Int64Value(client.receiveInput.MaxNumberOfMessages))
	assert.Equal(t, int64(20), aws.Int64Value(client.receiveInput.WaitTimeSeconds))
	assert.Equal(t, int64(45), aws.Int64Value(client.receiveInput.VisibilityTimeout))

	m := msgs[0]
	assert.Equal(t, "m-1", m.ID)
	assert.Equal(t, "rh-1", m.ReceiptToken)
	assert.Equal(t, 3, m.DeliveryCount)
	assert.Equal(t, map[string]string{"traceparent": "00-abc"}, m.Attributes)
}

func TestSQSQueue_AcknowledgeChunksAndMapsFailures(t *testing.T) {
	all := receipts(23)
	client := &fakeSQS{failDelete: map[string]string{"rh-4": AckCodeInvalidReceipt, "rh-17": AckCodeInvalidReceipt}}
	q := NewSQSQueue(client, "https://sqs.local/q", -1, logger.NopLogger())

	failures, err := q.Acknowledge(context.Background(), all)
	require.NoError(t, err)

	require.Len(t, client.deleteCalls, 3)
	assert.Len(t, client.deleteCalls[0], 10)
	assert.Len(t, client.deleteCalls[1], 10)
	assert.Len(t, client.deleteCalls[2], 3)

	require.Len(t, failures, 2)
	assert.Equal(t, "rh-4", failures[0].ReceiptToken)
	assert.Equal(t, "rh-17", failures[1].ReceiptToken)
	assert.Equal(t, AckCodeInvalidReceipt, failures[0].Code)
	assert.True(t, failures[0].SenderFault)
}

func TestSQSQueue_AcknowledgeCallErrorFailsWholeBatch(t *testing.T) {
	client := &fakeSQS{deleteErr: errors.New("throttled")}
	q := NewSQSQueue(client, "https://sqs.local/q", -1, logger.NopLogger())

	failures, err := q.Acknowledge(context.Background(), receipts(3))
	require.Error(t, err)
	require.Len(t, failures, 3)
	for _, f := range failures {
		assert.Equal(t, AckCodeRequestFailed, f.Code)
		assert.False(t, f.SenderFault)
	}
}

func TestSQSQueue_Release(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		client := &fakeSQS{}
		q := NewSQSQueue(client, "https://sqs.local/q", -1, logger.NopLogger())
		require.NoError(t, q.Release(context.Background(), receipts(2)))
		assert.Empty(t, client.visibilityCalls)
	})

	t.Run("resets visibility", func(t *testing.T) {
		client := &fakeSQS{}
		q := NewSQSQueue(client, "https://sqs.local/q", 0, logger.NopLogger())
		require.NoError(t, q.Release(context.Background(), receipts(12)))
		require.Len(t, client.visibilityCalls, 2)
		first := client.visibilityCalls[0]
		assert.Len(t, first.Entries, 10)
		assert.Equal(t, int64(0), aws.Int64Value(first.Entries[0].VisibilityTimeout))
	})
}

func TestResolveQueueURL(t *testing.T) {
	url, err := ResolveQueueURL(context.Background(), &fakeSQS{}, "orders")
	require.NoError(t, err)
	assert.Equal(t, "https://sqs.local/000000000000/orders", url)
}
