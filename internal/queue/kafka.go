package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"fanout/internal/config"
	"fanout/internal/constants"
	"fanout/internal/logger"
	"fanout/pkg/metrics"
	"fanout/pkg/models"
	"fanout/pkg/tracing"
)

type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaQueue consumes a topic as a consumer-group member and emulates
// per-message acknowledgement on top of cumulative offset commits.
type KafkaQueue struct {
	reader          kafkaReader
	dlq             kafkaWriter
	dlqTopic        string
	maxReceiveCount int
	tracker         *inflightTracker
	logger          logger.Logger
	now             func() time.Time
}

func NewKafkaQueue(cfg config.KafkaConfig, log logger.Logger) *KafkaQueue {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        constants.KafkaFetchMaxWait,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})

	var dlq kafkaWriter
	if cfg.DLQTopic != "" {
		dlq = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.DLQTopic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: constants.KafkaCommitTimeout,
		}
	}

	log.Infow("Created Kafka reader",
		"topic", cfg.Topic,
		"brokers", cfg.Brokers,
		"group_id", cfg.GroupID,
		"dlq_topic", cfg.DLQTopic,
	)

	return newKafkaQueue(reader, dlq, cfg.DLQTopic, cfg.MaxReceiveCount, log)
}

func newKafkaQueue(reader kafkaReader, dlq kafkaWriter, dlqTopic string, maxReceiveCount int, log logger.Logger) *KafkaQueue {
	return &KafkaQueue{
		reader:          reader,
		dlq:             dlq,
		dlqTopic:        dlqTopic,
		maxReceiveCount: maxReceiveCount,
		tracker:         newInflightTracker(),
		logger:          log,
		now:             time.Now,
	}
}

func (q *KafkaQueue) Name() string {
	return "kafka"
}

// Receive returns expired in-flight records first, then fetches new ones.
// It blocks up to WaitTime for the first record and lingers briefly for
// more once one has arrived.
func (q *KafkaQueue) Receive(ctx context.Context, opts ReceiveOptions) ([]models.TransportMessage, error) {
	max := opts.MaxMessages
	if max <= 0 {
		max = 1
	}
	visibility := opts.VisibilityTimeout
	if visibility <= 0 {
		visibility = defaultVisibilityTimeout
	}

	var out []models.TransportMessage
	for _, e := range q.tracker.redeliver(q.now(), max, visibility) {
		if q.maxReceiveCount > 0 && e.deliveries > q.maxReceiveCount {
			q.deadLetter(ctx, e)
			continue
		}
		out = append(out, toKafkaTransport(e, q.now()))
	}

	wait := opts.WaitTime
	if wait <= 0 {
		wait = constants.KafkaFetchMaxWait
	}
	for len(out) < max {
		if len(out) > 0 && wait > constants.KafkaFetchMaxWait {
			wait = constants.KafkaFetchMaxWait
		}

		fetchCtx, cancel := context.WithTimeout(ctx, wait)
		m, err := q.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return out, fmt.Errorf("kafka fetch failed: %w", err)
		}

		e := q.tracker.add(m, q.now(), visibility)
		out = append(out, toKafkaTransport(e, q.now()))
	}

	return out, nil
}

func toKafkaTransport(e *inflightEntry, receivedAt time.Time) models.TransportMessage {
	return models.TransportMessage{
		ID:            fmt.Sprintf("%s-%d-%d", e.msg.Topic, e.msg.Partition, e.msg.Offset),
		ReceiptToken:  e.receipt,
		Body:          e.msg.Value,
		DeliveryCount: e.deliveries,
		Attributes:    tracing.KafkaHeadersToAttributes(e.msg.Headers),
		ReceivedAt:    receivedAt,
	}
}

// deadLetter removes a record that exceeded the receive limit, writing it
// to the DLQ topic when one is configured. The DLQ record carries the trace
// context of ctx in place of the original one.
func (q *KafkaQueue) deadLetter(ctx context.Context, e *inflightEntry) {
	if q.dlq != nil {
		trace := tracing.InjectIntoAttributes(ctx, nil)
		headers := make([]kafka.Header, 0, len(e.msg.Headers)+len(trace)+4)
		for _, h := range e.msg.Headers {
			if _, replaced := trace[h.Key]; !replaced {
				headers = append(headers, h)
			}
		}
		for k, v := range trace {
			headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
		}
		headers = append(headers,
			kafka.Header{Key: "x-source-topic", Value: []byte(e.msg.Topic)},
			kafka.Header{Key: "x-source-partition", Value: []byte(strconv.Itoa(e.msg.Partition))},
			kafka.Header{Key: "x-source-offset", Value: []byte(strconv.FormatInt(e.msg.Offset, 10))},
			kafka.Header{Key: "x-delivery-count", Value: []byte(strconv.Itoa(e.deliveries - 1))},
		)
		err := q.dlq.WriteMessages(ctx, kafka.Message{
			Key:     e.msg.Key,
			Value:   e.msg.Value,
			Headers: headers,
		})
		if err != nil {
			q.logger.ErrorwCtx(ctx, "Failed to write record to DLQ, will retry after visibility timeout",
				"error", err,
				"dlq_topic", q.dlqTopic,
				"offset", e.msg.Offset,
			)
			return
		}
	} else {
		q.logger.WarnwCtx(ctx, "Dropping record that exceeded max receive count, no DLQ topic configured",
			"topic", e.msg.Topic,
			"partition", e.msg.Partition,
			"offset", e.msg.Offset,
		)
	}

	metrics.IncDeadLettered(q.Name())
	q.tracker.ack(e.receipt)
}

func (q *KafkaQueue) Acknowledge(ctx context.Context, receipts []string) ([]AckFailure, error) {
	var failures []AckFailure
	for _, r := range receipts {
		if !q.tracker.ack(r) {
			failures = append(failures, AckFailure{
				ReceiptToken: r,
				Code:         AckCodeInvalidReceipt,
				Reason:       "receipt is unknown or expired",
				SenderFault:  true,
			})
		}
	}

	return failures, q.commit(ctx)
}

func (q *KafkaQueue) commit(ctx context.Context) error {
	msgs := q.tracker.committable()
	if len(msgs) == 0 {
		return nil
	}

	commitCtx, cancel := context.WithTimeout(ctx, constants.KafkaCommitTimeout)
	defer cancel()

	// Acks stay recorded on failure and are committed by a later call.
	if err := q.reader.CommitMessages(commitCtx, msgs...); err != nil {
		return fmt.Errorf("kafka commit failed: %w", err)
	}
	q.tracker.committed(msgs)
	return nil
}

// Release makes the records behind receipts eligible for redelivery on the
// next Receive.
func (q *KafkaQueue) Release(_ context.Context, receipts []string) error {
	now := q.now()
	for _, r := range receipts {
		if !q.tracker.release(r, now) {
			return fmt.Errorf("release of unknown receipt %s", r)
		}
	}
	return nil
}

func (q *KafkaQueue) Close() error {
	var errs []error
	if err := q.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("reader close error: %w", err))
	}
	if q.dlq != nil {
		if err := q.dlq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("dlq writer close error: %w", err))
		}
	}
	return errors.Join(errs...)
}
