package queue

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"fanout/internal/config"
	"fanout/internal/logger"
	"fanout/pkg/models"
)

const rabbitPollInterval = 200 * time.Millisecond

// amqpChannel is the subset of *amqp.Channel the queue uses.
type amqpChannel interface {
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple, requeue bool) error
	Close() error
}

// RabbitMQQueue pulls with basic.get. Unacknowledged deliveries stay with
// the broker until acked, nacked, or the channel closes; RabbitMQ has no
// visibility timeout.
type RabbitMQQueue struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel amqpChannel
	queue   string
	logger  logger.Logger
}

func ConnectionURL(cfg config.RabbitMQConfig) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + url.PathEscape(cfg.VHost),
	}
	if cfg.VHost == "" || cfg.VHost == "/" {
		u.Path = "/"
	}
	return u.String()
}

func DialRabbitMQ(cfg config.RabbitMQConfig, log logger.Logger) (*RabbitMQQueue, error) {
	amqpConfig := amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Vhost:     cfg.VHost,
		Properties: amqp.Table{
			"connection_name": "fanout-service",
		},
	}

	conn, err := amqp.DialConfig(ConnectionURL(cfg), amqpConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclarePassive(cfg.Queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue %s is not available: %w", cfg.Queue, err)
	}

	log.Infow("Connected to RabbitMQ",
		"host", cfg.Host,
		"port", cfg.Port,
		"vhost", cfg.VHost,
		"queue", cfg.Queue,
	)

	q := NewRabbitMQQueue(ch, cfg.Queue, log)
	q.conn = conn
	return q, nil
}

func NewRabbitMQQueue(ch amqpChannel, queue string, log logger.Logger) *RabbitMQQueue {
	return &RabbitMQQueue{channel: ch, queue: queue, logger: log}
}

func (q *RabbitMQQueue) Name() string {
	return "rabbitmq"
}

// Receive polls until at least one delivery arrives or WaitTime elapses.
func (q *RabbitMQQueue) Receive(ctx context.Context, opts ReceiveOptions) ([]models.TransportMessage, error) {
	max := opts.MaxMessages
	if max <= 0 {
		max = 1
	}
	deadline := time.Now().Add(opts.WaitTime)

	for {
		msgs, err := q.drain(max)
		if err != nil || len(msgs) > 0 || !time.Now().Before(deadline) {
			return msgs, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(rabbitPollInterval):
		}
	}
}

func (q *RabbitMQQueue) drain(max int) ([]models.TransportMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var msgs []models.TransportMessage
	for len(msgs) < max {
		d, ok, err := q.channel.Get(q.queue, false)
		if err != nil {
			return msgs, fmt.Errorf("basic.get on %s failed: %w", q.queue, err)
		}
		if !ok {
			break
		}
		msgs = append(msgs, fromDelivery(d))
	}
	return msgs, nil
}

func fromDelivery(d amqp.Delivery) models.TransportMessage {
	receipt := strconv.FormatUint(d.DeliveryTag, 10)

	deliveryCount := 1
	if n, ok := headerInt(d.Headers, "x-delivery-count"); ok {
		deliveryCount = int(n) + 1
	} else if d.Redelivered {
		deliveryCount = 2
	}

	attrs := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		attrs[k] = fmt.Sprint(v)
	}

	id := d.MessageId
	if id == "" {
		id = receipt
	}

	return models.TransportMessage{
		ID:            id,
		ReceiptToken:  receipt,
		Body:          d.Body,
		DeliveryCount: deliveryCount,
		Attributes:    attrs,
		ReceivedAt:    time.Now(),
	}
}

func headerInt(headers amqp.Table, key string) (int64, bool) {
	switch v := headers[key].(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

func (q *RabbitMQQueue) Acknowledge(_ context.Context, receipts []string) ([]AckFailure, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var failures []AckFailure
	for _, r := range receipts {
		tag, err := strconv.ParseUint(r, 10, 64)
		if err != nil {
			failures = append(failures, AckFailure{ReceiptToken: r, Code: AckCodeInvalidReceipt, Reason: err.Error(), SenderFault: true})
			continue
		}
		if err := q.channel.Ack(tag, false); err != nil {
			failures = append(failures, AckFailure{ReceiptToken: r, Code: AckCodeRequestFailed, Reason: err.Error()})
		}
	}
	return failures, nil
}

// Release requeues deliveries so the broker redelivers them.
func (q *RabbitMQQueue) Release(_ context.Context, receipts []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, r := range receipts {
		tag, err := strconv.ParseUint(r, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid receipt %q: %w", r, err)
		}
		if err := q.channel.Nack(tag, false, true); err != nil {
			return fmt.Errorf("nack %d failed: %w", tag, err)
		}
	}
	return nil
}

func (q *RabbitMQQueue) Close() error {
	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil && !q.conn.IsClosed() {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
