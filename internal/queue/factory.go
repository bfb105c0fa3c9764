package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"

	"fanout/internal/config"
	"fanout/internal/logger"
)

// New builds the queue selected by cfg.Type. sess is only used by SQS and
// may be nil for other types.
func New(ctx context.Context, cfg config.QueueConfig, sess *session.Session, log logger.Logger) (Queue, error) {
	switch cfg.Type {
	case config.QueueTypeSQS:
		if sess == nil {
			return nil, fmt.Errorf("sqs queue requires an AWS session")
		}
		client := sqs.New(sess)
		queueURL := cfg.SQS.QueueURL
		if queueURL == "" {
			var err error
			if queueURL, err = ResolveQueueURL(ctx, client, cfg.SQS.QueueName); err != nil {
				return nil, err
			}
		}
		return NewSQSQueue(client, queueURL, cfg.SQS.ReleaseVisibilitySeconds, log), nil
	case config.QueueTypeRabbitMQ:
		return DialRabbitMQ(cfg.RabbitMQ, log)
	case config.QueueTypeKafka:
		return NewKafkaQueue(cfg.Kafka, log), nil
	case config.QueueTypeMemory:
		return NewMemoryQueue(cfg.Memory.MaxReceiveCount), nil
	default:
		return nil, fmt.Errorf("unknown queue type: %s", cfg.Type)
	}
}
