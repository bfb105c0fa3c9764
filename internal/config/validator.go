package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	EnvelopeFormatSNS = "sns"
	EnvelopeFormatRaw = "raw"
)

const (
	QueueTypeSQS      = "sqs"
	QueueTypeRabbitMQ = "rabbitmq"
	QueueTypeKafka    = "kafka"
	QueueTypeMemory   = "memory"
)

const (
	sqsMaxWaitTime          = 20 * time.Second
	sqsMaxVisibilityTimeout = 12 * time.Hour
)

const (
	SinkTypeDynamoDB = "dynamodb"
	SinkTypePostgres = "postgres"
	SinkTypeSQLite   = "sqlite"
	SinkTypeMongoDB  = "mongodb"
	SinkTypeRedis    = "redis"
	SinkTypeMemory   = "memory"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateQueue(cfg.Queue, cfg.AWS); err != nil {
		errs = append(errs, err)
	}

	if err := validateSink(cfg.Sink, cfg.AWS); err != nil {
		errs = append(errs, err)
	}

	if err := validatePipeline(cfg.Pipeline); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateQueue(cfg QueueConfig, aws AWSConfig) error {
	if cfg.MaxMessages < 1 {
		return &ValidationError{
			Field:   "queue.max_messages",
			Message: "max_messages must be at least 1",
		}
	}

	if cfg.WaitTime < 0 || cfg.VisibilityTimeout < 0 {
		return &ValidationError{
			Field:   "queue.wait_time",
			Message: "wait_time and visibility_timeout must be non-negative",
		}
	}

	switch cfg.Type {
	case QueueTypeSQS:
		if cfg.MaxMessages > 10 {
			return &ValidationError{
				Field:   "queue.max_messages",
				Message: fmt.Sprintf("SQS allows at most 10 messages per receive, got %d", cfg.MaxMessages),
			}
		}
		if cfg.SQS.QueueURL == "" && cfg.SQS.QueueName == "" {
			return &ValidationError{
				Field:   "queue.sqs.queue_url",
				Message: "queue_url or queue_name is required",
			}
		}
		if aws.Region == "" {
			return &ValidationError{
				Field:   "aws.region",
				Message: "AWS region is required for the SQS queue",
			}
		}
		return validateSQSTimings(cfg)
	case QueueTypeRabbitMQ:
		return validateRabbitMQ(cfg.RabbitMQ)
	case QueueTypeKafka:
		return validateKafka(cfg.Kafka)
	case QueueTypeMemory:
		if cfg.Memory.MaxReceiveCount < 0 {
			return &ValidationError{
				Field:   "queue.memory.max_receive_count",
				Message: "max_receive_count must be non-negative",
			}
		}
	case "":
		return &ValidationError{
			Field:   "queue.type",
			Message: "queue type is required",
		}
	default:
		return &ValidationError{
			Field:   "queue.type",
			Message: fmt.Sprintf("unknown queue type: %s (supported: sqs, rabbitmq, kafka, memory)", cfg.Type),
		}
	}

	return nil
}

// SQS takes both timings in whole seconds. A zero visibility timeout keeps
// the queue's own default.
func validateSQSTimings(cfg QueueConfig) error {
	if cfg.WaitTime > sqsMaxWaitTime {
		return &ValidationError{
			Field:   "queue.wait_time",
			Message: fmt.Sprintf("SQS allows a wait_time of at most %s, got %s", sqsMaxWaitTime, cfg.WaitTime),
		}
	}
	if cfg.WaitTime%time.Second != 0 {
		return &ValidationError{
			Field:   "queue.wait_time",
			Message: fmt.Sprintf("SQS wait_time must be a whole number of seconds, got %s", cfg.WaitTime),
		}
	}

	if cfg.VisibilityTimeout == 0 {
		return nil
	}
	if cfg.VisibilityTimeout < time.Second || cfg.VisibilityTimeout > sqsMaxVisibilityTimeout {
		return &ValidationError{
			Field:   "queue.visibility_timeout",
			Message: fmt.Sprintf("SQS visibility_timeout must be between 1s and %s, got %s", sqsMaxVisibilityTimeout, cfg.VisibilityTimeout),
		}
	}
	if cfg.VisibilityTimeout%time.Second != 0 {
		return &ValidationError{
			Field:   "queue.visibility_timeout",
			Message: fmt.Sprintf("SQS visibility_timeout must be a whole number of seconds, got %s", cfg.VisibilityTimeout),
		}
	}

	return nil
}

// Warnings reports settings that are valid but likely to cause redelivery
// of messages that are still being processed.
func Warnings(cfg *Config) []string {
	var out []string
	if cfg.Queue.VisibilityTimeout > 0 && cfg.Pipeline.BatchTimeout >= cfg.Queue.VisibilityTimeout {
		out = append(out, fmt.Sprintf(
			"pipeline.batch_timeout (%s) is not below queue.visibility_timeout (%s); messages may be redelivered while still in flight",
			cfg.Pipeline.BatchTimeout, cfg.Queue.VisibilityTimeout))
	}
	return out
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "queue.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("queue.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "queue.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.Topic == "" {
		return &ValidationError{
			Field:   "queue.kafka.topic",
			Message: "Kafka topic is required",
		}
	}

	if cfg.MaxReceiveCount < 0 {
		return &ValidationError{
			Field:   "queue.kafka.max_receive_count",
			Message: "max_receive_count must be non-negative",
		}
	}

	return nil
}

func validateRabbitMQ(cfg RabbitMQConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "queue.rabbitmq.host",
			Message: "RabbitMQ host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "queue.rabbitmq.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.Queue == "" {
		return &ValidationError{
			Field:   "queue.rabbitmq.queue",
			Message: "RabbitMQ queue name is required",
		}
	}

	return nil
}

func validateSink(cfg SinkConfig, aws AWSConfig) error {
	if cfg.Table == "" {
		return &ValidationError{
			Field:   "sink.table",
			Message: "target table is required",
		}
	}

	if err := validateRetry("sink.retry", cfg.Retry); err != nil {
		return err
	}

	switch cfg.Type {
	case SinkTypeDynamoDB:
		if aws.Region == "" {
			return &ValidationError{
				Field:   "aws.region",
				Message: "AWS region is required for the DynamoDB sink",
			}
		}
	case SinkTypePostgres:
		return validatePostgres(cfg.Postgres)
	case SinkTypeSQLite:
		if cfg.SQLite.Path == "" {
			return &ValidationError{
				Field:   "sink.sqlite.path",
				Message: "SQLite path is required",
			}
		}
	case SinkTypeMongoDB:
		return validateMongoDB(cfg.MongoDB)
	case SinkTypeRedis:
		return validateRedis(cfg.Redis)
	case SinkTypeMemory:
	case "":
		return &ValidationError{
			Field:   "sink.type",
			Message: "sink type is required",
		}
	default:
		return &ValidationError{
			Field:   "sink.type",
			Message: fmt.Sprintf("unknown sink type: %s (supported: dynamodb, postgres, sqlite, mongodb, redis, memory)", cfg.Type),
		}
	}

	return nil
}

func validateRetry(field string, cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return &ValidationError{
			Field:   field + ".max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.InitialInterval < 0 {
		return &ValidationError{
			Field:   field + ".initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.MaxInterval < 0 {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.MaxAttempts > 0 && cfg.Multiplier <= 0 {
		return &ValidationError{
			Field:   field + ".multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "sink.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "sink.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "sink.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "sink.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "sink.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "sink.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "sink.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if cfg.URI == "" {
		return &ValidationError{
			Field:   "sink.mongodb.uri",
			Message: "MongoDB URI is required",
		}
	}

	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "sink.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "sink.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

func validatePipeline(cfg PipelineConfig) error {
	if len(cfg.AllowedTypes) == 0 {
		return &ValidationError{
			Field:   "pipeline.allowed_types",
			Message: "at least one allowed type is required",
		}
	}

	for i, t := range cfg.AllowedTypes {
		if strings.TrimSpace(t) == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("pipeline.allowed_types[%d]", i),
				Message: "allowed type cannot be empty",
			}
		}
	}

	if cfg.TypeField == "" || cfg.KeyField == "" || cfg.KeySourceField == "" {
		return &ValidationError{
			Field:   "pipeline.key_field",
			Message: "type_field, key_field and key_source_field must be set",
		}
	}

	if cfg.EnvelopeFormat != EnvelopeFormatSNS && cfg.EnvelopeFormat != EnvelopeFormatRaw {
		return &ValidationError{
			Field:   "pipeline.envelope_format",
			Message: fmt.Sprintf("invalid envelope format: %s (valid: sns, raw)", cfg.EnvelopeFormat),
		}
	}

	if cfg.Concurrency < 1 {
		return &ValidationError{
			Field:   "pipeline.concurrency",
			Message: "concurrency must be at least 1",
		}
	}

	if cfg.BatchTimeout < 0 {
		return &ValidationError{
			Field:   "pipeline.batch_timeout",
			Message: "batch_timeout must be non-negative",
		}
	}

	for i, rule := range cfg.Rules {
		if rule.Name == "" || rule.Expression == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("pipeline.rules[%d]", i),
				Message: "rule name and expression are required",
			}
		}
	}

	return validateRetry("pipeline.ack_retry", cfg.AckRetry)
}
