package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", 10)
	viper.SetDefault("server.write_timeout_seconds", 10)

	viper.SetDefault("queue.type", "sqs")
	viper.SetDefault("queue.max_messages", 10)
	viper.SetDefault("queue.wait_time", 20*time.Second)
	viper.SetDefault("queue.visibility_timeout", 30*time.Second)
	viper.SetDefault("queue.idle_backoff", time.Second)
	viper.SetDefault("queue.sqs.release_visibility_seconds", -1)
	viper.SetDefault("queue.rabbitmq.port", 5672)
	viper.SetDefault("queue.rabbitmq.vhost", "/")

	viper.SetDefault("sink.type", "dynamodb")
	viper.SetDefault("sink.retry.max_attempts", 3)
	viper.SetDefault("sink.retry.initial_interval", 100*time.Millisecond)
	viper.SetDefault("sink.retry.max_interval", 2*time.Second)
	viper.SetDefault("sink.retry.multiplier", 2.0)
	viper.SetDefault("sink.postgres.sslmode", "disable")

	viper.SetDefault("pipeline.type_field", "type")
	viper.SetDefault("pipeline.key_field", "code")
	viper.SetDefault("pipeline.key_source_field", "item")
	viper.SetDefault("pipeline.envelope_format", EnvelopeFormatSNS)
	viper.SetDefault("pipeline.concurrency", 1)
	viper.SetDefault("pipeline.batch_timeout", 25*time.Second)
	viper.SetDefault("pipeline.ack_retry.max_attempts", 3)
	viper.SetDefault("pipeline.ack_retry.initial_interval", 200*time.Millisecond)
	viper.SetDefault("pipeline.ack_retry.max_interval", 2*time.Second)
	viper.SetDefault("pipeline.ack_retry.multiplier", 2.0)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", 60*time.Second)
	viper.SetDefault("circuit_breaker.timeout", 30*time.Second)
	viper.SetDefault("circuit_breaker.failure_ratio", 0.6)
	viper.SetDefault("circuit_breaker.min_requests", 3)

	viper.SetDefault("tracing.service_name", "fanout-service")
	viper.SetDefault("tracing.sampler.type", "always_on")
}

func bindEnvVariables() {
	viper.BindEnv("aws.region", "AWS_REGION")
	viper.BindEnv("aws.endpoint", "AWS_ENDPOINT_URL")

	viper.BindEnv("queue.type", "QUEUE_TYPE")
	viper.BindEnv("queue.sqs.queue_url", "QUEUE_SQS_QUEUE_URL")
	viper.BindEnv("queue.sqs.queue_name", "QUEUE_SQS_QUEUE_NAME")
	viper.BindEnv("queue.rabbitmq.host", "QUEUE_RABBITMQ_HOST")
	viper.BindEnv("queue.rabbitmq.port", "QUEUE_RABBITMQ_PORT")
	viper.BindEnv("queue.rabbitmq.user", "QUEUE_RABBITMQ_USER")
	viper.BindEnv("queue.rabbitmq.password", "QUEUE_RABBITMQ_PASSWORD")
	viper.BindEnv("queue.rabbitmq.queue", "QUEUE_RABBITMQ_QUEUE")
	viper.BindEnv("queue.kafka.group_id", "QUEUE_KAFKA_GROUP_ID")
	viper.BindEnv("queue.kafka.topic", "QUEUE_KAFKA_TOPIC")
	viper.BindEnv("queue.kafka.dlq_topic", "QUEUE_KAFKA_DLQ_TOPIC")

	viper.BindEnv("sink.type", "SINK_TYPE")
	viper.BindEnv("sink.postgres.host", "SINK_POSTGRES_HOST")
	viper.BindEnv("sink.postgres.port", "SINK_POSTGRES_PORT")
	viper.BindEnv("sink.postgres.user", "SINK_POSTGRES_USER")
	viper.BindEnv("sink.postgres.password", "SINK_POSTGRES_PASSWORD")
	viper.BindEnv("sink.postgres.dbname", "SINK_POSTGRES_DBNAME")
	viper.BindEnv("sink.postgres.sslmode", "SINK_POSTGRES_SSLMODE")
	viper.BindEnv("sink.sqlite.path", "SINK_SQLITE_PATH")
	viper.BindEnv("sink.redis.host", "SINK_REDIS_HOST")
	viper.BindEnv("sink.redis.port", "SINK_REDIS_PORT")
	viper.BindEnv("sink.redis.password", "SINK_REDIS_PASSWORD")
	viper.BindEnv("sink.mongodb.uri", "SINK_MONGODB_URI")
	viper.BindEnv("sink.mongodb.database", "SINK_MONGODB_DATABASE")

	viper.BindEnv("pipeline.concurrency", "PIPELINE_CONCURRENCY")
	viper.BindEnv("pipeline.envelope_format", "PIPELINE_ENVELOPE_FORMAT")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("QUEUE_KAFKA_BROKERS"); brokersEnv != "" {
		if brokers := splitList(brokersEnv); len(brokers) > 0 {
			cfg.Queue.Kafka.Brokers = brokers
		}
	}

	if typesEnv := viper.GetString("PIPELINE_ALLOWED_TYPES"); typesEnv != "" {
		if types := splitList(typesEnv); len(types) > 0 {
			cfg.Pipeline.AllowedTypes = types
		}
	}

	// TABLE_NAME is what function runtimes conventionally inject.
	if table := viper.GetString("SINK_TABLE"); table != "" {
		cfg.Sink.Table = table
	} else if table := viper.GetString("TABLE_NAME"); table != "" {
		cfg.Sink.Table = table
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
