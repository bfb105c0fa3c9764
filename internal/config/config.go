package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	AWS            AWSConfig
	Queue          QueueConfig
	Sink           SinkConfig
	Pipeline       PipelineConfig
	API            APIConfig
	Logging        LoggingConfig
	CircuitBreaker CircuitBreakerConfig
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

// AWSConfig is shared by the SQS queue and the DynamoDB sink. Credentials
// come from the SDK default chain.
type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

type QueueConfig struct {
	Type              string         `mapstructure:"type"`
	MaxMessages       int            `mapstructure:"max_messages"`
	WaitTime          time.Duration  `mapstructure:"wait_time"`
	VisibilityTimeout time.Duration  `mapstructure:"visibility_timeout"`
	IdleBackoff       time.Duration  `mapstructure:"idle_backoff"`
	SQS               SQSConfig      `mapstructure:"sqs"`
	RabbitMQ          RabbitMQConfig `mapstructure:"rabbitmq"`
	Kafka             KafkaConfig    `mapstructure:"kafka"`
	Memory            MemoryConfig   `mapstructure:"memory"`
}

type SQSConfig struct {
	QueueURL  string `mapstructure:"queue_url"`
	QueueName string `mapstructure:"queue_name"`
	// ReleaseVisibilitySeconds, when >= 0, resets the visibility timeout of
	// released messages. Negative leaves them invisible until the receive
	// visibility timeout expires.
	ReleaseVisibilitySeconds int `mapstructure:"release_visibility_seconds"`
}

type RabbitMQConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	VHost    string `mapstructure:"vhost"`
	Queue    string `mapstructure:"queue"`
}

type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	Topic           string   `mapstructure:"topic"`
	DLQTopic        string   `mapstructure:"dlq_topic"`
	MaxReceiveCount int      `mapstructure:"max_receive_count"`
}

type MemoryConfig struct {
	MaxReceiveCount int `mapstructure:"max_receive_count"`
}

type SinkConfig struct {
	Type     string         `mapstructure:"type"`
	Table    string         `mapstructure:"table"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Retry    RetryConfig    `mapstructure:"retry"`
	// RunMigrations applies the embedded schema on start for SQL sinks.
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type PipelineConfig struct {
	AllowedTypes   []string      `mapstructure:"allowed_types"`
	TypeField      string        `mapstructure:"type_field"`
	KeyField       string        `mapstructure:"key_field"`
	KeySourceField string        `mapstructure:"key_source_field"`
	EnvelopeFormat string        `mapstructure:"envelope_format"` // "sns" (default) or "raw"
	Concurrency    int           `mapstructure:"concurrency"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
	Rules          []RuleConfig  `mapstructure:"rules"`
	AckRetry       RetryConfig   `mapstructure:"ack_retry"`
}

// RuleConfig is an extra CEL predicate a payload must satisfy.
type RuleConfig struct {
	Name       string `mapstructure:"name"`
	Expression string `mapstructure:"expression"`
}

type APIConfig struct {
	Enabled   bool            `mapstructure:"enabled"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
