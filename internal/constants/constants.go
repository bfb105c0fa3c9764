package constants

import "time"

const (
	ServiceName = "fanout-service"
)

const (
	KafkaCommitTimeout = 10 * time.Second
	KafkaFetchMaxWait  = 500 * time.Millisecond
)

// SQSMaxBatchSize is the largest batch SQS accepts for receive and delete calls.
const SQSMaxBatchSize = 10

const (
	DefaultTypeField      = "type"
	DefaultKeyField       = "code"
	DefaultKeySourceField = "item"
)

const (
	StageEnvelope  = "envelope"
	StagePayload   = "payload"
	StageValidate  = "validate"
	StageTransform = "transform"
	StageSink      = "sink"
	StageBatch     = "batch"
)

const (
	DefaultMongoDBName = "fanout"
	RecordsTableName   = "fanout_records"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultTruncateLen = 100
)

const (
	HealthCheckTimeout = 2 * time.Second
)
