package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_messages_total",
			Help: "Total number of messages processed, by outcome (count)",
		},
		[]string{"outcome", "stage"},
	)

	MessageProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fanout_message_processing_duration_ms",
			Help:    "Per-message pipeline duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"outcome"},
	)

	BatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fanout_batch_duration_ms",
			Help:    "Batch processing duration in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"source"},
	)

	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fanout_batch_size",
			Help:    "Number of messages per batch (count)",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	AcksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_acks_total",
			Help: "Total number of delivery acknowledgements, by status (count)",
		},
		[]string{"queue", "status"},
	)

	QueueReceiveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fanout_queue_receive_duration_ms",
			Help:    "Duration of queue receive calls in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 20000},
		},
		[]string{"queue"},
	)

	QueueMessagesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_queue_messages_received_total",
			Help: "Total number of messages received from the queue (count)",
		},
		[]string{"queue"},
	)

	QueueDeadLetteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_queue_dead_lettered_total",
			Help: "Total number of messages moved to a dead-letter list (count)",
		},
		[]string{"queue"},
	)

	SinkWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_sink_writes_total",
			Help: "Total number of sink upserts (count)",
		},
		[]string{"sink", "status"},
	)

	SinkWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fanout_sink_write_duration_ms",
			Help:    "Duration of sink upserts in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"sink"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"component", "operation"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	InvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_invocations_total",
			Help: "Total number of event invocations handled (count)",
		},
		[]string{"source", "status"},
	)
)

var registerOnce sync.Once

// RegisterAll registers every collector with the default registry. Safe to
// call more than once.
func RegisterAll() {
	registerOnce.Do(func() {
		RegisterIngestionMetrics()
		RegisterQueueMetrics()
		RegisterSinkMetrics()
		RegisterCircuitBreakerMetrics()
		RegisterAPIMetrics()
	})
}

func RegisterIngestionMetrics() {
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(MessageProcessingDuration)
	prometheus.MustRegister(BatchDuration)
	prometheus.MustRegister(BatchSize)
	prometheus.MustRegister(AcksTotal)
}

func RegisterQueueMetrics() {
	prometheus.MustRegister(QueueReceiveDuration)
	prometheus.MustRegister(QueueMessagesReceivedTotal)
	prometheus.MustRegister(QueueDeadLetteredTotal)
}

func RegisterSinkMetrics() {
	prometheus.MustRegister(SinkWritesTotal)
	prometheus.MustRegister(SinkWriteDuration)
	prometheus.MustRegister(RetryAttemptsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterAPIMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(InvocationsTotal)
}

func IncMessageOutcome(outcome, stage string) {
	MessagesTotal.WithLabelValues(outcome, stage).Inc()
}

func ObserveMessageDuration(outcome string, duration time.Duration) {
	MessageProcessingDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func ObserveBatch(source string, size int, duration time.Duration) {
	BatchSize.Observe(float64(size))
	BatchDuration.WithLabelValues(source).Observe(float64(duration.Milliseconds()))
}

func AddAcks(queue, status string, n int) {
	if n <= 0 {
		return
	}
	AcksTotal.WithLabelValues(queue, status).Add(float64(n))
}

func ObserveQueueReceive(queue string, received int, duration time.Duration) {
	QueueReceiveDuration.WithLabelValues(queue).Observe(float64(duration.Milliseconds()))
	if received > 0 {
		QueueMessagesReceivedTotal.WithLabelValues(queue).Add(float64(received))
	}
}

func IncDeadLettered(queue string) {
	QueueDeadLetteredTotal.WithLabelValues(queue).Inc()
}

func ObserveSinkWrite(sink, status string, duration time.Duration) {
	SinkWritesTotal.WithLabelValues(sink, status).Inc()
	SinkWriteDuration.WithLabelValues(sink).Observe(float64(duration.Milliseconds()))
}

func IncRetryAttempt(component, operation string) {
	RetryAttemptsTotal.WithLabelValues(component, operation).Inc()
}

func IncInvocation(source, status string) {
	InvocationsTotal.WithLabelValues(source, status).Inc()
}
