package tracing

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ExtractFromAttributes pulls a W3C trace context out of queue message
// attributes (SQS message attributes, AMQP headers, Kafka headers).
func ExtractFromAttributes(ctx context.Context, attributes map[string]string) context.Context {
	if len(attributes) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(attributes))
}

func InjectIntoAttributes(ctx context.Context, attributes map[string]string) map[string]string {
	if attributes == nil {
		attributes = make(map[string]string)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(attributes))
	return attributes
}

// KafkaHeadersToAttributes flattens Kafka record headers. Later duplicates win.
func KafkaHeadersToAttributes(headers []kafka.Header) map[string]string {
	attrs := make(map[string]string, len(headers))
	for _, h := range headers {
		attrs[h.Key] = string(h.Value)
	}
	return attrs
}

// StartMessageSpan starts a consumer span continuing any trace carried by
// the message attributes.
func StartMessageSpan(ctx context.Context, operationName string, attributes map[string]string) (context.Context, trace.Span) {
	ctx = ExtractFromAttributes(ctx, attributes)
	return GetTracer("fanout").Start(ctx, operationName, trace.WithSpanKind(trace.SpanKindConsumer))
}
