package sink

import (
	"context"
	"fmt"
	"time"

	"fanout/pkg/metrics"
	"fanout/pkg/models"
	"fanout/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// InstrumentedSink records a span and metrics for every upsert.
type InstrumentedSink struct {
	sink Sink
}

func NewInstrumentedSink(s Sink) *InstrumentedSink {
	return &InstrumentedSink{sink: s}
}

func (s *InstrumentedSink) Name() string {
	return s.sink.Name()
}

func (s *InstrumentedSink) Upsert(ctx context.Context, table string, rec models.PersistenceRecord) error {
	ctx, span := tracing.GetTracer("fanout-sink").Start(ctx, "sink.upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("sink.name", s.sink.Name()),
		attribute.String("sink.table", table),
		attribute.String("record.key", rec.Key),
	)

	start := time.Now()
	err := s.sink.Upsert(ctx, table, rec)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.ObserveSinkWrite(s.sink.Name(), status, time.Since(start))

	return err
}

func (s *InstrumentedSink) Get(ctx context.Context, table, key string) (map[string]interface{}, bool, error) {
	if r, ok := s.sink.(Reader); ok {
		return r.Get(ctx, table, key)
	}
	return nil, false, fmt.Errorf("sink %s does not support reads", s.sink.Name())
}

func (s *InstrumentedSink) Ping(ctx context.Context) error {
	if p, ok := s.sink.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *InstrumentedSink) Close(ctx context.Context) error {
	return s.sink.Close(ctx)
}
