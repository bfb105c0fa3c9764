package sink

import (
	"context"
	"fmt"

	"fanout/internal/config"
	"fanout/pkg/circuitbreaker"
	"fanout/pkg/models"
	"fanout/pkg/retry"
)

// CircuitBreakerSink stops calling an unhealthy backend. Permanent errors
// are the record's fault and do not count against the backend.
type CircuitBreakerSink struct {
	sink Sink
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerSink(s Sink, cfg config.CircuitBreakerConfig) *CircuitBreakerSink {
	cbConfig := circuitbreaker.DefaultConfig("sink-" + s.Name())
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 {
		cbConfig.FailureRatio = cfg.FailureRatio
	}
	if cfg.MinRequests > 0 {
		cbConfig.MinRequests = cfg.MinRequests
	}
	cbConfig.IsSuccessful = func(err error) bool {
		return err == nil || IsPermanent(err)
	}

	return &CircuitBreakerSink{
		sink: s,
		cb:   circuitbreaker.NewWrapper(cbConfig),
	}
}

func (s *CircuitBreakerSink) Name() string {
	return s.sink.Name()
}

func (s *CircuitBreakerSink) Upsert(ctx context.Context, table string, rec models.PersistenceRecord) error {
	err := s.cb.Run(ctx, func() error {
		return s.sink.Upsert(ctx, table, rec)
	})
	if err != nil && circuitbreaker.IsRejection(err) {
		// Retrying inside the batch cannot help while the breaker is open.
		return retry.NewFatalError(fmt.Errorf("%w: circuit breaker %s: %v", ErrUnavailable, s.cb.Name(), err))
	}
	return err
}

func (s *CircuitBreakerSink) Get(ctx context.Context, table, key string) (map[string]interface{}, bool, error) {
	if r, ok := s.sink.(Reader); ok {
		return r.Get(ctx, table, key)
	}
	return nil, false, fmt.Errorf("sink %s does not support reads", s.sink.Name())
}

// Ping fails without touching the backend while the breaker is open.
func (s *CircuitBreakerSink) Ping(ctx context.Context) error {
	if s.cb.IsOpen() {
		return fmt.Errorf("%w: circuit breaker %s is open", ErrUnavailable, s.cb.Name())
	}
	if p, ok := s.sink.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *CircuitBreakerSink) Close(ctx context.Context) error {
	return s.sink.Close(ctx)
}
