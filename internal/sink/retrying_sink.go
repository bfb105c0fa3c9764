package sink

import (
	"context"
	"fmt"
	"time"

	"fanout/internal/logger"
	"fanout/pkg/metrics"
	"fanout/pkg/models"
	"fanout/pkg/retry"
)

// RetryingSink retries transient failures with exponential backoff. The
// caller's context bounds the total time spent.
type RetryingSink struct {
	sink   Sink
	policy retry.Policy
	logger logger.Logger
}

func NewRetryingSink(s Sink, policy retry.Policy, log logger.Logger) *RetryingSink {
	return &RetryingSink{sink: s, policy: policy, logger: log}
}

func (s *RetryingSink) Name() string {
	return s.sink.Name()
}

func (s *RetryingSink) Upsert(ctx context.Context, table string, rec models.PersistenceRecord) error {
	return retry.RetryWithCallback(ctx, s.policy, func() error {
		err := s.sink.Upsert(ctx, table, rec)
		if err != nil && IsPermanent(err) {
			return retry.NewFatalError(err)
		}
		return err
	}, func(attempt int, err error, next time.Duration) {
		metrics.IncRetryAttempt("sink", s.sink.Name())
		s.logger.WarnwCtx(ctx, "Sink upsert failed, retrying",
			"sink", s.sink.Name(),
			"table", table,
			"record_key", rec.Key,
			"attempt", attempt,
			"next_delay", next,
			"error", err,
		)
	})
}

func (s *RetryingSink) Get(ctx context.Context, table, key string) (map[string]interface{}, bool, error) {
	if r, ok := s.sink.(Reader); ok {
		return r.Get(ctx, table, key)
	}
	return nil, false, fmt.Errorf("sink %s does not support reads", s.sink.Name())
}

func (s *RetryingSink) Ping(ctx context.Context) error {
	if p, ok := s.sink.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *RetryingSink) Close(ctx context.Context) error {
	return s.sink.Close(ctx)
}
