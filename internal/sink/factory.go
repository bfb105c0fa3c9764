package sink

import (
	"fanout/internal/config"
	"fanout/internal/logger"
	"fanout/pkg/retry"
)

// PolicyFromConfig converts a retry section into a policy. Zero attempts
// means a single try.
func PolicyFromConfig(cfg config.RetryConfig) retry.Policy {
	if cfg.MaxAttempts <= 0 {
		return retry.NoRetry()
	}
	p := retry.DefaultPolicy()
	p.MaxAttempts = cfg.MaxAttempts
	p.MaxElapsedTime = cfg.MaxElapsedTime
	if cfg.InitialInterval > 0 {
		p.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		p.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		p.Multiplier = cfg.Multiplier
	}
	return p
}

// Decorate wraps base as
// instrumented(retrying(circuit breaker(base))).
// The breaker sees every attempt, so a retry storm against a dead backend
// trips it.
func Decorate(base Sink, cfg *config.Config, log logger.Logger) Sink {
	s := base
	if cfg.CircuitBreaker.Enabled {
		s = NewCircuitBreakerSink(s, cfg.CircuitBreaker)
	}
	if cfg.Sink.Retry.MaxAttempts > 1 {
		s = NewRetryingSink(s, PolicyFromConfig(cfg.Sink.Retry), log)
	}
	return NewInstrumentedSink(s)
}
