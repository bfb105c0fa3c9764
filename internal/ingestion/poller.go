package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"fanout/internal/config"
	"fanout/internal/constants"
	"fanout/internal/logger"
	"fanout/internal/queue"
	"fanout/pkg/metrics"
	"fanout/pkg/retry"
)

// Poller receives batches from a queue until its context is cancelled.
type Poller struct {
	queue        queue.Queue
	coordinator  *Coordinator
	acknowledger *Acknowledger
	opts         queue.ReceiveOptions
	idleBackoff  time.Duration
	logger       logger.Logger
}

func NewPoller(q queue.Queue, c *Coordinator, a *Acknowledger, cfg config.QueueConfig, log logger.Logger) *Poller {
	idle := cfg.IdleBackoff
	if idle <= 0 {
		idle = time.Second
	}
	return &Poller{
		queue:        q,
		coordinator:  c,
		acknowledger: a,
		opts: queue.ReceiveOptions{
			MaxMessages:       cfg.MaxMessages,
			WaitTime:          cfg.WaitTime,
			VisibilityTimeout: cfg.VisibilityTimeout,
		},
		idleBackoff: idle,
		logger:      log,
	}
}

// Run returns nil on cancellation and an error only when the pipeline is
// misconfigured. Receive errors are retried with exponential backoff.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Infow("Starting poller",
		"queue", p.queue.Name(),
		"max_messages", p.opts.MaxMessages,
		"wait_time", p.opts.WaitTime.String(),
		"visibility_timeout", p.opts.VisibilityTimeout.String(),
	)

	errBackoff := retry.ExponentialBackoff(p.idleBackoff, 30*time.Second, 2.0, 0)
	for {
		if ctx.Err() != nil {
			p.logger.Infow("Poller stopped", "queue", p.queue.Name())
			return nil
		}

		n, err := p.PollOnce(ctx)
		var wait time.Duration
		switch {
		case errors.Is(err, ErrConfiguration):
			return err
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			wait = errBackoff.NextBackOff()
			if wait == backoff.Stop {
				wait = 30 * time.Second
			}
			p.logger.Errorw("Failed to receive messages",
				"queue", p.queue.Name(),
				"error", err,
				"retry_in", wait.String(),
			)
		case n == 0:
			errBackoff.Reset()
			wait = p.idleBackoff
		default:
			errBackoff.Reset()
		}

		if wait > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
		}
	}
}

// PollOnce handles a single receive. It returns the number of messages
// received.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	start := time.Now()
	msgs, err := p.queue.Receive(ctx, p.opts)
	metrics.ObserveQueueReceive(p.queue.Name(), len(msgs), time.Since(start))
	if err != nil && len(msgs) == 0 {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	report, err := p.coordinator.ProcessBatch(WithSource(ctx, p.queue.Name()), msgs)
	if err != nil {
		return len(msgs), err
	}

	// Persisted records must be acknowledged even when shutdown has begun.
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ShutdownTimeout)
	defer cancel()
	p.acknowledger.Acknowledge(ackCtx, report)

	return len(msgs), nil
}
