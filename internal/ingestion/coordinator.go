package ingestion

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"fanout/internal/config"
	"fanout/internal/constants"
	"fanout/internal/logger"
	"fanout/internal/sink"
	"fanout/pkg/logging"
	"fanout/pkg/metrics"
	"fanout/pkg/models"
	"fanout/pkg/tracing"
)

type BatchState int32

const (
	BatchPending BatchState = iota
	BatchProcessing
	BatchReported
)

func (s BatchState) String() string {
	switch s {
	case BatchPending:
		return "pending"
	case BatchProcessing:
		return "processing"
	case BatchReported:
		return "reported"
	default:
		return "unknown"
	}
}

type sourceKey struct{}

// WithSource labels batches processed under ctx with where they came from.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "unknown"
}

// Coordinator runs every message of a batch through
// decode, validate, transform and upsert, and records one outcome per
// message. Message failures never abort the batch.
type Coordinator struct {
	decoder      *Decoder
	validator    *Validator
	transformer  *Transformer
	sink         sink.Sink
	table        string
	concurrency  int
	batchTimeout time.Duration
	logger       logger.Logger

	// onState, when set, observes batch state transitions.
	onState func(batchID string, state BatchState)
}

type Option func(*Coordinator)

func WithStateHook(fn func(batchID string, state BatchState)) Option {
	return func(c *Coordinator) {
		c.onState = fn
	}
}

func NewCoordinator(cfg config.PipelineConfig, table string, s sink.Sink, log logger.Logger, opts ...Option) (*Coordinator, error) {
	decoder, err := DecoderForFormat(cfg.EnvelopeFormat)
	if err != nil {
		return nil, err
	}
	validator, err := NewValidator(cfg, log)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		decoder:      decoder,
		validator:    validator,
		transformer:  NewTransformer(cfg),
		sink:         s,
		table:        table,
		concurrency:  cfg.Concurrency,
		batchTimeout: cfg.BatchTimeout,
		logger:       log,
	}
	if c.concurrency <= 0 {
		c.concurrency = 1
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Coordinator) setState(batchID string, state *atomic.Int32, next BatchState) {
	state.Store(int32(next))
	if c.onState != nil {
		c.onState(batchID, next)
	}
}

// ProcessBatch returns a report with one entry per message in input order.
// It only fails, before touching any message, when the pipeline itself is
// unusable.
func (c *Coordinator) ProcessBatch(ctx context.Context, msgs []models.TransportMessage) (*models.BatchReport, error) {
	if c.sink == nil {
		return nil, fmt.Errorf("%w: no sink configured", ErrConfiguration)
	}
	if c.table == "" {
		return nil, fmt.Errorf("%w: no target table configured", ErrConfiguration)
	}

	report := &models.BatchReport{
		BatchID:   uuid.NewString(),
		Entries:   make([]models.ReportEntry, len(msgs)),
		StartedAt: time.Now(),
	}
	for i, m := range msgs {
		report.Entries[i].Message = m
	}

	var state atomic.Int32
	c.setState(report.BatchID, &state, BatchPending)

	ctx = logging.WithBatchID(ctx, report.BatchID)
	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "ingestion.process_batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("batch.id", report.BatchID),
		attribute.Int("batch.size", len(msgs)),
	)

	batchCtx := ctx
	if c.batchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, c.batchTimeout)
		defer cancel()
	}

	c.setState(report.BatchID, &state, BatchProcessing)

	var started atomic.Int32
	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for i := range msgs {
		if batchCtx.Err() != nil {
			report.Entries[i].Outcome = notProcessed()
			continue
		}
		i := i
		g.Go(func() error {
			if batchCtx.Err() != nil {
				report.Entries[i].Outcome = notProcessed()
				return nil
			}
			started.Add(1)
			report.Entries[i].Outcome = c.processMessage(batchCtx, &report.Entries[i].Message)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now()
	c.setState(report.BatchID, &state, BatchReported)

	counts := report.Counts()
	if counts.NotProcessed > 0 {
		c.logger.WarnwCtx(ctx, "Batch timeout reached, remaining messages left for redelivery",
			"batch_timeout", c.batchTimeout.String(),
			"not_processed", counts.NotProcessed,
			"started", started.Load(),
		)
		for _, e := range report.Entries {
			if e.Outcome.Kind == models.OutcomeNotProcessed {
				metrics.IncMessageOutcome(string(models.OutcomeNotProcessed), constants.StageBatch)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("batch.persisted", counts.Persisted),
		attribute.Int("batch.failed", counts.Failed),
		attribute.Int("batch.not_processed", counts.NotProcessed),
	)
	metrics.ObserveBatch(sourceFrom(ctx), len(msgs), report.FinishedAt.Sub(report.StartedAt))

	return report, nil
}

func notProcessed() models.Outcome {
	return models.Failed(models.OutcomeNotProcessed, constants.StageBatch, "batch timeout")
}

func (c *Coordinator) processMessage(ctx context.Context, msg *models.TransportMessage) (outcome models.Outcome) {
	start := time.Now()
	ctx = logging.WithMessageID(ctx, msg.ID)
	ctx, span := tracing.StartMessageSpan(ctx, "ingestion.process_message", msg.Attributes)
	defer span.End()
	if traceID := tracing.TraceIDFromContext(ctx); traceID != "" {
		ctx = logging.WithTraceID(ctx, traceID)
	}
	span.SetAttributes(
		attribute.String("messaging.message.id", msg.ID),
		attribute.Int("messaging.delivery_count", msg.DeliveryCount),
	)

	stage := constants.StageEnvelope
	defer func() {
		if r := recover(); r != nil {
			outcome = models.Failed(kindForStage(stage), stage, fmt.Sprintf("panic: %v", r))
		}
		c.recordOutcome(ctx, msg, outcome, time.Since(start))
		if !outcome.Persisted() {
			span.SetStatus(codes.Error, outcome.Reason)
		}
		span.SetAttributes(attribute.String("outcome", string(outcome.Kind)))
	}()

	key, err := c.run(ctx, msg, &stage)
	if err != nil {
		return outcomeOf(err)
	}
	return models.Persisted(key)
}

func (c *Coordinator) run(ctx context.Context, msg *models.TransportMessage, stage *string) (string, error) {
	if err := models.ValidateTransportMessage(msg); err != nil {
		return "", decodeFailed(constants.StageEnvelope, err)
	}

	env, payload, err := c.decoder.Decode(msg.Body)
	if err != nil {
		return "", err
	}

	*stage = constants.StageValidate
	if err := c.validator.Validate(ctx, env, payload, msg.ID); err != nil {
		return "", err
	}

	*stage = constants.StageTransform
	rec, err := c.transformer.Transform(payload)
	if err != nil {
		return "", err
	}

	*stage = constants.StageSink
	if err := c.sink.Upsert(ctx, c.table, rec); err != nil {
		return "", sinkFailed(err)
	}
	return rec.Key, nil
}

func kindForStage(stage string) models.OutcomeKind {
	switch stage {
	case constants.StageEnvelope, constants.StagePayload:
		return models.OutcomeDecodeFailed
	case constants.StageValidate, constants.StageTransform:
		return models.OutcomeValidationFailed
	default:
		return models.OutcomeSinkFailed
	}
}

func (c *Coordinator) recordOutcome(ctx context.Context, msg *models.TransportMessage, outcome models.Outcome, elapsed time.Duration) {
	metrics.IncMessageOutcome(string(outcome.Kind), outcome.Stage)
	metrics.ObserveMessageDuration(string(outcome.Kind), elapsed)

	if outcome.Persisted() {
		c.logger.InfowCtx(ctx, "Message processed",
			"outcome", outcome.Kind,
			"record_key", outcome.RecordKey,
			"delivery_count", msg.DeliveryCount,
		)
		return
	}

	c.logger.WarnwCtx(ctx, "Message processed",
		"outcome", outcome.Kind,
		"stage", outcome.Stage,
		"reason", outcome.Reason,
		"delivery_count", msg.DeliveryCount,
	)
}
