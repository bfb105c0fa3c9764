package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"

	"fanout/internal/awsclient"
	"fanout/internal/config"
	"fanout/internal/logger"
	"fanout/internal/queue"
)

type Base struct {
	Config     *config.Config
	Logger     logger.Logger
	AWSSession *session.Session
	Queue      queue.Queue
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitAWS creates the shared session when the queue or the sink needs one.
func (b *Base) InitAWS() error {
	if b.Config.Queue.Type != config.QueueTypeSQS && b.Config.Sink.Type != config.SinkTypeDynamoDB {
		return nil
	}

	sess, err := awsclient.NewSession(b.Config.AWS)
	if err != nil {
		return fmt.Errorf("failed to create AWS session: %w", err)
	}
	b.AWSSession = sess
	return nil
}

func (b *Base) InitQueue(ctx context.Context) error {
	q, err := queue.New(ctx, b.Config.Queue, b.AWSSession, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create %s queue: %w", b.Config.Queue.Type, err)
	}
	b.Queue = q
	return nil
}

func (b *Base) ShutdownQueue() []error {
	if b.Queue == nil {
		return nil
	}
	if err := b.Queue.Close(); err != nil {
		return []error{fmt.Errorf("queue close error: %w", err)}
	}
	return nil
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownQueue()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
