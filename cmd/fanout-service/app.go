package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"fanout/internal/api"
	"fanout/internal/config"
	"fanout/internal/constants"
	"fanout/internal/ingestion"
	"fanout/internal/logger"
	"fanout/internal/sink"
	"fanout/pkg/bootstrap"
	"fanout/pkg/health"
	"fanout/pkg/logging"
	"fanout/pkg/metrics"
	"fanout/pkg/migrations"
	"fanout/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	mongoClient    *mongo.Client
	mongoDB        *mongo.Database
	sink           sink.Sink
	coordinator    *ingestion.Coordinator
	invocations    *ingestion.InvocationHandler
	poller         *ingestion.Poller
	healthRegistry *health.CheckerRegistry
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base:           bootstrap.NewBase(cfg, log),
		dbConnector:    bootstrap.NewDatabaseConnector(cfg, log),
		healthRegistry: health.NewCheckerRegistry(),
	}
}

// Initialize builds the sink and the pipeline. withQueue also connects the
// source queue and the poller; invoke runs without one.
func (a *App) Initialize(ctx context.Context, withQueue bool) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName,
		attribute.String("fanout.queue.type", a.Config.Queue.Type),
		attribute.String("fanout.sink.type", a.Config.Sink.Type),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	for _, w := range config.Warnings(a.Config) {
		a.Logger.Warnw("Configuration warning", "warning", w)
	}

	metrics.RegisterAll()

	if err := a.InitAWS(); err != nil {
		return err
	}

	if err := a.initSink(ctx); err != nil {
		return fmt.Errorf("failed to initialize sink: %w", err)
	}

	coordinator, err := ingestion.NewCoordinator(a.Config.Pipeline, a.Config.Sink.Table, a.sink, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	a.coordinator = coordinator
	a.invocations = ingestion.NewInvocationHandler(coordinator, a.Logger)

	if !withQueue {
		return nil
	}

	if err := a.InitQueue(ctx); err != nil {
		return err
	}
	acknowledger := ingestion.NewAcknowledger(a.Queue, sink.PolicyFromConfig(a.Config.Pipeline.AckRetry), a.Logger)
	a.poller = ingestion.NewPoller(a.Queue, coordinator, acknowledger, a.Config.Queue, a.Logger)

	a.initHTTPServer(ctx)
	return nil
}

// openBackend connects to the configured store without building a sink.
func (a *App) openBackend(ctx context.Context) error {
	var err error
	switch a.Config.Sink.Type {
	case config.SinkTypePostgres:
		if a.db, err = a.dbConnector.InitPostgreSQL(ctx); err != nil {
			return err
		}
		a.healthRegistry.Register(health.NewSQLChecker("postgres", a.db))
	case config.SinkTypeSQLite:
		if a.db, err = a.dbConnector.InitSQLite(ctx); err != nil {
			return err
		}
		a.healthRegistry.Register(health.NewSQLChecker("sqlite", a.db))
	case config.SinkTypeMongoDB:
		if a.mongoClient, err = a.dbConnector.InitMongoDB(ctx); err != nil {
			return err
		}
		dbName := a.Config.Sink.MongoDB.Database
		if dbName == "" {
			dbName = constants.DefaultMongoDBName
		}
		a.mongoDB = a.mongoClient.Database(dbName)
		a.healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	case config.SinkTypeRedis:
		if a.redisClient, err = a.dbConnector.InitRedis(ctx); err != nil {
			return err
		}
		a.healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	case config.SinkTypeDynamoDB, config.SinkTypeMemory:
	default:
		return fmt.Errorf("unknown sink type: %s", a.Config.Sink.Type)
	}
	return nil
}

func (a *App) initSink(ctx context.Context) error {
	if err := a.openBackend(ctx); err != nil {
		return err
	}

	if a.Config.Sink.RunMigrations {
		if err := a.migrate(ctx); err != nil {
			return err
		}
	}

	var base sink.Sink
	switch a.Config.Sink.Type {
	case config.SinkTypePostgres:
		base = sink.NewPostgresSink(a.db)
	case config.SinkTypeSQLite:
		base = sink.NewSQLiteSink(a.db)
	case config.SinkTypeMongoDB:
		base = sink.NewMongoDBSink(a.mongoDB)
	case config.SinkTypeRedis:
		base = sink.NewRedisSink(a.redisClient)
	case config.SinkTypeDynamoDB:
		keyField := a.Config.Pipeline.KeyField
		if keyField == "" {
			keyField = constants.DefaultKeyField
		}
		dynamo := sink.NewDynamoDBSink(dynamodb.New(a.AWSSession), keyField, a.Config.Sink.Table)
		a.healthRegistry.Register(health.NewFuncChecker("dynamodb", dynamo.Ping))
		base = dynamo
	case config.SinkTypeMemory:
		base = sink.NewMemorySink()
	}

	a.sink = sink.Decorate(base, a.Config, a.Logger)
	if p, ok := a.sink.(sink.Pinger); ok && a.Config.CircuitBreaker.Enabled {
		a.healthRegistry.Register(health.NewFuncChecker("sink", p.Ping))
	}
	a.Logger.Infow("Sink initialized",
		"type", a.Config.Sink.Type,
		"table", a.Config.Sink.Table,
		"retry_attempts", a.Config.Sink.Retry.MaxAttempts,
		"circuit_breaker", a.Config.CircuitBreaker.Enabled,
	)
	return nil
}

func (a *App) migrate(ctx context.Context) error {
	switch a.Config.Sink.Type {
	case config.SinkTypePostgres:
		if err := migrations.UpPostgres(a.db); err != nil {
			return err
		}
	case config.SinkTypeSQLite:
		if err := migrations.UpSQLite(a.db); err != nil {
			return err
		}
	case config.SinkTypeMongoDB:
		if err := migrations.EnsureMongoCollection(ctx, a.mongoDB, a.Config.Sink.Table, a.Config.Pipeline.TypeField); err != nil {
			return err
		}
	default:
		a.Logger.Infow("Sink has no schema to migrate", "type", a.Config.Sink.Type)
		return nil
	}

	a.Logger.Infow("Migrations applied", "type", a.Config.Sink.Type)
	return nil
}

// Migrate applies the schema for the configured sink and returns.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.openBackend(ctx); err != nil {
		return err
	}
	return a.migrate(ctx)
}

func (a *App) initHTTPServer(ctx context.Context) {
	var handler *api.Handler
	if a.Config.API.Enabled {
		reader, _ := a.sink.(sink.Reader)
		handler = api.NewHandler(a.invocations, reader, a.Logger)
	}

	router := api.NewRouter(ctx, a.Config, handler, a.healthRegistry, a.Logger)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds * time.Second,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.poller.Run(logging.WithServiceName(gCtx, constants.ServiceName))
	})

	g.Go(func() error {
		<-gCtx.Done()
		serverCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(serverCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	})

	runErr := g.Wait()

	// The poller has returned, so in-flight acks are done before the queue closes.
	if err := a.Shutdown(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Invoke processes one event without a source queue.
func (a *App) Invoke(ctx context.Context, event ingestion.SQSEvent) (ingestion.BatchResponse, error) {
	return a.invocations.Handle(ctx, "cli", event)
}

func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
	defer cancel()

	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down fanout service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.sink != nil {
			if err := a.sink.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("sink close error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
