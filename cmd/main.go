package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"mentor/internal/adapters/ai"
	"mentor/internal/adapters/config"
	"mentor/internal/adapters/embeddings"
	"mentor/internal/adapters/errors/noop"
	"mentor/internal/adapters/errors/sentry"
	"mentor/internal/adapters/kafka"
	"mentor/internal/agents"
	"mentor/internal/api"
	"mentor/internal/api/health"
	"mentor/internal/events"
	"mentor/internal/ingest"
	postgresrepo "mentor/internal/repository/postgres"
	redisrepo "mentor/internal/repository/redis"
	"mentor/internal/retrieval"
	"mentor/internal/tools"
	"mentor/pkg/errors"
	"mentor/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	db := initPostgres(cfg, log)
	defer func() { _ = db.Close() }()

	redisClient := initRedis(cfg, log)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	var activity *redisrepo.ActivityTracker
	if redisClient != nil {
		activity = redisrepo.NewActivityTracker(redisClient, cfg.Agents.SessionTTL)
	}

	stream := initEventStream(cfg, log)

	embedder, err := embeddings.NewOpenAIProvider(cfg.AI.OpenAIKey, cfg.AI.EmbeddingModel, cfg.AI.RequestTimeout)
	if err != nil {
		log.Fatalf("Failed to init embeddings provider: %v", err)
	}

	stateRepo := postgresrepo.NewStateRepository(db)
	passageRepo := postgresrepo.NewPassageRepository(db)

	gateway := retrieval.NewGateway(passageRepo, embedder, cfg.Retrieval.MaxPassages)
	ingestor := ingest.NewIngestor(passageRepo, embedder, cfg.Retrieval.IngestBatchSize)

	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, gateway)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := ai.NewClientFromConfig(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("Failed to init reasoning engine: %v", err)
	}
	log.Infof("Reasoning engine ready: provider=%s", engine.Provider())

	loop := agents.NewLoop(engine, registry, stateRepo, cfg.Agents.IterationCap)
	manager := agents.NewManager(stateRepo, passageRepo, loop, stream, activity, cfg.Agents)
	manager.StartJanitor()
	defer manager.Stop()

	handlers := api.NewHandlers(manager, ingestor, gateway)
	healthHandler := health.New(log, db, redisClient, cfg.App.Name)
	server := api.NewServer(api.ServerConfig{Port: cfg.HTTP.Port, ServiceName: cfg.App.Name}, handlers, healthHandler, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Info("System initialized successfully")
	waitForShutdown(cancel, server, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// initPostgres connects the state store and passage index database
func initPostgres(cfg *config.Config, log *logger.Logger) *sqlx.DB {
	db, err := sqlx.Connect("postgres", cfg.Postgres.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxConns)
	log.Info("PostgreSQL connected")
	return db
}

// initRedis connects the session activity store, if configured
func initRedis(cfg *config.Config, log *logger.Logger) *goredis.Client {
	if !cfg.Redis.Enabled() {
		log.Info("Redis not configured; session expiry uses in-process timestamps")
		return nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	log.Info("Redis connected")
	return client
}

// initEventStream builds the session event hub with an optional Kafka audit
// mirror
func initEventStream(cfg *config.Config, log *logger.Logger) *events.Stream {
	var audit *events.AuditPublisher
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers, Async: true})
		audit = events.NewAuditPublisher(producer, cfg.Kafka.AuditTopic)
		log.Infof("Kafka audit mirror enabled: topic=%s", cfg.Kafka.AuditTopic)
	}
	return events.NewStream(cfg.Agents.EventBuffer, audit)
}

// waitForShutdown blocks until SIGINT/SIGTERM, then stops components in order
func waitForShutdown(cancel context.CancelFunc, server *api.Server, tracker errors.Tracker, log *logger.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Infof("Received signal %v, shutting down...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Shutdown error: %v", err)
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer flushCancel()
	_ = tracker.Flush(flushCtx)
	log.Info("Shutdown complete")
}
