// cmd/pipeline-manager/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"resonance-pipeline/internal/common/config"
	"resonance-pipeline/internal/common/crm"
	"resonance-pipeline/internal/common/database"
	"resonance-pipeline/internal/common/genai"
	"resonance-pipeline/internal/common/httpclient"
	"resonance-pipeline/internal/common/intel"
	"resonance-pipeline/internal/common/logger"
	"resonance-pipeline/internal/common/observability"
	"resonance-pipeline/internal/feedback"
	"resonance-pipeline/internal/orchestrator"
	"resonance-pipeline/internal/runs"
	"resonance-pipeline/internal/weights"

	collectbrandintel "resonance-pipeline/internal/workers/discovery/collect-brand-intel"
	generatebrief "resonance-pipeline/internal/workers/discovery/generate-brief"
	scoreresonance "resonance-pipeline/internal/workers/discovery/score-resonance"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting pipeline manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("pipeline-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Market-intel providers ---
	providers := []intel.Provider{
		intel.NewRegistryProvider(
			cfg.Providers.Registry.BaseURL,
			cfg.Providers.Registry.APIKey,
			httpclient.NewClient(cfg.Providers.Registry.TimeoutDuration()),
		),
		intel.NewFirmographicsProvider(
			cfg.Providers.Firmographics.BaseURL,
			cfg.Providers.Firmographics.APIKey,
			httpclient.NewClient(cfg.Providers.Firmographics.TimeoutDuration()),
		),
		intel.NewMediawatchProvider(
			esClient.Client,
			cfg.Database.Elasticsearch.Index,
			cfg.Scoring.CoMentionWindowDays,
		),
	}

	// --- Language-model backends ---
	primary := genai.NewHTTPBackend(
		cfg.GenAI.Primary.Name,
		cfg.GenAI.Primary.BaseURL,
		cfg.GenAI.Primary.APIKey,
		cfg.GenAI.Temperature,
		httpclient.NewClient(cfg.GenAI.Primary.TimeoutDuration()),
	)
	fallback := genai.NewHTTPBackend(
		cfg.GenAI.Fallback.Name,
		cfg.GenAI.Fallback.BaseURL,
		cfg.GenAI.Fallback.APIKey,
		cfg.GenAI.Temperature,
		httpclient.NewClient(cfg.GenAI.Fallback.TimeoutDuration()),
	)

	crmClient := crm.NewClient(
		cfg.CRM.BaseURL,
		cfg.CRM.OAuthToken,
		time.Duration(cfg.CRM.Timeout)*time.Millisecond,
	)

	zapLog.Info("All external service clients initialized")

	// --- Weight manager + tuning loop ---
	weightStore := weights.NewStore(pg.DB)
	policy := weights.NewEpsilonGreedy(
		cfg.Weights.Epsilon,
		cfg.Weights.PerturbDelta,
		cfg.Weights.MinObservations,
		time.Now().UnixNano(),
	)
	weightManager := weights.NewManager(
		weightStore,
		policy,
		time.Duration(cfg.Weights.AdjustInterval)*time.Millisecond,
		log,
	)
	if err := weightManager.Init(ctx); err != nil {
		zapLog.Fatal("weight manager init failed", zap.Error(err))
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	go weightManager.Run(loopCtx)

	// --- Pipeline stages ---
	collector := collectbrandintel.NewHandler(
		collectbrandintel.LoadConfig(cfg.Providers),
		providers,
		redis.Client,
		log,
	)
	scorer := scoreresonance.NewHandler(
		scoreresonance.LoadConfig(cfg.Scoring),
		log,
	)
	briefer := generatebrief.NewHandler(
		generatebrief.LoadConfig(cfg.GenAI),
		primary,
		fallback,
		log,
	)

	runStore := runs.NewStore(pg.DB)
	pipeline := orchestrator.New(
		orchestrator.LoadConfig(cfg.Pipeline),
		collector,
		scorer,
		briefer,
		weightManager,
		runStore,
		crmClient,
		obs,
		log,
	)
	feedbackService := feedback.NewService(pg.DB, runStore, weightManager, log)

	// --- HTTP API ---
	server := newServer(pipeline, feedbackService, log)
	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: server.routes(),
	}
	go func() {
		zapLog.Info("API server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping pipeline manager...")
	stopLoop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down API server", zap.Error(err))
	}

	zapLog.Info("Pipeline manager stopped gracefully")
}
