package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-analytics/internal/api"
	"github.com/dvloznov/finance-analytics/internal/artifacts"
	"github.com/dvloznov/finance-analytics/internal/auth"
	"github.com/dvloznov/finance-analytics/internal/config"
	"github.com/dvloznov/finance-analytics/internal/finance"
	"github.com/dvloznov/finance-analytics/internal/ingest"
	"github.com/dvloznov/finance-analytics/internal/jobs"
	"github.com/dvloznov/finance-analytics/internal/jobs/amqp"
	"github.com/dvloznov/finance-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	bqledger "github.com/dvloznov/finance-analytics/internal/ledger/bigquery"
	"github.com/dvloznov/finance-analytics/internal/ledger/memory"
	"github.com/dvloznov/finance-analytics/internal/ledger/sqlite"
	"github.com/dvloznov/finance-analytics/internal/logger"
	"github.com/dvloznov/finance-analytics/internal/reports"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	port := flag.String("port", "", "HTTP server port (overrides FINANCE_SERVER_PORT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}

	log, err := logger.NewWithOptions(os.Stdout, logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Failed to create logger")
	}

	ctx := logger.WithContext(context.Background(), log)

	store, jobStore, err := openLedger(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Ledger.Backend).Msg("Failed to open ledger")
	}
	defer store.Close()

	artifactStore, err := artifacts.New(ctx, cfg.Reports.Location)
	if err != nil {
		log.Fatal().Err(err).Str("location", cfg.Reports.Location).Msg("Failed to open report storage")
	}
	if c, ok := artifactStore.(io.Closer); ok {
		defer c.Close()
	}

	// Report jobs either run in-process or go to the worker over AMQP.
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	var (
		publisher jobs.Publisher
		consumer  jobs.Consumer
	)
	switch cfg.Queue.Backend {
	case config.QueueAMQP:
		client, err := amqp.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, jobStore, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
		}
		publisher = client
		log.Info().Str("exchange", cfg.AMQP.Exchange).Str("queue", cfg.AMQP.Queue).Msg("Publishing report jobs to AMQP")
	default:
		queue := inmemory.NewQueue(cfg.Reports.QueueSize, cfg.Reports.Workers, jobStore, log)
		generator := reports.NewGenerator(store, artifactStore)
		if err := queue.Start(workerCtx, generator.Handle); err != nil {
			log.Fatal().Err(err).Msg("Failed to start report workers")
		}
		publisher, consumer = queue, queue
		log.Info().Int("workers", cfg.Reports.Workers).Msg("Report workers started")
	}
	defer publisher.Close()

	orchestrator := reports.NewOrchestrator(jobStore, publisher, artifactStore, log)
	go orchestrator.RunRetention(workerCtx, cfg.Reports.SweepInterval, cfg.Reports.Retention)

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token issuer")
	}

	categorizers := []ingest.Categorizer{ingest.KeywordCategorizer{}}
	if cfg.Gemini.APIKey != "" {
		gemini, err := ingest.NewGeminiCategorizer(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini categorizer")
		}
		categorizers = append(categorizers, gemini)
		log.Info().Str("model", cfg.Gemini.Model).Msg("Gemini categorization enabled")
	}

	handler := api.NewRouter(api.Services{
		Auth:     auth.NewService(store, tokens),
		Finance:  finance.NewService(store),
		Importer: ingest.NewImporter(store, categorizers...),
		Reports:  orchestrator,
	}, log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("ledger", cfg.Ledger.Backend).
			Str("queue", cfg.Queue.Backend).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop before cancelling so in-flight reports finish and buffered ones fail.
	if consumer != nil {
		if err := consumer.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping report workers")
		}
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

// openLedger returns the configured ledger and the job store that goes with
// it. SQLite keeps jobs in the same database so a separate worker can see
// them; the other backends keep jobs in memory.
func openLedger(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ledger.Store, jobs.JobStore, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerSQLite:
		s, err := sqlite.Open(ctx, cfg.Ledger.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.LedgerBigQuery:
		s, err := bqledger.New(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, log)
		if err != nil {
			return nil, nil, err
		}
		return s, inmemory.NewStore(), nil
	default:
		log.Warn().Msg("Using in-memory ledger, data is lost on exit")
		return memory.NewStore(), inmemory.NewStore(), nil
	}
}
