package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-analytics/internal/artifacts"
	"github.com/dvloznov/finance-analytics/internal/config"
	"github.com/dvloznov/finance-analytics/internal/jobs/amqp"
	"github.com/dvloznov/finance-analytics/internal/ledger/sqlite"
	"github.com/dvloznov/finance-analytics/internal/logger"
	"github.com/dvloznov/finance-analytics/internal/reports"
	"github.com/joho/godotenv"
)

// The worker renders report jobs published by the API over AMQP. Both
// processes share the SQLite file that holds the ledger and the job table.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log, err := logger.NewWithOptions(os.Stdout, logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Failed to create logger")
	}
	if cfg.Ledger.Backend != config.LedgerSQLite {
		log.Fatal().Str("backend", cfg.Ledger.Backend).Msg("Worker requires the sqlite ledger backend")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	store, err := sqlite.Open(ctx, cfg.Ledger.SQLitePath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	defer store.Close()

	artifactStore, err := artifacts.New(ctx, cfg.Reports.Location)
	if err != nil {
		log.Fatal().Err(err).Str("location", cfg.Reports.Location).Msg("Failed to open report storage")
	}
	if c, ok := artifactStore.(io.Closer); ok {
		defer c.Close()
	}

	client, err := amqp.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
	}
	defer client.Close()

	generator := reports.NewGenerator(store, artifactStore)
	if err := client.Start(ctx, generator.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Str("queue", cfg.AMQP.Queue).Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Unacked deliveries go back to the broker for the next worker.
	if err := client.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}
