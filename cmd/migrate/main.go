package main

import (
	"context"
	"flag"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-analytics/internal/config"
	bqledger "github.com/dvloznov/finance-analytics/internal/ledger/bigquery"
	"github.com/dvloznov/finance-analytics/internal/logger"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	project := flag.String("project", cfg.BigQuery.Project, "GCP project ID (or FINANCE_BIGQUERY_PROJECT)")
	dataset := flag.String("dataset", cfg.BigQuery.Dataset, "BigQuery dataset ID")
	appliedBy := flag.String("applied-by", "migrate-cli", "Name recorded in schema_migrations")
	flag.Parse()

	if *project == "" {
		log.Fatal().Msg("Error: -project flag or FINANCE_BIGQUERY_PROJECT is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	client, err := bigquery.NewClient(ctx, *project)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *project).Str("dataset", *dataset).Msg("Connected to BigQuery")

	applied, err := bqledger.NewMigrator(client, *dataset, *appliedBy, log).Up(ctx)
	if err != nil {
		log.Error().Err(err).Int("applied", applied).Msg("Migration failed")
		os.Exit(1)
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
		return
	}
	log.Info().Int("applied", applied).Msg("Migrations applied")
}
