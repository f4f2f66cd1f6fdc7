package reports

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/finance-analytics/internal/artifacts"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/jobs"
	"github.com/dvloznov/finance-analytics/internal/logger"
	"golang.org/x/sync/errgroup"
)

// Ledger is the read side of the ledger a report needs.
type Ledger interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)
	ListTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error)
	ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error)
}

// Generator turns a report job into a stored PDF. Its Handle method is the
// jobs.JobHandler for report queues.
type Generator struct {
	ledger    Ledger
	artifacts artifacts.Store
	now       func() time.Time
}

// NewGenerator creates a Generator.
func NewGenerator(ledger Ledger, store artifacts.Store) *Generator {
	return &Generator{ledger: ledger, artifacts: store, now: func() time.Time { return time.Now().UTC() }}
}

// Handle implements jobs.JobHandler.
func (g *Generator) Handle(ctx context.Context, job *jobs.ReportJob) (*jobs.ReportResult, error) {
	log := logger.FromContext(ctx).With().Str("task_id", job.TaskID).Logger()

	month, err := domain.ParseMonthLabel(job.Month)
	if err != nil {
		return nil, fmt.Errorf("Handle: %w", err)
	}

	snap, err := g.snapshot(ctx, job.UserID, HistoryWindow(month))
	if err != nil {
		return nil, fmt.Errorf("Handle: %w", err)
	}
	log.Debug().Int("transactions", len(snap.Transactions)).Int("budgets", len(snap.Budgets)).Msg("ledger snapshot loaded")

	report := Build(snap, month, g.now())

	var buf bytes.Buffer
	if err := Render(&buf, report); err != nil {
		return nil, fmt.Errorf("Handle: %w", err)
	}

	name := Filename(snap.User, month, job.TaskID)
	if err := g.artifacts.Put(ctx, name, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("Handle: store artifact: %w", err)
	}

	log.Info().Str("filename", name).Int("bytes", buf.Len()).Msg("report rendered")
	return &jobs.ReportResult{Filename: name}, nil
}

// snapshot loads everything a report reads, in parallel.
func (g *Generator) snapshot(ctx context.Context, userID string, window domain.Period) (Snapshot, error) {
	var snap Snapshot
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		u, err := g.ledger.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		snap.User = *u
		return nil
	})
	eg.Go(func() error {
		cats, err := g.ledger.ListCategories(ctx, userID)
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		snap.Categories = cats
		return nil
	})
	eg.Go(func() error {
		// budget windows can reach back a year from the report month
		txns, err := g.ledger.ListTransactions(ctx, userID, domain.TransactionFilter{
			Start: window.End.AddDate(-1, 0, 0),
			End:   window.End,
		})
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		snap.Transactions = txns
		return nil
	})
	eg.Go(func() error {
		budgets, err := g.ledger.ListBudgets(ctx, userID)
		if err != nil {
			return fmt.Errorf("load budgets: %w", err)
		}
		snap.Budgets = budgets
		return nil
	})

	if err := eg.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Filename names a report artifact: report_{user}_{Month_Year}_{shortid}.pdf.
func Filename(u domain.User, month domain.Period, taskID string) string {
	owner := unsafeFilename.ReplaceAllString(u.Username, "")
	if owner == "" {
		owner = unsafeFilename.ReplaceAllString(u.ID, "")
	}
	short := strings.ReplaceAll(taskID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("report_%s_%s_%s.pdf", owner, month.Start.Format("January_2006"), short)
}
