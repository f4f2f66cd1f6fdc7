package ingest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/logger"
	"github.com/google/uuid"
)

// duplicateSimilarity is the minimum description similarity, on the same
// date and amount, for a row to count as already imported.
const duplicateSimilarity = 0.9

// Store is the part of the ledger an import needs.
type Store interface {
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)
	ListTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error)
	CreateTransactions(ctx context.Context, txns []domain.Transaction) error
}

// Summary reports what an import did.
type Summary struct {
	Imported    int      `json:"imported"`
	Skipped     int      `json:"skipped"`
	Categorized int      `json:"categorized"`
	Errors      []string `json:"errors"`
}

// Importer turns statement files into ledger transactions.
type Importer struct {
	store        Store
	categorizers []Categorizer
	now          func() time.Time
}

// NewImporter creates an Importer. Categorizers run in order; each sees only
// the rows earlier ones left unmatched.
func NewImporter(store Store, categorizers ...Categorizer) *Importer {
	return &Importer{store: store, categorizers: categorizers, now: time.Now}
}

// Import parses r and stores its rows for userID. Rows that duplicate a
// transaction already in the ledger are skipped; repeats inside one file are
// kept since a statement can list the same purchase twice.
// Rows with no category match are stored uncategorized.
func (im *Importer) Import(ctx context.Context, userID string, r io.Reader) (*Summary, error) {
	log := logger.FromContext(ctx)

	rows, lineErrs, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}
	sum := &Summary{Errors: []string{}}
	for _, e := range lineErrs {
		sum.Errors = append(sum.Errors, e.Error())
	}
	if len(rows) == 0 {
		return sum, nil
	}

	cats, err := im.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Import: %w", err)
	}
	existing, err := im.store.ListTransactions(ctx, userID, spanOf(rows))
	if err != nil {
		return nil, fmt.Errorf("Import: %w", err)
	}

	fresh := make([]Row, 0, len(rows))
	for _, row := range rows {
		if isDuplicate(row, existing) {
			sum.Skipped++
			continue
		}
		fresh = append(fresh, row)
	}

	ids := make([]string, len(fresh))
	for i, row := range fresh {
		if row.Category == "" {
			continue
		}
		if id := categoryByName(cats, row.Category); id != "" {
			ids[i] = id
		} else if !strings.EqualFold(row.Category, domain.UncategorizedName) {
			sum.Errors = append(sum.Errors, fmt.Sprintf("line %d: unknown category %q, categorizing automatically", row.Line, row.Category))
		}
	}
	im.categorize(ctx, fresh, ids, cats)

	now := im.now().UTC()
	txns := make([]domain.Transaction, 0, len(fresh))
	for i, row := range fresh {
		t := domain.Transaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			Date:        row.Date,
			Amount:      row.Amount,
			Description: row.Description,
			CategoryID:  ids[i],
			CreatedAt:   now,
		}
		if t.CategoryID != domain.Uncategorized {
			sum.Categorized++
		}
		txns = append(txns, t)
	}
	if len(txns) > 0 {
		if err := im.store.CreateTransactions(ctx, txns); err != nil {
			return nil, fmt.Errorf("Import: %w", err)
		}
	}
	sum.Imported = len(txns)

	log.Info().
		Str("user_id", userID).
		Int("imported", sum.Imported).
		Int("skipped", sum.Skipped).
		Int("errors", len(sum.Errors)).
		Msg("Statement imported")
	return sum, nil
}

// categorize fills the empty entries of ids. A failing categorizer is logged
// and skipped; the rows it would have handled stay uncategorized.
func (im *Importer) categorize(ctx context.Context, rows []Row, ids []string, cats []domain.Category) {
	log := logger.FromContext(ctx)
	for _, c := range im.categorizers {
		var (
			pending []int
			descs   []string
		)
		for i, id := range ids {
			if id == "" {
				pending = append(pending, i)
				descs = append(descs, rows[i].Description)
			}
		}
		if len(pending) == 0 {
			return
		}
		got, err := c.Categorize(ctx, descs, cats)
		if err != nil {
			log.Warn().Err(err).Int("rows", len(pending)).Msg("Categorizer failed, leaving rows for the next one")
			continue
		}
		for j, i := range pending {
			if j < len(got) {
				ids[i] = got[j]
			}
		}
	}
}

func spanOf(rows []Row) domain.TransactionFilter {
	first, last := rows[0].Date, rows[0].Date
	for _, r := range rows[1:] {
		if r.Date.Before(first) {
			first = r.Date
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}
	return domain.TransactionFilter{Start: first, End: last.AddDate(0, 0, 1)}
}

func isDuplicate(row Row, existing []domain.Transaction) bool {
	for _, t := range existing {
		if t.Date.Equal(row.Date) && t.Amount.Equal(row.Amount) && similar(t.Description, row.Description) {
			return true
		}
	}
	return false
}

func similar(a, b string) bool {
	a, b = strings.ToUpper(strings.TrimSpace(a)), strings.ToUpper(strings.TrimSpace(b))
	if a == b {
		return true
	}
	maxLen := max(len(a), len(b))
	dist := levenshtein.ComputeDistance(a, b)
	return 1-float64(dist)/float64(maxLen) >= duplicateSimilarity
}
