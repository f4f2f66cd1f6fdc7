package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/finance-analytics/internal/analytics"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger/memory"
	"github.com/shopspring/decimal"
)

const owner = "u1"

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := memory.NewStore()
	u := &domain.User{ID: owner, Username: "alice", CreatedAt: time.Now()}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	svc := NewService(store)
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) }
	return svc
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func mustCategory(t *testing.T, svc *Service, name, kind string) *domain.Category {
	t.Helper()
	c, err := svc.CreateCategory(context.Background(), owner, CategoryInput{Name: name, Kind: kind})
	if err != nil {
		t.Fatalf("CreateCategory(%s) failed: %v", name, err)
	}
	return c
}

func mustTxn(t *testing.T, svc *Service, date, amount, categoryID string) *domain.Transaction {
	t.Helper()
	tx, err := svc.CreateTransaction(context.Background(), owner, TransactionInput{
		Date:       day(t, date),
		Amount:     decimal.RequireFromString(amount),
		CategoryID: categoryID,
	})
	if err != nil {
		t.Fatalf("CreateTransaction(%s %s) failed: %v", date, amount, err)
	}
	return tx
}

func TestCreateCategory_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	mustCategory(t, svc, "Food", "expense")

	var verr *domain.ValidationError
	if _, err := svc.CreateCategory(ctx, owner, CategoryInput{Name: "  "}); !errors.As(err, &verr) {
		t.Errorf("blank name: expected ValidationError, got %v", err)
	}
	if _, err := svc.CreateCategory(ctx, owner, CategoryInput{Name: "uncategorized"}); !errors.As(err, &verr) {
		t.Errorf("reserved name: expected ValidationError, got %v", err)
	}
	if _, err := svc.CreateCategory(ctx, owner, CategoryInput{Name: "Misc", Kind: "savings"}); !errors.As(err, &verr) {
		t.Errorf("bad kind: expected ValidationError, got %v", err)
	}
	var conflict *domain.ConflictError
	if _, err := svc.CreateCategory(ctx, owner, CategoryInput{Name: "food"}); !errors.As(err, &conflict) {
		t.Errorf("duplicate: expected ConflictError, got %v", err)
	}
}

func TestCreateTransaction_RejectsUnknownCategory(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CreateTransaction(context.Background(), owner, TransactionInput{
		Date:       day(t, "2024-01-05"),
		Amount:     decimal.NewFromInt(-10),
		CategoryID: "missing",
	})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "category_id" {
		t.Fatalf("expected category_id ValidationError, got %v", err)
	}
}

func TestUpdateTransaction(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	food := mustCategory(t, svc, "Food", "expense")
	tx := mustTxn(t, svc, "2024-01-05", "-10", "")

	updated, err := svc.UpdateTransaction(ctx, owner, tx.ID, TransactionInput{
		Date:        day(t, "2024-01-06"),
		Amount:      decimal.NewFromInt(-12),
		Description: "lunch",
		CategoryID:  food.ID,
	})
	if err != nil {
		t.Fatalf("UpdateTransaction failed: %v", err)
	}
	if !updated.CreatedAt.Equal(tx.CreatedAt) {
		t.Error("CreatedAt must survive an update")
	}

	got, err := svc.GetTransaction(ctx, owner, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if got.CategoryID != food.ID || !got.Amount.Equal(decimal.NewFromInt(-12)) || got.Description != "lunch" {
		t.Errorf("update not stored: %+v", got)
	}

	if _, err := svc.UpdateTransaction(ctx, owner, "nope", TransactionInput{Date: day(t, "2024-01-06")}); !domain.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
	if _, err := svc.UpdateTransaction(ctx, "u2", tx.ID, TransactionInput{Date: day(t, "2024-01-06")}); !domain.IsNotFound(err) {
		t.Errorf("foreign owner: expected NotFoundError, got %v", err)
	}
}

func TestSummary_EndDateIsInclusive(t *testing.T) {
	svc := newTestService(t)
	food := mustCategory(t, svc, "Food", "expense")
	salary := mustCategory(t, svc, "Salary", "income")
	mustTxn(t, svc, "2024-01-01", "-10", food.ID)
	mustTxn(t, svc, "2024-01-31", "-5", food.ID)
	mustTxn(t, svc, "2024-02-01", "-99", food.ID)
	mustTxn(t, svc, "2024-01-15", "1000", salary.ID)
	mustTxn(t, svc, "2024-01-20", "-7", "")

	rows, err := svc.Summary(context.Background(), owner, day(t, "2024-01-01"), day(t, "2024-01-31"))
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	want := map[string]string{"Food": "15", domain.UncategorizedName: "7"}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d: %+v", len(rows), len(want), rows)
	}
	for _, r := range rows {
		if !r.TotalSpent.Equal(decimal.RequireFromString(want[r.Category])) {
			t.Errorf("%s spent = %s, want %s", r.Category, r.TotalSpent, want[r.Category])
		}
	}

	var verr *domain.ValidationError
	if _, err := svc.Summary(context.Background(), owner, day(t, "2024-02-01"), day(t, "2024-01-01")); !errors.As(err, &verr) {
		t.Errorf("reversed range: expected ValidationError, got %v", err)
	}
}

func TestCreateBudget_Overlap(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	food := mustCategory(t, svc, "Food", "expense")

	in := BudgetInput{CategoryID: food.ID, Amount: decimal.NewFromInt(500), Period: "monthly", StartDate: day(t, "2024-01-01")}
	if _, err := svc.CreateBudget(ctx, owner, in); err != nil {
		t.Fatalf("CreateBudget failed: %v", err)
	}

	tests := []struct {
		name    string
		in      BudgetInput
		wantErr any
	}{
		{
			name:    "same window",
			in:      in,
			wantErr: &domain.ConflictError{},
		},
		{
			name:    "overlapping start",
			in:      BudgetInput{CategoryID: food.ID, Amount: decimal.NewFromInt(10), Period: "monthly", StartDate: day(t, "2024-01-15")},
			wantErr: &domain.ConflictError{},
		},
		{
			name: "next month",
			in:   BudgetInput{CategoryID: food.ID, Amount: decimal.NewFromInt(10), Period: "monthly", StartDate: day(t, "2024-02-01")},
		},
		{
			name: "different period",
			in:   BudgetInput{CategoryID: food.ID, Amount: decimal.NewFromInt(1500), Period: "quarterly", StartDate: day(t, "2024-01-01")},
		},
		{
			name:    "unknown category",
			in:      BudgetInput{CategoryID: "missing", Amount: decimal.NewFromInt(10), StartDate: day(t, "2024-01-01")},
			wantErr: &domain.ValidationError{},
		},
		{
			name:    "negative amount",
			in:      BudgetInput{CategoryID: food.ID, Amount: decimal.NewFromInt(-1), StartDate: day(t, "2025-01-01")},
			wantErr: &domain.ValidationError{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBudget(ctx, owner, tt.in)
			switch want := tt.wantErr.(type) {
			case nil:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			case *domain.ConflictError:
				if !errors.As(err, &want) {
					t.Fatalf("expected ConflictError, got %v", err)
				}
			case *domain.ValidationError:
				if !errors.As(err, &want) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
			}
		})
	}
}

func TestPerformance_FoodBudget(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	food := mustCategory(t, svc, "Food", "expense")
	salary := mustCategory(t, svc, "Salary", "income")
	if _, err := svc.CreateBudget(ctx, owner, BudgetInput{
		CategoryID: food.ID, Amount: decimal.NewFromInt(500), Period: "monthly", StartDate: day(t, "2024-01-01"),
	}); err != nil {
		t.Fatalf("CreateBudget failed: %v", err)
	}
	mustTxn(t, svc, "2024-01-03", "-120", food.ID)
	mustTxn(t, svc, "2024-01-20", "-80", food.ID)
	mustTxn(t, svc, "2024-01-25", "3000", salary.ID)
	mustTxn(t, svc, "2024-02-01", "-400", food.ID)

	perf, err := svc.Performance(ctx, owner, day(t, "2024-01-01"))
	if err != nil {
		t.Fatalf("Performance failed: %v", err)
	}
	if len(perf.Lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(perf.Lines))
	}
	line := perf.Lines[0]
	if !line.Spent.Equal(decimal.NewFromInt(200)) || !line.Remaining.Equal(decimal.NewFromInt(300)) {
		t.Errorf("spent/remaining = %s/%s, want 200/300", line.Spent, line.Remaining)
	}
	if line.Percent != 40 || line.IsOver {
		t.Errorf("percent/over = %v/%v, want 40/false", line.Percent, line.IsOver)
	}
	if len(perf.Anomalies) != 0 {
		t.Errorf("unexpected anomalies: %v", perf.Anomalies)
	}

	// A mid-month evaluation date still selects January.
	mid, err := svc.Performance(ctx, owner, day(t, "2024-01-17"))
	if err != nil || len(mid.Lines) != 1 {
		t.Fatalf("mid-month Performance = %+v, %v", mid, err)
	}

	feb, err := svc.Performance(ctx, owner, day(t, "2024-02-01"))
	if err != nil {
		t.Fatalf("Performance failed: %v", err)
	}
	if len(feb.Lines) != 0 {
		t.Errorf("February has no active budget, got %+v", feb.Lines)
	}
}

func TestPerformance_DefaultsToCurrentMonth(t *testing.T) {
	svc := newTestService(t)
	perf, err := svc.Performance(context.Background(), owner, time.Time{})
	if err != nil {
		t.Fatalf("Performance failed: %v", err)
	}
	if !perf.MonthStart.Equal(day(t, "2024-03-01")) {
		t.Errorf("month start = %s", perf.MonthStart)
	}
	if perf.Lines == nil || perf.Anomalies == nil {
		t.Error("empty results must be non-nil slices")
	}
}

func TestDeleteCategory_RestrictAndCascade(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	food := mustCategory(t, svc, "Food", "expense")
	tx := mustTxn(t, svc, "2024-01-03", "-120", food.ID)

	var conflict *domain.ConflictError
	if err := svc.DeleteCategory(ctx, owner, food.ID, false); !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if err := svc.DeleteCategory(ctx, owner, food.ID, true); err != nil {
		t.Fatalf("cascade delete failed: %v", err)
	}
	got, err := svc.GetTransaction(ctx, owner, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if got.CategoryID != domain.Uncategorized {
		t.Errorf("transaction should be uncategorized, got %q", got.CategoryID)
	}
}

func TestTrendsAndForecast(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	food := mustCategory(t, svc, "Food", "expense")
	mustTxn(t, svc, "2024-01-10", "-100", food.ID)
	mustTxn(t, svc, "2024-02-10", "-120", food.ID)
	mustTxn(t, svc, "2024-03-10", "-140", food.ID)

	months, err := svc.Trends(ctx, owner)
	if err != nil {
		t.Fatalf("Trends failed: %v", err)
	}
	if len(months) != 3 || months[0].Label != "Jan 2024" {
		t.Fatalf("unexpected series: %+v", months)
	}

	f, err := svc.Forecast(ctx, owner)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	if f.PredictedAmount == nil || *f.PredictedAmount < 159.999 || *f.PredictedAmount > 160.001 {
		t.Errorf("predicted = %v, want 160", f.PredictedAmount)
	}
	if f.Trend != analytics.TrendIncreasing {
		t.Errorf("trend = %s", f.Trend)
	}
}

func TestForecast_NoHistory(t *testing.T) {
	svc := newTestService(t)
	f, err := svc.Forecast(context.Background(), owner)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	if f.PredictedAmount != nil || f.Message != analytics.MsgInsufficientData {
		t.Errorf("unexpected forecast: %+v", f)
	}
	months, _ := svc.Trends(context.Background(), owner)
	if months == nil || len(months) != 0 {
		t.Errorf("Trends on empty ledger = %v, want empty slice", months)
	}
}
