package analytics

import (
	"errors"
	"testing"

	"github.com/dvloznov/finance-analytics/internal/domain"
)

func TestAggregate_SumsPerCategoryInsideHalfOpenPeriod(t *testing.T) {
	march := domain.MonthOf(date(t, "2024-03-10"))
	txns := []domain.Transaction{
		txn(t, "1", "2024-03-01", "-50.00", "food"),
		txn(t, "2", "2024-03-15", "-30.00", "food"),
		txn(t, "3", "2024-03-31", "-0.01", "food"),
		txn(t, "4", "2024-04-01", "-999", "food"), // first day of the next window
		txn(t, "5", "2024-02-29", "-999", "food"),
		txn(t, "6", "2024-03-05", "-1200", "rent"),
		txn(t, "7", "2024-03-05", "-5", ""),
	}

	got := Aggregate(txns, march, AllFlows)

	tests := []struct {
		category string
		want     string
	}{
		{"food", "-80.01"},
		{"rent", "-1200"},
		{"", "-5"},
		{"salary", "0"},
	}
	for _, tt := range tests {
		if !got.Total(tt.category).Equal(dec(tt.want)) {
			t.Errorf("Total(%q) = %s, want %s", tt.category, got.Total(tt.category), tt.want)
		}
	}
	if _, ok := got["salary"]; ok {
		t.Error("expected no bucket for a category without transactions")
	}
}

func TestAggregate_SumOfBucketsEqualsSumOfTransactions(t *testing.T) {
	txns := []domain.Transaction{
		txn(t, "1", "2024-05-02", "-10.10", "food"),
		txn(t, "2", "2024-05-03", "2500", "salary"),
		txn(t, "3", "2024-05-04", "-0.20", "food"),
		txn(t, "4", "2024-05-05", "-300", "savings"),
		txn(t, "5", "2024-05-06", "-7.70", ""),
	}
	got := Aggregate(txns, domain.MonthOf(date(t, "2024-05-01")), nil)

	want := dec("0")
	for _, tx := range txns {
		want = want.Add(tx.Amount)
	}
	if !got.Sum().Equal(want) {
		t.Errorf("Sum() = %s, want %s", got.Sum(), want)
	}
}

func TestAggregate_SpendFilterSkipsIncomeTransfersAndDangling(t *testing.T) {
	txns := []domain.Transaction{
		txn(t, "1", "2024-05-02", "-40", "food"),
		txn(t, "2", "2024-05-02", "10", "food"), // refund
		txn(t, "3", "2024-05-03", "2500", "salary"),
		txn(t, "4", "2024-05-04", "-300", "savings"),
		txn(t, "5", "2024-05-05", "-8", ""),
		txn(t, "6", "2024-05-06", "-99", "deleted"),
	}
	got := Aggregate(txns, domain.MonthOf(date(t, "2024-05-01")), SpendFilter(testCategories))

	if !got.Spent("food").Equal(dec("30")) {
		t.Errorf("Spent(food) = %s, want 30", got.Spent("food"))
	}
	if !got.Spent(domain.Uncategorized).Equal(dec("8")) {
		t.Errorf("Spent(uncategorized) = %s, want 8", got.Spent(domain.Uncategorized))
	}
	for _, id := range []string{"salary", "savings", "deleted"} {
		if _, ok := got[id]; ok {
			t.Errorf("expected %q to be excluded from spend", id)
		}
	}
}

func TestDanglingTransactions(t *testing.T) {
	txns := []domain.Transaction{
		txn(t, "1", "2024-05-02", "-40", "food"),
		txn(t, "2", "2024-05-06", "-99", "deleted"),
		txn(t, "3", "2024-06-06", "-99", "deleted"),
	}
	got := DanglingTransactions(txns, testCategories, domain.MonthOf(date(t, "2024-05-01")))
	if len(got) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(got))
	}
	var dangling *domain.DanglingReferenceError
	if !errors.As(got[0], &dangling) || dangling.ID != "2" {
		t.Errorf("unexpected anomaly: %v", got[0])
	}
}

func TestSummarize_NamesUncategorized(t *testing.T) {
	totals := Totals{"food": dec("-12.5"), "": dec("-3")}
	rows := Summarize(totals, testCategories)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Category != "Food" || !rows[0].TotalSpent.Equal(dec("12.5")) {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Category != domain.UncategorizedName {
		t.Errorf("expected uncategorized row, got %+v", rows[1])
	}
}

func TestMonthlySeries_FillsGapsAndSplitsFlows(t *testing.T) {
	txns := []domain.Transaction{
		txn(t, "1", "2024-03-31", "3000", "salary"),
		txn(t, "2", "2024-01-10", "-100", "food"),
		txn(t, "3", "2024-01-20", "-20", "savings"),
		txn(t, "4", "2024-03-02", "-140", "food"),
	}
	got := MonthlySeries(txns, testCategories)
	if len(got) != 3 {
		t.Fatalf("expected 3 months, got %d", len(got))
	}

	tests := []struct {
		label  string
		net    string
		spent  string
		income string
	}{
		{"Jan 2024", "-120", "100", "0"},
		{"Feb 2024", "0", "0", "0"},
		{"Mar 2024", "2860", "140", "3000"},
	}
	for i, tt := range tests {
		p := got[i]
		if p.Label != tt.label {
			t.Errorf("month %d label = %q, want %q", i, p.Label, tt.label)
		}
		if !p.Net.Equal(dec(tt.net)) || !p.Spent.Equal(dec(tt.spent)) || !p.Income.Equal(dec(tt.income)) {
			t.Errorf("%s: got net=%s spent=%s income=%s", tt.label, p.Net, p.Spent, p.Income)
		}
	}
}

func TestMonthlySeries_Empty(t *testing.T) {
	if got := MonthlySeries(nil, testCategories); got != nil {
		t.Errorf("expected nil series, got %v", got)
	}
}

func TestMonthlySeriesIn_CoversWholeWindow(t *testing.T) {
	txns := []domain.Transaction{
		txn(t, "1", "2023-12-31", "-999", "food"),
		txn(t, "2", "2024-02-10", "-40", "food"),
	}
	window := domain.Period{Start: date(t, "2024-01-01"), End: date(t, "2024-04-01")}
	got := MonthlySeriesIn(txns, testCategories, window)

	if len(got) != 3 {
		t.Fatalf("expected 3 months, got %d", len(got))
	}
	if !got[0].Spent.IsZero() || !got[1].Spent.Equal(dec("40")) || !got[2].Spent.IsZero() {
		t.Errorf("unexpected spend series: %v %v %v", got[0].Spent, got[1].Spent, got[2].Spent)
	}
}
