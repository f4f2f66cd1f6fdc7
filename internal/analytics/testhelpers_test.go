package analytics

import (
	"testing"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func txn(t *testing.T, id, day, amount, category string) domain.Transaction {
	t.Helper()
	return domain.Transaction{ID: id, UserID: "u1", Date: date(t, day), Amount: dec(amount), CategoryID: category}
}

var testCategories = []domain.Category{
	{ID: "food", Name: "Food", Kind: domain.KindExpense},
	{ID: "rent", Name: "Rent", Kind: domain.KindExpense},
	{ID: "salary", Name: "Salary", Kind: domain.KindIncome},
	{ID: "savings", Name: "Savings", Kind: domain.KindTransfer},
}
