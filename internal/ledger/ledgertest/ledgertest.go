// Package ledgertest holds behaviour checks every ledger.Store backend must pass.
package ledgertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"github.com/shopspring/decimal"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) ledger.Store

// Run exercises a backend against the ledger contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("categories", func(t *testing.T) { testCategories(t, newStore(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("budgets", func(t *testing.T) { testBudgets(t, newStore(t)) })
	t.Run("delete restrict", func(t *testing.T) { testDeleteRestrict(t, newStore(t)) })
	t.Run("delete cascade", func(t *testing.T) { testDeleteCascade(t, newStore(t)) })
	t.Run("owner isolation", func(t *testing.T) { testOwnerIsolation(t, newStore(t)) })
}

func day(s string) time.Time {
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func seed(t *testing.T, s ledger.Store) {
	t.Helper()
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, u := range []domain.User{
		{ID: "u1", Username: "alice", Email: "alice@example.com", PasswordHash: "h", CreatedAt: created},
		{ID: "u2", Username: "bob", Email: "bob@example.com", PasswordHash: "h", CreatedAt: created},
	} {
		u := u
		if err := s.CreateUser(ctx, &u); err != nil {
			t.Fatalf("CreateUser(%s) failed: %v", u.Username, err)
		}
	}
	for _, c := range []domain.Category{
		{ID: "food", UserID: "u1", Name: "Food", Kind: domain.KindExpense},
		{ID: "salary", UserID: "u1", Name: "Salary", Kind: domain.KindIncome, Icon: "💰"},
	} {
		c := c
		if err := s.CreateCategory(ctx, &c); err != nil {
			t.Fatalf("CreateCategory(%s) failed: %v", c.Name, err)
		}
	}
}

func testUsers(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	seed(t, s)

	u, err := s.GetUserByUsername(ctx, "alice")
	if err != nil || u.ID != "u1" || u.PasswordHash != "h" {
		t.Fatalf("GetUserByUsername: got %+v, %v", u, err)
	}
	if _, err := s.GetUser(ctx, "u2"); err != nil {
		t.Errorf("GetUser failed: %v", err)
	}
	if _, err := s.GetUser(ctx, "nope"); !domain.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}

	dup := domain.User{ID: "u3", Username: "alice", Email: "other@example.com", CreatedAt: time.Now()}
	var conflict *domain.ConflictError
	if err := s.CreateUser(ctx, &dup); !errors.As(err, &conflict) {
		t.Errorf("expected ConflictError on duplicate username, got %v", err)
	}
}

func testCategories(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	seed(t, s)

	cats, err := s.ListCategories(ctx, "u1")
	if err != nil {
		t.Fatalf("ListCategories failed: %v", err)
	}
	if len(cats) != 2 || cats[0].ID != "food" || cats[1].Kind != domain.KindIncome || cats[1].Icon != "💰" {
		t.Errorf("unexpected categories: %+v", cats)
	}

	dup := domain.Category{ID: "food2", UserID: "u1", Name: "Food", Kind: domain.KindExpense}
	var conflict *domain.ConflictError
	if err := s.CreateCategory(ctx, &dup); !errors.As(err, &conflict) {
		t.Errorf("expected ConflictError on duplicate name, got %v", err)
	}

	sameNameOtherUser := domain.Category{ID: "bfood", UserID: "u2", Name: "Food", Kind: domain.KindExpense}
	if err := s.CreateCategory(ctx, &sameNameOtherUser); err != nil {
		t.Errorf("names are per owner, got %v", err)
	}
}

func testTransactions(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	seed(t, s)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	txns := []domain.Transaction{
		{ID: "t2", UserID: "u1", Date: day("2024-03-15"), Amount: decimal.RequireFromString("-30.00"), Description: "lunch", CategoryID: "food", CreatedAt: created},
		{ID: "t1", UserID: "u1", Date: day("2024-03-03"), Amount: decimal.RequireFromString("-50.25"), Description: "groceries", CategoryID: "food", CreatedAt: created},
		{ID: "t3", UserID: "u1", Date: day("2024-04-01"), Amount: decimal.RequireFromString("2500"), Description: "pay", CategoryID: "salary", IsRecurring: true, CreatedAt: created},
		{ID: "t4", UserID: "u1", Date: day("2024-03-20"), Amount: decimal.RequireFromString("-4.99"), Description: "misc", CreatedAt: created},
	}
	if err := s.CreateTransactions(ctx, txns); err != nil {
		t.Fatalf("CreateTransactions failed: %v", err)
	}

	march := domain.MonthOf(day("2024-03-01"))
	got, err := s.ListTransactions(ctx, "u1", domain.TransactionFilter{Start: march.Start, End: march.End})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(got) != 3 || got[0].ID != "t1" || got[1].ID != "t2" || got[2].ID != "t4" {
		t.Fatalf("unexpected march listing: %+v", got)
	}
	if !got[0].Amount.Equal(decimal.RequireFromString("-50.25")) {
		t.Errorf("amount round trip: got %s", got[0].Amount)
	}
	if got[2].CategoryID != domain.Uncategorized {
		t.Errorf("uncategorized round trip: got %q", got[2].CategoryID)
	}

	uncategorized := domain.Uncategorized
	got, _ = s.ListTransactions(ctx, "u1", domain.TransactionFilter{CategoryID: &uncategorized})
	if len(got) != 1 || got[0].ID != "t4" {
		t.Errorf("uncategorized filter: %+v", got)
	}

	one, err := s.GetTransaction(ctx, "u1", "t3")
	if err != nil || !one.IsRecurring || !one.Date.Equal(day("2024-04-01")) {
		t.Fatalf("GetTransaction: %+v, %v", one, err)
	}

	one.Description = "salary april"
	one.Amount = decimal.RequireFromString("2600")
	if err := s.UpdateTransaction(ctx, one); err != nil {
		t.Fatalf("UpdateTransaction failed: %v", err)
	}
	again, _ := s.GetTransaction(ctx, "u1", "t3")
	if again.Description != "salary april" || !again.Amount.Equal(decimal.RequireFromString("2600")) {
		t.Errorf("update not applied: %+v", again)
	}

	if err := s.DeleteTransaction(ctx, "u1", "t3"); err != nil {
		t.Fatalf("DeleteTransaction failed: %v", err)
	}
	if _, err := s.GetTransaction(ctx, "u1", "t3"); !domain.IsNotFound(err) {
		t.Errorf("expected NotFoundError after delete, got %v", err)
	}
	if err := s.DeleteTransaction(ctx, "u1", "t3"); !domain.IsNotFound(err) {
		t.Errorf("expected NotFoundError on second delete, got %v", err)
	}
}

func testBudgets(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	seed(t, s)

	for _, b := range []domain.Budget{
		{ID: "b1", UserID: "u1", CategoryID: "food", Amount: decimal.RequireFromString("100"), Period: domain.PeriodMonthly, StartDate: day("2024-03-01")},
		{ID: "b2", UserID: "u1", CategoryID: "food", Amount: decimal.RequireFromString("1000.50"), Period: domain.PeriodYearly, StartDate: day("2024-01-01")},
	} {
		b := b
		if err := s.CreateBudget(ctx, &b); err != nil {
			t.Fatalf("CreateBudget failed: %v", err)
		}
	}

	got, err := s.ListBudgets(ctx, "u1")
	if err != nil {
		t.Fatalf("ListBudgets failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b1" || got[1].Period != domain.PeriodYearly || !got[1].Amount.Equal(decimal.RequireFromString("1000.50")) {
		t.Fatalf("unexpected budgets: %+v", got)
	}
	if !got[0].StartDate.Equal(day("2024-03-01")) {
		t.Errorf("start date round trip: %s", got[0].StartDate)
	}

	if err := s.DeleteBudget(ctx, "u1", "b1"); err != nil {
		t.Fatalf("DeleteBudget failed: %v", err)
	}
	if err := s.DeleteBudget(ctx, "u1", "b1"); !domain.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func seedReferences(t *testing.T, s ledger.Store) {
	t.Helper()
	ctx := context.Background()
	seed(t, s)
	if err := s.CreateTransactions(ctx, []domain.Transaction{
		{ID: "t1", UserID: "u1", Date: day("2024-03-03"), Amount: decimal.RequireFromString("-50"), CategoryID: "food", CreatedAt: time.Now().UTC()},
	}); err != nil {
		t.Fatalf("CreateTransactions failed: %v", err)
	}
	b := domain.Budget{ID: "b1", UserID: "u1", CategoryID: "food", Amount: decimal.RequireFromString("100"), Period: domain.PeriodMonthly, StartDate: day("2024-03-01")}
	if err := s.CreateBudget(ctx, &b); err != nil {
		t.Fatalf("CreateBudget failed: %v", err)
	}
}

func testDeleteRestrict(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	seedReferences(t, s)

	var conflict *domain.ConflictError
	if err := s.DeleteCategory(ctx, "u1", "food", domain.DeleteRestrict); !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if _, err := s.GetCategory(ctx, "u1", "food"); err != nil {
		t.Errorf("category should survive a refused delete: %v", err)
	}
	if err := s.DeleteCategory(ctx, "u1", "salary", domain.DeleteRestrict); err != nil {
		t.Errorf("unreferenced category should delete: %v", err)
	}
}

func testDeleteCascade(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	seedReferences(t, s)

	if err := s.DeleteCategory(ctx, "u1", "food", domain.DeleteCascade); err != nil {
		t.Fatalf("cascade delete failed: %v", err)
	}
	txn, err := s.GetTransaction(ctx, "u1", "t1")
	if err != nil || txn.CategoryID != domain.Uncategorized {
		t.Errorf("transaction should be uncategorized: %+v, %v", txn, err)
	}
	budgets, _ := s.ListBudgets(ctx, "u1")
	if len(budgets) != 0 {
		t.Errorf("budgets should be removed: %+v", budgets)
	}
	if _, err := s.GetCategory(ctx, "u1", "food"); !domain.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func testOwnerIsolation(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	seedReferences(t, s)

	if _, err := s.GetCategory(ctx, "u2", "food"); !domain.IsNotFound(err) {
		t.Errorf("foreign category visible: %v", err)
	}
	if _, err := s.GetTransaction(ctx, "u2", "t1"); !domain.IsNotFound(err) {
		t.Errorf("foreign transaction visible: %v", err)
	}
	if err := s.DeleteBudget(ctx, "u2", "b1"); !domain.IsNotFound(err) {
		t.Errorf("foreign budget deletable: %v", err)
	}
	if err := s.DeleteCategory(ctx, "u2", "food", domain.DeleteCascade); !domain.IsNotFound(err) {
		t.Errorf("foreign category deletable: %v", err)
	}
	txns, _ := s.ListTransactions(ctx, "u2", domain.TransactionFilter{})
	if len(txns) != 0 {
		t.Errorf("foreign transactions listed: %+v", txns)
	}
	stolen := domain.Transaction{ID: "t1", UserID: "u2", Date: day("2024-03-03"), Amount: decimal.RequireFromString("-1")}
	if err := s.UpdateTransaction(ctx, &stolen); !domain.IsNotFound(err) {
		t.Errorf("foreign transaction updatable: %v", err)
	}
}
