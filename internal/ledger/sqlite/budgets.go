package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

// CreateBudget implements ledger.BudgetStore.
func (s *Store) CreateBudget(ctx context.Context, b *domain.Budget) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budgets (id, user_id, category_id, amount, period, start_date) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.CategoryID, b.Amount.String(), string(b.Period), b.StartDate.Format(domain.DateLayout))
	if err != nil {
		return fmt.Errorf("CreateBudget: insert: %w", err)
	}
	return nil
}

// ListBudgets implements ledger.BudgetStore.
func (s *Store) ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, amount, period, start_date
		FROM budgets WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListBudgets: query: %w", err)
	}
	defer rows.Close()

	out := []domain.Budget{}
	for rows.Next() {
		var (
			b                    domain.Budget
			amount, period, date string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.CategoryID, &amount, &period, &date); err != nil {
			return nil, fmt.Errorf("ListBudgets: scan: %w", err)
		}
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("ListBudgets: amount of %s: %w", b.ID, err)
		}
		if b.StartDate, err = time.Parse(domain.DateLayout, date); err != nil {
			return nil, fmt.Errorf("ListBudgets: start_date of %s: %w", b.ID, err)
		}
		b.Period = domain.BudgetPeriod(period)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListBudgets: rows: %w", err)
	}
	return out, nil
}

// DeleteBudget implements ledger.BudgetStore.
func (s *Store) DeleteBudget(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("DeleteBudget: delete: %w", err)
	}
	return affectedOrNotFound(res, "budget", id)
}
