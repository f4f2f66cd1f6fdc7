package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-analytics/internal/domain"
)

// CreateBudget implements ledger.BudgetStore.
func (s *Store) CreateBudget(ctx context.Context, b *domain.Budget) error {
	if _, err := s.exec(ctx, `
		INSERT INTO `+s.table(budgetsTable)+`
			(budget_id, user_id, category_id, amount, period, start_date, created_ts)
		VALUES (@budget_id, @user_id, @category_id, @amount, @period, @start_date, CURRENT_TIMESTAMP())`,
		bigquery.QueryParameter{Name: "budget_id", Value: b.ID},
		bigquery.QueryParameter{Name: "user_id", Value: b.UserID},
		bigquery.QueryParameter{Name: "category_id", Value: b.CategoryID},
		bigquery.QueryParameter{Name: "amount", Value: b.Amount.Rat()},
		bigquery.QueryParameter{Name: "period", Value: string(b.Period)},
		bigquery.QueryParameter{Name: "start_date", Value: civil.DateOf(b.StartDate)},
	); err != nil {
		return fmt.Errorf("CreateBudget: %w", err)
	}
	return nil
}

// ListBudgets implements ledger.BudgetStore.
func (s *Store) ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error) {
	rows, err := readAll[budgetRow](ctx, s.query(`
		SELECT budget_id, user_id, category_id, amount, period, start_date
		FROM `+s.table(budgetsTable)+`
		WHERE user_id = @user_id
		ORDER BY created_ts, budget_id`,
		bigquery.QueryParameter{Name: "user_id", Value: userID},
	))
	if err != nil {
		return nil, fmt.Errorf("ListBudgets: %w", err)
	}

	out := make([]domain.Budget, 0, len(rows))
	for _, r := range rows {
		b, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("ListBudgets: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

// DeleteBudget implements ledger.BudgetStore.
func (s *Store) DeleteBudget(ctx context.Context, userID, id string) error {
	affected, err := s.exec(ctx, `
		DELETE FROM `+s.table(budgetsTable)+`
		WHERE budget_id = @budget_id AND user_id = @user_id`,
		bigquery.QueryParameter{Name: "budget_id", Value: id},
		bigquery.QueryParameter{Name: "user_id", Value: userID},
	)
	if err != nil {
		return fmt.Errorf("DeleteBudget: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Resource: "budget", ID: id}
	}
	return nil
}
