package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-analytics/internal/domain"
)

// CreateCategory implements ledger.CategoryStore.
func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	table := s.table(categoriesTable)
	affected, err := s.exec(ctx, `
		INSERT INTO `+table+` (category_id, user_id, name, kind, icon, created_ts)
		SELECT @category_id, @user_id, @name, @kind, NULLIF(@icon, ''), CURRENT_TIMESTAMP()
		FROM UNNEST([1])
		WHERE NOT EXISTS (
			SELECT 1 FROM `+table+`
			WHERE user_id = @user_id AND LOWER(name) = LOWER(@name)
		)`,
		bigquery.QueryParameter{Name: "category_id", Value: c.ID},
		bigquery.QueryParameter{Name: "user_id", Value: c.UserID},
		bigquery.QueryParameter{Name: "name", Value: c.Name},
		bigquery.QueryParameter{Name: "kind", Value: string(c.Kind)},
		bigquery.QueryParameter{Name: "icon", Value: c.Icon},
	)
	if err != nil {
		return fmt.Errorf("CreateCategory: %w", err)
	}
	if affected == 0 {
		return &domain.ConflictError{Reason: fmt.Sprintf("category %q already exists", c.Name)}
	}
	return nil
}

// GetCategory implements ledger.CategoryStore.
func (s *Store) GetCategory(ctx context.Context, userID, id string) (*domain.Category, error) {
	rows, err := readAll[categoryRow](ctx, s.query(`
		SELECT category_id, user_id, name, kind, icon
		FROM `+s.table(categoriesTable)+`
		WHERE category_id = @category_id AND user_id = @user_id`,
		bigquery.QueryParameter{Name: "category_id", Value: id},
		bigquery.QueryParameter{Name: "user_id", Value: userID},
	))
	if err != nil {
		return nil, fmt.Errorf("GetCategory: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.NotFoundError{Resource: "category", ID: id}
	}
	c := rows[0].toDomain()
	return &c, nil
}

// ListCategories implements ledger.CategoryStore.
func (s *Store) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	rows, err := readAll[categoryRow](ctx, s.query(`
		SELECT category_id, user_id, name, kind, icon
		FROM `+s.table(categoriesTable)+`
		WHERE user_id = @user_id
		ORDER BY created_ts, category_id`,
		bigquery.QueryParameter{Name: "user_id", Value: userID},
	))
	if err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}

	out := make([]domain.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// DeleteCategory implements ledger.CategoryStore. The cascade runs as one
// multi-statement transaction; the restrict check before it is a separate read.
func (s *Store) DeleteCategory(ctx context.Context, userID, id string, mode domain.DeleteMode) error {
	c, err := s.GetCategory(ctx, userID, id)
	if err != nil {
		return err
	}

	params := []bigquery.QueryParameter{
		{Name: "category_id", Value: id},
		{Name: "user_id", Value: userID},
	}

	if mode == domain.DeleteRestrict {
		txnRefs, err := s.count(ctx, `
			SELECT COUNT(*) AS n FROM `+s.table(transactionsTable)+`
			WHERE user_id = @user_id AND category_id = @category_id`, params...)
		if err != nil {
			return fmt.Errorf("DeleteCategory: count transactions: %w", err)
		}
		budgetRefs, err := s.count(ctx, `
			SELECT COUNT(*) AS n FROM `+s.table(budgetsTable)+`
			WHERE user_id = @user_id AND category_id = @category_id`, params...)
		if err != nil {
			return fmt.Errorf("DeleteCategory: count budgets: %w", err)
		}
		if txnRefs+budgetRefs > 0 {
			return &domain.ConflictError{Reason: fmt.Sprintf(
				"category %q is used by %d transactions and %d budgets", c.Name, txnRefs, budgetRefs)}
		}
	}

	if _, err := s.exec(ctx, `
		BEGIN TRANSACTION;
		UPDATE `+s.table(transactionsTable)+` SET category_id = NULL
		WHERE user_id = @user_id AND category_id = @category_id;
		DELETE FROM `+s.table(budgetsTable)+`
		WHERE user_id = @user_id AND category_id = @category_id;
		DELETE FROM `+s.table(categoriesTable)+`
		WHERE user_id = @user_id AND category_id = @category_id;
		COMMIT TRANSACTION;`, params...); err != nil {
		return fmt.Errorf("DeleteCategory: %w", err)
	}

	s.log.Info().Str("category_id", id).Str("user_id", userID).Msg("category deleted")
	return nil
}
