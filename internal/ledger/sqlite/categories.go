package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-analytics/internal/domain"
)

// CreateCategory implements ledger.CategoryStore.
func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, kind, icon) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Kind), c.Icon)
	if isUniqueViolation(err) {
		return &domain.ConflictError{Reason: fmt.Sprintf("category %q already exists", c.Name)}
	}
	if err != nil {
		return fmt.Errorf("CreateCategory: insert: %w", err)
	}
	return nil
}

// GetCategory implements ledger.CategoryStore.
func (s *Store) GetCategory(ctx context.Context, userID, id string) (*domain.Category, error) {
	var (
		c    domain.Category
		kind string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, kind, icon FROM categories WHERE id = ? AND user_id = ?`,
		id, userID).Scan(&c.ID, &c.UserID, &c.Name, &kind, &c.Icon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "category", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("GetCategory: scan: %w", err)
	}
	c.Kind = domain.CategoryKind(kind)
	return &c, nil
}

// ListCategories implements ledger.CategoryStore.
func (s *Store) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, kind, icon FROM categories WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query: %w", err)
	}
	defer rows.Close()

	out := []domain.Category{}
	for rows.Next() {
		var (
			c    domain.Category
			kind string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &kind, &c.Icon); err != nil {
			return nil, fmt.Errorf("ListCategories: scan: %w", err)
		}
		c.Kind = domain.CategoryKind(kind)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCategories: rows: %w", err)
	}
	return out, nil
}

// DeleteCategory implements ledger.CategoryStore. The reference check and the
// cascade run in one transaction.
func (s *Store) DeleteCategory(ctx context.Context, userID, id string, mode domain.DeleteMode) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var name string
		err := tx.QueryRowContext(ctx, `SELECT name FROM categories WHERE id = ? AND user_id = ?`, id, userID).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.NotFoundError{Resource: "category", ID: id}
		}
		if err != nil {
			return fmt.Errorf("DeleteCategory: lookup: %w", err)
		}

		if mode == domain.DeleteRestrict {
			var txnRefs, budgetRefs int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE category_id = ?`, id).Scan(&txnRefs); err != nil {
				return fmt.Errorf("DeleteCategory: count transactions: %w", err)
			}
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM budgets WHERE category_id = ?`, id).Scan(&budgetRefs); err != nil {
				return fmt.Errorf("DeleteCategory: count budgets: %w", err)
			}
			if txnRefs+budgetRefs > 0 {
				return &domain.ConflictError{Reason: fmt.Sprintf(
					"category %q is used by %d transactions and %d budgets", name, txnRefs, budgetRefs)}
			}
		}

		if _, err := tx.ExecContext(ctx, `UPDATE transactions SET category_id = NULL WHERE category_id = ?`, id); err != nil {
			return fmt.Errorf("DeleteCategory: uncategorize transactions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM budgets WHERE category_id = ?`, id); err != nil {
			return fmt.Errorf("DeleteCategory: delete budgets: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
			return fmt.Errorf("DeleteCategory: delete category: %w", err)
		}
		return nil
	})
}
