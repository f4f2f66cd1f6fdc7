package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, user_id, date, amount, description, category_id, is_recurring, created_at`

// CreateTransactions implements ledger.TransactionStore.
func (s *Store) CreateTransactions(ctx context.Context, txns []domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("CreateTransactions: prepare: %w", err)
		}
		defer stmt.Close()

		for _, t := range txns {
			_, err := stmt.ExecContext(ctx, t.ID, t.UserID, t.Date.Format(domain.DateLayout), t.Amount.String(),
				t.Description, nullString(t.CategoryID), t.IsRecurring, formatTime(t.CreatedAt))
			if isUniqueViolation(err) {
				return &domain.ConflictError{Reason: fmt.Sprintf("transaction %s already exists", t.ID)}
			}
			if err != nil {
				return fmt.Errorf("CreateTransactions: insert %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// GetTransaction implements ledger.TransactionStore.
func (s *Store) GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: query: %w", err)
	}
	defer rows.Close()

	txns, err := scanTransactions(rows)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	if len(txns) == 0 {
		return nil, &domain.NotFoundError{Resource: "transaction", ID: id}
	}
	return &txns[0], nil
}

// ListTransactions implements ledger.TransactionStore.
func (s *Store) ListTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	if !filter.Start.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, filter.Start.Format(domain.DateLayout))
	}
	if !filter.End.IsZero() {
		where = append(where, "date < ?")
		args = append(args, filter.End.Format(domain.DateLayout))
	}
	if filter.CategoryID != nil {
		if *filter.CategoryID == domain.Uncategorized {
			where = append(where, "category_id IS NULL")
		} else {
			where = append(where, "category_id = ?")
			args = append(args, *filter.CategoryID)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY date, created_at, rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	defer rows.Close()

	txns, err := scanTransactions(rows)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return txns, nil
}

// UpdateTransaction implements ledger.TransactionStore.
func (s *Store) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET date = ?, amount = ?, description = ?, category_id = ?, is_recurring = ?
		WHERE id = ? AND user_id = ?`,
		t.Date.Format(domain.DateLayout), t.Amount.String(), t.Description, nullString(t.CategoryID), t.IsRecurring,
		t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: update: %w", err)
	}
	return affectedOrNotFound(res, "transaction", t.ID)
}

// DeleteTransaction implements ledger.TransactionStore.
func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: delete: %w", err)
	}
	return affectedOrNotFound(res, "transaction", id)
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	out := []domain.Transaction{}
	for rows.Next() {
		var (
			t                     domain.Transaction
			date, amount, created string
			category              sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.UserID, &date, &amount, &t.Description, &category, &t.IsRecurring, &created); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var err error
		if t.Date, err = time.Parse(domain.DateLayout, date); err != nil {
			return nil, fmt.Errorf("scan %s: date: %w", t.ID, err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("scan %s: amount: %w", t.ID, err)
		}
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("scan %s: created_at: %w", t.ID, err)
		}
		t.CategoryID = category.String
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
