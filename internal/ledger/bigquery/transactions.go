package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-analytics/internal/domain"
)

// CreateTransactions implements ledger.TransactionStore. The batch goes in as
// one statement, and not at all if any of its ids is already stored.
func (s *Store) CreateTransactions(ctx context.Context, txns []domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	rows := make([]transactionRow, 0, len(txns))
	ids := make([]string, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, toTransactionRow(t))
		ids = append(ids, t.ID)
	}

	table := s.table(transactionsTable)
	affected, err := s.exec(ctx, `
		INSERT INTO `+table+`
			(transaction_id, user_id, transaction_date, amount, description, category_id, is_recurring, created_ts)
		SELECT r.transaction_id, r.user_id, r.transaction_date, r.amount, r.description,
			NULLIF(r.category_id, ''), r.is_recurring, r.created_ts
		FROM UNNEST(@rows) AS r
		WHERE NOT EXISTS (
			SELECT 1 FROM `+table+` WHERE transaction_id IN UNNEST(@ids)
		)`,
		bigquery.QueryParameter{Name: "rows", Value: rows},
		bigquery.QueryParameter{Name: "ids", Value: ids},
	)
	if err != nil {
		return fmt.Errorf("CreateTransactions: %w", err)
	}
	if affected == 0 {
		return &domain.ConflictError{Reason: "transactions already exist"}
	}

	s.log.Debug().Int("count", len(txns)).Msg("transactions inserted")
	return nil
}

// GetTransaction implements ledger.TransactionStore.
func (s *Store) GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	rows, err := readAll[transactionRow](ctx, s.query(`
		SELECT `+transactionSelect+`
		FROM `+s.table(transactionsTable)+`
		WHERE transaction_id = @transaction_id AND user_id = @user_id`,
		bigquery.QueryParameter{Name: "transaction_id", Value: id},
		bigquery.QueryParameter{Name: "user_id", Value: userID},
	))
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.NotFoundError{Resource: "transaction", ID: id}
	}
	t, err := rows[0].toDomain()
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return &t, nil
}

// ListTransactions implements ledger.TransactionStore.
func (s *Store) ListTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	sql, params := listTransactionsQuery(s.table(transactionsTable), userID, filter)
	rows, err := readAll[transactionRow](ctx, s.query(sql, params...))
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func listTransactionsQuery(table, userID string, filter domain.TransactionFilter) (string, []bigquery.QueryParameter) {
	where := []string{"user_id = @user_id"}
	params := []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	if !filter.Start.IsZero() {
		where = append(where, "transaction_date >= @start_date")
		params = append(params, bigquery.QueryParameter{Name: "start_date", Value: civil.DateOf(filter.Start)})
	}
	if !filter.End.IsZero() {
		where = append(where, "transaction_date < @end_date")
		params = append(params, bigquery.QueryParameter{Name: "end_date", Value: civil.DateOf(filter.End)})
	}
	if filter.CategoryID != nil {
		if *filter.CategoryID == domain.Uncategorized {
			where = append(where, "category_id IS NULL")
		} else {
			where = append(where, "category_id = @category_id")
			params = append(params, bigquery.QueryParameter{Name: "category_id", Value: *filter.CategoryID})
		}
	}

	sql := `
		SELECT ` + transactionSelect + `
		FROM ` + table + `
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY transaction_date, created_ts, transaction_id`
	return sql, params
}

// UpdateTransaction implements ledger.TransactionStore.
func (s *Store) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	row := toTransactionRow(*t)
	affected, err := s.exec(ctx, `
		UPDATE `+s.table(transactionsTable)+`
		SET transaction_date = @transaction_date,
		    amount = @amount,
		    description = @description,
		    category_id = NULLIF(@category_id, ''),
		    is_recurring = @is_recurring
		WHERE transaction_id = @transaction_id AND user_id = @user_id`,
		bigquery.QueryParameter{Name: "transaction_date", Value: row.TransactionDate},
		bigquery.QueryParameter{Name: "amount", Value: row.Amount},
		bigquery.QueryParameter{Name: "description", Value: row.Description},
		bigquery.QueryParameter{Name: "category_id", Value: row.CategoryID},
		bigquery.QueryParameter{Name: "is_recurring", Value: row.IsRecurring},
		bigquery.QueryParameter{Name: "transaction_id", Value: row.TransactionID},
		bigquery.QueryParameter{Name: "user_id", Value: row.UserID},
	)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Resource: "transaction", ID: t.ID}
	}
	return nil
}

// DeleteTransaction implements ledger.TransactionStore.
func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	affected, err := s.exec(ctx, `
		DELETE FROM `+s.table(transactionsTable)+`
		WHERE transaction_id = @transaction_id AND user_id = @user_id`,
		bigquery.QueryParameter{Name: "transaction_id", Value: id},
		bigquery.QueryParameter{Name: "user_id", Value: userID},
	)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Resource: "transaction", ID: id}
	}
	return nil
}
