package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

// numericScale is the fractional precision of the NUMERIC type.
const numericScale = 9

type userRow struct {
	UserID       string              `bigquery:"user_id"`
	Username     string              `bigquery:"username"`
	Email        bigquery.NullString `bigquery:"email"`
	PasswordHash string              `bigquery:"password_hash"`
	CreatedTS    time.Time           `bigquery:"created_ts"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.UserID,
		Username:     r.Username,
		Email:        r.Email.StringVal,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedTS.UTC(),
	}
}

type categoryRow struct {
	CategoryID string              `bigquery:"category_id"`
	UserID     string              `bigquery:"user_id"`
	Name       string              `bigquery:"name"`
	Kind       string              `bigquery:"kind"`
	Icon       bigquery.NullString `bigquery:"icon"`
}

func (r categoryRow) toDomain() domain.Category {
	return domain.Category{
		ID:     r.CategoryID,
		UserID: r.UserID,
		Name:   r.Name,
		Kind:   domain.CategoryKind(r.Kind),
		Icon:   r.Icon.StringVal,
	}
}

// transactionRow doubles as the element type of the batch insert parameter,
// so nullable columns travel as empty strings and are mapped with NULLIF.
type transactionRow struct {
	TransactionID   string     `bigquery:"transaction_id"`
	UserID          string     `bigquery:"user_id"`
	TransactionDate civil.Date `bigquery:"transaction_date"`
	Amount          *big.Rat   `bigquery:"amount"`
	Description     string     `bigquery:"description"`
	CategoryID      string     `bigquery:"category_id"`
	IsRecurring     bool       `bigquery:"is_recurring"`
	CreatedTS       time.Time  `bigquery:"created_ts"`
}

// transactionSelect reads category_id back as an empty string for NULL.
const transactionSelect = `transaction_id, user_id, transaction_date, amount, description,
	IFNULL(category_id, '') AS category_id, is_recurring, created_ts`

func toTransactionRow(t domain.Transaction) transactionRow {
	return transactionRow{
		TransactionID:   t.ID,
		UserID:          t.UserID,
		TransactionDate: civil.DateOf(t.Date),
		Amount:          t.Amount.Rat(),
		Description:     t.Description,
		CategoryID:      t.CategoryID,
		IsRecurring:     t.IsRecurring,
		CreatedTS:       t.CreatedAt.UTC(),
	}
}

func (r transactionRow) toDomain() (domain.Transaction, error) {
	if r.Amount == nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: amount is NULL", r.TransactionID)
	}
	return domain.Transaction{
		ID:          r.TransactionID,
		UserID:      r.UserID,
		Date:        dateOf(r.TransactionDate),
		Amount:      decimal.NewFromBigRat(r.Amount, numericScale),
		Description: r.Description,
		CategoryID:  r.CategoryID,
		IsRecurring: r.IsRecurring,
		CreatedAt:   r.CreatedTS.UTC(),
	}, nil
}

type budgetRow struct {
	BudgetID   string     `bigquery:"budget_id"`
	UserID     string     `bigquery:"user_id"`
	CategoryID string     `bigquery:"category_id"`
	Amount     *big.Rat   `bigquery:"amount"`
	Period     string     `bigquery:"period"`
	StartDate  civil.Date `bigquery:"start_date"`
}

func (r budgetRow) toDomain() (domain.Budget, error) {
	if r.Amount == nil {
		return domain.Budget{}, fmt.Errorf("budget %s: amount is NULL", r.BudgetID)
	}
	return domain.Budget{
		ID:         r.BudgetID,
		UserID:     r.UserID,
		CategoryID: r.CategoryID,
		Amount:     decimal.NewFromBigRat(r.Amount, numericScale),
		Period:     domain.BudgetPeriod(r.Period),
		StartDate:  dateOf(r.StartDate),
	}, nil
}

func dateOf(d civil.Date) time.Time {
	return d.In(time.UTC)
}
