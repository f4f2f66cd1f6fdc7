package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single ledger entry owned by one user.
// Amount is signed: money IN is positive, money OUT is negative.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CategoryID  string          `json:"category_id,omitempty"` // empty means uncategorized
	IsRecurring bool            `json:"is_recurring"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Uncategorized is the bucket key used for transactions without a category.
const Uncategorized = ""

// UncategorizedName is the display name for the uncategorized bucket.
const UncategorizedName = "Uncategorized"

// IsOutflow reports whether the transaction moved money out of the account.
func (t Transaction) IsOutflow() bool {
	return t.Amount.IsNegative()
}

// Validate checks the fields every transaction must carry before it is stored.
func (t Transaction) Validate() error {
	if t.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "owner is required"}
	}
	if t.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "date is required"}
	}
	if len(t.Description) > 500 {
		return &ValidationError{Field: "description", Reason: "must be at most 500 characters"}
	}
	return nil
}

// TransactionFilter narrows a transaction listing. Zero values disable a filter.
// The date range is half-open: [Start, End).
type TransactionFilter struct {
	Start      time.Time
	End        time.Time
	CategoryID *string
}

// Matches reports whether t passes the filter.
func (f TransactionFilter) Matches(t Transaction) bool {
	if !f.Start.IsZero() && t.Date.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && !t.Date.Before(f.End) {
		return false
	}
	if f.CategoryID != nil && t.CategoryID != *f.CategoryID {
		return false
	}
	return true
}
