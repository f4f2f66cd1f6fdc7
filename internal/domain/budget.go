package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BudgetPeriod is the length of a budget window.
type BudgetPeriod string

const (
	PeriodMonthly   BudgetPeriod = "monthly"
	PeriodQuarterly BudgetPeriod = "quarterly"
	PeriodYearly    BudgetPeriod = "yearly"
)

// ParseBudgetPeriod normalizes a period name. Empty defaults to monthly.
func ParseBudgetPeriod(s string) (BudgetPeriod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "monthly":
		return PeriodMonthly, nil
	case "quarterly":
		return PeriodQuarterly, nil
	case "yearly", "annual":
		return PeriodYearly, nil
	default:
		return "", &ValidationError{Field: "period", Reason: "must be one of monthly, quarterly, yearly"}
	}
}

// Budget is a spending limit for one category over one window.
type Budget struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	CategoryID string          `json:"category_id"`
	Amount     decimal.Decimal `json:"amount"`
	Period     BudgetPeriod    `json:"period"`
	StartDate  time.Time       `json:"start_date"`
}

// Window returns the half-open interval the budget covers.
func (b Budget) Window() Period {
	start := Day(b.StartDate)
	switch b.Period {
	case PeriodQuarterly:
		return Period{Start: start, End: start.AddDate(0, 3, 0)}
	case PeriodYearly:
		return Period{Start: start, End: start.AddDate(1, 0, 0)}
	default:
		return Period{Start: start, End: start.AddDate(0, 1, 0)}
	}
}

// ActiveAt reports whether the budget window contains t.
func (b Budget) ActiveAt(t time.Time) bool {
	return b.Window().Contains(t)
}

// Validate checks the fields a budget needs before it is stored.
func (b Budget) Validate() error {
	if b.CategoryID == "" {
		return &ValidationError{Field: "category_id", Reason: "category is required"}
	}
	if b.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	if b.StartDate.IsZero() {
		return &ValidationError{Field: "start_date", Reason: "start date is required"}
	}
	if _, err := ParseBudgetPeriod(string(b.Period)); err != nil {
		return err
	}
	return nil
}
