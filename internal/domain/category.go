package domain

import "strings"

// CategoryKind says which flow a category belongs to.
type CategoryKind string

const (
	KindExpense  CategoryKind = "expense"
	KindIncome   CategoryKind = "income"
	KindTransfer CategoryKind = "transfer"
)

// Category groups transactions and is the key budgets are set against.
type Category struct {
	ID     string       `json:"id"`
	UserID string       `json:"user_id"`
	Name   string       `json:"name"`
	Kind   CategoryKind `json:"type"`
	Icon   string       `json:"icon,omitempty"`
}

// ParseCategoryKind normalizes a kind string. Empty defaults to expense.
func ParseCategoryKind(s string) (CategoryKind, error) {
	switch CategoryKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindExpense:
		return KindExpense, nil
	case KindIncome:
		return KindIncome, nil
	case KindTransfer:
		return KindTransfer, nil
	default:
		return "", &ValidationError{Field: "type", Reason: "must be one of expense, income, transfer"}
	}
}

// CountsAsSpend reports whether transactions in this category feed budget totals.
func (c Category) CountsAsSpend() bool {
	return c.Kind == "" || c.Kind == KindExpense
}

// DeleteMode selects what happens to references when a category is deleted.
type DeleteMode int

const (
	// DeleteRestrict refuses to delete a category that is still referenced.
	DeleteRestrict DeleteMode = iota
	// DeleteCascade moves transactions to uncategorized and drops the category's budgets.
	DeleteCascade
)
