// Package ledger defines the storage contract for users, categories,
// transactions and budgets. Every read and write is scoped to one owner;
// records owned by someone else behave as if they did not exist.
package ledger

import (
	"context"

	"github.com/dvloznov/finance-analytics/internal/domain"
)

// UserStore persists account holders.
type UserStore interface {
	// CreateUser stores a new user. A taken username or email yields a ConflictError.
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
}

// CategoryStore persists categories.
type CategoryStore interface {
	// CreateCategory stores a category. A duplicate name for the same owner yields a ConflictError.
	CreateCategory(ctx context.Context, c *domain.Category) error
	GetCategory(ctx context.Context, userID, id string) (*domain.Category, error)
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)
	// DeleteCategory removes a category. With DeleteRestrict it fails with a
	// ConflictError while transactions or budgets reference it; with
	// DeleteCascade those transactions become uncategorized and the budgets go.
	DeleteCategory(ctx context.Context, userID, id string, mode domain.DeleteMode) error
}

// TransactionStore persists ledger entries.
type TransactionStore interface {
	// CreateTransactions stores a batch atomically.
	CreateTransactions(ctx context.Context, txns []domain.Transaction) error
	GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error)
	// ListTransactions returns matching entries ordered by date, then creation time.
	ListTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error)
	UpdateTransaction(ctx context.Context, t *domain.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error
}

// BudgetStore persists budgets.
type BudgetStore interface {
	CreateBudget(ctx context.Context, b *domain.Budget) error
	// ListBudgets returns budgets in creation order.
	ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error)
	DeleteBudget(ctx context.Context, userID, id string) error
}

// Store is the full ledger.
type Store interface {
	UserStore
	CategoryStore
	TransactionStore
	BudgetStore
	Close() error
}
