// Package memory is an in-memory ledger. It is safe for concurrent use and
// hands out copies only.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
)

// Store keeps every record in maps guarded by one RWMutex. Insertion order
// is tracked so listings are stable.
type Store struct {
	mu sync.RWMutex

	users      map[string]domain.User
	categories map[string]domain.Category
	txns       map[string]domain.Transaction
	budgets    map[string]domain.Budget

	categoryOrder []string
	txnOrder      []string
	budgetOrder   []string
}

// NewStore creates an empty ledger.
func NewStore() *Store {
	return &Store{
		users:      make(map[string]domain.User),
		categories: make(map[string]domain.Category),
		txns:       make(map[string]domain.Transaction),
		budgets:    make(map[string]domain.Budget),
	}
}

// Close implements ledger.Store.
func (s *Store) Close() error { return nil }

// CreateUser implements ledger.UserStore.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return &domain.ConflictError{Reason: "username already registered"}
		}
		if u.Email != "" && strings.EqualFold(existing.Email, u.Email) {
			return &domain.ConflictError{Reason: "email already registered"}
		}
	}
	s.users[u.ID] = *u
	return nil
}

// GetUser implements ledger.UserStore.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "user", ID: id}
	}
	return &u, nil
}

// GetUserByUsername implements ledger.UserStore.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "user", ID: username}
}

// CreateCategory implements ledger.CategoryStore.
func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories {
		if existing.UserID == c.UserID && strings.EqualFold(existing.Name, c.Name) {
			return &domain.ConflictError{Reason: fmt.Sprintf("category %q already exists", c.Name)}
		}
	}
	s.categories[c.ID] = *c
	s.categoryOrder = append(s.categoryOrder, c.ID)
	return nil
}

// GetCategory implements ledger.CategoryStore.
func (s *Store) GetCategory(ctx context.Context, userID, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return nil, &domain.NotFoundError{Resource: "category", ID: id}
	}
	return &c, nil
}

// ListCategories implements ledger.CategoryStore.
func (s *Store) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Category{}
	for _, id := range s.categoryOrder {
		if c, ok := s.categories[id]; ok && c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

// DeleteCategory implements ledger.CategoryStore.
func (s *Store) DeleteCategory(ctx context.Context, userID, id string, mode domain.DeleteMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return &domain.NotFoundError{Resource: "category", ID: id}
	}

	var txnRefs, budgetRefs []string
	for tid, t := range s.txns {
		if t.CategoryID == id {
			txnRefs = append(txnRefs, tid)
		}
	}
	for bid, b := range s.budgets {
		if b.CategoryID == id {
			budgetRefs = append(budgetRefs, bid)
		}
	}

	if mode == domain.DeleteRestrict && len(txnRefs)+len(budgetRefs) > 0 {
		return &domain.ConflictError{Reason: fmt.Sprintf(
			"category %q is used by %d transactions and %d budgets", c.Name, len(txnRefs), len(budgetRefs))}
	}

	for _, tid := range txnRefs {
		t := s.txns[tid]
		t.CategoryID = domain.Uncategorized
		s.txns[tid] = t
	}
	for _, bid := range budgetRefs {
		delete(s.budgets, bid)
	}
	s.budgetOrder = without(s.budgetOrder, budgetRefs...)
	delete(s.categories, id)
	s.categoryOrder = without(s.categoryOrder, id)
	return nil
}

// CreateTransactions implements ledger.TransactionStore.
func (s *Store) CreateTransactions(ctx context.Context, txns []domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range txns {
		if _, exists := s.txns[t.ID]; exists {
			return &domain.ConflictError{Reason: fmt.Sprintf("transaction %s already exists", t.ID)}
		}
	}
	for _, t := range txns {
		s.txns[t.ID] = t
		s.txnOrder = append(s.txnOrder, t.ID)
	}
	return nil
}

// GetTransaction implements ledger.TransactionStore.
func (s *Store) GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.txns[id]
	if !ok || t.UserID != userID {
		return nil, &domain.NotFoundError{Resource: "transaction", ID: id}
	}
	return &t, nil
}

// ListTransactions implements ledger.TransactionStore.
func (s *Store) ListTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Transaction{}
	for _, id := range s.txnOrder {
		t, ok := s.txns[id]
		if ok && t.UserID == userID && filter.Matches(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateTransaction implements ledger.TransactionStore.
func (s *Store) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.txns[t.ID]
	if !ok || existing.UserID != t.UserID {
		return &domain.NotFoundError{Resource: "transaction", ID: t.ID}
	}
	s.txns[t.ID] = *t
	return nil
}

// DeleteTransaction implements ledger.TransactionStore.
func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.txns[id]
	if !ok || t.UserID != userID {
		return &domain.NotFoundError{Resource: "transaction", ID: id}
	}
	delete(s.txns, id)
	s.txnOrder = without(s.txnOrder, id)
	return nil
}

// CreateBudget implements ledger.BudgetStore.
func (s *Store) CreateBudget(ctx context.Context, b *domain.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.budgets[b.ID] = *b
	s.budgetOrder = append(s.budgetOrder, b.ID)
	return nil
}

// ListBudgets implements ledger.BudgetStore.
func (s *Store) ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Budget{}
	for _, id := range s.budgetOrder {
		if b, ok := s.budgets[id]; ok && b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

// DeleteBudget implements ledger.BudgetStore.
func (s *Store) DeleteBudget(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.budgets[id]
	if !ok || b.UserID != userID {
		return &domain.NotFoundError{Resource: "budget", ID: id}
	}
	delete(s.budgets, id)
	s.budgetOrder = without(s.budgetOrder, id)
	return nil
}

func without(ids []string, drop ...string) []string {
	if len(drop) == 0 {
		return ids
	}
	skip := make(map[string]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	out := ids[:0]
	for _, id := range ids {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}

var _ ledger.Store = (*Store)(nil)
