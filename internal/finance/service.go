// Package finance is the application layer between the HTTP/CLI surfaces and
// the ledger. It validates input, enforces category references and runs the
// analytics over ledger snapshots.
package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"github.com/google/uuid"
)

// Service implements the ledger-backed operations for one owner at a time.
type Service struct {
	store ledger.Store
	now   func() time.Time
}

// NewService creates a Service over store.
func NewService(store ledger.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Me returns the account behind userID.
func (s *Service) Me(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Me: %w", err)
	}
	return u, nil
}

// requireCategory checks that categoryID names a category owned by userID.
// The empty id (uncategorized) is always allowed.
func (s *Service) requireCategory(ctx context.Context, userID, categoryID string) (*domain.Category, error) {
	if categoryID == domain.Uncategorized {
		return nil, nil
	}
	c, err := s.store.GetCategory(ctx, userID, categoryID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, &domain.ValidationError{Field: "category_id", Reason: "unknown category " + categoryID}
		}
		return nil, err
	}
	return c, nil
}

func newID() string { return uuid.NewString() }
