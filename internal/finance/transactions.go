package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-analytics/internal/analytics"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

// TransactionInput is the writable part of a transaction.
type TransactionInput struct {
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	CategoryID  string
	IsRecurring bool
}

func (s *Service) buildTransaction(ctx context.Context, userID string, in TransactionInput) (domain.Transaction, error) {
	t := domain.Transaction{
		UserID:      userID,
		Date:        domain.Day(in.Date),
		Amount:      in.Amount,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		IsRecurring: in.IsRecurring,
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	if _, err := s.requireCategory(ctx, userID, in.CategoryID); err != nil {
		return t, err
	}
	return t, nil
}

// CreateTransaction validates and stores one transaction.
func (s *Service) CreateTransaction(ctx context.Context, userID string, in TransactionInput) (*domain.Transaction, error) {
	t, err := s.buildTransaction(ctx, userID, in)
	if err != nil {
		return nil, fmt.Errorf("CreateTransaction: %w", err)
	}
	t.ID = newID()
	t.CreatedAt = s.now().UTC()
	if err := s.store.CreateTransactions(ctx, []domain.Transaction{t}); err != nil {
		return nil, fmt.Errorf("CreateTransaction: %w", err)
	}
	return &t, nil
}

// GetTransaction returns one of the owner's transactions.
func (s *Service) GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns the owner's transactions matching filter.
func (s *Service) ListTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	if !filter.Start.IsZero() && !filter.End.IsZero() && filter.End.Before(filter.Start) {
		return nil, &domain.ValidationError{Field: "end_date", Reason: "must not be before start_date"}
	}
	txns, err := s.store.ListTransactions(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return txns, nil
}

// UpdateTransaction replaces the writable fields of an existing transaction.
func (s *Service) UpdateTransaction(ctx context.Context, userID, id string, in TransactionInput) (*domain.Transaction, error) {
	existing, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}
	t, err := s.buildTransaction(ctx, userID, in)
	if err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}
	t.ID = existing.ID
	t.CreatedAt = existing.CreatedAt
	if err := s.store.UpdateTransaction(ctx, &t); err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}
	return &t, nil
}

// DeleteTransaction removes one of the owner's transactions.
func (s *Service) DeleteTransaction(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	return nil
}

// Summary returns spend per category between start and end, both inclusive.
// Income and transfer categories are left out.
func (s *Service) Summary(ctx context.Context, userID string, start, end time.Time) ([]analytics.CategorySpend, error) {
	period := domain.Period{Start: domain.Day(start), End: domain.Day(end).AddDate(0, 0, 1)}
	if !period.Start.Before(period.End) {
		return nil, &domain.ValidationError{Field: "end_date", Reason: "must not be before start_date"}
	}

	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}
	txns, err := s.store.ListTransactions(ctx, userID, domain.TransactionFilter{Start: period.Start, End: period.End})
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}
	return analytics.Summarize(analytics.Aggregate(txns, period, analytics.SpendFilter(cats)), cats), nil
}
