package finance

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-analytics/internal/analytics"
	"github.com/dvloznov/finance-analytics/internal/domain"
)

// Trends returns the owner's monthly series from the first to the last
// transaction month.
func (s *Service) Trends(ctx context.Context, userID string) ([]analytics.MonthlyPoint, error) {
	months, err := s.monthlySeries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Trends: %w", err)
	}
	if months == nil {
		months = []analytics.MonthlyPoint{}
	}
	return months, nil
}

// Forecast fits the monthly spend series and projects the next month.
func (s *Service) Forecast(ctx context.Context, userID string) (analytics.ForecastResult, error) {
	months, err := s.monthlySeries(ctx, userID)
	if err != nil {
		return analytics.ForecastResult{}, fmt.Errorf("Forecast: %w", err)
	}
	return analytics.Forecast(analytics.SpendSeries(months)), nil
}

func (s *Service) monthlySeries(ctx context.Context, userID string) ([]analytics.MonthlyPoint, error) {
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	txns, err := s.store.ListTransactions(ctx, userID, domain.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	return analytics.MonthlySeries(txns, cats), nil
}
