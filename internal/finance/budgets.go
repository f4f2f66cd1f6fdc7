package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-analytics/internal/analytics"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

// BudgetInput is the writable part of a budget.
type BudgetInput struct {
	CategoryID string
	Amount     decimal.Decimal
	Period     string
	StartDate  time.Time
}

// CreateBudget stores a budget. A budget whose window overlaps an existing
// one for the same category and period is rejected with a ConflictError.
func (s *Service) CreateBudget(ctx context.Context, userID string, in BudgetInput) (*domain.Budget, error) {
	period, err := domain.ParseBudgetPeriod(in.Period)
	if err != nil {
		return nil, err
	}
	b := &domain.Budget{
		ID:         newID(),
		UserID:     userID,
		CategoryID: in.CategoryID,
		Amount:     in.Amount,
		Period:     period,
		StartDate:  domain.Day(in.StartDate),
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.requireCategory(ctx, userID, b.CategoryID); err != nil {
		return nil, fmt.Errorf("CreateBudget: %w", err)
	}

	existing, err := s.store.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("CreateBudget: %w", err)
	}
	window := b.Window()
	for _, e := range existing {
		if e.CategoryID == b.CategoryID && e.Period == b.Period && e.Window().Overlaps(window) {
			return nil, &domain.ConflictError{
				Reason: fmt.Sprintf("a %s budget for this category already covers %s", b.Period, e.StartDate.Format(domain.DateLayout)),
			}
		}
	}

	if err := s.store.CreateBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("CreateBudget: %w", err)
	}
	return b, nil
}

// ListBudgets returns the owner's budgets in creation order.
func (s *Service) ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error) {
	budgets, err := s.store.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ListBudgets: %w", err)
	}
	return budgets, nil
}

// DeleteBudget removes one of the owner's budgets.
func (s *Service) DeleteBudget(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteBudget(ctx, userID, id); err != nil {
		return fmt.Errorf("DeleteBudget: %w", err)
	}
	return nil
}

// Response headers that carry the parts of a Performance outside the line
// array served by GET /budgets/performance.
const (
	HeaderMonthStart = "X-Month-Start"
	HeaderAnomaly    = "X-Budget-Anomaly"
)

// Performance is the budget tracker's answer for one evaluation month.
type Performance struct {
	MonthStart time.Time                     `json:"month_start"`
	Lines      []analytics.BudgetPerformance `json:"budgets"`
	Anomalies  []string                      `json:"anomalies"`
}

// Performance evaluates every budget active at the start of the month
// containing monthStart. A zero monthStart means the current month.
func (s *Service) Performance(ctx context.Context, userID string, monthStart time.Time) (*Performance, error) {
	if monthStart.IsZero() {
		monthStart = s.now()
	}
	month := domain.MonthOf(monthStart)

	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Performance: %w", err)
	}
	budgets, err := s.store.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Performance: %w", err)
	}

	// Load only the span covered by the budgets that can be active.
	span := month
	for _, b := range budgets {
		if !b.ActiveAt(month.Start) {
			continue
		}
		w := b.Window()
		if w.Start.Before(span.Start) {
			span.Start = w.Start
		}
		if w.End.After(span.End) {
			span.End = w.End
		}
	}
	txns, err := s.store.ListTransactions(ctx, userID, domain.TransactionFilter{Start: span.Start, End: span.End})
	if err != nil {
		return nil, fmt.Errorf("Performance: %w", err)
	}

	ev := analytics.Evaluate(budgets, cats, month.Start, analytics.TransactionSpend(txns, cats))
	out := &Performance{
		MonthStart: month.Start,
		Lines:      ev.Lines,
		Anomalies:  []string{},
	}
	if out.Lines == nil {
		out.Lines = []analytics.BudgetPerformance{}
	}
	for _, a := range append(ev.Anomalies, analytics.DanglingTransactions(txns, cats, month)...) {
		out.Anomalies = append(out.Anomalies, a.Error())
	}
	return out, nil
}
