package analytics

import (
	"fmt"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// BudgetPerformance is one evaluated budget line.
type BudgetPerformance struct {
	BudgetID    string              `json:"budget_id"`
	CategoryID  string              `json:"category_id"`
	Category    string              `json:"category"`
	Period      domain.BudgetPeriod `json:"period"`
	PeriodStart time.Time           `json:"period_start"`
	PeriodEnd   time.Time           `json:"period_end"`
	Budget      decimal.Decimal     `json:"budget"`
	Spent       decimal.Decimal     `json:"spent"`
	Percent     float64             `json:"percent"`
	Remaining   decimal.Decimal     `json:"remaining"`
	IsOver      bool                `json:"is_over"`
}

// Evaluation is the result of running the tracker over a set of budgets.
// Anomalies hold budgets that were left out and why.
type Evaluation struct {
	Lines     []BudgetPerformance
	Anomalies []error
}

// SpendFunc returns the spend for a category over a budget window.
type SpendFunc func(categoryID string, window domain.Period) decimal.Decimal

// TransactionSpend builds a SpendFunc over a transaction snapshot. Each
// distinct window is aggregated once.
func TransactionSpend(txns []domain.Transaction, categories []domain.Category) SpendFunc {
	include := SpendFilter(categories)
	cache := make(map[domain.Period]Totals)
	return func(categoryID string, window domain.Period) decimal.Decimal {
		totals, ok := cache[window]
		if !ok {
			totals = Aggregate(txns, window, include)
			cache[window] = totals
		}
		return totals.Spent(categoryID)
	}
}

// Evaluate scores every budget active at `at` against its window's spend.
// Lines come back in input order. A budget whose category is gone is dropped
// with a DanglingReferenceError; when two active budgets share a category and
// period the later one wins and the earlier is reported as a ConflictError.
func Evaluate(budgets []domain.Budget, categories []domain.Category, at time.Time, spend SpendFunc) Evaluation {
	byID := indexCategories(categories)

	type key struct {
		category string
		period   domain.BudgetPeriod
	}
	var ev Evaluation
	active := make([]domain.Budget, 0, len(budgets))
	winner := make(map[key]int)
	for _, b := range budgets {
		if !b.ActiveAt(at) {
			continue
		}
		if _, ok := byID[b.CategoryID]; !ok {
			ev.Anomalies = append(ev.Anomalies, &domain.DanglingReferenceError{Resource: "budget", ID: b.ID, CategoryID: b.CategoryID})
			continue
		}
		winner[key{b.CategoryID, b.Period}] = len(active)
		active = append(active, b)
	}

	for i, b := range active {
		if w := winner[key{b.CategoryID, b.Period}]; w != i {
			ev.Anomalies = append(ev.Anomalies, &domain.ConflictError{
				Reason: fmt.Sprintf("budget %s superseded by budget %s for category %s", b.ID, active[w].ID, b.CategoryID),
			})
			continue
		}
		window := b.Window()
		spent := decimal.Zero
		if spend != nil {
			spent = spend(b.CategoryID, window)
		}
		ev.Lines = append(ev.Lines, scoreBudget(b, byID[b.CategoryID].Name, window, spent))
	}
	return ev
}

func scoreBudget(b domain.Budget, category string, window domain.Period, spent decimal.Decimal) BudgetPerformance {
	line := BudgetPerformance{
		BudgetID:    b.ID,
		CategoryID:  b.CategoryID,
		Category:    category,
		Period:      b.Period,
		PeriodStart: window.Start,
		PeriodEnd:   window.End,
		Budget:      b.Amount,
		Spent:       spent,
		Remaining:   b.Amount.Sub(spent),
	}
	if b.Amount.IsZero() {
		line.IsOver = spent.IsPositive()
		return line
	}
	line.Percent = spent.Mul(hundred).Div(b.Amount).InexactFloat64()
	line.IsOver = spent.GreaterThan(b.Amount)
	return line
}
