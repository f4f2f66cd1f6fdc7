// Package analytics holds the pure computations behind budgets, trends and
// forecasts. Nothing here touches storage; callers pass snapshots in.
package analytics

import (
	"sort"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

// Totals maps a category id to the signed sum of its transactions.
// Categories with no matching transactions are absent.
type Totals map[string]decimal.Decimal

// Total returns the signed sum for a category, zero when absent.
func (t Totals) Total(categoryID string) decimal.Decimal {
	return t[categoryID]
}

// Spent returns the outflow for a category as a positive number.
// Refunds inside the bucket reduce it and may push it below zero.
func (t Totals) Spent(categoryID string) decimal.Decimal {
	return t[categoryID].Neg()
}

// Sum adds every bucket.
func (t Totals) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range t {
		sum = sum.Add(v)
	}
	return sum
}

// FlowFilter decides whether a transaction contributes to a total.
type FlowFilter func(domain.Transaction) bool

// AllFlows keeps every transaction.
func AllFlows(domain.Transaction) bool { return true }

// SpendFilter keeps uncategorized transactions and those in expense categories.
// Income and transfer categories are excluded, as are transactions whose
// category no longer exists (see DanglingTransactions).
func SpendFilter(categories []domain.Category) FlowFilter {
	byID := indexCategories(categories)
	return func(t domain.Transaction) bool {
		if t.CategoryID == domain.Uncategorized {
			return true
		}
		c, ok := byID[t.CategoryID]
		return ok && c.CountsAsSpend()
	}
}

// Aggregate sums the amounts of transactions dated inside period, per category.
func Aggregate(txns []domain.Transaction, period domain.Period, include FlowFilter) Totals {
	if include == nil {
		include = AllFlows
	}
	out := make(Totals)
	for _, t := range txns {
		if !period.Contains(t.Date) || !include(t) {
			continue
		}
		out[t.CategoryID] = out[t.CategoryID].Add(t.Amount)
	}
	return out
}

// DanglingTransactions reports transactions in period that point at a category
// missing from categories.
func DanglingTransactions(txns []domain.Transaction, categories []domain.Category, period domain.Period) []error {
	byID := indexCategories(categories)
	var out []error
	for _, t := range txns {
		if t.CategoryID == domain.Uncategorized || !period.Contains(t.Date) {
			continue
		}
		if _, ok := byID[t.CategoryID]; !ok {
			out = append(out, &domain.DanglingReferenceError{Resource: "transaction", ID: t.ID, CategoryID: t.CategoryID})
		}
	}
	return out
}

// CategorySpend is one row of a spending summary.
type CategorySpend struct {
	CategoryID string          `json:"category_id"`
	Category   string          `json:"category"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

// Summarize turns spend totals into named rows ordered by category name.
func Summarize(totals Totals, categories []domain.Category) []CategorySpend {
	byID := indexCategories(categories)
	out := make([]CategorySpend, 0, len(totals))
	for id := range totals {
		name := domain.UncategorizedName
		if c, ok := byID[id]; ok {
			name = c.Name
		}
		out = append(out, CategorySpend{CategoryID: id, Category: name, TotalSpent: totals.Spent(id)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

// MonthlyPoint is one calendar month of the trend series.
type MonthlyPoint struct {
	Month  time.Time       `json:"-"`
	Label  string          `json:"date"`
	Net    decimal.Decimal `json:"amount"`
	Spent  decimal.Decimal `json:"spent"`
	Income decimal.Decimal `json:"income"`
}

// MonthlySeries buckets transactions by calendar month. Months between the
// first and last transaction with no activity are present with zero totals.
// Net covers every flow; Spent covers the spend flow; Income covers income categories.
func MonthlySeries(txns []domain.Transaction, categories []domain.Category) []MonthlyPoint {
	if len(txns) == 0 {
		return nil
	}
	first, last := txns[0].Date, txns[0].Date
	for _, t := range txns[1:] {
		if t.Date.Before(first) {
			first = t.Date
		}
		if t.Date.After(last) {
			last = t.Date
		}
	}
	return monthlySeries(txns, categories, domain.MonthOf(first).Start, domain.MonthOf(last).End)
}

// MonthlySeriesIn is MonthlySeries over a fixed window: every month that
// starts inside window is present and transactions outside it are ignored.
func MonthlySeriesIn(txns []domain.Transaction, categories []domain.Category, window domain.Period) []MonthlyPoint {
	return monthlySeries(txns, categories, domain.MonthOf(window.Start).Start, window.End)
}

func monthlySeries(txns []domain.Transaction, categories []domain.Category, from, to time.Time) []MonthlyPoint {
	byID := indexCategories(categories)
	spend := SpendFilter(categories)

	points := make(map[time.Time]*MonthlyPoint)
	var order []time.Time
	for m := from; m.Before(to); m = m.AddDate(0, 1, 0) {
		points[m] = &MonthlyPoint{Month: m, Label: m.Format("Jan 2006")}
		order = append(order, m)
	}

	for _, t := range txns {
		p, ok := points[domain.MonthOf(t.Date).Start]
		if !ok || t.Date.Before(from) || !t.Date.Before(to) {
			continue
		}
		p.Net = p.Net.Add(t.Amount)
		if spend(t) {
			p.Spent = p.Spent.Sub(t.Amount)
		}
		if c, ok := byID[t.CategoryID]; ok && c.Kind == domain.KindIncome {
			p.Income = p.Income.Add(t.Amount)
		}
	}

	out := make([]MonthlyPoint, 0, len(order))
	for _, m := range order {
		out = append(out, *points[m])
	}
	return out
}

func indexCategories(categories []domain.Category) map[string]domain.Category {
	byID := make(map[string]domain.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	return byID
}
