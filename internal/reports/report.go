// Package reports builds monthly PDF reports and runs the asynchronous job
// lifecycle around them: submit, poll, fetch and retention.
package reports

import (
	"sort"
	"time"

	"github.com/dvloznov/finance-analytics/internal/analytics"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

// HistoryMonths is how many months, including the report month, feed the
// trend table and the forecast.
const HistoryMonths = 6

// maxListedTransactions caps the transaction table at the end of a report.
const maxListedTransactions = 200

// Report is everything a rendered report shows, computed up front so the
// renderer only lays it out.
type Report struct {
	Owner       string
	Month       domain.Period
	GeneratedAt time.Time

	Income   decimal.Decimal
	Spending decimal.Decimal
	Net      decimal.Decimal

	Categories []analytics.CategorySpend
	Budgets    []analytics.BudgetPerformance
	Anomalies  []string
	History    []analytics.MonthlyPoint
	Forecast   analytics.ForecastResult

	Transactions []TransactionLine
	Truncated    int
}

// TransactionLine is one row of the transaction table.
type TransactionLine struct {
	Date        time.Time
	Description string
	Category    string
	Amount      decimal.Decimal
}

// Snapshot is the ledger data one report is built from.
type Snapshot struct {
	User         domain.User
	Categories   []domain.Category
	Transactions []domain.Transaction // covers the history window
	Budgets      []domain.Budget
}

// HistoryWindow returns the months that feed a report for month.
func HistoryWindow(month domain.Period) domain.Period {
	return domain.Period{Start: month.Start.AddDate(0, -(HistoryMonths - 1), 0), End: month.End}
}

// Build computes a report from a snapshot. It is pure.
func Build(snap Snapshot, month domain.Period, now time.Time) Report {
	r := Report{Owner: snap.User.Username, Month: month, GeneratedAt: now}

	var inMonth []domain.Transaction
	for _, t := range snap.Transactions {
		if month.Contains(t.Date) {
			inMonth = append(inMonth, t)
		}
	}

	spend := analytics.Aggregate(inMonth, month, analytics.SpendFilter(snap.Categories))
	r.Categories = analytics.Summarize(spend, snap.Categories)
	sort.SliceStable(r.Categories, func(i, j int) bool {
		return r.Categories[i].TotalSpent.GreaterThan(r.Categories[j].TotalSpent)
	})

	history := analytics.MonthlySeriesIn(snap.Transactions, snap.Categories, HistoryWindow(month))
	r.History = history
	if n := len(history); n > 0 {
		last := history[n-1]
		r.Income, r.Spending, r.Net = last.Income, last.Spent, last.Net
	}
	r.Forecast = analytics.Forecast(analytics.SpendSeries(history))

	ev := analytics.Evaluate(snap.Budgets, snap.Categories, month.Start,
		analytics.TransactionSpend(snap.Transactions, snap.Categories))
	r.Budgets = ev.Lines
	for _, a := range ev.Anomalies {
		r.Anomalies = append(r.Anomalies, a.Error())
	}

	names := make(map[string]string, len(snap.Categories))
	for _, c := range snap.Categories {
		names[c.ID] = c.Name
	}
	for i, t := range inMonth {
		if i == maxListedTransactions {
			r.Truncated = len(inMonth) - maxListedTransactions
			break
		}
		name, ok := names[t.CategoryID]
		if !ok {
			name = domain.UncategorizedName
		}
		r.Transactions = append(r.Transactions, TransactionLine{
			Date: t.Date, Description: t.Description, Category: name, Amount: t.Amount,
		})
	}
	return r
}
