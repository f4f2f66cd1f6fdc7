package reports

import (
	"fmt"
	"io"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

const (
	pageWidth  = 190.0 // A4 minus 10mm margins
	lineHeight = 7.0
)

// Render lays the report out as an A4 PDF and writes it to w.
func Render(w io.Writer, r Report) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	title := fmt.Sprintf("Financial Report - %s", domain.MonthLabel(r.Month))

	pdf.SetTitle(title, true)
	pdf.SetAuthor("finance-analytics", false)
	pdf.SetCreationDate(r.GeneratedAt)
	pdf.SetModificationDate(r.GeneratedAt)
	pdf.SetMargins(10, 12, 10)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Prepared for %s on %s", r.Owner, r.GeneratedAt.Format("2 Jan 2006 15:04 MST"))), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	heading(pdf, "Summary")
	keyValue(pdf, "Income", money(r.Income))
	keyValue(pdf, "Spending", money(r.Spending))
	keyValue(pdf, "Net", money(r.Net))
	pdf.Ln(3)

	heading(pdf, "Spending by category")
	if len(r.Categories) == 0 {
		note(pdf, "No spending recorded this month.")
	} else {
		table(pdf, []float64{130, 60}, []string{"Category", "Spent"}, []string{"L", "R"}, func(row func(...string)) {
			for _, c := range r.Categories {
				row(tr(c.Category), money(c.TotalSpent))
			}
		})
	}
	pdf.Ln(3)

	heading(pdf, "Budgets")
	if len(r.Budgets) == 0 {
		note(pdf, "No active budgets.")
	} else {
		table(pdf, []float64{50, 30, 30, 25, 30, 25},
			[]string{"Category", "Budget", "Spent", "Used", "Remaining", "Status"},
			[]string{"L", "R", "R", "R", "R", "C"},
			func(row func(...string)) {
				for _, b := range r.Budgets {
					status := "OK"
					if b.IsOver {
						status = "OVER"
					}
					row(tr(b.Category), money(b.Budget), money(b.Spent), fmt.Sprintf("%.1f%%", b.Percent), money(b.Remaining), status)
				}
			})
	}
	for _, a := range r.Anomalies {
		note(pdf, tr("Skipped: "+a))
	}
	pdf.Ln(3)

	heading(pdf, "Trend")
	table(pdf, []float64{40, 50, 50, 50}, []string{"Month", "Income", "Spending", "Net"}, []string{"L", "R", "R", "R"}, func(row func(...string)) {
		for _, p := range r.History {
			row(p.Label, money(p.Income), money(p.Spent), money(p.Net))
		}
	})
	if r.Forecast.PredictedAmount == nil {
		note(pdf, "Forecast: "+r.Forecast.Message)
	} else {
		note(pdf, fmt.Sprintf("Forecast for next month: %.2f (%s, %.1f%% per month)",
			*r.Forecast.PredictedAmount, r.Forecast.Trend, r.Forecast.MonthlyGrowthRate))
	}
	pdf.Ln(3)

	heading(pdf, "Transactions")
	if len(r.Transactions) == 0 {
		note(pdf, "No transactions this month.")
	} else {
		table(pdf, []float64{25, 95, 40, 30}, []string{"Date", "Description", "Category", "Amount"}, []string{"L", "L", "L", "R"}, func(row func(...string)) {
			for _, t := range r.Transactions {
				row(t.Date.Format(domain.DateLayout), tr(truncate(t.Description, 55)), tr(truncate(t.Category, 20)), money(t.Amount))
			}
		})
		if r.Truncated > 0 {
			note(pdf, fmt.Sprintf("%d more transactions not shown.", r.Truncated))
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("Render: layout: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("Render: output: %w", err)
	}
	return nil
}

func heading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 9, text, "B", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func keyValue(pdf *fpdf.Fpdf, key, value string) {
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(40, lineHeight, key, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(40, lineHeight, value, "", 1, "R", false, 0, "")
}

func note(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(pageWidth, 5, text, "", "L", false)
}

func table(pdf *fpdf.Fpdf, widths []float64, header, align []string, body func(row func(...string))) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		pdf.CellFormat(widths[i], lineHeight, h, "1", 0, align[i], true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	body(func(cells ...string) {
		for i, c := range cells {
			pdf.CellFormat(widths[i], 6, c, "1", 0, align[i], false, 0, "")
		}
		pdf.Ln(-1)
	})
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
