package notionsync

import (
	"time"

	"github.com/dvloznov/finance-analytics/internal/analytics"
	"github.com/jomei/notionapi"
)

// Property names of the budget board database.
const (
	PropCategory  = "Category"
	PropBudgetID  = "Budget ID"
	PropMonth     = "Month"
	PropPeriod    = "Period"
	PropWindow    = "Window"
	PropBudget    = "Budget"
	PropSpent     = "Spent"
	PropRemaining = "Remaining"
	PropPercent   = "Percent"
	PropOver      = "Over Budget"
)

// MonthKey is the value stored in the Month property.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// BudgetToProperties maps one evaluated budget line to board properties.
func BudgetToProperties(line analytics.BudgetPerformance, month time.Time) notionapi.Properties {
	category := line.Category
	if category == "" {
		category = "Uncategorized"
	}
	start := notionapi.Date(line.PeriodStart)
	// Notion date ranges are inclusive.
	end := notionapi.Date(line.PeriodEnd.AddDate(0, 0, -1))

	return notionapi.Properties{
		PropCategory: notionapi.TitleProperty{
			Title: plainText(category),
		},
		PropBudgetID: notionapi.RichTextProperty{
			RichText: plainText(line.BudgetID),
		},
		PropMonth: notionapi.RichTextProperty{
			RichText: plainText(MonthKey(month)),
		},
		PropPeriod: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(line.Period)},
		},
		PropWindow: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &start, End: &end},
		},
		PropBudget:    notionapi.NumberProperty{Number: line.Budget.InexactFloat64()},
		PropSpent:     notionapi.NumberProperty{Number: line.Spent.InexactFloat64()},
		PropRemaining: notionapi.NumberProperty{Number: line.Remaining.InexactFloat64()},
		PropPercent:   notionapi.NumberProperty{Number: line.Percent},
		PropOver:      notionapi.CheckboxProperty{Checkbox: line.IsOver},
	}
}

func plainText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

// richTextValue reads a rich text property from a queried page. Query
// responses carry pointer property values.
func richTextValue(page notionapi.Page, name string) string {
	var rt []notionapi.RichText
	switch prop := page.Properties[name].(type) {
	case *notionapi.RichTextProperty:
		rt = prop.RichText
	case notionapi.RichTextProperty:
		rt = prop.RichText
	}
	if len(rt) == 0 {
		return ""
	}
	if rt[0].PlainText != "" {
		return rt[0].PlainText
	}
	if rt[0].Text != nil {
		return rt[0].Text.Content
	}
	return ""
}
