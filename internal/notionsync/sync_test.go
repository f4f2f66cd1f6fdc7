package notionsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/finance-analytics/internal/analytics"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/finance"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

type fakeNotion struct {
	pages    []notionapi.Page
	created  []notionapi.Properties
	updated  map[string]notionapi.Properties
	archived []string
	queries  int
	failOn   string
}

func newFakeNotion(pages ...notionapi.Page) *fakeNotion {
	return &fakeNotion{pages: pages, updated: map[string]notionapi.Properties{}}
}

func (f *fakeNotion) CreatePage(_ context.Context, _ string, props notionapi.Properties) (*notionapi.Page, error) {
	f.created = append(f.created, props)
	return &notionapi.Page{ID: notionapi.ObjectID(fmt.Sprintf("new-%d", len(f.created)))}, nil
}

func (f *fakeNotion) UpdatePage(_ context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error) {
	if pageID == f.failOn {
		return nil, errors.New("rate limited")
	}
	f.updated[pageID] = props
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

// QueryDatabase serves the pages one at a time to exercise the cursor loop.
func (f *fakeNotion) QueryDatabase(_ context.Context, _ string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	f.queries++
	i := 0
	if req.StartCursor != "" {
		fmt.Sscanf(string(req.StartCursor), "%d", &i)
	}
	if i >= len(f.pages) {
		return &notionapi.DatabaseQueryResponse{}, nil
	}
	return &notionapi.DatabaseQueryResponse{
		Results:    f.pages[i : i+1],
		HasMore:    i+1 < len(f.pages),
		NextCursor: notionapi.Cursor(fmt.Sprintf("%d", i+1)),
	}, nil
}

func (f *fakeNotion) ArchivePage(_ context.Context, pageID string) error {
	f.archived = append(f.archived, pageID)
	return nil
}

func page(id, budgetID, month string) notionapi.Page {
	props := notionapi.Properties{}
	if budgetID != "" {
		props[PropBudgetID] = &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: budgetID}}}
	}
	if month != "" {
		props[PropMonth] = &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: month}}}
	}
	return notionapi.Page{ID: notionapi.ObjectID(id), Properties: props}
}

func march() *finance.Performance {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	line := func(id, cat string, budget, spent int64) analytics.BudgetPerformance {
		b, s := decimal.NewFromInt(budget), decimal.NewFromInt(spent)
		return analytics.BudgetPerformance{
			BudgetID:    id,
			CategoryID:  "cat-" + id,
			Category:    cat,
			Period:      domain.PeriodMonthly,
			PeriodStart: start,
			PeriodEnd:   start.AddDate(0, 1, 0),
			Budget:      b,
			Spent:       s,
			Remaining:   b.Sub(s),
			Percent:     s.InexactFloat64() / b.InexactFloat64() * 100,
			IsOver:      s.GreaterThan(b),
		}
	}
	return &finance.Performance{
		MonthStart: start,
		Lines: []analytics.BudgetPerformance{
			line("b-food", "Food", 500, 200),
			line("b-fun", "Fun", 100, 150),
		},
	}
}

func TestSyncBudgets(t *testing.T) {
	notion := newFakeNotion(
		page("p-food", "b-food", "2024-03"),
		page("p-gone", "b-gone", "2024-03"),
		page("p-feb", "b-food", "2024-02"),
		page("p-legacy", "", ""),
	)

	res, err := SyncBudgets(context.Background(), notion, "db", march(), false)
	if err != nil {
		t.Fatalf("SyncBudgets() error = %v", err)
	}

	want := SyncResult{Created: 1, Updated: 1, Archived: 2}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	if notion.queries != 4 {
		t.Errorf("queries = %d, want 4", notion.queries)
	}
	if _, ok := notion.updated["p-food"]; !ok {
		t.Errorf("p-food not updated: %v", notion.updated)
	}
	if len(notion.archived) != 2 || notion.archived[0] != "p-gone" || notion.archived[1] != "p-legacy" {
		t.Errorf("archived = %v", notion.archived)
	}
	if len(notion.created) != 1 {
		t.Fatalf("created %d pages, want 1", len(notion.created))
	}
	over, ok := notion.created[0][PropOver].(notionapi.CheckboxProperty)
	if !ok || !over.Checkbox {
		t.Errorf("Fun budget should be flagged over: %#v", notion.created[0][PropOver])
	}
}

func TestSyncBudgets_DryRun(t *testing.T) {
	notion := newFakeNotion(page("p-food", "b-food", "2024-03"), page("p-gone", "b-gone", "2024-03"))

	res, err := SyncBudgets(context.Background(), notion, "db", march(), true)
	if err != nil {
		t.Fatalf("SyncBudgets() error = %v", err)
	}
	if want := (SyncResult{Created: 1, Updated: 1, Archived: 1}); res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	if len(notion.created)+len(notion.updated)+len(notion.archived) != 0 {
		t.Error("dry run wrote to Notion")
	}
}

func TestSyncBudgets_DuplicateRowsArchived(t *testing.T) {
	notion := newFakeNotion(page("p1", "b-food", "2024-03"), page("p2", "b-food", "2024-03"))

	res, err := SyncBudgets(context.Background(), notion, "db", march(), false)
	if err != nil {
		t.Fatalf("SyncBudgets() error = %v", err)
	}
	if len(notion.archived) != 1 || notion.archived[0] != "p2" {
		t.Errorf("archived = %v, want [p2]", notion.archived)
	}
	if res.Updated != 1 || res.Created != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestSyncBudgets_PageFailureCounted(t *testing.T) {
	notion := newFakeNotion(page("p-food", "b-food", "2024-03"))
	notion.failOn = "p-food"

	res, err := SyncBudgets(context.Background(), notion, "db", march(), false)
	if err != nil {
		t.Fatalf("SyncBudgets() error = %v", err)
	}
	if res.Failed != 1 || res.Updated != 0 || res.Created != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestBudgetToProperties(t *testing.T) {
	perf := march()
	props := BudgetToProperties(perf.Lines[0], perf.MonthStart)

	title := props[PropCategory].(notionapi.TitleProperty)
	if got := title.Title[0].Text.Content; got != "Food" {
		t.Errorf("title = %q, want Food", got)
	}
	if got := props[PropRemaining].(notionapi.NumberProperty).Number; got != 300 {
		t.Errorf("remaining = %v, want 300", got)
	}
	window := props[PropWindow].(notionapi.DateProperty)
	if end := time.Time(*window.Date.End); end.Day() != 31 {
		t.Errorf("window end = %v, want March 31", end)
	}
	if got := richTextValue(notionapi.Page{Properties: props}, PropMonth); got != "2024-03" {
		t.Errorf("month = %q, want 2024-03", got)
	}
}
