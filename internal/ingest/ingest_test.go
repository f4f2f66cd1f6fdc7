package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/ledger/memory"
	"github.com/shopspring/decimal"
)

var testCategories = []domain.Category{
	{ID: "food", UserID: "u1", Name: "Food", Kind: domain.KindExpense},
	{ID: "fastfood", UserID: "u1", Name: "Fast Food", Kind: domain.KindExpense},
	{ID: "salary", UserID: "u1", Name: "Salary", Kind: domain.KindIncome},
	{ID: "travel", UserID: "u1", Name: "Travel", Kind: domain.KindExpense},
}

func TestParseCSV(t *testing.T) {
	input := "Date,Description,Amount,Category\n" +
		"2024-01-03,Corner shop food,-12.50,\n" +
		"2024-13-01,Bad date,-1,\n" +
		"2024-01-04,Bad amount,twelve,\n" +
		",,,\n" +
		"2024-01-05,ACME payroll,2500,Salary\n"

	rows, lineErrs, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(rows), rows)
	}
	if !rows[0].Amount.Equal(decimal.RequireFromString("-12.50")) || rows[0].Line != 2 {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Category != "Salary" || rows[1].Line != 6 {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
	if len(lineErrs) != 2 {
		t.Fatalf("got %d line errors, want 2: %v", len(lineErrs), lineErrs)
	}
	if !strings.HasPrefix(lineErrs[0].Error(), "line 3:") || !strings.HasPrefix(lineErrs[1].Error(), "line 4:") {
		t.Errorf("line errors should name their lines: %v", lineErrs)
	}
}

func TestParseCSV_BadHeader(t *testing.T) {
	for _, input := range []string{"", "when,what,how much\n2024-01-01,x,1\n"} {
		_, _, err := ParseCSV(strings.NewReader(input))
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("input %q: expected ValidationError, got %v", input, err)
		}
	}
}

func TestKeywordCategorizer(t *testing.T) {
	got, err := KeywordCategorizer{}.Categorize(context.Background(),
		[]string{"FAST FOOD PLACE", "food market", "Train tickets", "TRAVEL agency"}, testCategories)
	if err != nil {
		t.Fatalf("Categorize failed: %v", err)
	}
	want := []string{"fastfood", "food", "", "travel"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGeminiCategorizer(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		err     error
		want    []string
		wantErr bool
	}{
		{
			name:  "plain json",
			reply: `[{"index":0,"category":"Travel"},{"index":1,"category":"food"}]`,
			want:  []string{"travel", "food"},
		},
		{
			name:  "fenced json with invented names",
			reply: "```json\n[{\"index\":1,\"category\":\"Groceries\"},{\"index\":7,\"category\":\"Food\"}]\n```",
			want:  []string{"", ""},
		},
		{name: "model error", err: errors.New("quota"), wantErr: true},
		{name: "empty reply", reply: "  ", wantErr: true},
		{name: "not json", reply: "I think it is food", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prompt string
			g := &GeminiCategorizer{generate: func(_ context.Context, p string) (string, error) {
				prompt = p
				return tt.reply, tt.err
			}}
			got, err := g.Categorize(context.Background(), []string{"Uber to airport", "Corner shop"}, testCategories)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Categorize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(prompt, "1. Corner shop") || !strings.Contains(prompt, "- Fast Food (expense)") {
				t.Errorf("prompt missing transactions or categories:\n%s", prompt)
			}
			if tt.wantErr {
				return
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("row %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

type failingCategorizer struct{}

func (failingCategorizer) Categorize(context.Context, []string, []domain.Category) ([]string, error) {
	return nil, errors.New("unavailable")
}

type fixedCategorizer struct {
	id    string
	calls int
	seen  []string
}

func (f *fixedCategorizer) Categorize(_ context.Context, descs []string, _ []domain.Category) ([]string, error) {
	f.calls++
	f.seen = append(f.seen, descs...)
	out := make([]string, len(descs))
	for i := range out {
		out[i] = f.id
	}
	return out, nil
}

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	for _, c := range testCategories {
		c := c
		if err := store.CreateCategory(context.Background(), &c); err != nil {
			t.Fatalf("CreateCategory failed: %v", err)
		}
	}
	return store
}

const statement = "date,description,amount,category\n" +
	"2024-01-03,Food market,-40.00,\n" +
	"2024-01-04,Uber ride,-15.00,\n" +
	"2024-01-05,Payroll,2500,Salary\n" +
	"2024-01-06,Mystery,-3,Hobbies\n"

func TestImporter_ImportsAndCategorizes(t *testing.T) {
	store := newStore(t)
	fallback := &fixedCategorizer{id: "travel"}
	im := NewImporter(store, KeywordCategorizer{}, failingCategorizer{}, fallback)
	im.now = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }

	sum, err := im.Import(context.Background(), "u1", strings.NewReader(statement))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if sum.Imported != 4 || sum.Skipped != 0 || sum.Categorized != 4 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if len(sum.Errors) != 1 || !strings.Contains(sum.Errors[0], `unknown category "Hobbies"`) {
		t.Errorf("expected one unknown-category note, got %v", sum.Errors)
	}
	if fallback.calls != 1 || len(fallback.seen) != 2 {
		t.Errorf("fallback should see only the two unmatched rows, saw %v", fallback.seen)
	}

	txns, _ := store.ListTransactions(context.Background(), "u1", domain.TransactionFilter{})
	want := map[string]string{"Food market": "food", "Uber ride": "travel", "Payroll": "salary", "Mystery": "travel"}
	for _, tx := range txns {
		if tx.CategoryID != want[tx.Description] {
			t.Errorf("%s categorized as %q, want %q", tx.Description, tx.CategoryID, want[tx.Description])
		}
	}
}

func TestImporter_SkipsDuplicatesOnReimport(t *testing.T) {
	store := newStore(t)
	im := NewImporter(store, KeywordCategorizer{})
	ctx := context.Background()

	if _, err := im.Import(ctx, "u1", strings.NewReader(statement)); err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	again := statement + "2024-01-03,FOOD MARKET.,-40.00,\n2024-01-07,New coffee,-4,\n"
	sum, err := im.Import(ctx, "u1", strings.NewReader(again))
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if sum.Imported != 1 || sum.Skipped != 5 {
		t.Errorf("unexpected summary: %+v", sum)
	}

	txns, _ := store.ListTransactions(ctx, "u1", domain.TransactionFilter{})
	if len(txns) != 5 {
		t.Errorf("ledger holds %d transactions, want 5", len(txns))
	}
	for _, tx := range txns {
		if tx.Description == "Uber ride" && tx.CategoryID != domain.Uncategorized {
			t.Errorf("unmatched row should stay uncategorized, got %q", tx.CategoryID)
		}
	}
}

func TestImporter_RepeatsInsideOneFileAreKept(t *testing.T) {
	store := newStore(t)
	im := NewImporter(store)
	input := "date,description,amount\n2024-01-03,Coffee,-3\n2024-01-03,Coffee,-3\n"
	sum, err := im.Import(context.Background(), "u1", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if sum.Imported != 2 || sum.Skipped != 0 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestSimilar(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"TESCO STORES 1234", "Tesco Stores 1234", true},
		{"TESCO STORES 1234", "TESCO STORES 1235", true},
		{"TESCO", "AMAZON", false},
		{"", "", true},
	}
	for _, tt := range tests {
		if got := similar(tt.a, tt.b); got != tt.want {
			t.Errorf("similar(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
