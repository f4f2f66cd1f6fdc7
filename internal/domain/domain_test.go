package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseMonthLabel(t *testing.T) {
	tests := []struct {
		label   string
		want    time.Time
		wantErr bool
	}{
		{label: "January 2024", want: date(2024, 1, 1)},
		{label: "Jan 2024", want: date(2024, 1, 1)},
		{label: "2024-12", want: date(2024, 12, 1)},
		{label: "  March 2023 ", want: date(2023, 3, 1)},
		{label: "February_2024", want: date(2024, 2, 1)},
		{label: "2024/01", wantErr: true},
		{label: "", wantErr: true},
		{label: "Smarch 2024", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			p, err := ParseMonthLabel(tt.label)
			if tt.wantErr {
				var ve *ValidationError
				if !errors.As(err, &ve) || ve.Field != "month" {
					t.Fatalf("ParseMonthLabel(%q) error = %v, want month ValidationError", tt.label, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMonthLabel(%q) error = %v", tt.label, err)
			}
			if !p.Start.Equal(tt.want) || !p.End.Equal(tt.want.AddDate(0, 1, 0)) {
				t.Errorf("ParseMonthLabel(%q) = %v..%v", tt.label, p.Start, p.End)
			}
		})
	}
}

func TestMonthLabel(t *testing.T) {
	if got := MonthLabel(MonthOf(date(2024, 2, 17))); got != "February 2024" {
		t.Errorf("MonthLabel() = %q", got)
	}
}

func TestPeriod_HalfOpen(t *testing.T) {
	p := MonthOf(date(2024, 3, 15))

	if !p.Contains(date(2024, 3, 1)) {
		t.Error("start should be inside")
	}
	if !p.Contains(date(2024, 3, 31).Add(23 * time.Hour)) {
		t.Error("last day should be inside")
	}
	if p.Contains(date(2024, 4, 1)) {
		t.Error("end should be outside")
	}
	if p.Contains(date(2024, 2, 29)) {
		t.Error("day before start should be outside")
	}
}

func TestPeriod_Overlaps(t *testing.T) {
	jan, feb := MonthOf(date(2024, 1, 1)), MonthOf(date(2024, 2, 1))
	q1 := Period{Start: date(2024, 1, 1), End: date(2024, 4, 1)}

	if jan.Overlaps(feb) || feb.Overlaps(jan) {
		t.Error("adjacent months must not overlap")
	}
	if !q1.Overlaps(feb) || !feb.Overlaps(q1) {
		t.Error("quarter should overlap its months")
	}
}

func TestBudget_Window(t *testing.T) {
	tests := []struct {
		period  BudgetPeriod
		start   time.Time
		wantEnd time.Time
	}{
		{PeriodMonthly, date(2024, 1, 31), date(2024, 3, 2)},
		{PeriodMonthly, date(2024, 2, 1), date(2024, 3, 1)},
		{PeriodQuarterly, date(2024, 1, 1), date(2024, 4, 1)},
		{PeriodYearly, date(2024, 2, 29), date(2025, 3, 1)},
	}

	for _, tt := range tests {
		t.Run(string(tt.period)+" "+tt.start.Format(DateLayout), func(t *testing.T) {
			b := Budget{Period: tt.period, StartDate: tt.start.Add(15 * time.Hour)}
			w := b.Window()
			if !w.Start.Equal(tt.start) || !w.End.Equal(tt.wantEnd) {
				t.Errorf("Window() = %v..%v, want %v..%v", w.Start, w.End, tt.start, tt.wantEnd)
			}
			if !b.ActiveAt(tt.start) || b.ActiveAt(tt.wantEnd) {
				t.Error("ActiveAt must follow the half-open window")
			}
		})
	}
}

func TestBudget_Validate(t *testing.T) {
	valid := Budget{CategoryID: "c1", Amount: decimal.NewFromInt(100), Period: PeriodMonthly, StartDate: date(2024, 1, 1)}

	tests := []struct {
		name      string
		mutate    func(*Budget)
		wantField string
	}{
		{name: "valid", mutate: func(*Budget) {}},
		{name: "zero amount", mutate: func(b *Budget) { b.Amount = decimal.Zero }},
		{name: "no category", mutate: func(b *Budget) { b.CategoryID = "" }, wantField: "category_id"},
		{name: "negative", mutate: func(b *Budget) { b.Amount = decimal.NewFromInt(-1) }, wantField: "amount"},
		{name: "no start", mutate: func(b *Budget) { b.StartDate = time.Time{} }, wantField: "start_date"},
		{name: "bad period", mutate: func(b *Budget) { b.Period = "weekly" }, wantField: "period"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid
			tt.mutate(&b)
			err := b.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.wantField {
				t.Errorf("Validate() error = %v, want field %s", err, tt.wantField)
			}
		})
	}
}

func TestParseBudgetPeriod(t *testing.T) {
	for in, want := range map[string]BudgetPeriod{
		"":          PeriodMonthly,
		"Monthly":   PeriodMonthly,
		"quarterly": PeriodQuarterly,
		"annual":    PeriodYearly,
		" YEARLY ":  PeriodYearly,
	} {
		got, err := ParseBudgetPeriod(in)
		if err != nil || got != want {
			t.Errorf("ParseBudgetPeriod(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseBudgetPeriod("weekly"); err == nil {
		t.Error("weekly should be rejected")
	}
}

func TestTransactionFilter_Matches(t *testing.T) {
	food := "food"
	none := Uncategorized
	txn := Transaction{Date: date(2024, 3, 31), CategoryID: "food"}

	tests := []struct {
		name   string
		filter TransactionFilter
		want   bool
	}{
		{name: "empty", want: true},
		{name: "inside", filter: TransactionFilter{Start: date(2024, 3, 1), End: date(2024, 4, 1)}, want: true},
		{name: "end excluded", filter: TransactionFilter{End: date(2024, 3, 31)}, want: false},
		{name: "start included", filter: TransactionFilter{Start: date(2024, 3, 31)}, want: true},
		{name: "category", filter: TransactionFilter{CategoryID: &food}, want: true},
		{name: "uncategorized only", filter: TransactionFilter{CategoryID: &none}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(txn); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCategory_CountsAsSpend(t *testing.T) {
	for kind, want := range map[CategoryKind]bool{
		"":           true,
		KindExpense:  true,
		KindIncome:   false,
		KindTransfer: false,
	} {
		if got := (Category{Kind: kind}).CountsAsSpend(); got != want {
			t.Errorf("CountsAsSpend(%q) = %v, want %v", kind, got, want)
		}
	}
}
