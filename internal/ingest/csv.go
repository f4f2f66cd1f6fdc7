// Package ingest imports bank statement CSV files into the ledger.
package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

// Row is one parsed statement line.
type Row struct {
	Line        int
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	// Category is the optional category name given in the file.
	Category string
}

type columns struct {
	date, description, amount, category int
}

// ParseCSV reads a statement with a header row naming date, description and
// amount columns, plus an optional category column. Bad lines are reported
// and skipped; a missing or unusable header fails the whole file.
func ParseCSV(r io.Reader) ([]Row, []error, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, &domain.ValidationError{Field: "file", Reason: "empty CSV file"}
	}
	if err != nil {
		return nil, nil, &domain.ValidationError{Field: "file", Reason: fmt.Sprintf("read header: %v", err)}
	}
	cols, err := headerColumns(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		rows []Row
		errs []error
	)
	line := 1
	for {
		line++
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if isBlank(rec) {
			continue
		}
		row, err := parseRecord(rec, cols)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		row.Line = line
		rows = append(rows, row)
	}
	return rows, errs, nil
}

func headerColumns(header []string) (columns, error) {
	cols := columns{date: -1, description: -1, amount: -1, category: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "date":
			cols.date = i
		case "description":
			cols.description = i
		case "amount":
			cols.amount = i
		case "category":
			cols.category = i
		}
	}
	if cols.date < 0 || cols.description < 0 || cols.amount < 0 {
		return cols, &domain.ValidationError{Field: "file", Reason: "CSV header must name date, description and amount columns"}
	}
	return cols, nil
}

func parseRecord(rec []string, cols columns) (Row, error) {
	field := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	date, err := time.Parse(domain.DateLayout, field(cols.date))
	if err != nil {
		return Row{}, fmt.Errorf("date %q: want YYYY-MM-DD", field(cols.date))
	}
	amount, err := decimal.NewFromString(field(cols.amount))
	if err != nil {
		return Row{}, fmt.Errorf("amount %q: not a number", field(cols.amount))
	}
	desc := field(cols.description)
	if len(desc) > 500 {
		return Row{}, errors.New("description longer than 500 characters")
	}
	return Row{Date: date, Description: desc, Amount: amount, Category: field(cols.category)}, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
