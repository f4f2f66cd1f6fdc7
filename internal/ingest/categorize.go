package ingest

import (
	"context"
	"strings"

	"github.com/dvloznov/finance-analytics/internal/domain"
)

// Categorizer assigns category ids to descriptions. The result is aligned
// with descriptions; an empty id means no match.
type Categorizer interface {
	Categorize(ctx context.Context, descriptions []string, categories []domain.Category) ([]string, error)
}

// KeywordCategorizer matches a description to the category whose name it
// contains. The longest matching name wins so "Fast Food" beats "Food".
type KeywordCategorizer struct{}

// Categorize implements Categorizer.
func (KeywordCategorizer) Categorize(_ context.Context, descriptions []string, categories []domain.Category) ([]string, error) {
	out := make([]string, len(descriptions))
	for i, d := range descriptions {
		out[i] = matchKeyword(strings.ToLower(d), categories)
	}
	return out, nil
}

func matchKeyword(desc string, categories []domain.Category) string {
	best, bestLen := "", 0
	for _, c := range categories {
		name := strings.ToLower(c.Name)
		if name == "" || len(name) <= bestLen {
			continue
		}
		if strings.Contains(desc, name) {
			best, bestLen = c.ID, len(name)
		}
	}
	return best
}

func categoryByName(categories []domain.Category, name string) string {
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c.ID
		}
	}
	return ""
}
