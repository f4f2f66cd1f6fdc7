package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiCategorizer asks a Gemini model to pick a category for each
// description. Names the model invents are ignored.
type GeminiCategorizer struct {
	generate func(ctx context.Context, prompt string) (string, error)
}

// NewGeminiCategorizer creates a categorizer backed by the Gemini API.
func NewGeminiCategorizer(ctx context.Context, apiKey, model string) (*GeminiCategorizer, error) {
	if apiKey == "" {
		return nil, errors.New("NewGeminiCategorizer: api key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiCategorizer: create genai client: %w", err)
	}

	generate := func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		})
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		return resp.Text(), nil
	}
	return &GeminiCategorizer{generate: generate}, nil
}

type modelAssignment struct {
	Index    int    `json:"index"`
	Category string `json:"category"`
}

// Categorize implements Categorizer.
func (g *GeminiCategorizer) Categorize(ctx context.Context, descriptions []string, categories []domain.Category) ([]string, error) {
	out := make([]string, len(descriptions))
	if len(descriptions) == 0 || len(categories) == 0 {
		return out, nil
	}

	raw, err := g.generate(ctx, buildPrompt(descriptions, categories))
	if err != nil {
		return nil, fmt.Errorf("GeminiCategorizer: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("GeminiCategorizer: empty response from model")
	}

	var assignments []modelAssignment
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &assignments); err != nil {
		return nil, fmt.Errorf("GeminiCategorizer: unmarshal JSON: %w", err)
	}
	for _, a := range assignments {
		if a.Index < 0 || a.Index >= len(out) {
			continue
		}
		out[a.Index] = categoryByName(categories, a.Category)
	}
	return out, nil
}

func buildPrompt(descriptions []string, categories []domain.Category) string {
	var b strings.Builder
	b.WriteString("You categorize personal bank transactions.\n\n")
	b.WriteString("Allowed categories:\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s (%s)\n", c.Name, c.Kind)
	}
	b.WriteString("\nTransactions:\n")
	for i, d := range descriptions {
		fmt.Fprintf(&b, "%d. %s\n", i, d)
	}
	b.WriteString("\nRules:\n" +
		"- Output STRICT JSON only: an array of objects {\"index\": number, \"category\": string}.\n" +
		"- Use only the category names listed above, spelled exactly.\n" +
		"- Leave out transactions that fit no category.\n" +
		"- Do NOT wrap the response in code fences.\n")
	return b.String()
}

// cleanModelJSON strips Markdown fences and any text around the JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = strings.TrimSpace(s[idx+1:])
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
