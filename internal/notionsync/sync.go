package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-analytics/internal/finance"
	"github.com/dvloznov/finance-analytics/internal/logger"
	"github.com/jomei/notionapi"
)

// PageSize is the number of rows requested per database query.
const PageSize = 100

// SyncResult counts what a sync did, or would do in dry-run mode.
type SyncResult struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// SyncBudgets makes the board rows for perf's month match perf.Lines.
// Rows are keyed by budget id and month: existing rows are updated, missing
// ones created, and rows of the same month whose budget is gone (or that
// carry no budget id at all) are archived. Rows of other months are left
// alone. Individual page failures are logged and counted, not returned.
func SyncBudgets(ctx context.Context, notion NotionService, databaseID string, perf *finance.Performance, dryRun bool) (SyncResult, error) {
	log := logger.FromContext(ctx)
	var res SyncResult
	if perf == nil {
		return res, fmt.Errorf("SyncBudgets: no performance to sync")
	}
	month := MonthKey(perf.MonthStart)

	log.Info().
		Str("month", month).
		Int("budget_count", len(perf.Lines)).
		Bool("dry_run", dryRun).
		Msg("Starting budget sync to Notion")

	pages, err := queryAllPages(ctx, notion, databaseID)
	if err != nil {
		return res, fmt.Errorf("SyncBudgets: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	current := make(map[string]bool, len(perf.Lines))
	for _, line := range perf.Lines {
		current[line.BudgetID] = true
	}

	existing := make(map[string]string)
	for _, page := range pages {
		budgetID := richTextValue(page, PropBudgetID)
		pageMonth := richTextValue(page, PropMonth)
		switch {
		case budgetID != "" && pageMonth != month:
			continue
		case budgetID != "" && current[budgetID]:
			if _, dup := existing[budgetID]; !dup {
				existing[budgetID] = string(page.ID)
				continue
			}
		}

		if dryRun {
			log.Info().Str("budget_id", budgetID).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := notion.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("budget_id", budgetID).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	for _, line := range perf.Lines {
		props := BudgetToProperties(line, perf.MonthStart)
		pageID, ok := existing[line.BudgetID]

		if dryRun {
			if ok {
				res.Updated++
			} else {
				res.Created++
			}
			log.Info().
				Str("budget_id", line.BudgetID).
				Str("category", line.Category).
				Bool("exists", ok).
				Msg("[DRY RUN] Would write Notion page")
			continue
		}

		if ok {
			if _, err := notion.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("budget_id", line.BudgetID).Str("page_id", pageID).Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++
			continue
		}

		page, err := notion.CreatePage(ctx, databaseID, props)
		if err != nil {
			log.Warn().Err(err).Str("budget_id", line.BudgetID).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Debug().Str("budget_id", line.BudgetID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		res.Created++
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Budget sync completed")

	return res, nil
}

func queryAllPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor
	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: PageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}
		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}
		all = append(all, resp.Results...)
		if !resp.HasMore {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}
