package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/finance-analytics/internal/client"
	"github.com/dvloznov/finance-analytics/internal/config"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/logger"
	"github.com/dvloznov/finance-analytics/internal/notionsync"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "register":
		runRegister(log)
	case "import":
		runImport(log)
	case "performance":
		runPerformance(log)
	case "forecast":
		runForecast(log)
	case "report":
		runReport(log)
	case "sync-notion":
		runSyncNotion(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Analytics CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  register     Create an account")
	fmt.Println("  import       Upload a CSV bank statement")
	fmt.Println("  performance  Show budget consumption for a month")
	fmt.Println("  forecast     Show monthly trends and next month's forecast")
	fmt.Println("  report       Generate a monthly PDF report and download it")
	fmt.Println("  sync-notion  Push a month's budget performance to a Notion database")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nEvery command accepts -server, -username and -password; the last two")
	fmt.Println("default to FINANCE_CLI_USERNAME and FINANCE_CLI_PASSWORD.")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// session holds the flags shared by every subcommand.
type session struct {
	server   *string
	username *string
	password *string
}

func sessionFlags(fs *flag.FlagSet) session {
	server := os.Getenv("FINANCE_CLI_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	return session{
		server:   fs.String("server", server, "API base URL"),
		username: fs.String("username", os.Getenv("FINANCE_CLI_USERNAME"), "account username"),
		password: fs.String("password", os.Getenv("FINANCE_CLI_PASSWORD"), "account password"),
	}
}

func (s session) newClient() *client.Client {
	return client.New(*s.server, client.NewSession(), &http.Client{Timeout: time.Minute})
}

// login returns a client with an initialized session.
func (s session) login(ctx context.Context, log zerolog.Logger) *client.Client {
	if *s.username == "" || *s.password == "" {
		log.Fatal().Msg("Error: -username and -password are required")
	}
	c := s.newClient()
	if err := c.Login(ctx, *s.username, *s.password); err != nil {
		log.Fatal().Err(err).Str("username", *s.username).Msg("Login failed")
	}
	return c
}

func commandContext(log zerolog.Logger, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return logger.WithContext(ctx, log), cancel
}

func runRegister(log zerolog.Logger) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	sess := sessionFlags(fs)
	email := fs.String("email", "", "account email (optional)")
	fs.Parse(os.Args[2:])

	if *sess.username == "" || *sess.password == "" {
		log.Fatal().Msg("Error: -username and -password are required")
	}

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	u, err := sess.newClient().Register(ctx, *sess.username, *email, *sess.password)
	if err != nil {
		log.Fatal().Err(err).Msg("Registration failed")
	}
	fmt.Printf("Registered %s (id %s)\n", u.Username, u.ID)
}

func runImport(log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	sess := sessionFlags(fs)
	filePath := fs.String("file", "", "path to a CSV statement with date, description, amount[, category] columns")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: -file is required")
	}

	f, err := os.Open(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to open statement")
	}
	defer f.Close()

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	c := sess.login(ctx, log)
	log.Info().Str("file", *filePath).Msg("Uploading statement")

	summary, err := c.UploadStatement(ctx, filepath.Base(*filePath), f)
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	fmt.Printf("Imported %d, skipped %d duplicates, auto-categorized %d\n",
		summary.Imported, summary.Skipped, summary.Categorized)
	for _, e := range summary.Errors {
		fmt.Printf("  ! %s\n", e)
	}
}

func runPerformance(log zerolog.Logger) {
	fs := flag.NewFlagSet("performance", flag.ExitOnError)
	sess := sessionFlags(fs)
	month := fs.String("month", "", `month to evaluate, e.g. "2024-03" or "March 2024" (default: current month)`)
	fs.Parse(os.Args[2:])

	monthStart := parseMonthFlag(log, *month)

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	perf, err := sess.login(ctx, log).Performance(ctx, monthStart)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load budget performance")
	}

	fmt.Printf("\n=== Budgets for %s ===\n", perf.MonthStart.Format("January 2006"))
	if len(perf.Lines) == 0 {
		fmt.Println("No active budgets.")
	}
	for _, l := range perf.Lines {
		marker := ""
		if l.IsOver {
			marker = "  OVER"
		}
		fmt.Printf("%-20s %10s / %-10s %6.1f%%  remaining %s%s\n",
			l.Category, l.Spent.StringFixed(2), l.Budget.StringFixed(2), l.Percent, l.Remaining.StringFixed(2), marker)
	}
	for _, a := range perf.Anomalies {
		fmt.Printf("  ! %s\n", a)
	}
	fmt.Println()
}

func runForecast(log zerolog.Logger) {
	fs := flag.NewFlagSet("forecast", flag.ExitOnError)
	sess := sessionFlags(fs)
	fs.Parse(os.Args[2:])

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	c := sess.login(ctx, log)
	trends, err := c.Trends(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load trends")
	}
	forecast, err := c.Forecast(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load forecast")
	}

	fmt.Println("\n=== Monthly spend ===")
	for _, p := range trends {
		fmt.Printf("%-10s spent %10s  income %10s\n", p.Label, p.Spent.StringFixed(2), p.Income.StringFixed(2))
	}

	fmt.Println("\n=== Forecast ===")
	if forecast.PredictedAmount == nil {
		fmt.Printf("No forecast: %s\n\n", forecast.Message)
		return
	}
	fmt.Printf("Next month: %.2f (%s, %+.1f%% per month, R² %.2f over %d months)\n\n",
		*forecast.PredictedAmount, forecast.Trend, forecast.MonthlyGrowthRate, forecast.RSquared, forecast.Points)
}

func runReport(log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	sess := sessionFlags(fs)
	month := fs.String("month", "", `report month, e.g. "January 2024" (required)`)
	outDir := fs.String("out", ".", "directory to save the PDF in")
	interval := fs.Duration("interval", client.DefaultPollInterval, "status poll interval")
	timeout := fs.Duration("timeout", 5*time.Minute, "give up waiting after this long")
	fs.Parse(os.Args[2:])

	if *month == "" {
		log.Fatal().Msg("Error: -month is required")
	}

	ctx, cancel := commandContext(log, *timeout)
	defer cancel()

	c := sess.login(ctx, log)
	taskID, err := c.SubmitReport(ctx, *month)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to submit report")
	}
	log.Info().Str("task_id", taskID).Str("month", *month).Msg("Report submitted, waiting for it to finish")

	filename, data, err := c.WaitForReport(ctx, taskID, *interval)
	if err != nil {
		log.Fatal().Err(err).Str("task_id", taskID).Msg("Report generation did not complete")
	}

	path := filepath.Join(*outDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to save report")
	}
	fmt.Printf("Saved %s (%d bytes)\n", path, len(data))
}

func runSyncNotion(log zerolog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	sess := sessionFlags(fs)
	month := fs.String("month", "", "month to sync (default: current month)")
	notionToken := fs.String("notion-token", cfg.Notion.Token, "Notion API token (or FINANCE_NOTION_TOKEN)")
	notionDBID := fs.String("notion-db-id", cfg.Notion.DatabaseID, "Notion database ID (or FINANCE_NOTION_DATABASE_ID)")
	dryRun := fs.Bool("dry-run", false, "preview changes without writing to Notion")
	fs.Parse(os.Args[2:])

	if *notionToken == "" {
		log.Fatal().Msg("Error: -notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: -notion-db-id is required")
	}
	monthStart := parseMonthFlag(log, *month)

	ctx, cancel := commandContext(log, 10*time.Minute)
	defer cancel()

	perf, err := sess.login(ctx, log).Performance(ctx, monthStart)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load budget performance")
	}

	res, err := notionsync.SyncBudgets(ctx, notionsync.NewNotionClient(*notionToken), *notionDBID, perf, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Notion sync failed")
	}

	prefix := ""
	if *dryRun {
		prefix = "[DRY RUN] "
	}
	fmt.Printf("%sCreated %d, updated %d, archived %d, failed %d\n", prefix, res.Created, res.Updated, res.Archived, res.Failed)
}

// parseMonthFlag accepts the report month formats. Empty means the current month.
func parseMonthFlag(log zerolog.Logger, s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	p, err := domain.ParseMonthLabel(s)
	if err != nil {
		log.Fatal().Err(err).Str("month", s).Msg("Error: invalid month")
	}
	return p.Start
}
