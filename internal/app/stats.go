package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"glaspolitics.ie/pulse/internal/cli"
	"glaspolitics.ie/pulse/internal/db"
)

const statsRecentRuns = 10

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	dayStart := defaultUTCDay()
	_, dayEnd := utcDayBounds(dayStart)

	stats, err := pool.QueryPipelineStats(ctx, dayStart, dayEnd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query pipeline stats: %v\n", err)
		return 1
	}

	runs, err := pool.ListRecentRuns(ctx, "", statsRecentRuns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list recent runs: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		payload := struct {
			Stats      *db.PipelineStats `json:"stats"`
			RecentRuns []db.RunSummary   `json:"recent_runs"`
		}{Stats: stats, RecentRuns: runs}
		if err := printJSON(payload); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Printf("Pipeline stats for %s (UTC)\n\n", stats.Day)

	articleRows := [][]string{
		{"total", fmt.Sprintf("%d", stats.Articles.Total)},
		{"awaiting_triage", fmt.Sprintf("%d", stats.Articles.AwaitingTriage)},
		{"visible", fmt.Sprintf("%d", stats.Articles.Visible)},
		{"needs_scoring", fmt.Sprintf("%d", stats.Articles.NeedsScoring)},
		{"processed", fmt.Sprintf("%d", stats.Articles.Processed)},
	}
	if err := writeTable([]string{"articles", "count"}, articleRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render article table: %v\n", err)
		return 1
	}

	fmt.Println()
	factRows := [][]string{
		{"members", fmt.Sprintf("%d", stats.Facts.Members)},
		{"active_members", fmt.Sprintf("%d", stats.Facts.ActiveMembers)},
		{"aliases", fmt.Sprintf("%d", stats.Facts.Aliases)},
		{"division_votes", fmt.Sprintf("%d", stats.Facts.DivisionVotes)},
		{"questions", fmt.Sprintf("%d", stats.Facts.Questions)},
		{"legislation", fmt.Sprintf("%d", stats.Facts.Legislation)},
		{"mentions", fmt.Sprintf("%d", stats.Facts.Mentions)},
		{"pending_events", fmt.Sprintf("%d", stats.Facts.PendingEvents)},
		{"scored_members", fmt.Sprintf("%d", stats.Facts.ScoredMembers)},
	}
	if err := writeTable([]string{"facts", "count"}, factRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render fact table: %v\n", err)
		return 1
	}

	fmt.Println()
	throughputRows := [][]string{
		{"articles_fetched_today", fmt.Sprintf("%d", stats.Throughput.ArticlesFetchedToday)},
		{"events_applied_today", fmt.Sprintf("%d", stats.Throughput.EventsAppliedToday)},
		{"runs_started_today", fmt.Sprintf("%d", stats.Throughput.RunsStartedToday)},
	}
	if err := writeTable([]string{"metric", "value"}, throughputRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render throughput table: %v\n", err)
		return 1
	}

	fmt.Println()
	runRows := make([][]string, 0, len(runs))
	for _, run := range runs {
		runRows = append(runRows, []string{
			fmt.Sprintf("%d", run.RunID),
			run.Kind,
			run.Status,
			formatUTCTimestamp(run.StartedAt),
			formatUTCTimestampPtr(run.FinishedAt),
		})
	}
	if err := writeTable([]string{"run_id", "kind", "status", "started_at", "finished_at"}, runRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render run table: %v\n", err)
		return 1
	}

	return 0
}
