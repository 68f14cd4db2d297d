package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"glaspolitics.ie/pulse/internal/cli"
	"glaspolitics.ie/pulse/internal/config"
	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/feeds"
)

// sourceStatus joins one configured feed with its stored article counts.
type sourceStatus struct {
	Name              string     `json:"name"`
	URL               string     `json:"url"`
	Enabled           bool       `json:"enabled"`
	ArticleCount      int64      `json:"article_count"`
	VisibleCount      int64      `json:"visible_count"`
	EarliestFetchedAt *time.Time `json:"earliest_fetched_at,omitempty"`
	LatestFetchedAt   *time.Time `json:"latest_fetched_at,omitempty"`
}

func runSources(args []string) int {
	fs := flag.NewFlagSet("sources", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	sourcesPath := fs.String("sources", "", "Sources file (defaults to PULSE_SOURCES_FILE)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "sources does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	srcCfg, err := loadSources(cfg, *sourcesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load sources: %v\n", err)
		return 1
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	counts, err := pool.ListSourcesWithCounts(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query source counts: %v\n", err)
		return 1
	}

	statuses := mergeSourceStatus(srcCfg.Feeds, counts)

	if outputFormat == outputFormatJSON {
		if err := printJSON(statuses); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	tableRows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		tableRows = append(tableRows, []string{
			status.Name,
			fmt.Sprintf("%t", status.Enabled),
			fmt.Sprintf("%d", status.ArticleCount),
			fmt.Sprintf("%d", status.VisibleCount),
			formatUTCTimestampPtr(status.LatestFetchedAt),
			truncateForTable(status.URL, 60),
		})
	}
	if err := writeTable(
		[]string{"source", "enabled", "articles", "visible", "latest_fetched_at", "url"},
		tableRows,
	); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}

	return 0
}

// mergeSourceStatus pairs configured feeds with stored counts by source
// name. Stored sources missing from the file, manual ingests for example,
// still get a row.
func mergeSourceStatus(feedList []feeds.Source, counts []db.SourceCount) []sourceStatus {
	byName := make(map[string]db.SourceCount, len(counts))
	for _, count := range counts {
		byName[count.Source] = count
	}

	statuses := make([]sourceStatus, 0, len(feedList)+len(counts))
	seen := make(map[string]bool, len(feedList))
	for _, feed := range feedList {
		count := byName[feed.Name]
		statuses = append(statuses, sourceStatus{
			Name:              feed.Name,
			URL:               feed.URL,
			Enabled:           feed.Enabled,
			ArticleCount:      count.ArticleCount,
			VisibleCount:      count.VisibleCount,
			EarliestFetchedAt: count.EarliestFetchedAt,
			LatestFetchedAt:   count.LatestFetchedAt,
		})
		seen[feed.Name] = true
	}
	for _, count := range counts {
		if seen[count.Source] {
			continue
		}
		statuses = append(statuses, sourceStatus{
			Name:              count.Source,
			ArticleCount:      count.ArticleCount,
			VisibleCount:      count.VisibleCount,
			EarliestFetchedAt: count.EarliestFetchedAt,
			LatestFetchedAt:   count.LatestFetchedAt,
		})
	}
	return statuses
}
