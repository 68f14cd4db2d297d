package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"glaspolitics.ie/pulse/internal/cli"
)

func runReport(args []string) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	kind := fs.String("kind", "", "Filter by run kind, empty for all")
	limit := fs.Int("limit", 20, "Maximum runs to return")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "report does not accept positional arguments")
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
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

	runs, err := pool.ListRecentRuns(ctx, strings.TrimSpace(*kind), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(runs); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	tableRows := make([][]string, 0, len(runs))
	for _, run := range runs {
		tableRows = append(tableRows, []string{
			fmt.Sprintf("%d", run.RunID),
			run.RunUUID,
			run.Kind,
			run.Status,
			formatUTCTimestamp(run.StartedAt),
			formatUTCTimestampPtr(run.FinishedAt),
			truncateForTable(pointerStringOrEmpty(run.ErrorMessage), 48),
		})
	}
	if err := writeTable(
		[]string{"run_id", "run_uuid", "kind", "status", "started_at", "finished_at", "error"},
		tableRows,
	); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}

	// The newest run with a recorded report gets its stage counts printed
	// in full, so the table stays scannable.
	for _, run := range runs {
		if len(run.Report) == 0 {
			continue
		}
		var pretty map[string]any
		if err := json.Unmarshal(run.Report, &pretty); err != nil {
			break
		}
		fmt.Printf("\nReport for run %d (%s):\n", run.RunID, run.Kind)
		if err := printJSON(pretty); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode report JSON: %v\n", err)
			return 1
		}
		break
	}

	return 0
}
