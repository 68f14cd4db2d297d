package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"glaspolitics.ie/pulse/internal/cli"
	"glaspolitics.ie/pulse/internal/db"
)

func runRankings(args []string) int {
	fs := flag.NewFlagSet("rankings", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	dimension := fs.String("dimension", "overall", "Ranking dimension: "+strings.Join(db.RankingDimensions(), ", "))
	limit := fs.Int("limit", 25, "Maximum members to return")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "rankings does not accept positional arguments")
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

	rankings, err := pool.ListMemberRankings(ctx, *dimension, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query rankings: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(rankings); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	tableRows := make([][]string, 0, len(rankings))
	for i, ranking := range rankings {
		tableRows = append(tableRows, []string{
			fmt.Sprintf("%d", i+1),
			ranking.MemberCode,
			truncateForTable(ranking.FullName, 40),
			truncateForTable(ranking.PartyName, 30),
			truncateForTable(ranking.Constituency, 30),
			formatScore(ranking.Overall),
			formatScore(ranking.NewsTrust),
			formatScore(ranking.Effectiveness),
			formatScore(ranking.Consistency),
			formatScore(ranking.LocalService),
		})
	}

	if err := writeTable(
		[]string{"rank", "member_code", "name", "party", "constituency", "overall", "news", "effect", "consist", "local"},
		tableRows,
	); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}

	return 0
}
