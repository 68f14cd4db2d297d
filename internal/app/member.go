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

const memberMentionLimit = 10

func runMember(args []string) int {
	fs := flag.NewFlagSet("member", flag.ContinueOnError)
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
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pulse member [flags] <member-code>")
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

	detail, err := pool.GetMemberDetail(ctx, fs.Arg(0), memberMentionLimit)
	if err != nil {
		if db.IsNoRows(err) {
			fmt.Fprintf(os.Stderr, "Member %q not found\n", fs.Arg(0))
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to query member: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(detail); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	profileRows := [][]string{
		{"member_code", detail.Member.MemberCode},
		{"full_name", detail.Member.FullName},
		{"party", detail.Member.PartyName},
		{"constituency", detail.Member.Constituency},
		{"active", fmt.Sprintf("%t", detail.Member.Active)},
	}
	if err := writeTable([]string{"field", "value"}, profileRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render profile table: %v\n", err)
		return 1
	}

	fmt.Println()
	scoreRows := [][]string{
		{"overall", formatScore(detail.Ranking.Overall)},
		{"news_trust", formatScore(detail.Ranking.NewsTrust)},
		{"effectiveness", formatScore(detail.Ranking.Effectiveness)},
		{"consistency", formatScore(detail.Ranking.Consistency)},
		{"constituency_service", formatScore(detail.Ranking.LocalService)},
		{"computed_at", formatUTCTimestampPtr(detail.Ranking.ComputedAt)},
	}
	if err := writeTable([]string{"score", "value"}, scoreRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render score table: %v\n", err)
		return 1
	}

	if len(detail.Aliases) > 0 {
		fmt.Println()
		aliasRows := make([][]string, 0, len(detail.Aliases))
		for _, alias := range detail.Aliases {
			aliasRows = append(aliasRows, []string{alias.Alias, alias.Kind})
		}
		if err := writeTable([]string{"alias", "kind"}, aliasRows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render alias table: %v\n", err)
			return 1
		}
	}

	if len(detail.Mentions) > 0 {
		fmt.Println()
		mentionRows := make([][]string, 0, len(detail.Mentions))
		for _, mention := range detail.Mentions {
			mentionRows = append(mentionRows, []string{
				truncateForTable(mention.Title, 70),
				mention.Source,
				formatUTCTimestampPtr(mention.PublishedAt),
				fmt.Sprintf("%.2f", mention.Confidence),
				mention.Method,
			})
		}
		if err := writeTable([]string{"mention", "source", "published_at", "confidence", "method"}, mentionRows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render mention table: %v\n", err)
			return 1
		}
	}

	return 0
}
