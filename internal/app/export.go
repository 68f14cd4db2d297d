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
	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/globaltime"
	"glaspolitics.ie/pulse/internal/ingest"
	payloadschema "glaspolitics.ie/pulse/schema"
)

func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	out := fs.String("out", "", "Backup file to write")
	source := fs.String("source", "", "Only articles from this source, empty for all")
	limit := fs.Int("limit", 0, "Maximum articles to export, 0 for everything")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "export does not accept positional arguments")
		return 2
	}
	if strings.TrimSpace(*out) == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		return 2
	}
	if *limit < 0 {
		fmt.Fprintln(os.Stderr, "--limit must be >= 0")
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	rows, err := pool.ExportArticles(ctx, strings.TrimSpace(*source), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to export articles: %v\n", err)
		return 1
	}

	scores, err := pool.ListMemberScoreSnapshot(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to export member scores: %v\n", err)
		return 1
	}

	payloads := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		encoded, err := json.Marshal(exportPayload(row))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode article %q: %v\n", row.URL, err)
			return 1
		}
		payloads = append(payloads, encoded)
	}

	backup := ingest.Backup{
		ExportedAt:   globaltime.UTC(),
		ArticleCount: len(payloads),
		Articles:     payloads,
		MemberScores: scores,
	}

	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode backup: %v\n", err)
		return 1
	}
	data = append(data, '\n')

	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write backup: %v\n", err)
		return 1
	}

	fmt.Printf("export articles=%d member_scores=%d out=%s\n", len(payloads), len(scores), *out)
	return 0
}

// exportPayload rebuilds the v1 ingest payload for a stored article, so a
// restore goes back through the same validation as any manual insert.
func exportPayload(row db.ArticleExportRow) payloadschema.ArticlePayload {
	payload := payloadschema.ArticlePayload{
		PayloadVersion: "v1",
		Source:         row.Source,
		URL:            row.URL,
		Title:          row.Title,
	}
	if strings.TrimSpace(row.Body) != "" {
		body := row.Body
		payload.BodyText = &body
	}
	if row.Summary != nil && strings.TrimSpace(*row.Summary) != "" {
		payload.Summary = row.Summary
	}
	if row.PublishedAt != nil {
		published := row.PublishedAt.UTC().Format(time.RFC3339)
		payload.PublishedAt = &published
	}
	if strings.TrimSpace(row.Language) != "" {
		lang := row.Language
		payload.Language = &lang
	}
	return payload
}
