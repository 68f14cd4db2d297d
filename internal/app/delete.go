package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"glaspolitics.ie/pulse/internal/cli"
	"glaspolitics.ie/pulse/internal/db"
)

func runDelete(args []string) int {
	if len(args) == 0 {
		printDeleteUsage()
		return 2
	}

	target := strings.ToLower(strings.TrimSpace(args[0]))
	switch target {
	case "article", "before":
	default:
		fmt.Fprintf(os.Stderr, "Unknown delete target: %s\n\n", args[0])
		printDeleteUsage()
		return 2
	}

	fs := flag.NewFlagSet("delete "+target, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")
	confirm := fs.Bool("confirm", false, "Actually delete, removal is permanent")

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "delete requires one argument")
		printDeleteUsage()
		return 2
	}

	arg := strings.TrimSpace(fs.Arg(0))
	if arg == "" {
		fmt.Fprintln(os.Stderr, "delete argument must not be empty")
		return 2
	}
	if !*confirm {
		fmt.Fprintf(os.Stderr, "Refusing to delete %s %q without --confirm\n", target, arg)
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	if target == "article" {
		return runDeleteArticle(ctx, pool, arg)
	}
	return runDeleteBefore(ctx, pool, arg)
}

func runDeleteArticle(ctx context.Context, pool *db.Pool, articleUUID string) int {
	result, err := pool.DeleteArticle(ctx, articleUUID)
	if err != nil {
		if db.IsNoRows(err) {
			fmt.Fprintf(os.Stderr, "Article %q not found\n", articleUUID)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to delete article: %v\n", err)
		return 1
	}
	fmt.Printf("articles_deleted=%d mentions_deleted=%d events_detached=%d\n",
		result.Articles, result.Mentions, result.EventsDetached)
	return 0
}

func runDeleteBefore(ctx context.Context, pool *db.Pool, beforeArg string) int {
	before, err := parseDeleteBeforeArgument(beforeArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid before value: %v\n", err)
		return 2
	}

	result, err := pool.PruneArticlesBefore(ctx, before)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prune articles: %v\n", err)
		return 1
	}
	fmt.Printf("before=%s articles_deleted=%d mentions_deleted=%d events_detached=%d\n",
		before.UTC().Format(time.RFC3339), result.Articles, result.Mentions, result.EventsDetached)
	return 0
}

func parseDeleteBeforeArgument(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("date/time is required")
	}

	if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return ts.UTC(), nil
	}

	day, err := parseUTCDate(trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be RFC3339 or YYYY-MM-DD")
	}
	return day.UTC(), nil
}

func printDeleteUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  pulse delete article <article_uuid> --confirm [--env .env] [--timeout 60s]")
	fmt.Fprintln(os.Stderr, "  pulse delete before <RFC3339|YYYY-MM-DD> --confirm [--env .env] [--timeout 60s]")
}
