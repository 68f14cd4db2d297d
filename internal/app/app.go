package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "fetch":
		return runFetch(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "triage":
		return runTriage(args[1:])
	case "extract":
		return runExtract(args[1:])
	case "score":
		return runScore(args[1:])
	case "sync":
		return runSync(args[1:])
	case "aggregate":
		return runAggregate(args[1:])
	case "process", "run-once":
		return runProcess(args[1:])
	case "stats":
		return runStats(args[1:])
	case "articles":
		return runArticles(args[1:])
	case "rankings":
		return runRankings(args[1:])
	case "member":
		return runMember(args[1:])
	case "search":
		return runSearch(args[1:])
	case "report":
		return runReport(args[1:])
	case "export":
		return runExport(args[1:])
	case "restore":
		return runRestore(args[1:])
	case "delete":
		return runDelete(args[1:])
	case "sources":
		return runSources(args[1:])
	case "admin":
		return runAdmin(args[1:])
	case "daemon":
		return runDaemon(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "pulse CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  pulse <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Pipeline:")
	fmt.Fprintln(os.Stderr, "  fetch      Pull RSS feeds and store fresh articles")
	fmt.Fprintln(os.Stderr, "  triage     Assess importance of unassessed articles")
	fmt.Fprintln(os.Stderr, "  extract    Attribute articles to TDs")
	fmt.Fprintln(os.Stderr, "  score      Apply pending score events")
	fmt.Fprintln(os.Stderr, "  sync       Pull members and voting facts from the Oireachtas API")
	fmt.Fprintln(os.Stderr, "  aggregate  Recompute dimensional member scores")
	fmt.Fprintln(os.Stderr, "  process    Run the full pipeline under the run lock")
	fmt.Fprintln(os.Stderr, "  run-once   Alias for process")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Data:")
	fmt.Fprintln(os.Stderr, "  ingest     Insert one article from a JSON payload file")
	fmt.Fprintln(os.Stderr, "  validate   Validate article JSON files against the v1 schema")
	fmt.Fprintln(os.Stderr, "  export     Write a JSON backup of articles and scores")
	fmt.Fprintln(os.Stderr, "  restore    Re-import articles from a JSON backup")
	fmt.Fprintln(os.Stderr, "  delete     Delete an article or prune old processed articles")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Inspection:")
	fmt.Fprintln(os.Stderr, "  health     Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  stats      Article, fact and throughput counts")
	fmt.Fprintln(os.Stderr, "  articles   List recent articles")
	fmt.Fprintln(os.Stderr, "  rankings   Top members by a score dimension")
	fmt.Fprintln(os.Stderr, "  member     One member's scores, aliases and mentions")
	fmt.Fprintln(os.Stderr, "  search     Search articles by title or body text")
	fmt.Fprintln(os.Stderr, "  report     Recent pipeline run reports")
	fmt.Fprintln(os.Stderr, "  sources    Configured feeds with per-source counts")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Operation:")
	fmt.Fprintln(os.Stderr, "  serve      Start the read-model API server")
	fmt.Fprintln(os.Stderr, "  admin      Manage the admin API key")
	fmt.Fprintln(os.Stderr, "  daemon     Install or control the systemd units")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"pulse <command> -h\" for command-specific flags.")
}
