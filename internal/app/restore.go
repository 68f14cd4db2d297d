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
	"glaspolitics.ie/pulse/internal/ingest"
)

func runRestore(args []string) int {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	file := fs.String("file", "", "Backup file written by export")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "restore does not accept positional arguments")
		return 2
	}
	if strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		return 2
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read backup: %v\n", err)
		return 1
	}

	var backup ingest.Backup
	if err := json.Unmarshal(raw, &backup); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse backup: %v\n", err)
		return 1
	}
	if len(backup.Articles) == 0 {
		fmt.Fprintln(os.Stderr, "Backup holds no articles")
		return 1
	}

	env, err := openStageEnv(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer env.close()

	report, err := ingest.NewService(env.pool, env.logger).Restore(env.ctx, backup.Articles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Restore failed: %v\n", err)
		fmt.Printf("restore payloads=%d restored=%d duplicates=%d invalid=%d failed=%d\n",
			report.Payloads, report.Restored, report.Duplicates, report.Invalid, report.Failed)
		return 1
	}

	fmt.Printf("restore payloads=%d restored=%d duplicates=%d invalid=%d failed=%d\n",
		report.Payloads, report.Restored, report.Duplicates, report.Invalid, report.Failed)
	if report.Invalid > 0 {
		return 1
	}
	return 0
}
