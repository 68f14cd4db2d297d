package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"glaspolitics.ie/pulse/internal/auth"
	"glaspolitics.ie/pulse/internal/cli"
	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/globaltime"
)

func runAdmin(args []string) int {
	if len(args) == 0 {
		printAdminUsage()
		return 2
	}

	action := strings.ToLower(strings.TrimSpace(args[0]))
	switch action {
	case "set-key":
		return runAdminSetKey(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown admin action: %s\n\n", args[0])
		printAdminUsage()
		return 2
	}
}

// runAdminSetKey mints a fresh admin API key, stores only its hash and
// prints the key once. There is no way to read it back later.
func runAdminSetKey(args []string) int {
	fs := flag.NewFlagSet("admin set-key", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "admin set-key does not accept positional arguments")
		return 2
	}

	key, err := auth.GenerateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
		return 1
	}
	hash, err := auth.HashKey(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash key: %v\n", err)
		return 1
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	if err := pool.UpsertSetting(ctx, db.SettingAdminKeyHash, hash, globaltime.UTC()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to store key hash: %v\n", err)
		return 1
	}

	fmt.Println("New admin API key (store it now, it is not recoverable):")
	fmt.Println(key)
	return 0
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  pulse admin set-key [--env .env] [--timeout 30s]")
}
