package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"glaspolitics.ie/pulse/internal/aggregate"
	"glaspolitics.ie/pulse/internal/cli"
	"glaspolitics.ie/pulse/internal/config"
	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/extract"
	"glaspolitics.ie/pulse/internal/feeds"
	"glaspolitics.ie/pulse/internal/fetch"
	"glaspolitics.ie/pulse/internal/globaltime"
	"glaspolitics.ie/pulse/internal/llm"
	"glaspolitics.ie/pulse/internal/logging"
	"glaspolitics.ie/pulse/internal/members"
	"glaspolitics.ie/pulse/internal/oireachtas"
	"glaspolitics.ie/pulse/internal/pipeline"
	"glaspolitics.ie/pulse/internal/scoring"
	"glaspolitics.ie/pulse/internal/triage"
)

// stageEnv bundles what every pipeline command opens before doing work:
// loaded config, a logger, a bounded context and the database pool.
type stageEnv struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config
	logger zerolog.Logger
	pool   *db.Pool
}

func (e *stageEnv) close() {
	if e == nil {
		return
	}
	if e.pool != nil {
		if err := e.pool.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("pool close failed")
		}
	}
	if e.cancel != nil {
		e.cancel()
	}
}

// openStageEnv runs the shared boot sequence. The caller owns the returned
// env and must close it.
func openStageEnv(timeout time.Duration, envLoader *cli.EnvLoader) (*stageEnv, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		cancel()
		logger.Error().Err(err).Msg("pipeline command failed to connect to database")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &stageEnv{ctx: ctx, cancel: cancel, cfg: cfg, logger: logger, pool: pool}, nil
}

// buildModelClient returns (nil, nil) when no API key is configured. A nil
// client means keyless operation: fetch keeps every title, extract uses the
// deterministic fallback and triage refuses to run.
func buildModelClient(cfg *config.Config) (llm.Client, error) {
	if strings.TrimSpace(cfg.LLMAPIKey) == "" {
		return nil, nil
	}
	return llm.New(llm.Config{
		Provider:          cfg.LLMProvider,
		APIKey:            cfg.LLMAPIKey,
		BaseURL:           cfg.LLMBaseURL,
		Model:             cfg.LLMModel,
		Timeout:           time.Duration(cfg.LLMTimeoutSeconds) * time.Second,
		RequestsPerMinute: int(cfg.LLMRequestsPerMin),
	})
}

// loadSources reads the sources file, with an optional path override from
// the command line.
func loadSources(cfg *config.Config, override string) (*feeds.Config, error) {
	path := strings.TrimSpace(override)
	if path == "" {
		path = cfg.SourcesFile
	}
	return feeds.LoadConfig(path)
}

func fetchConfig(cfg *config.Config) fetch.Config {
	return fetch.Config{
		MaxScrape:      cfg.FetchMaxScrape,
		URLLookback:    time.Duration(cfg.FetchLookbackDays) * 24 * time.Hour,
		DedupLookback:  time.Duration(cfg.DedupLookbackHours) * time.Hour,
		DedupThreshold: cfg.DedupThreshold,
	}
}

func triageConfig(cfg *config.Config) triage.Config {
	return triage.Config{
		Concurrency:   cfg.TriageConcurrency,
		TopFraction:   cfg.TriageTopFraction,
		MinImportance: cfg.TriageMinImportance,
	}
}

func extractConfig(cfg *config.Config) extract.Config {
	return extract.Config{
		Concurrency:     cfg.TriageConcurrency,
		FallbackEnabled: cfg.ExtractorFallback,
	}
}

func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	sourcesPath := fs.String("sources", "", "Sources file (defaults to PULSE_SOURCES_FILE)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	env, err := openStageEnv(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer env.close()

	srcCfg, err := loadSources(env.cfg, *sourcesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load sources: %v\n", err)
		return 1
	}
	sources := srcCfg.EnabledFeeds()
	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "No enabled feeds in the sources file")
		return 1
	}

	client, err := buildModelClient(env.cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure model client: %v\n", err)
		return 1
	}

	fetcher := feeds.NewFetcher(env.logger, time.Duration(env.cfg.FetchMaxItemAgeDays)*24*time.Hour)
	svc := fetch.NewService(env.pool, fetcher, client, fetchConfig(env.cfg), env.logger)

	var report fetch.Report
	if _, err := pipeline.RecordRun(env.ctx, env.pool, "fetch", env.logger, func(ctx context.Context) (any, error) {
		var runErr error
		report, runErr = svc.Run(ctx, sources)
		return report, runErr
	}); err != nil {
		env.logger.Error().Err(err).Msg("fetch run failed")
		fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
		return 1
	}

	fmt.Printf("fetch sources=%d found=%d fresh=%d inserted=%d url_dupes=%d exact_dupes=%d title_dupes=%d filtered=%d scraped=%d scrape_failures=%d skipped_language=%d bad_urls=%d feed_errors=%d\n",
		len(sources), report.Found, report.Fresh, report.Inserted,
		report.URLDupes, report.ExactDupes, report.TitleDupes, report.Filtered,
		report.Scraped, report.ScrapeFailures, report.SkippedLanguage,
		report.BadURLs, report.FeedErrors)
	return 0
}

func runTriage(args []string) int {
	fs := flag.NewFlagSet("triage", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	env, err := openStageEnv(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer env.close()

	client, err := buildModelClient(env.cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure model client: %v\n", err)
		return 1
	}
	if client == nil {
		fmt.Fprintln(os.Stderr, "Triage needs a model client, set LLM_API_KEY")
		return 1
	}

	svc := triage.NewService(env.pool, client, triageConfig(env.cfg), env.logger)

	var report triage.Report
	if _, err := pipeline.RecordRun(env.ctx, env.pool, "triage", env.logger, func(ctx context.Context) (any, error) {
		var runErr error
		report, runErr = svc.Run(ctx)
		return report, runErr
	}); err != nil {
		env.logger.Error().Err(err).Msg("triage run failed")
		fmt.Fprintf(os.Stderr, "Triage failed: %v\n", err)
		return 1
	}

	fmt.Printf("triage assessed=%d defaulted=%d visible=%d selected=%d skipped=%d\n",
		report.Assessed, report.Defaulted, report.Visible, report.Selected, report.Skipped)
	return 0
}

func runExtract(args []string) int {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	sourcesPath := fs.String("sources", "", "Sources file (defaults to PULSE_SOURCES_FILE)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	env, err := openStageEnv(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer env.close()

	client, err := buildModelClient(env.cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure model client: %v\n", err)
		return 1
	}
	if client == nil && !env.cfg.ExtractorFallback {
		fmt.Fprintln(os.Stderr, "Extract needs a model client or PULSE_EXTRACTOR_FALLBACK=true")
		return 1
	}

	srcCfg, err := loadSources(env.cfg, *sourcesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load sources: %v\n", err)
		return 1
	}

	matcher, err := members.LoadMatcher(env.ctx, env.pool, srcCfg.Offices, env.logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load member matcher: %v\n", err)
		return 1
	}

	svc := extract.NewService(env.pool, client, matcher, extractConfig(env.cfg), env.logger)

	var report extract.Report
	if _, err := pipeline.RecordRun(env.ctx, env.pool, "extract", env.logger, func(ctx context.Context) (any, error) {
		var runErr error
		report, runErr = svc.Run(ctx)
		return report, runErr
	}); err != nil {
		env.logger.Error().Err(err).Msg("extract run failed")
		fmt.Fprintf(os.Stderr, "Extract failed: %v\n", err)
		return 1
	}

	fmt.Printf("extract examined=%d by_ai=%d by_fallback=%d mentions=%d events=%d unmatched=%d unresolved=%d errors=%d\n",
		report.Examined, report.ByAI, report.ByFallback, report.Mentions,
		report.Events, report.Unmatched, report.Unresolved, report.Errors)
	return 0
}

func runScore(args []string) int {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	limit := fs.Int("limit", 0, "Maximum events to apply, 0 drains everything")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *limit < 0 {
		fmt.Fprintln(os.Stderr, "--limit must be >= 0")
		return 2
	}

	env, err := openStageEnv(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer env.close()

	lock, err := pipeline.AcquireRunLock(env.ctx, env.pool)
	if err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			fmt.Fprintln(os.Stderr, "Another run holds the pipeline lock, try again later")
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to acquire run lock: %v\n", err)
		return 1
	}
	defer releaseRunLock(lock, env.logger)

	svc := scoring.NewService(env.pool, env.logger)

	var result scoring.ApplyResult
	if _, err := pipeline.RecordRun(env.ctx, env.pool, "score", env.logger, func(ctx context.Context) (any, error) {
		var runErr error
		result, runErr = svc.ApplyPending(ctx, *limit)
		return result, runErr
	}); err != nil {
		env.logger.Error().Err(err).Msg("score run failed")
		fmt.Fprintf(os.Stderr, "Score failed: %v\n", err)
		return 1
	}

	pending, err := env.pool.CountPendingScoreEvents(env.ctx)
	if err != nil {
		env.logger.Warn().Err(err).Msg("pending event count failed")
		pending = -1
	}

	fmt.Printf("score applied=%d moved=%d pending=%d\n", result.Applied, result.Moved, pending)
	return 0
}

func runSync(args []string) int {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Minute, "Command timeout")
	lookbackDays := fs.Int("lookback-days", 0, "Fact window in days, 0 uses PULSE_SYNC_LOOKBACK_DAYS")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *lookbackDays < 0 {
		fmt.Fprintln(os.Stderr, "--lookback-days must be >= 0")
		return 2
	}

	env, err := openStageEnv(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer env.close()

	days := *lookbackDays
	if days == 0 {
		days = env.cfg.SyncLookbackDays
	}
	since := globaltime.UTC().AddDate(0, 0, -days)

	client := oireachtas.NewClient(env.cfg.OireachtasBaseURL, env.logger)
	svc := oireachtas.NewSyncService(env.pool, client, env.cfg.OireachtasHouse, env.logger)

	var report oireachtas.SyncReport
	if _, err := pipeline.RecordRun(env.ctx, env.pool, "sync", env.logger, func(ctx context.Context) (any, error) {
		var runErr error
		report, runErr = svc.SyncAll(ctx, since)
		return report, runErr
	}); err != nil {
		env.logger.Error().Err(err).Msg("sync run failed")
		fmt.Fprintf(os.Stderr, "Sync failed: %v\n", err)
		return 1
	}

	fmt.Printf("sync since=%s members_seen=%d members_inserted=%d aliases_added=%d votes_added=%d questions_added=%d roles_added=%d unmatched=%d errors=%d\n",
		since.Format("2006-01-02"), report.MembersSeen, report.MembersInserted,
		report.AliasesAdded, report.VotesAdded, report.QuestionsAdded,
		report.RolesAdded, report.Unmatched, report.Errors)
	return 0
}

func runAggregate(args []string) int {
	fs := flag.NewFlagSet("aggregate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	sourcesPath := fs.String("sources", "", "Sources file (defaults to PULSE_SOURCES_FILE)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	env, err := openStageEnv(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer env.close()

	srcCfg, err := loadSources(env.cfg, *sourcesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load sources: %v\n", err)
		return 1
	}

	lock, err := pipeline.AcquireRunLock(env.ctx, env.pool)
	if err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			fmt.Fprintln(os.Stderr, "Another run holds the pipeline lock, try again later")
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to acquire run lock: %v\n", err)
		return 1
	}
	defer releaseRunLock(lock, env.logger)

	svc := aggregate.NewService(env.pool, srcCfg.LocalKeywords, env.logger)

	var report aggregate.Report
	if _, err := pipeline.RecordRun(env.ctx, env.pool, "aggregate", env.logger, func(ctx context.Context) (any, error) {
		var runErr error
		report, runErr = svc.Run(ctx)
		return report, runErr
	}); err != nil {
		env.logger.Error().Err(err).Msg("aggregate run failed")
		fmt.Fprintf(os.Stderr, "Aggregate failed: %v\n", err)
		return 1
	}

	fmt.Printf("aggregate members=%d votes=%d questions=%d roles=%d updated=%d errors=%d\n",
		report.Members, report.Votes, report.Questions, report.Roles,
		report.Updated, report.Errors)
	return 0
}

func runProcess(args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Minute, "Command timeout")
	sourcesPath := fs.String("sources", "", "Sources file (defaults to PULSE_SOURCES_FILE)")
	scoreLimit := fs.Int("score-limit", 0, "Maximum score events to apply, 0 drains everything")
	lookbackDays := fs.Int("lookback-days", 0, "Sync window in days, 0 uses PULSE_SYNC_LOOKBACK_DAYS")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *scoreLimit < 0 {
		fmt.Fprintln(os.Stderr, "--score-limit must be >= 0")
		return 2
	}
	if *lookbackDays < 0 {
		fmt.Fprintln(os.Stderr, "--lookback-days must be >= 0")
		return 2
	}

	env, err := openStageEnv(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer env.close()

	srcCfg, err := loadSources(env.cfg, *sourcesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load sources: %v\n", err)
		return 1
	}

	client, err := buildModelClient(env.cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure model client: %v\n", err)
		return 1
	}
	if client == nil {
		env.logger.Warn().Msg("no model key configured, triage will be skipped")
	}

	days := *lookbackDays
	if days == 0 {
		days = env.cfg.SyncLookbackDays
	}

	fetcher := feeds.NewFetcher(env.logger, time.Duration(env.cfg.FetchMaxItemAgeDays)*24*time.Hour)
	stages := pipeline.Stages{
		Fetch:   fetch.NewService(env.pool, fetcher, client, fetchConfig(env.cfg), env.logger),
		Scoring: scoring.NewService(env.pool, env.logger),
		Sync:    oireachtas.NewSyncService(env.pool, oireachtas.NewClient(env.cfg.OireachtasBaseURL, env.logger), env.cfg.OireachtasHouse, env.logger),
	}
	if client != nil {
		stages.Triage = triage.NewService(env.pool, client, triageConfig(env.cfg), env.logger)
	}
	if client != nil || env.cfg.ExtractorFallback {
		matcher, err := members.LoadMatcher(env.ctx, env.pool, srcCfg.Offices, env.logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load member matcher: %v\n", err)
			return 1
		}
		stages.Extract = extract.NewService(env.pool, client, matcher, extractConfig(env.cfg), env.logger)
	}
	stages.Aggregate = aggregate.NewService(env.pool, srcCfg.LocalKeywords, env.logger)

	orch := pipeline.NewOrchestrator(env.pool, stages, pipeline.Config{
		Sources:      srcCfg.EnabledFeeds(),
		SyncLookback: time.Duration(days) * 24 * time.Hour,
		ScoreLimit:   *scoreLimit,
	}, env.logger)

	report, err := orch.Run(env.ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			fmt.Fprintln(os.Stderr, "Another run holds the pipeline lock, try again later")
			return 1
		}
		env.logger.Error().Err(err).Msg("process run failed")
		fmt.Fprintf(os.Stderr, "Process failed: %v\n", err)
		return 1
	}

	elapsed := report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)
	fmt.Printf("process run_id=%d run_uuid=%s failed_stages=%d elapsed=%s\n",
		report.RunID, report.RunUUID, report.Failed, elapsed)

	rows := make([][]string, 0, len(report.Stages))
	for _, stage := range report.Stages {
		rows = append(rows, []string{
			stage.Name,
			stage.Status,
			strconv.FormatInt(stage.ElapsedMS, 10),
			truncateForTable(string(stage.Counts), 72),
			truncateForTable(stage.Error, 48),
		})
	}
	if err := writeTable([]string{"STAGE", "STATUS", "ELAPSED_MS", "COUNTS", "ERROR"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render stage table: %v\n", err)
		return 1
	}

	if report.Failed > 0 {
		return 1
	}
	return 0
}

// releaseRunLock lets the lock go on its own context so a command that hit
// its deadline still releases.
func releaseRunLock(lock *db.RunLock, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := lock.Release(ctx); err != nil {
		logger.Warn().Err(err).Msg("run lock release failed")
	}
}
