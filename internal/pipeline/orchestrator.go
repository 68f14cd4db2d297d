// Package pipeline sequences the processing stages into one recorded run:
// fetch, triage, extract, score, sync, aggregate, cache bump. Stages are
// isolated; a failed stage lands in the run report and the remaining
// stages still execute, so a dead feed never blocks scoring of articles
// already in the database.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/rs/zerolog"

	"glaspolitics.ie/pulse/internal/aggregate"
	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/extract"
	"glaspolitics.ie/pulse/internal/feeds"
	"glaspolitics.ie/pulse/internal/fetch"
	"glaspolitics.ie/pulse/internal/globaltime"
	"glaspolitics.ie/pulse/internal/oireachtas"
	"glaspolitics.ie/pulse/internal/scoring"
	"glaspolitics.ie/pulse/internal/triage"
)

// processLockName seeds the advisory lock key shared by every command
// that writes scores. Changing it orphans locks held by older binaries.
const processLockName = "pulse.process"

const defaultSyncLookback = 180 * 24 * time.Hour

// ErrAlreadyRunning reports that another session holds the run lock.
var ErrAlreadyRunning = errors.New("another run holds the pipeline lock")

const (
	StageOK      = "ok"
	StageFailed  = "failed"
	StageSkipped = "skipped"
)

// StageResult is one stage's row in the run report. Counts carries the
// stage service's own report, marshaled as-is, so partial counts survive
// a stage failure.
type StageResult struct {
	Name      string          `json:"name"`
	Status    string          `json:"status"`
	ElapsedMS int64           `json:"elapsed_ms"`
	Counts    json.RawMessage `json:"counts,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// RunReport is the persisted record of one full process run.
type RunReport struct {
	RunID      int64         `json:"run_id,omitempty"`
	RunUUID    string        `json:"run_uuid,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Stages     []StageResult `json:"stages"`
	Failed     int           `json:"failed_stages"`
}

// Stages groups the services a process run sequences. A nil service
// records its stage as skipped rather than failing the run, so a
// deployment without an LLM key still fetches and aggregates.
type Stages struct {
	Fetch     *fetch.Service
	Triage    *triage.Service
	Extract   *extract.Service
	Scoring   *scoring.Service
	Sync      *oireachtas.SyncService
	Aggregate *aggregate.Service
}

// Config carries the per-run inputs the stages need.
type Config struct {
	Sources      []feeds.Source
	SyncLookback time.Duration
	ScoreLimit   int
}

// Orchestrator drives one full process run under the advisory run lock.
type Orchestrator struct {
	pool   *db.Pool
	stages Stages
	cfg    Config
	logger zerolog.Logger
}

func NewOrchestrator(pool *db.Pool, stages Stages, cfg Config, logger zerolog.Logger) *Orchestrator {
	if cfg.SyncLookback <= 0 {
		cfg.SyncLookback = defaultSyncLookback
	}
	return &Orchestrator{
		pool:   pool,
		stages: stages,
		cfg:    cfg,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

// AcquireRunLock takes the score-writer advisory lock, failing fast with
// ErrAlreadyRunning when another session holds it. Callers must Release.
func AcquireRunLock(ctx context.Context, pool *db.Pool) (*db.RunLock, error) {
	lock, err := pool.TryRunLock(ctx, lockKey(processLockName))
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, ErrAlreadyRunning
	}
	return lock, nil
}

// Run executes the full stage sequence and persists the run record. A
// stage failure marks the run failed but is not returned as an error;
// callers inspect Report.Failed. Errors are reserved for the lock and
// the run ledger itself.
func (o *Orchestrator) Run(ctx context.Context) (RunReport, error) {
	if o == nil || o.pool == nil {
		return RunReport{}, fmt.Errorf("orchestrator is not initialized")
	}

	lock, err := AcquireRunLock(ctx, o.pool)
	if err != nil {
		return RunReport{}, err
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			o.logger.Warn().Err(err).Msg("run lock release failed")
		}
	}()

	startedAt := globaltime.UTC()
	runID, runUUID, err := o.pool.InsertPipelineRun(ctx, "process", startedAt)
	if err != nil {
		return RunReport{}, err
	}

	report := executeStages(ctx, o.buildStages(), o.logger)
	report.RunID = runID
	report.RunUUID = runUUID
	report.StartedAt = startedAt
	report.FinishedAt = globaltime.UTC()

	status := "succeeded"
	var runErr error
	if report.Failed > 0 {
		status = "failed"
		runErr = fmt.Errorf("%d of %d stages failed", report.Failed, len(report.Stages))
	}
	payload, err := json.Marshal(report)
	if err != nil {
		payload = nil
		o.logger.Warn().Err(err).Msg("run report marshal failed")
	}
	if err := o.pool.FinishPipelineRun(ctx, runID, status, payload, runErr, report.FinishedAt); err != nil {
		return report, fmt.Errorf("close run record: %w", err)
	}

	o.logger.Info().
		Int64("run_id", runID).
		Str("status", status).
		Int("failed_stages", report.Failed).
		Msg("process run finished")
	return report, nil
}

// stage is one sequenced unit of work. run returns the stage service's
// report for the ledger; partial counts on error are kept.
type stage struct {
	name string
	skip bool
	run  func(context.Context) (any, error)
}

func (o *Orchestrator) buildStages() []stage {
	return []stage{
		{
			name: "fetch",
			skip: o.stages.Fetch == nil,
			run: func(ctx context.Context) (any, error) {
				return o.stages.Fetch.Run(ctx, o.cfg.Sources)
			},
		},
		{
			name: "triage",
			skip: o.stages.Triage == nil,
			run: func(ctx context.Context) (any, error) {
				return o.stages.Triage.Run(ctx)
			},
		},
		{
			name: "extract",
			skip: o.stages.Extract == nil,
			run: func(ctx context.Context) (any, error) {
				return o.stages.Extract.Run(ctx)
			},
		},
		{
			name: "score",
			skip: o.stages.Scoring == nil,
			run: func(ctx context.Context) (any, error) {
				return o.stages.Scoring.ApplyPending(ctx, o.cfg.ScoreLimit)
			},
		},
		{
			name: "sync",
			skip: o.stages.Sync == nil,
			run: func(ctx context.Context) (any, error) {
				since := globaltime.UTC().Add(-o.cfg.SyncLookback)
				return o.stages.Sync.SyncAll(ctx, since)
			},
		},
		{
			name: "aggregate",
			skip: o.stages.Aggregate == nil,
			run: func(ctx context.Context) (any, error) {
				return o.stages.Aggregate.Run(ctx)
			},
		},
		{
			name: "cache",
			run: func(ctx context.Context) (any, error) {
				version, err := o.pool.BumpCacheVersion(ctx, globaltime.UTC())
				if err != nil {
					return nil, err
				}
				return struct {
					Version int64 `json:"cache_version"`
				}{version}, nil
			},
		},
	}
}

// executeStages runs every stage in order regardless of earlier failures
// and accumulates the report.
func executeStages(ctx context.Context, stages []stage, logger zerolog.Logger) RunReport {
	report := RunReport{Stages: make([]StageResult, 0, len(stages))}
	for _, st := range stages {
		if st.skip {
			logger.Info().Str("stage", st.name).Msg("stage skipped")
			report.Stages = append(report.Stages, StageResult{Name: st.name, Status: StageSkipped})
			continue
		}

		started := time.Now()
		counts, err := st.run(ctx)
		elapsed := time.Since(started)

		result := StageResult{Name: st.name, Status: StageOK, ElapsedMS: elapsed.Milliseconds()}
		if counts != nil {
			if raw, merr := json.Marshal(counts); merr == nil {
				result.Counts = raw
			}
		}
		if err != nil {
			result.Status = StageFailed
			result.Error = err.Error()
			report.Failed++
			logger.Error().Err(err).Str("stage", st.name).Dur("elapsed", elapsed).Msg("stage failed")
		} else {
			logger.Info().Str("stage", st.name).Dur("elapsed", elapsed).Msg("stage completed")
		}
		report.Stages = append(report.Stages, result)
	}
	return report
}

// RecordRun wraps a single-stage command in a run ledger row so ad-hoc
// invocations show up in run history alongside full process runs. The
// stage's error is returned unchanged; a ledger write failure is logged,
// never allowed to mask the stage outcome.
func RecordRun(ctx context.Context, pool *db.Pool, kind string, logger zerolog.Logger, fn func(context.Context) (any, error)) (json.RawMessage, error) {
	startedAt := globaltime.UTC()
	runID, _, err := pool.InsertPipelineRun(ctx, kind, startedAt)
	if err != nil {
		return nil, err
	}

	counts, runErr := fn(ctx)
	var payload json.RawMessage
	if counts != nil {
		if raw, merr := json.Marshal(counts); merr == nil {
			payload = raw
		}
	}
	status := "succeeded"
	if runErr != nil {
		status = "failed"
	}
	if err := pool.FinishPipelineRun(ctx, runID, status, payload, runErr, globaltime.UTC()); err != nil {
		logger.Warn().Err(err).Str("kind", kind).Msg("run ledger close failed")
	}
	return payload, runErr
}

func lockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}
