package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RunSummary is the report command read model.
type RunSummary struct {
	RunID        int64           `json:"run_id"`
	RunUUID      string          `json:"run_uuid"`
	Kind         string          `json:"kind"`
	Status       string          `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	Report       json.RawMessage `json:"report,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

// InsertPipelineRun opens a run ledger row in status running.
func (p *Pool) InsertPipelineRun(ctx context.Context, kind string, startedAt time.Time) (int64, string, error) {
	trimmedKind := strings.ToLower(strings.TrimSpace(kind))
	if trimmedKind == "" {
		return 0, "", fmt.Errorf("run kind is required")
	}

	const q = `
INSERT INTO pulse.pipeline_runs (kind, started_at, status)
VALUES ($1, $2, 'running')
RETURNING run_id, run_uuid::text
`

	var (
		runID   int64
		runUUID string
	)
	if err := p.QueryRow(ctx, q, trimmedKind, startedAt.UTC()).Scan(&runID, &runUUID); err != nil {
		return 0, "", fmt.Errorf("insert pipeline run: %w", err)
	}
	return runID, runUUID, nil
}

// FinishPipelineRun closes a run ledger row with its report.
func (p *Pool) FinishPipelineRun(ctx context.Context, runID int64, status string, report json.RawMessage, runErr error, finishedAt time.Time) error {
	if runID <= 0 {
		return fmt.Errorf("run id is required")
	}
	trimmedStatus := strings.ToLower(strings.TrimSpace(status))
	switch trimmedStatus {
	case "succeeded", "failed":
	default:
		return fmt.Errorf("unknown run status %q", status)
	}

	var errMessage any
	if runErr != nil {
		msg := runErr.Error()
		if len(msg) > 4000 {
			msg = msg[:4000]
		}
		errMessage = msg
	}
	var reportValue any
	if len(report) > 0 {
		reportValue = string(report)
	}

	const q = `
UPDATE pulse.pipeline_runs
SET
	status = $2,
	report = $3::jsonb,
	error_message = $4,
	finished_at = $5
WHERE run_id = $1
`

	tag, err := p.Exec(ctx, q, runID, trimmedStatus, reportValue, errMessage, finishedAt.UTC())
	if err != nil {
		return fmt.Errorf("finish pipeline run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

// ListRecentRuns returns recent runs, optionally filtered by kind.
func (p *Pool) ListRecentRuns(ctx context.Context, kind string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	r.run_id,
	r.run_uuid::text,
	r.kind,
	r.status,
	r.started_at,
	r.finished_at,
	r.report,
	r.error_message
FROM pulse.pipeline_runs r
WHERE ($1 = '' OR r.kind = $1)
ORDER BY r.started_at DESC, r.run_id DESC
LIMIT $2
`

	rows, err := p.Query(ctx, q, strings.ToLower(strings.TrimSpace(kind)), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0, limit)
	for rows.Next() {
		var (
			row    RunSummary
			report []byte
		)
		if err := rows.Scan(
			&row.RunID,
			&row.RunUUID,
			&row.Kind,
			&row.Status,
			&row.StartedAt,
			&row.FinishedAt,
			&report,
			&row.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if len(report) > 0 {
			row.Report = append(json.RawMessage(nil), report...)
		}
		runs = append(runs, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}
