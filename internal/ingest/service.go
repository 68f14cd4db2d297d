// Package ingest inserts operator-supplied articles through the same
// duplicate surface the fetch stage uses. Every call leaves one row in
// the run ledger, so manual inserts and backup restores show up in
// reports next to scheduled runs.
package ingest

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/globaltime"
	"glaspolitics.ie/pulse/internal/language"
	payloadschema "glaspolitics.ie/pulse/schema"
)

// Service inserts validated article payloads outside the feed cycle.
type Service struct {
	pool   *db.Pool
	logger zerolog.Logger
}

func NewService(pool *db.Pool, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		logger: logger.With().Str("component", "ingest").Logger(),
	}
}

// Result reports one manual article insert.
type Result struct {
	RunID       int64  `json:"run_id"`
	RunUUID     string `json:"run_uuid"`
	ArticleID   int64  `json:"article_id,omitempty"`
	ArticleUUID string `json:"article_uuid,omitempty"`
	Inserted    bool   `json:"inserted"`
	HashHex     string `json:"content_hash"`
}

// RestoreReport counts one backup re-import.
type RestoreReport struct {
	Payloads   int `json:"payloads"`
	Restored   int `json:"restored"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
	Failed     int `json:"failed"`
}

// Backup is the on-disk envelope the export command writes and restore
// reads. Articles hold v1 ingest payloads, so a backup file can also be
// assembled by hand or by another system.
type Backup struct {
	ExportedAt   time.Time                `json:"exported_at"`
	ArticleCount int                      `json:"article_count"`
	Articles     []json.RawMessage        `json:"articles"`
	MemberScores []db.MemberScoreSnapshot `json:"member_scores,omitempty"`
}

// ArticleParams maps a validated payload onto an insert. The URL is
// canonicalized the same way the fetch stage does it, so manually adding
// an already-fetched article lands as a duplicate, not a second row.
func ArticleParams(payload *payloadschema.ArticlePayload, fetchedAt time.Time) (db.NewArticleParams, error) {
	if payload == nil {
		return db.NewArticleParams{}, fmt.Errorf("payload is nil")
	}

	canonical, _ := db.NormalizeURL(payload.URL)
	if canonical == "" {
		return db.NewArticleParams{}, fmt.Errorf("url %q is not canonicalizable", payload.URL)
	}

	body := ""
	if payload.BodyText != nil {
		body = strings.TrimSpace(*payload.BodyText)
	}

	lang := "en"
	if payload.Language != nil {
		lang = language.CodeOrDefault(*payload.Language, "en")
	}

	var publishedAt *time.Time
	if payload.PublishedAt != nil && strings.TrimSpace(*payload.PublishedAt) != "" {
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(*payload.PublishedAt))
		if err != nil {
			return db.NewArticleParams{}, fmt.Errorf("published_at must be RFC3339: %w", err)
		}
		utc := ts.UTC()
		publishedAt = &utc
	}

	var summary *string
	if payload.Summary != nil {
		if text := strings.TrimSpace(*payload.Summary); text != "" {
			summary = &text
		}
	}

	return db.NewArticleParams{
		Source:      strings.TrimSpace(payload.Source),
		URL:         canonical,
		Title:       strings.TrimSpace(payload.Title),
		Body:        body,
		Summary:     summary,
		ContentHash: db.ContentHash(payload.Title, body),
		Language:    lang,
		PublishedAt: publishedAt,
		FetchedAt:   fetchedAt.UTC(),
	}, nil
}

// IngestOne inserts a single validated payload under an ingest ledger
// row. The article lands invisible and waits for the next triage pass.
func (s *Service) IngestOne(ctx context.Context, payload *payloadschema.ArticlePayload) (Result, error) {
	if s == nil || s.pool == nil {
		return Result{}, fmt.Errorf("ingest service is not initialized")
	}

	startedAt := globaltime.UTC()
	params, err := ArticleParams(payload, startedAt)
	if err != nil {
		return Result{}, err
	}

	runID, runUUID, err := s.pool.InsertPipelineRun(ctx, "ingest", startedAt)
	if err != nil {
		return Result{}, fmt.Errorf("open run record: %w", err)
	}

	result := Result{
		RunID:   runID,
		RunUUID: runUUID,
		HashHex: hex.EncodeToString(params.ContentHash),
	}

	articleID, articleUUID, inserted, insertErr := s.pool.InsertArticle(ctx, params)
	finishedAt := globaltime.UTC()
	if insertErr != nil {
		if err := s.pool.FinishPipelineRun(ctx, runID, "failed", nil, insertErr, finishedAt); err != nil {
			s.logger.Warn().Err(err).Int64("run_id", runID).Msg("could not close failed ingest run")
		}
		return Result{}, fmt.Errorf("insert article: %w", insertErr)
	}

	result.ArticleID = articleID
	result.ArticleUUID = articleUUID
	result.Inserted = inserted

	report, err := json.Marshal(map[string]int{
		"inserted":   boolCount(inserted),
		"duplicates": boolCount(!inserted),
	})
	if err != nil {
		report = nil
	}
	if err := s.pool.FinishPipelineRun(ctx, runID, "succeeded", report, nil, finishedAt); err != nil {
		return Result{}, fmt.Errorf("close run record: %w", err)
	}

	s.logger.Info().
		Int64("run_id", runID).
		Str("source", params.Source).
		Str("url", params.URL).
		Bool("inserted", inserted).
		Msg("manual ingest finished")

	return result, nil
}

// Restore re-imports article payloads from a backup under a single
// restore ledger row. Every payload is schema-validated before its
// insert; invalid entries are counted and skipped, never half-applied.
func (s *Service) Restore(ctx context.Context, payloads []json.RawMessage) (RestoreReport, error) {
	if s == nil || s.pool == nil {
		return RestoreReport{}, fmt.Errorf("ingest service is not initialized")
	}

	startedAt := globaltime.UTC()
	runID, _, err := s.pool.InsertPipelineRun(ctx, "restore", startedAt)
	if err != nil {
		return RestoreReport{}, fmt.Errorf("open run record: %w", err)
	}

	report := RestoreReport{Payloads: len(payloads)}
	for i, raw := range payloads {
		payload, err := payloadschema.ValidateArticlePayload(raw)
		if err != nil {
			report.Invalid++
			s.logger.Warn().Err(err).Int("index", i).Msg("backup payload rejected")
			continue
		}

		params, err := ArticleParams(payload, startedAt)
		if err != nil {
			report.Invalid++
			s.logger.Warn().Err(err).Int("index", i).Msg("backup payload rejected")
			continue
		}

		_, _, inserted, err := s.pool.InsertArticle(ctx, params)
		if err != nil {
			report.Failed++
			s.logger.Warn().Err(err).Int("index", i).Str("url", params.URL).Msg("restore insert failed")
			continue
		}
		if inserted {
			report.Restored++
		} else {
			report.Duplicates++
		}
	}

	status := "succeeded"
	var runErr error
	if report.Failed > 0 {
		status = "failed"
		runErr = fmt.Errorf("%d of %d payloads failed to insert", report.Failed, report.Payloads)
	}

	counts, err := json.Marshal(report)
	if err != nil {
		counts = nil
	}
	if err := s.pool.FinishPipelineRun(ctx, runID, status, counts, runErr, globaltime.UTC()); err != nil {
		return report, fmt.Errorf("close run record: %w", err)
	}

	s.logger.Info().
		Int64("run_id", runID).
		Int("payloads", report.Payloads).
		Int("restored", report.Restored).
		Int("duplicates", report.Duplicates).
		Int("invalid", report.Invalid).
		Int("failed", report.Failed).
		Msg("restore finished")

	return report, runErr
}

func boolCount(v bool) int {
	if v {
		return 1
	}
	return 0
}
