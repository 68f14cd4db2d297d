// Package triage runs the cheap first-pass importance assessment that
// gates expensive full analysis. Every fetched article gets one
// lightweight model call, the whole batch is flipped visible, and only
// the top slice by importance goes on to entity extraction and scoring.
package triage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/globaltime"
	"glaspolitics.ie/pulse/internal/llm"
)

const (
	defaultBatchSize   = 50
	defaultConcurrency = 5
	bodyExcerptRunes   = 1200

	systemPrompt = "You are an expert political analyst for Irish politics. Score articles objectively."

	fallbackImportance = 50
	fallbackReason     = "triage error, defaulted to medium"

	reasonBelowThreshold    = "below importance threshold"
	reasonOutsidePercentile = "outside top percentile"
)

// assessment mirrors the JSON object the model returns per article.
type assessment struct {
	Importance     int    `json:"importance"`
	Reasoning      string `json:"reasoning"`
	StoryType      string `json:"story_type"`
	PrimarySubject bool   `json:"primary_subject"`
}

// Config tunes batch shape and selection. Zero values fall back to the
// defaults above.
type Config struct {
	BatchSize     int
	Concurrency   int
	TopFraction   float64
	MinImportance int
}

// Report summarizes one triage pass for the pipeline run record.
type Report struct {
	Assessed  int   `json:"assessed"`
	Defaulted int   `json:"defaulted"`
	Visible   int64 `json:"visible"`
	Selected  int   `json:"selected"`
	Skipped   int   `json:"skipped"`
}

// Service assesses invisible articles and promotes them.
type Service struct {
	pool   *db.Pool
	client llm.Client
	cfg    Config
	logger zerolog.Logger
}

func NewService(pool *db.Pool, client llm.Client, cfg Config, logger zerolog.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Service{
		pool:   pool,
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "triage").Logger(),
	}
}

// Run triages one batch of invisible articles. Per-article model failures
// default that article to medium importance and the batch continues; the
// whole batch is marked visible in one statement before any article is
// selected or skipped, so a reader never sees a scored-but-invisible row.
func (s *Service) Run(ctx context.Context) (Report, error) {
	if s == nil || s.pool == nil {
		return Report{}, fmt.Errorf("triage service is not initialized")
	}
	if s.client == nil {
		return Report{}, fmt.Errorf("triage requires a model client")
	}

	batch, err := s.pool.ListArticlesForTriage(ctx, s.cfg.BatchSize)
	if err != nil {
		return Report{}, err
	}
	if len(batch) == 0 {
		s.logger.Info().Msg("no articles awaiting triage")
		return Report{}, nil
	}

	results := make([]db.TriageResult, len(batch))
	failed := make([]bool, len(batch))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, art := range batch {
		g.Go(func() error {
			res, err := s.assess(gCtx, art)
			if err != nil {
				s.logger.Warn().Err(err).
					Int64("article_id", art.ArticleID).
					Msg("triage call failed, defaulting to medium")
				res = db.TriageResult{Importance: fallbackImportance, Reason: fallbackReason}
				failed[i] = true
			}
			results[i] = res
			// Individual failures never cancel the rest of the batch.
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	now := globaltime.UTC()
	report := Report{Assessed: len(batch)}
	ids := make([]int64, len(batch))
	for i, art := range batch {
		ids[i] = art.ArticleID
		if failed[i] {
			report.Defaulted++
		}
		if err := s.pool.UpdateArticleTriage(ctx, art.ArticleID, results[i], now); err != nil {
			s.logger.Warn().Err(err).
				Int64("article_id", art.ArticleID).
				Msg("persist triage assessment failed")
		}
	}

	visible, err := s.pool.MarkArticlesVisible(ctx, ids, now)
	if err != nil {
		return report, err
	}
	report.Visible = visible

	importances := make([]int, len(batch))
	for i, res := range results {
		importances[i] = res.Importance
	}
	selected := selectForScoring(importances, s.cfg.TopFraction, s.cfg.MinImportance)

	for i, art := range batch {
		if selected[i] {
			if err := s.pool.MarkArticleNeedsScoring(ctx, art.ArticleID, now); err != nil {
				s.logger.Warn().Err(err).
					Int64("article_id", art.ArticleID).
					Msg("mark needs scoring failed")
				continue
			}
			report.Selected++
			continue
		}

		reason := reasonOutsidePercentile
		if importances[i] < s.cfg.MinImportance {
			reason = reasonBelowThreshold
		}
		if err := s.pool.MarkArticleProcessed(ctx, art.ArticleID, reason, now); err != nil {
			s.logger.Warn().Err(err).
				Int64("article_id", art.ArticleID).
				Msg("mark processed failed")
			continue
		}
		report.Skipped++
	}

	s.logger.Info().
		Int("assessed", report.Assessed).
		Int("defaulted", report.Defaulted).
		Int64("visible", report.Visible).
		Int("selected", report.Selected).
		Int("skipped", report.Skipped).
		Msg("triage batch complete")
	return report, nil
}

func (s *Service) assess(ctx context.Context, art db.TriageCandidate) (db.TriageResult, error) {
	content, err := s.client.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(art),
		MaxTokens:   400,
		Temperature: 0.2,
	})
	if err != nil {
		return db.TriageResult{}, fmt.Errorf("triage completion: %w", err)
	}

	var a assessment
	if err := llm.DecodeJSON(content, &a); err != nil {
		return db.TriageResult{}, fmt.Errorf("decode triage response: %w", err)
	}

	return db.TriageResult{
		Importance:     a.Importance,
		Reason:         strings.TrimSpace(a.Reasoning),
		StoryType:      strings.ToLower(strings.TrimSpace(a.StoryType)),
		PrimarySubject: a.PrimarySubject,
	}, nil
}

func buildPrompt(art db.TriageCandidate) string {
	text := art.Body
	if strings.TrimSpace(text) == "" {
		text = art.Summary
	}

	var b strings.Builder
	b.WriteString("Assess this Irish news article for political accountability relevance.\n\n")
	b.WriteString("Title: " + art.Title + "\n")
	b.WriteString("Source: " + art.Source + "\n\n")
	b.WriteString(excerpt(text, bodyExcerptRunes) + "\n\n")
	b.WriteString(`Respond with only a JSON object:
{"importance": 0-100, "reasoning": "one sentence", "story_type": "policy|scandal|legislation|election|appointment|constituency|other", "primary_subject": true if a TD or Senator is the story's main subject}

importance reflects how much the story matters for holding Irish politicians to account: 80-100 major government decisions, scandals or resignations, 40-79 substantive political coverage, 0-39 passing mentions or non-political news.`)
	return b.String()
}

// selectForScoring returns, per batch index, whether the article merits
// full scoring: ranked within the top fraction by importance and at or
// above the absolute minimum. Ties rank in batch order so reruns over the
// same batch pick the same articles.
func selectForScoring(importances []int, topFraction float64, minImportance int) []bool {
	n := len(importances)
	selected := make([]bool, n)
	if n == 0 || topFraction <= 0 {
		return selected
	}

	quota := int(math.Ceil(topFraction * float64(n)))
	if quota > n {
		quota = n
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return importances[order[a]] > importances[order[b]]
	})

	for rank, idx := range order {
		selected[idx] = rank < quota && importances[idx] >= minImportance
	}
	return selected
}

func excerpt(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "..."
}
