// Package fetch runs the ingest stage end to end: poll the configured
// feeds, push every item through the URL, content-hash, model-relevance
// and title-similarity gates, scrape the survivors and store them as
// invisible articles for triage. Every gate that needs the database or
// the model fails open; a flaky dependency loses dedup precision, never
// articles.
package fetch

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/dedup"
	"glaspolitics.ie/pulse/internal/feeds"
	"glaspolitics.ie/pulse/internal/globaltime"
	"glaspolitics.ie/pulse/internal/langdetect"
	"glaspolitics.ie/pulse/internal/language"
	"glaspolitics.ie/pulse/internal/llm"
	"glaspolitics.ie/pulse/internal/scrape"
)

const (
	defaultMaxScrape     = 30
	defaultURLLookback   = 30 * 24 * time.Hour
	defaultDedupLookback = 72 * time.Hour
	defaultRecentTitles  = 500
)

// Config tunes the gates. Zero values fall back to the defaults above;
// Threshold 0 falls back to the dedup package default.
type Config struct {
	MaxScrape       int
	URLLookback     time.Duration
	DedupLookback   time.Duration
	DedupThreshold  float64
	FilterBatchSize int
	RecentTitleCap  int
}

// Report summarizes one fetch run for the pipeline run record.
type Report struct {
	Found           int `json:"found"`
	Fresh           int `json:"fresh"`
	FeedErrors      int `json:"feed_errors"`
	BadURLs         int `json:"bad_urls"`
	URLDupes        int `json:"url_dupes"`
	ExactDupes      int `json:"exact_dupes"`
	Filtered        int `json:"filtered"`
	TitleDupes      int `json:"title_dupes"`
	Scraped         int `json:"scraped"`
	ScrapeFailures  int `json:"scrape_failures"`
	SkippedLanguage int `json:"skipped_language"`
	Inserted        int `json:"inserted"`
}

// candidate is one feed item that survived the early gates, carrying its
// canonical URL and the content hash computed once for both the gate and
// the insert.
type candidate struct {
	item feeds.Item
	url  string
	hash []byte
}

// Service drives one fetch run.
type Service struct {
	pool       *db.Pool
	fetcher    *feeds.Fetcher
	client     llm.Client
	scrapeOpts scrape.Options
	cfg        Config
	logger     zerolog.Logger
}

func NewService(pool *db.Pool, fetcher *feeds.Fetcher, client llm.Client, cfg Config, logger zerolog.Logger) *Service {
	if cfg.MaxScrape <= 0 {
		cfg.MaxScrape = defaultMaxScrape
	}
	if cfg.URLLookback <= 0 {
		cfg.URLLookback = defaultURLLookback
	}
	if cfg.DedupLookback <= 0 {
		cfg.DedupLookback = defaultDedupLookback
	}
	if cfg.DedupThreshold <= 0 {
		cfg.DedupThreshold = dedup.DefaultThreshold
	}
	if cfg.RecentTitleCap <= 0 {
		cfg.RecentTitleCap = defaultRecentTitles
	}
	return &Service{
		pool:    pool,
		fetcher: fetcher,
		client:  client,
		cfg:     cfg,
		logger:  logger.With().Str("component", "fetch").Logger(),
	}
}

// Run polls the given sources and lands new articles, invisible, in the
// database. The returned report counts what every gate did.
func (s *Service) Run(ctx context.Context, sources []feeds.Source) (Report, error) {
	if s == nil || s.pool == nil {
		return Report{}, fmt.Errorf("fetch service is not initialized")
	}
	if s.fetcher == nil {
		return Report{}, fmt.Errorf("fetch requires a feed fetcher")
	}

	result := s.fetcher.FetchAll(ctx, sources)
	report := Report{
		Found:      result.Seen,
		Fresh:      len(result.Items),
		FeedErrors: len(result.Errors),
	}
	if len(result.Items) == 0 {
		s.logger.Info().Int("feed_errors", report.FeedErrors).Msg("no fresh feed items")
		return report, nil
	}

	now := globaltime.UTC()
	candidates := s.applyStoreGates(ctx, result.Items, now, &report)
	candidates = s.applyRelevanceGate(ctx, candidates, &report)
	candidates = s.applyTitleGate(ctx, candidates, now, &report)
	s.scrapeAndInsert(ctx, candidates, now, &report)

	s.logger.Info().
		Int("found", report.Found).
		Int("fresh", report.Fresh).
		Int("url_dupes", report.URLDupes).
		Int("exact_dupes", report.ExactDupes).
		Int("filtered", report.Filtered).
		Int("title_dupes", report.TitleDupes).
		Int("scraped", report.Scraped).
		Int("scrape_failures", report.ScrapeFailures).
		Int("skipped_language", report.SkippedLanguage).
		Int("inserted", report.Inserted).
		Msg("fetch run complete")
	return report, nil
}

// applyStoreGates drops items already stored: same canonical URL within
// the lookback, or same title hash ever. Database errors keep the item.
func (s *Service) applyStoreGates(ctx context.Context, items []feeds.Item, now time.Time, report *Report) []candidate {
	urlCutoff := now.Add(-s.cfg.URLLookback)
	out := make([]candidate, 0, len(items))
	for _, item := range items {
		canonical, _ := db.NormalizeURL(item.URL)
		if canonical == "" {
			s.logger.Debug().Str("url", item.URL).Str("source", item.Source).Msg("item URL not canonicalizable")
			report.BadURLs++
			continue
		}

		seen, err := s.pool.URLSeenSince(ctx, canonical, urlCutoff)
		if err != nil {
			s.logger.Warn().Err(err).Msg("url gate failed open")
		} else if seen {
			report.URLDupes++
			continue
		}

		hash := db.ContentHash(item.Title, "")
		hashSeen, err := s.pool.ContentHashSeen(ctx, hash)
		if err != nil {
			s.logger.Warn().Err(err).Msg("content hash gate failed open")
		} else if hashSeen {
			report.ExactDupes++
			continue
		}

		out = append(out, candidate{item: item, url: canonical, hash: hash})
	}
	return out
}

func (s *Service) applyRelevanceGate(ctx context.Context, candidates []candidate, report *Report) []candidate {
	if len(candidates) == 0 {
		return candidates
	}
	items := make([]feeds.Item, len(candidates))
	for i, cand := range candidates {
		items[i] = cand.item
	}
	keep := s.relevantTitles(ctx, items)

	out := candidates[:0]
	for i, cand := range candidates {
		if !keep[i] {
			report.Filtered++
			continue
		}
		out = append(out, cand)
	}
	return out
}

// applyTitleGate drops near-duplicate stories: first across sources within
// the batch, then against recent stored titles. A failed titles load keeps
// everything.
func (s *Service) applyTitleGate(ctx context.Context, candidates []candidate, now time.Time, report *Report) []candidate {
	if len(candidates) == 0 {
		return candidates
	}

	entries := make([]dedup.Entry, len(candidates))
	byID := make(map[string]candidate, len(candidates))
	for i, cand := range candidates {
		entries[i] = dedup.Entry{ID: cand.url, Source: cand.item.Source, Title: cand.item.Title}
		byID[cand.url] = cand
	}

	kept, dropped := dedup.FilterBatch(entries, s.cfg.DedupThreshold)
	for _, dup := range dropped {
		s.logger.Debug().
			Str("title", dup.Entry.Title).
			Str("duplicate_of", dup.DuplicateOf.Title).
			Float64("score", dup.Score).
			Msg("intra-batch duplicate dropped")
	}
	report.TitleDupes += len(dropped)

	var recent []dedup.Entry
	rows, err := s.pool.RecentTitles(ctx, now.Add(-s.cfg.DedupLookback), s.cfg.RecentTitleCap)
	if err != nil {
		s.logger.Warn().Err(err).Msg("recent titles load failed, title gate open")
	} else {
		recent = make([]dedup.Entry, len(rows))
		for i, row := range rows {
			recent[i] = dedup.Entry{ID: strconv.FormatInt(row.ArticleID, 10), Source: row.Source, Title: row.Title}
		}
	}

	out := make([]candidate, 0, len(kept))
	for _, entry := range kept {
		if match, found := dedup.FindDuplicate(entry.Title, recent, s.cfg.DedupThreshold); found {
			s.logger.Debug().
				Str("title", entry.Title).
				Str("duplicate_of", match.Entry.Title).
				Float64("score", match.Score).
				Msg("stored duplicate dropped")
			report.TitleDupes++
			continue
		}
		out = append(out, byID[entry.ID])
	}
	return out
}

// scrapeAndInsert pulls full text for up to MaxScrape survivors and lands
// the English ones as invisible articles.
func (s *Service) scrapeAndInsert(ctx context.Context, candidates []candidate, now time.Time, report *Report) {
	for _, cand := range candidates {
		if report.Scraped >= s.cfg.MaxScrape {
			s.logger.Info().
				Int("deferred", len(candidates)-report.Scraped).
				Msg("scrape budget exhausted, remaining items wait for the next run")
			return
		}

		res, err := scrape.Article(ctx, cand.url, s.scrapeOpts)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", cand.url).Msg("scrape failed")
			report.ScrapeFailures++
			continue
		}
		report.Scraped++

		if !s.isEnglish(cand.item, res.Content) {
			report.SkippedLanguage++
			continue
		}

		var summary *string
		if cand.item.Summary != "" {
			text := cand.item.Summary
			summary = &text
		}
		_, _, inserted, err := s.pool.InsertArticle(ctx, db.NewArticleParams{
			Source:      cand.item.Source,
			URL:         cand.url,
			Title:       cand.item.Title,
			Body:        res.Content,
			Summary:     summary,
			ContentHash: cand.hash,
			Language:    "en",
			PublishedAt: cand.item.PublishedAt,
			FetchedAt:   now,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("url", cand.url).Msg("article insert failed")
			continue
		}
		if !inserted {
			report.URLDupes++
			continue
		}
		report.Inserted++
	}
}

// isEnglish gates on the operator's language hint first, then detection
// over the scraped text. Feed hints arrive as full tags ("en-US", "EN"),
// so only the primary subtag is compared.
func (s *Service) isEnglish(item feeds.Item, content string) bool {
	if hint := language.NormalizeCode(item.Language); hint != "" && hint != "en" {
		s.logger.Debug().Str("source", item.Source).Str("hint", hint).Msg("non-English source hint")
		return false
	}
	if langdetect.IsEnglish(content) {
		return true
	}
	s.logger.Debug().Str("title", item.Title).Msg("non-English content detected")
	return false
}
