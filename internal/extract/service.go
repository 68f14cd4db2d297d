// Package extract identifies which Oireachtas members an article concerns.
// AI extraction runs first because it resolves indirect references, an
// article that only ever says "the Tánaiste" still lands on the right
// member. When the model fails or finds nobody, a deterministic scan over
// office titles and member names catches what strict keywords can.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/globaltime"
	"glaspolitics.ie/pulse/internal/llm"
	"glaspolitics.ie/pulse/internal/members"
)

const (
	defaultBatchSize   = 50
	defaultConcurrency = 5
	articleExcerptRune = 2000

	systemPrompt = "You are an expert on Irish politics. Identify which politicians a news article concerns."

	// Deterministic matches carry fixed confidence, office titles above
	// bare names because a title cannot belong to anyone else.
	officeConfidence = 0.7
	nameConfidence   = 0.6
	aiConfidence     = 0.8

	reasonScored  = "scored"
	reasonNoMatch = "no politicians matched"
)

// Outcome tags how an article's mentions were found.
type Outcome string

const (
	OutcomeAI        Outcome = "ai"
	OutcomeFallback  Outcome = "fallback"
	OutcomeUnmatched Outcome = "unmatched"
)

// Mention is one member an article concerns. Sentiment is the model's
// per-member reading on the -10..10 scale; deterministic fallback matches
// carry no sentiment and never become score events. Method is "ai",
// "office" (title mapping) or "keyword" (name scan).
type Mention struct {
	Member     members.Member
	Confidence float64
	Sentiment  float64
	Method     string
}

// Extraction is the outcome for one article. An empty mention set with
// OutcomeUnmatched is a legitimate result, not an error.
type Extraction struct {
	Outcome    Outcome
	Mentions   []Mention
	Unresolved []string
}

// Config tunes batch shape and the fallback gate.
type Config struct {
	BatchSize       int
	Concurrency     int
	FallbackEnabled bool
}

// Report summarizes one extraction pass for the pipeline run record.
type Report struct {
	Examined   int `json:"examined"`
	ByAI       int `json:"by_ai"`
	ByFallback int `json:"by_fallback"`
	Unmatched  int `json:"unmatched"`
	Unresolved int `json:"unresolved_names"`
	Mentions   int `json:"mentions"`
	Events     int `json:"events"`
	Errors     int `json:"errors"`
}

// Service extracts member mentions from scoring-bound articles and emits
// score events from article sentiment.
type Service struct {
	pool    *db.Pool
	client  llm.Client
	matcher *members.Matcher
	cfg     Config
	logger  zerolog.Logger
}

func NewService(pool *db.Pool, client llm.Client, matcher *members.Matcher, cfg Config, logger zerolog.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Service{
		pool:    pool,
		client:  client,
		matcher: matcher,
		cfg:     cfg,
		logger:  logger.With().Str("component", "extract").Logger(),
	}
}

// modelMention mirrors one entry of the JSON array the model returns.
type modelMention struct {
	Name       string  `json:"name"`
	Sentiment  float64 `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

type modelResponse struct {
	Politicians []modelMention `json:"politicians"`
}

// Run extracts mentions for one batch of articles marked for scoring.
// Articles whose extraction or persistence fails are left unprocessed so
// the next run retries them; everything else finishes processed.
func (s *Service) Run(ctx context.Context) (Report, error) {
	if s == nil || s.pool == nil {
		return Report{}, fmt.Errorf("extract service is not initialized")
	}
	if s.matcher == nil {
		return Report{}, fmt.Errorf("extract requires a member matcher")
	}

	batch, err := s.pool.ListArticlesForScoring(ctx, s.cfg.BatchSize)
	if err != nil {
		return Report{}, err
	}
	if len(batch) == 0 {
		s.logger.Info().Msg("no articles awaiting extraction")
		return Report{}, nil
	}

	results := make([]Extraction, len(batch))
	failed := make([]bool, len(batch))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, art := range batch {
		g.Go(func() error {
			res, err := s.extractOne(gCtx, art)
			if err != nil {
				s.logger.Warn().Err(err).
					Int64("article_id", art.ArticleID).
					Msg("extraction failed")
				failed[i] = true
				return nil
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
	report := Report{Examined: len(batch)}
	for i, art := range batch {
		if failed[i] {
			report.Errors++
			continue
		}
		if err := s.persist(ctx, art.ArticleID, results[i], now, &report); err != nil {
			s.logger.Warn().Err(err).
				Int64("article_id", art.ArticleID).
				Msg("persist extraction failed, article left for retry")
			report.Errors++
		}
	}

	s.logger.Info().
		Int("examined", report.Examined).
		Int("by_ai", report.ByAI).
		Int("by_fallback", report.ByFallback).
		Int("unmatched", report.Unmatched).
		Int("mentions", report.Mentions).
		Int("events", report.Events).
		Int("errors", report.Errors).
		Msg("extraction batch complete")
	return report, nil
}

// extractOne runs the AI-then-fallback ladder for a single article.
func (s *Service) extractOne(ctx context.Context, art db.ScoringCandidate) (Extraction, error) {
	res, err := s.aiExtract(ctx, art)
	if err == nil && len(res.Mentions) > 0 {
		return res, nil
	}

	if !s.cfg.FallbackEnabled {
		if err != nil {
			return Extraction{}, err
		}
		return res, nil
	}

	if err != nil {
		s.logger.Debug().Err(err).
			Int64("article_id", art.ArticleID).
			Msg("ai extraction failed, scanning deterministically")
	}

	mentions := s.fallbackScan(art.Title, art.Body)
	if len(mentions) == 0 {
		// Keep whatever the model reported, even if only unresolved names.
		res.Outcome = OutcomeUnmatched
		return res, nil
	}
	res.Outcome = OutcomeFallback
	res.Mentions = mentions
	return res, nil
}

func (s *Service) aiExtract(ctx context.Context, art db.ScoringCandidate) (Extraction, error) {
	if s.client == nil {
		return Extraction{}, fmt.Errorf("no model client configured")
	}

	content, err := s.client.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      s.buildPrompt(art),
		MaxTokens:   600,
		Temperature: 0.2,
	})
	if err != nil {
		return Extraction{}, fmt.Errorf("extract completion: %w", err)
	}

	var decoded modelResponse
	if err := llm.DecodeJSON(content, &decoded); err != nil {
		return Extraction{}, fmt.Errorf("decode extract response: %w", err)
	}

	return s.resolve(decoded.Politicians), nil
}

// resolve maps model-returned names onto canonical members via exact
// lookup. Single-word names resolve only through a unique surname; a name
// nobody owns is recorded, never guessed.
func (s *Service) resolve(raw []modelMention) Extraction {
	res := Extraction{Outcome: OutcomeAI}
	seen := make(map[int64]struct{}, len(raw))
	for _, entry := range raw {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			continue
		}

		member, ok := s.matcher.Lookup(name)
		if !ok && !strings.ContainsAny(name, " \t") {
			member, ok = s.matcher.UniqueSurname(name)
		}
		if !ok {
			res.Unresolved = append(res.Unresolved, name)
			continue
		}
		if _, dup := seen[member.ID]; dup {
			continue
		}
		seen[member.ID] = struct{}{}

		confidence := entry.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = aiConfidence
		}
		res.Mentions = append(res.Mentions, Mention{
			Member:     member,
			Confidence: confidence,
			Sentiment:  clampSentiment(entry.Sentiment),
			Method:     "ai",
		})
	}
	if len(res.Mentions) == 0 {
		res.Outcome = OutcomeUnmatched
	}
	return res
}

// fallbackScan finds members deterministically: office titles first, then
// full names, over the folded article text. Longest keys win so composite
// ministry titles match before their prefixes.
func (s *Service) fallbackScan(title, body string) []Mention {
	text := members.NormalizeKey(title + " " + body)
	if text == "" {
		return nil
	}

	seen := make(map[int64]struct{})
	var out []Mention
	for _, office := range s.matcher.Offices() {
		if office.Key == "" || !strings.Contains(text, office.Key) {
			continue
		}
		if _, dup := seen[office.Member.ID]; dup {
			continue
		}
		seen[office.Member.ID] = struct{}{}
		out = append(out, Mention{Member: office.Member, Confidence: officeConfidence, Method: "office"})
	}
	for _, entry := range s.matcher.Names() {
		if entry.Key == "" || !strings.Contains(text, entry.Key) {
			continue
		}
		if _, dup := seen[entry.Member.ID]; dup {
			continue
		}
		seen[entry.Member.ID] = struct{}{}
		out = append(out, Mention{Member: entry.Member, Confidence: nameConfidence, Method: "keyword"})
	}
	return out
}

// persist writes mentions, emits score events for fresh AI mentions and
// finishes the article. Events ride on first mention insert only, so a
// rerun over the same article never double-counts.
func (s *Service) persist(ctx context.Context, articleID int64, res Extraction, now time.Time, report *Report) error {
	switch res.Outcome {
	case OutcomeAI:
		report.ByAI++
	case OutcomeFallback:
		report.ByFallback++
	default:
		report.Unmatched++
	}
	report.Unresolved += len(res.Unresolved)
	if len(res.Unresolved) > 0 {
		s.logger.Debug().
			Int64("article_id", articleID).
			Strs("names", res.Unresolved).
			Msg("model names resolved to no member")
	}

	for _, mention := range res.Mentions {
		inserted, err := s.pool.UpsertArticleMention(ctx, db.MentionParams{
			ArticleID:  articleID,
			MemberID:   mention.Member.ID,
			Confidence: mention.Confidence,
			Method:     mention.Method,
		})
		if err != nil {
			return err
		}
		report.Mentions++

		if !inserted || mention.Method != "ai" {
			continue
		}
		id := articleID
		if _, err := s.pool.InsertScoreEvent(ctx, db.ScoreEventParams{
			MemberID:  mention.Member.ID,
			ArticleID: &id,
			Kind:      "article",
			RawDelta:  mention.Sentiment,
		}); err != nil {
			return err
		}
		report.Events++
	}

	reason := reasonScored
	if len(res.Mentions) == 0 {
		reason = reasonNoMatch
	}
	return s.pool.MarkArticleProcessed(ctx, articleID, reason, now)
}

func clampSentiment(v float64) float64 {
	if v < -10 {
		return -10
	}
	if v > 10 {
		return 10
	}
	return v
}

func (s *Service) buildPrompt(art db.ScoringCandidate) string {
	var b strings.Builder
	b.WriteString("Identify the Irish politicians (TDs or Senators) this article concerns.\n\n")
	b.WriteString("Title: " + art.Title + "\n")
	b.WriteString("Source: " + art.Source + "\n\n")
	b.WriteString(excerpt(art.Body, articleExcerptRune) + "\n\n")

	offices := s.matcher.Offices()
	if len(offices) > 0 {
		b.WriteString("Current office holders:\n")
		for _, office := range offices {
			b.WriteString(office.Title + ": " + office.Member.FullName + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(`Respond with only a JSON object:
{"politicians": [{"name": "full name", "sentiment": -10 to 10, "confidence": 0.0 to 1.0}]}

sentiment reflects how the coverage bears on public trust in that politician: negative for scandal, failure or criticism, positive for praised delivery. Resolve references by office title to the holder listed above. Return {"politicians": []} when no individual politician is the subject.`)
	return b.String()
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
