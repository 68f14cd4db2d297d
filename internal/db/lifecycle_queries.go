package db

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"
)

// TriageCandidate is an invisible, unprocessed article awaiting an
// importance assessment.
type TriageCandidate struct {
	ArticleID int64
	Title     string
	Source    string
	Summary   string
	Body      string
}

// TriageResult is the assessment written back onto an article.
type TriageResult struct {
	Importance     int
	Reason         string
	StoryType      string
	PrimarySubject bool
}

// ScoringCandidate is a triaged article queued for entity extraction.
type ScoringCandidate struct {
	ArticleID int64
	Title     string
	Source    string
	Body      string
}

var trackingQueryKeys = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"mc_cid":  {},
	"mc_eid":  {},
	"ref":     {},
	"ref_src": {},
}

// ListArticlesForTriage returns articles that have been fetched but not yet
// assessed, oldest first so no article waits forever.
func (p *Pool) ListArticlesForTriage(ctx context.Context, limit int) ([]TriageCandidate, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := p.Query(ctx, `
SELECT article_id, title, source, COALESCE(summary, ''), body
FROM pulse.articles
WHERE visible = FALSE
  AND processed = FALSE
ORDER BY article_id
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list articles for triage: %w", err)
	}
	defer rows.Close()

	out := make([]TriageCandidate, 0, limit)
	for rows.Next() {
		var c TriageCandidate
		if err := rows.Scan(&c.ArticleID, &c.Title, &c.Source, &c.Summary, &c.Body); err != nil {
			return nil, fmt.Errorf("scan triage candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triage candidates: %w", err)
	}
	return out, nil
}

// ListArticlesForScoring returns triaged articles still awaiting entity
// extraction and score event generation.
func (p *Pool) ListArticlesForScoring(ctx context.Context, limit int) ([]ScoringCandidate, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := p.Query(ctx, `
SELECT article_id, title, source, body
FROM pulse.articles
WHERE needs_scoring = TRUE
  AND processed = FALSE
ORDER BY article_id
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list articles for scoring: %w", err)
	}
	defer rows.Close()

	out := make([]ScoringCandidate, 0, limit)
	for rows.Next() {
		var c ScoringCandidate
		if err := rows.Scan(&c.ArticleID, &c.Title, &c.Source, &c.Body); err != nil {
			return nil, fmt.Errorf("scan scoring candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scoring candidates: %w", err)
	}
	return out, nil
}

// UpdateArticleTriage stores the importance assessment for one article.
// Importance is clamped to the 0..100 scale before writing.
func (p *Pool) UpdateArticleTriage(ctx context.Context, articleID int64, res TriageResult, now time.Time) error {
	importance := res.Importance
	if importance < 0 {
		importance = 0
	}
	if importance > 100 {
		importance = 100
	}

	tag, err := p.Exec(ctx, `
UPDATE pulse.articles
SET importance = $2,
    importance_reason = $3,
    story_type = $4,
    primary_subject = $5,
    updated_at = $6
WHERE article_id = $1
`, articleID, importance, nullableString(res.Reason), nullableString(res.StoryType), res.PrimarySubject, now.UTC())
	if err != nil {
		return fmt.Errorf("update article triage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

// MarkArticlesVisible flips a whole triage batch visible in one statement,
// so readers never see a half-assessed batch. Returns the rows updated.
func (p *Pool) MarkArticlesVisible(ctx context.Context, ids []int64, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, now.UTC())
	for i, id := range ids {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		args = append(args, id)
	}

	q := fmt.Sprintf(`
UPDATE pulse.articles
SET visible = TRUE,
    updated_at = $1
WHERE article_id IN (%s)
`, strings.Join(placeholders, ", "))

	tag, err := p.Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("mark articles visible: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkArticleNeedsScoring queues an article for entity extraction and
// score event generation.
func (p *Pool) MarkArticleNeedsScoring(ctx context.Context, articleID int64, now time.Time) error {
	tag, err := p.Exec(ctx, `
UPDATE pulse.articles
SET needs_scoring = TRUE,
    updated_at = $2
WHERE article_id = $1
`, articleID, now.UTC())
	if err != nil {
		return fmt.Errorf("mark article needs scoring: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

// MarkArticleProcessed finishes an article's pipeline lifecycle with a
// human-readable reason ("scored", "below importance threshold", ...).
func (p *Pool) MarkArticleProcessed(ctx context.Context, articleID int64, reason string, now time.Time) error {
	tag, err := p.Exec(ctx, `
UPDATE pulse.articles
SET processed = TRUE,
    processed_reason = $2,
    updated_at = $3
WHERE article_id = $1
`, articleID, nullableString(reason), now.UTC())
	if err != nil {
		return fmt.Errorf("mark article processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

// NormalizeURL canonicalizes an article URL for storage and duplicate
// checks: lowercased scheme and host, default ports, fragments and
// tracking parameters stripped, remaining query keys sorted. Returns the
// canonical form and the bare hostname, or empty strings when the input
// is not a fully-qualified URL.
func NormalizeURL(raw string) (canonical string, host string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", ""
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", ""
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Hostname())
	if port := parsed.Port(); port != "" {
		defaultPort := (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443")
		if !defaultPort {
			parsed.Host = parsed.Host + ":" + port
		}
	}

	parsed.Fragment = ""
	path := strings.TrimSpace(parsed.EscapedPath())
	if path == "" {
		path = "/"
	}
	path = strings.ReplaceAll(path, "//", "/")
	if strings.HasSuffix(path, "/") && path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	parsed.Path = path
	parsed.RawPath = ""

	q := parsed.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			q.Del(key)
			continue
		}
		if _, ok := trackingQueryKeys[lower]; ok {
			q.Del(key)
		}
	}
	if len(q) > 0 {
		keys := make([]string, 0, len(q))
		for key := range q {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		reordered := url.Values{}
		for _, key := range keys {
			values := q[key]
			sort.Strings(values)
			for _, value := range values {
				reordered.Add(key, value)
			}
		}
		parsed.RawQuery = reordered.Encode()
	} else {
		parsed.RawQuery = ""
	}

	return parsed.String(), parsed.Hostname()
}

// ContentHash digests the normalized title and body for exact-duplicate
// detection across sources that republish the same wire copy.
func ContentHash(title, body string) []byte {
	sum := sha256.Sum256([]byte(normalizeText(title) + "\n" + normalizeText(body)))
	return append([]byte(nil), sum[:]...)
}

func normalizeText(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	lastSpace := false
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

func nullableString(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return trimmed
}
