package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ArticleListOptions controls article listing queries. Zero From/To
// leave that bound open.
type ArticleListOptions struct {
	Source       string
	From         time.Time
	To           time.Time
	NeedsScoring bool
	VisibleOnly  bool
	Limit        int
}

// ArticleListItem is used by the articles CLI command.
type ArticleListItem struct {
	ArticleID    int64      `json:"article_id"`
	ArticleUUID  string     `json:"article_uuid"`
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	Source       string     `json:"source"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	Visible      bool       `json:"visible"`
	Importance   *int       `json:"importance,omitempty"`
	StoryType    *string    `json:"story_type,omitempty"`
	NeedsScoring bool       `json:"needs_scoring"`
	Processed    bool       `json:"processed"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ArticleDetail is the full article read model plus attributed members.
type ArticleDetail struct {
	ArticleListItem
	Body             string           `json:"body"`
	Summary          *string          `json:"summary,omitempty"`
	Language         string           `json:"language"`
	ImportanceReason *string          `json:"importance_reason,omitempty"`
	ProcessedReason  *string          `json:"processed_reason,omitempty"`
	FetchedAt        time.Time        `json:"fetched_at"`
	Mentions         []MentionSummary `json:"mentions"`
}

// MentionSummary is one attributed member on an article.
type MentionSummary struct {
	MemberID   int64   `json:"member_id"`
	MemberCode string  `json:"member_code"`
	FullName   string  `json:"full_name"`
	Party      string  `json:"party"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// RecentTitle is a prior title candidate for the duplicate gate.
type RecentTitle struct {
	ArticleID int64
	Title     string
	Source    string
}

// NewArticleParams carries one article insert.
type NewArticleParams struct {
	Source      string
	URL         string
	Title       string
	Body        string
	Summary     *string
	ContentHash []byte
	Language    string
	PublishedAt *time.Time
	FetchedAt   time.Time
}

const articleListColumns = `
	a.article_id,
	a.article_uuid::text,
	a.title,
	a.url,
	a.source,
	a.published_at,
	a.visible,
	a.importance,
	a.story_type,
	a.needs_scoring,
	a.processed,
	a.created_at`

// InsertArticle inserts one article, invisible by default. A URL or
// content-hash conflict leaves the existing row untouched and reports
// inserted=false.
func (p *Pool) InsertArticle(ctx context.Context, params NewArticleParams) (int64, string, bool, error) {
	source := strings.TrimSpace(params.Source)
	if source == "" {
		return 0, "", false, fmt.Errorf("source is required")
	}
	url := strings.TrimSpace(params.URL)
	if url == "" {
		return 0, "", false, fmt.Errorf("url is required")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return 0, "", false, fmt.Errorf("title is required")
	}
	language := strings.TrimSpace(strings.ToLower(params.Language))
	if language == "" {
		language = "en"
	}
	fetchedAt := params.FetchedAt.UTC()
	if fetchedAt.IsZero() {
		return 0, "", false, fmt.Errorf("fetchedAt is required")
	}

	const q = `
INSERT INTO pulse.articles (
	source,
	url,
	title,
	body,
	summary,
	content_hash,
	language,
	published_at,
	fetched_at,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $9)
ON CONFLICT DO NOTHING
RETURNING article_id, article_uuid::text
`

	var (
		articleID   int64
		articleUUID string
	)
	err := p.QueryRow(ctx, q,
		source,
		url,
		title,
		params.Body,
		params.Summary,
		nullableBytes(params.ContentHash),
		language,
		nullableTime(params.PublishedAt),
		fetchedAt,
	).Scan(&articleID, &articleUUID)
	if err != nil {
		if IsNoRows(err) {
			return 0, "", false, nil
		}
		return 0, "", false, fmt.Errorf("insert article: %w", err)
	}
	return articleID, articleUUID, true, nil
}

// URLSeenSince reports whether the URL was already fetched in the lookback
// window.
func (p *Pool) URLSeenSince(ctx context.Context, url string, since time.Time) (bool, error) {
	const q = `
SELECT EXISTS (
	SELECT 1
	FROM pulse.articles a
	WHERE a.url = $1
	  AND a.fetched_at >= $2
)
`

	var seen bool
	if err := p.QueryRow(ctx, q, strings.TrimSpace(url), since.UTC()).Scan(&seen); err != nil {
		return false, fmt.Errorf("query url seen: %w", err)
	}
	return seen, nil
}

// ContentHashSeen reports whether an identical normalized title+body was
// already stored.
func (p *Pool) ContentHashSeen(ctx context.Context, hash []byte) (bool, error) {
	if len(hash) == 0 {
		return false, nil
	}

	const q = `
SELECT EXISTS (
	SELECT 1
	FROM pulse.articles a
	WHERE a.content_hash = $1
)
`

	var seen bool
	if err := p.QueryRow(ctx, q, hash).Scan(&seen); err != nil {
		return false, fmt.Errorf("query content hash seen: %w", err)
	}
	return seen, nil
}

// RecentTitles returns titles fetched since the cutoff, newest first, for the
// duplicate gate.
func (p *Pool) RecentTitles(ctx context.Context, since time.Time, limit int) ([]RecentTitle, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	a.article_id,
	a.title,
	a.source
FROM pulse.articles a
WHERE a.fetched_at >= $1
ORDER BY a.fetched_at DESC, a.article_id DESC
LIMIT $2
`

	rows, err := p.Query(ctx, q, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent titles: %w", err)
	}
	defer rows.Close()

	items := make([]RecentTitle, 0, limit)
	for rows.Next() {
		var row RecentTitle
		if err := rows.Scan(&row.ArticleID, &row.Title, &row.Source); err != nil {
			return nil, fmt.Errorf("scan recent title row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent title rows: %w", err)
	}

	return items, nil
}

// ListArticles lists articles in a UTC created_at window.
func (p *Pool) ListArticles(ctx context.Context, opts ArticleListOptions) ([]ArticleListItem, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && !opts.From.Before(opts.To) {
		return nil, fmt.Errorf("from must be before to")
	}

	var (
		conds []string
		args  []any
	)
	if !opts.From.IsZero() {
		args = append(args, opts.From.UTC())
		conds = append(conds, fmt.Sprintf("a.created_at >= $%d", len(args)))
	}
	if !opts.To.IsZero() {
		args = append(args, opts.To.UTC())
		conds = append(conds, fmt.Sprintf("a.created_at < $%d", len(args)))
	}
	if source := strings.TrimSpace(opts.Source); source != "" {
		args = append(args, source)
		conds = append(conds, fmt.Sprintf("a.source = $%d", len(args)))
	}
	if opts.NeedsScoring {
		conds = append(conds, "a.needs_scoring = true")
	}
	if opts.VisibleOnly {
		conds = append(conds, "a.visible = true")
	}

	q := `
SELECT` + articleListColumns + `
FROM pulse.articles a`
	if len(conds) > 0 {
		q += "\nWHERE " + strings.Join(conds, "\n  AND ")
	}
	args = append(args, opts.Limit)
	q += fmt.Sprintf("\nORDER BY a.created_at DESC, a.article_id DESC\nLIMIT $%d\n", len(args))

	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	items := make([]ArticleListItem, 0, opts.Limit)
	for rows.Next() {
		row, err := scanArticleListItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article rows: %w", err)
	}

	return items, nil
}

// GetArticleByUUID returns the full article read model with mentions.
func (p *Pool) GetArticleByUUID(ctx context.Context, articleUUID string) (*ArticleDetail, error) {
	trimmedUUID := strings.TrimSpace(articleUUID)
	if trimmedUUID == "" {
		return nil, fmt.Errorf("article UUID is required")
	}

	const q = `
SELECT` + articleListColumns + `,
	a.body,
	a.summary,
	a.language,
	a.importance_reason,
	a.processed_reason,
	a.fetched_at
FROM pulse.articles a
WHERE a.article_uuid = $1::uuid
LIMIT 1
`

	var detail ArticleDetail
	if err := p.QueryRow(ctx, q, trimmedUUID).Scan(
		&detail.ArticleID,
		&detail.ArticleUUID,
		&detail.Title,
		&detail.URL,
		&detail.Source,
		&detail.PublishedAt,
		&detail.Visible,
		&detail.Importance,
		&detail.StoryType,
		&detail.NeedsScoring,
		&detail.Processed,
		&detail.CreatedAt,
		&detail.Body,
		&detail.Summary,
		&detail.Language,
		&detail.ImportanceReason,
		&detail.ProcessedReason,
		&detail.FetchedAt,
	); err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query article by uuid: %w", err)
	}

	mentions, err := p.listArticleMentions(ctx, detail.ArticleID)
	if err != nil {
		return nil, err
	}
	detail.Mentions = mentions
	return &detail, nil
}

// SearchArticles finds articles whose title or body contains the query text.
func (p *Pool) SearchArticles(ctx context.Context, query string, limit int) ([]ArticleListItem, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, fmt.Errorf("query text is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT` + articleListColumns + `
FROM pulse.articles a
WHERE a.title ILIKE '%' || $1 || '%'
   OR a.body ILIKE '%' || $1 || '%'
ORDER BY a.created_at DESC, a.article_id DESC
LIMIT $2
`

	rows, err := p.Query(ctx, q, trimmed, limit)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	defer rows.Close()

	items := make([]ArticleListItem, 0, limit)
	for rows.Next() {
		row, err := scanArticleListItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}

	return items, nil
}

func (p *Pool) listArticleMentions(ctx context.Context, articleID int64) ([]MentionSummary, error) {
	const q = `
SELECT
	m.member_id,
	mem.member_code,
	mem.full_name,
	mem.party_name,
	m.confidence,
	m.method
FROM pulse.article_mentions m
JOIN pulse.members mem
	ON mem.member_id = m.member_id
WHERE m.article_id = $1
ORDER BY m.confidence DESC, mem.full_name
`

	rows, err := p.Query(ctx, q, articleID)
	if err != nil {
		return nil, fmt.Errorf("query article mentions: %w", err)
	}
	defer rows.Close()

	mentions := make([]MentionSummary, 0, 4)
	for rows.Next() {
		var row MentionSummary
		if err := rows.Scan(
			&row.MemberID,
			&row.MemberCode,
			&row.FullName,
			&row.Party,
			&row.Confidence,
			&row.Method,
		); err != nil {
			return nil, fmt.Errorf("scan mention row: %w", err)
		}
		mentions = append(mentions, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mention rows: %w", err)
	}

	return mentions, nil
}

func scanArticleListItem(rows *Rows) (ArticleListItem, error) {
	var row ArticleListItem
	if err := rows.Scan(
		&row.ArticleID,
		&row.ArticleUUID,
		&row.Title,
		&row.URL,
		&row.Source,
		&row.PublishedAt,
		&row.Visible,
		&row.Importance,
		&row.StoryType,
		&row.NeedsScoring,
		&row.Processed,
		&row.CreatedAt,
	); err != nil {
		return ArticleListItem{}, fmt.Errorf("scan article row: %w", err)
	}
	return row, nil
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}
