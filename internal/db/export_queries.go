package db

import (
	"context"
	"fmt"
	"time"
)

// ArticleExportRow carries the full column set the backup file needs.
type ArticleExportRow struct {
	Source      string
	URL         string
	Title       string
	Body        string
	Summary     *string
	Language    string
	PublishedAt *time.Time
	FetchedAt   time.Time
}

// MemberScoreSnapshot is one member's score row keyed by the stable
// member code, included in backups for reference.
type MemberScoreSnapshot struct {
	MemberCode    string     `json:"member_code"`
	FullName      string     `json:"full_name"`
	PartyName     string     `json:"party_name"`
	NewsTrust     float64    `json:"news_trust"`
	Effectiveness float64    `json:"effectiveness"`
	Consistency   float64    `json:"consistency"`
	LocalService  float64    `json:"constituency_service"`
	Overall       float64    `json:"overall"`
	ComputedAt    *time.Time `json:"computed_at,omitempty"`
}

// ExportArticles streams articles oldest-first for the backup writer.
// A limit of zero or less exports everything.
func (p *Pool) ExportArticles(ctx context.Context, source string, limit int) ([]ArticleExportRow, error) {
	q := `
SELECT
	a.source,
	a.url,
	a.title,
	a.body,
	a.summary,
	a.language,
	a.published_at,
	a.fetched_at
FROM pulse.articles a
WHERE ($1 = '' OR a.source = $1)
ORDER BY a.article_id
`
	args := []any{source}
	if limit > 0 {
		q += "LIMIT $2\n"
		args = append(args, limit)
	}

	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles for export: %w", err)
	}
	defer rows.Close()

	items := make([]ArticleExportRow, 0, 256)
	for rows.Next() {
		var row ArticleExportRow
		if err := rows.Scan(
			&row.Source,
			&row.URL,
			&row.Title,
			&row.Body,
			&row.Summary,
			&row.Language,
			&row.PublishedAt,
			&row.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate export rows: %w", err)
	}

	return items, nil
}

// ListMemberScoreSnapshot returns every scored member with codes, for
// the backup file.
func (p *Pool) ListMemberScoreSnapshot(ctx context.Context) ([]MemberScoreSnapshot, error) {
	const q = `
SELECT
	m.member_code,
	m.full_name,
	m.party_name,
	s.news_trust,
	s.effectiveness,
	s.consistency,
	s.constituency,
	s.overall,
	s.computed_at
FROM pulse.member_scores s
JOIN pulse.members m ON m.member_id = s.member_id
ORDER BY m.member_code
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query member score snapshot: %w", err)
	}
	defer rows.Close()

	items := make([]MemberScoreSnapshot, 0, 174)
	for rows.Next() {
		var row MemberScoreSnapshot
		if err := rows.Scan(
			&row.MemberCode,
			&row.FullName,
			&row.PartyName,
			&row.NewsTrust,
			&row.Effectiveness,
			&row.Consistency,
			&row.LocalService,
			&row.Overall,
			&row.ComputedAt,
		); err != nil {
			return nil, fmt.Errorf("scan score snapshot row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score snapshot rows: %w", err)
	}

	return items, nil
}
