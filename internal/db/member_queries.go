package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MemberRow is the matcher/aggregator load model.
type MemberRow struct {
	MemberID     int64  `json:"member_id"`
	MemberCode   string `json:"member_code"`
	FullName     string `json:"full_name"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	PartyCode    string `json:"party_code"`
	PartyName    string `json:"party_name"`
	Constituency string `json:"constituency"`
	Active       bool   `json:"active"`
}

// MemberAliasRow is one registered identifier variant.
type MemberAliasRow struct {
	MemberID int64  `json:"member_id"`
	Alias    string `json:"alias"`
	Kind     string `json:"kind"`
}

// MemberRanking is the ranked read model for rankings output.
type MemberRanking struct {
	MemberID      int64      `json:"member_id"`
	MemberCode    string     `json:"member_code"`
	FullName      string     `json:"full_name"`
	PartyName     string     `json:"party_name"`
	Constituency  string     `json:"constituency"`
	NewsTrust     float64    `json:"news_trust"`
	Effectiveness float64    `json:"effectiveness"`
	Consistency   float64    `json:"consistency"`
	LocalService  float64    `json:"constituency_service"`
	Overall       float64    `json:"overall"`
	ComputedAt    *time.Time `json:"computed_at,omitempty"`
}

// MemberDetail is one member with scores, aliases and recent mentions.
type MemberDetail struct {
	Member   MemberRow        `json:"member"`
	Ranking  MemberRanking    `json:"scores"`
	Aliases  []MemberAliasRow `json:"aliases"`
	Mentions []MemberMention  `json:"recent_mentions"`
}

// MemberMention is one article that attributed the member.
type MemberMention struct {
	ArticleUUID string     `json:"article_uuid"`
	Title       string     `json:"title"`
	Source      string     `json:"source"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Confidence  float64    `json:"confidence"`
	Method      string     `json:"method"`
}

// UpsertMemberParams carries one member upsert from the government API.
type UpsertMemberParams struct {
	MemberCode   string
	FullName     string
	FirstName    string
	LastName     string
	PartyCode    string
	PartyName    string
	Constituency string
	HouseNo      int
	Active       bool
}

var rankingDimensionColumns = map[string]string{
	"overall":       "s.overall",
	"news":          "s.news_trust",
	"effectiveness": "s.effectiveness",
	"consistency":   "s.consistency",
	"constituency":  "s.constituency",
}

// RankingDimensions lists the accepted dimension names for rankings.
func RankingDimensions() []string {
	return []string{"overall", "news", "effectiveness", "consistency", "constituency"}
}

// ListActiveMembers loads every active member, ordered by id for stable
// pagination in the aggregator.
func (p *Pool) ListActiveMembers(ctx context.Context) ([]MemberRow, error) {
	const q = `
SELECT
	m.member_id,
	m.member_code,
	m.full_name,
	m.first_name,
	m.last_name,
	m.party_code,
	m.party_name,
	m.constituency,
	m.active
FROM pulse.members m
WHERE m.active = true
ORDER BY m.member_id
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query active members: %w", err)
	}
	defer rows.Close()

	members := make([]MemberRow, 0, 180)
	for rows.Next() {
		var row MemberRow
		if err := rows.Scan(
			&row.MemberID,
			&row.MemberCode,
			&row.FullName,
			&row.FirstName,
			&row.LastName,
			&row.PartyCode,
			&row.PartyName,
			&row.Constituency,
			&row.Active,
		); err != nil {
			return nil, fmt.Errorf("scan member row: %w", err)
		}
		members = append(members, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member rows: %w", err)
	}

	return members, nil
}

// ListMemberAliases loads all registered identifier variants.
func (p *Pool) ListMemberAliases(ctx context.Context) ([]MemberAliasRow, error) {
	const q = `
SELECT
	a.member_id,
	a.alias,
	a.kind
FROM pulse.member_aliases a
ORDER BY a.member_id, a.alias
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query member aliases: %w", err)
	}
	defer rows.Close()

	aliases := make([]MemberAliasRow, 0, 720)
	for rows.Next() {
		var row MemberAliasRow
		if err := rows.Scan(&row.MemberID, &row.Alias, &row.Kind); err != nil {
			return nil, fmt.Errorf("scan alias row: %w", err)
		}
		aliases = append(aliases, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alias rows: %w", err)
	}

	return aliases, nil
}

// UpsertMember inserts or refreshes one member keyed by member_code.
func (p *Pool) UpsertMember(ctx context.Context, params UpsertMemberParams, now time.Time) (int64, bool, error) {
	code := strings.TrimSpace(params.MemberCode)
	if code == "" {
		return 0, false, fmt.Errorf("member code is required")
	}
	fullName := strings.TrimSpace(params.FullName)
	if fullName == "" {
		return 0, false, fmt.Errorf("member full name is required")
	}

	const q = `
INSERT INTO pulse.members (
	member_code,
	full_name,
	first_name,
	last_name,
	party_code,
	party_name,
	constituency,
	house_no,
	active,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
ON CONFLICT (member_code)
DO UPDATE SET
	full_name = EXCLUDED.full_name,
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	party_code = EXCLUDED.party_code,
	party_name = EXCLUDED.party_name,
	constituency = EXCLUDED.constituency,
	house_no = EXCLUDED.house_no,
	active = EXCLUDED.active,
	updated_at = EXCLUDED.updated_at
RETURNING member_id, (xmax = 0) AS inserted
`

	var (
		memberID int64
		inserted bool
	)
	if err := p.QueryRow(ctx, q,
		code,
		fullName,
		strings.TrimSpace(params.FirstName),
		strings.TrimSpace(params.LastName),
		strings.TrimSpace(params.PartyCode),
		strings.TrimSpace(params.PartyName),
		strings.TrimSpace(params.Constituency),
		params.HouseNo,
		params.Active,
		now.UTC(),
	).Scan(&memberID, &inserted); err != nil {
		return 0, false, fmt.Errorf("upsert member: %w", err)
	}
	return memberID, inserted, nil
}

// RegisterMemberAliases stores identifier variants, ignoring ones already
// registered.
func (p *Pool) RegisterMemberAliases(ctx context.Context, memberID int64, aliases []MemberAliasRow) (int64, error) {
	if memberID <= 0 {
		return 0, fmt.Errorf("member id is required")
	}

	const q = `
INSERT INTO pulse.member_aliases (member_id, alias, kind)
VALUES ($1, $2, $3)
ON CONFLICT (alias) DO NOTHING
`

	var inserted int64
	for _, alias := range aliases {
		trimmed := strings.TrimSpace(alias.Alias)
		if trimmed == "" {
			continue
		}
		kind := strings.TrimSpace(alias.Kind)
		if kind == "" {
			kind = "code"
		}
		tag, err := p.Exec(ctx, q, memberID, trimmed, kind)
		if err != nil {
			return inserted, fmt.Errorf("insert member alias %q: %w", trimmed, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// ListMemberRankings returns members ranked by one score dimension.
func (p *Pool) ListMemberRankings(ctx context.Context, dimension string, limit int) ([]MemberRanking, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	column, ok := rankingDimensionColumns[strings.ToLower(strings.TrimSpace(dimension))]
	if !ok {
		return nil, fmt.Errorf("unknown ranking dimension %q (expected one of %s)", dimension, strings.Join(RankingDimensions(), ", "))
	}

	q := fmt.Sprintf(`
SELECT
	m.member_id,
	m.member_code,
	m.full_name,
	m.party_name,
	m.constituency,
	s.news_trust,
	s.effectiveness,
	s.consistency,
	s.constituency,
	s.overall,
	s.computed_at
FROM pulse.member_scores s
JOIN pulse.members m
	ON m.member_id = s.member_id
WHERE m.active = true
ORDER BY %s DESC, m.full_name
LIMIT $1
`, column)

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query member rankings: %w", err)
	}
	defer rows.Close()

	rankings := make([]MemberRanking, 0, limit)
	for rows.Next() {
		var row MemberRanking
		if err := rows.Scan(
			&row.MemberID,
			&row.MemberCode,
			&row.FullName,
			&row.PartyName,
			&row.Constituency,
			&row.NewsTrust,
			&row.Effectiveness,
			&row.Consistency,
			&row.LocalService,
			&row.Overall,
			&row.ComputedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ranking row: %w", err)
		}
		rankings = append(rankings, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ranking rows: %w", err)
	}

	return rankings, nil
}

// GetMemberDetail loads one member by code with scores, aliases and the most
// recent article mentions.
func (p *Pool) GetMemberDetail(ctx context.Context, memberCode string, mentionLimit int) (*MemberDetail, error) {
	code := strings.TrimSpace(memberCode)
	if code == "" {
		return nil, fmt.Errorf("member code is required")
	}
	if mentionLimit <= 0 {
		mentionLimit = 10
	}

	const memberQ = `
SELECT
	m.member_id,
	m.member_code,
	m.full_name,
	m.first_name,
	m.last_name,
	m.party_code,
	m.party_name,
	m.constituency,
	m.active,
	COALESCE(s.news_trust, 50),
	COALESCE(s.effectiveness, 0),
	COALESCE(s.consistency, 0),
	COALESCE(s.constituency, 0),
	COALESCE(s.overall, 0),
	s.computed_at
FROM pulse.members m
LEFT JOIN pulse.member_scores s
	ON s.member_id = m.member_id
WHERE m.member_code = $1
LIMIT 1
`

	var detail MemberDetail
	if err := p.QueryRow(ctx, memberQ, code).Scan(
		&detail.Member.MemberID,
		&detail.Member.MemberCode,
		&detail.Member.FullName,
		&detail.Member.FirstName,
		&detail.Member.LastName,
		&detail.Member.PartyCode,
		&detail.Member.PartyName,
		&detail.Member.Constituency,
		&detail.Member.Active,
		&detail.Ranking.NewsTrust,
		&detail.Ranking.Effectiveness,
		&detail.Ranking.Consistency,
		&detail.Ranking.LocalService,
		&detail.Ranking.Overall,
		&detail.Ranking.ComputedAt,
	); err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query member by code: %w", err)
	}
	detail.Ranking.MemberID = detail.Member.MemberID
	detail.Ranking.MemberCode = detail.Member.MemberCode
	detail.Ranking.FullName = detail.Member.FullName
	detail.Ranking.PartyName = detail.Member.PartyName
	detail.Ranking.Constituency = detail.Member.Constituency

	const aliasQ = `
SELECT a.member_id, a.alias, a.kind
FROM pulse.member_aliases a
WHERE a.member_id = $1
ORDER BY a.kind, a.alias
`

	aliasRows, err := p.Query(ctx, aliasQ, detail.Member.MemberID)
	if err != nil {
		return nil, fmt.Errorf("query member aliases: %w", err)
	}
	defer aliasRows.Close()
	for aliasRows.Next() {
		var row MemberAliasRow
		if err := aliasRows.Scan(&row.MemberID, &row.Alias, &row.Kind); err != nil {
			return nil, fmt.Errorf("scan alias row: %w", err)
		}
		detail.Aliases = append(detail.Aliases, row)
	}
	if err := aliasRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alias rows: %w", err)
	}

	const mentionQ = `
SELECT
	a.article_uuid::text,
	a.title,
	a.source,
	a.published_at,
	mn.confidence,
	mn.method
FROM pulse.article_mentions mn
JOIN pulse.articles a
	ON a.article_id = mn.article_id
WHERE mn.member_id = $1
ORDER BY mn.created_at DESC
LIMIT $2
`

	mentionRows, err := p.Query(ctx, mentionQ, detail.Member.MemberID, mentionLimit)
	if err != nil {
		return nil, fmt.Errorf("query member mentions: %w", err)
	}
	defer mentionRows.Close()
	for mentionRows.Next() {
		var row MemberMention
		if err := mentionRows.Scan(
			&row.ArticleUUID,
			&row.Title,
			&row.Source,
			&row.PublishedAt,
			&row.Confidence,
			&row.Method,
		); err != nil {
			return nil, fmt.Errorf("scan member mention row: %w", err)
		}
		detail.Mentions = append(detail.Mentions, row)
	}
	if err := mentionRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member mention rows: %w", err)
	}

	return &detail, nil
}
