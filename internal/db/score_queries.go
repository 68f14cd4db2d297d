package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ScoreEventParams carries one pending score event insert.
type ScoreEventParams struct {
	MemberID  int64
	ArticleID *int64
	Kind      string
	RawDelta  float64
}

// MemberScoreRow is the current wide score row for one member.
type MemberScoreRow struct {
	MemberID      int64
	NewsTrust     float64
	NewsVoteCount int
	Effectiveness float64
	Consistency   float64
	Constituency  float64
	Overall       float64
}

// AggregateScoreParams carries one aggregator write.
type AggregateScoreParams struct {
	MemberID      int64
	Effectiveness float64
	Consistency   float64
	Constituency  float64
	Overall       float64
	ComputedAt    time.Time
}

// InsertScoreEvent queues one pending event for the adaptive engine.
func (p *Pool) InsertScoreEvent(ctx context.Context, params ScoreEventParams) (int64, error) {
	if params.MemberID <= 0 {
		return 0, fmt.Errorf("member id is required")
	}
	kind := strings.ToLower(strings.TrimSpace(params.Kind))
	switch kind {
	case "article", "user_vote":
	default:
		return 0, fmt.Errorf("unknown score event kind %q", params.Kind)
	}

	const q = `
INSERT INTO pulse.score_events (
	member_id,
	article_id,
	kind,
	raw_delta,
	status
)
VALUES ($1, $2, $3, $4, 'pending')
RETURNING event_id
`

	var article any
	if params.ArticleID != nil && *params.ArticleID > 0 {
		article = *params.ArticleID
	}

	var eventID int64
	if err := p.QueryRow(ctx, q, params.MemberID, article, kind, params.RawDelta).Scan(&eventID); err != nil {
		return 0, fmt.Errorf("insert score event: %w", err)
	}
	return eventID, nil
}

// CountPendingScoreEvents returns the queue depth for the score command.
func (p *Pool) CountPendingScoreEvents(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM pulse.score_events WHERE status = 'pending'`

	var count int64
	if err := p.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending score events: %w", err)
	}
	return count, nil
}

// EnsureMemberScore creates the default wide row for a member when missing.
func (p *Pool) EnsureMemberScore(ctx context.Context, memberID int64, now time.Time) error {
	if memberID <= 0 {
		return fmt.Errorf("member id is required")
	}

	const q = `
INSERT INTO pulse.member_scores (member_id, updated_at)
VALUES ($1, $2)
ON CONFLICT (member_id) DO NOTHING
`

	if _, err := p.Exec(ctx, q, memberID, now.UTC()); err != nil {
		return fmt.Errorf("ensure member score row: %w", err)
	}
	return nil
}

// ListMemberScoresPage loads one page of wide score rows ordered by member.
func (p *Pool) ListMemberScoresPage(ctx context.Context, offset, limit int) ([]MemberScoreRow, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	s.member_id,
	s.news_trust,
	s.news_vote_count,
	s.effectiveness,
	s.consistency,
	s.constituency,
	s.overall
FROM pulse.member_scores s
ORDER BY s.member_id
OFFSET $1
LIMIT $2
`

	rows, err := p.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query member scores page: %w", err)
	}
	defer rows.Close()

	scores := make([]MemberScoreRow, 0, limit)
	for rows.Next() {
		var row MemberScoreRow
		if err := rows.Scan(
			&row.MemberID,
			&row.NewsTrust,
			&row.NewsVoteCount,
			&row.Effectiveness,
			&row.Consistency,
			&row.Constituency,
			&row.Overall,
		); err != nil {
			return nil, fmt.Errorf("scan member score row: %w", err)
		}
		scores = append(scores, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member score rows: %w", err)
	}

	return scores, nil
}

// WriteAggregateScores stores one aggregator result row.
func (p *Pool) WriteAggregateScores(ctx context.Context, params AggregateScoreParams) error {
	if params.MemberID <= 0 {
		return fmt.Errorf("member id is required")
	}

	const q = `
INSERT INTO pulse.member_scores (
	member_id,
	effectiveness,
	consistency,
	constituency,
	overall,
	computed_at,
	updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (member_id)
DO UPDATE SET
	effectiveness = EXCLUDED.effectiveness,
	consistency = EXCLUDED.consistency,
	constituency = EXCLUDED.constituency,
	overall = EXCLUDED.overall,
	computed_at = EXCLUDED.computed_at,
	updated_at = EXCLUDED.updated_at
`

	if _, err := p.Exec(ctx, q,
		params.MemberID,
		params.Effectiveness,
		params.Consistency,
		params.Constituency,
		params.Overall,
		params.ComputedAt.UTC(),
	); err != nil {
		return fmt.Errorf("write aggregate scores: %w", err)
	}
	return nil
}
