package db

import (
	"context"
	"fmt"
	"time"
)

// ArticleStateCounts stores article lifecycle counts.
type ArticleStateCounts struct {
	Total          int64 `json:"total"`
	AwaitingTriage int64 `json:"awaiting_triage"`
	Visible        int64 `json:"visible"`
	NeedsScoring   int64 `json:"needs_scoring"`
	Processed      int64 `json:"processed"`
}

// FactCounts stores raw fact-table and entity counts.
type FactCounts struct {
	Members       int64 `json:"members"`
	ActiveMembers int64 `json:"active_members"`
	Aliases       int64 `json:"aliases"`
	DivisionVotes int64 `json:"division_votes"`
	Questions     int64 `json:"questions"`
	Legislation   int64 `json:"legislation"`
	Mentions      int64 `json:"mentions"`
	PendingEvents int64 `json:"pending_events"`
	ScoredMembers int64 `json:"scored_members"`
}

// DailyThroughput stores per-day activity counters.
type DailyThroughput struct {
	ArticlesFetchedToday int64 `json:"articles_fetched_today"`
	EventsAppliedToday   int64 `json:"events_applied_today"`
	RunsStartedToday     int64 `json:"runs_started_today"`
}

// PipelineStats is the read model returned by the stats command.
type PipelineStats struct {
	Day        string             `json:"day"`
	Articles   ArticleStateCounts `json:"articles"`
	Facts      FactCounts         `json:"facts"`
	Throughput DailyThroughput    `json:"throughput"`
}

// QueryPipelineStats returns lifecycle, fact and daily throughput counts.
func (p *Pool) QueryPipelineStats(ctx context.Context, dayStart, dayEnd time.Time) (*PipelineStats, error) {
	startUTC := dayStart.UTC()
	endUTC := dayEnd.UTC()
	if !startUTC.Before(endUTC) {
		return nil, fmt.Errorf("dayStart must be before dayEnd")
	}

	stats := &PipelineStats{
		Day: startUTC.Format("2006-01-02"),
	}

	const articleQuery = `
SELECT
	COUNT(*) AS total,
	COUNT(*) FILTER (WHERE NOT a.visible AND NOT a.processed) AS awaiting_triage,
	COUNT(*) FILTER (WHERE a.visible) AS visible,
	COUNT(*) FILTER (WHERE a.needs_scoring AND NOT a.processed) AS needs_scoring,
	COUNT(*) FILTER (WHERE a.processed) AS processed
FROM pulse.articles a
`

	if err := p.QueryRow(ctx, articleQuery).Scan(
		&stats.Articles.Total,
		&stats.Articles.AwaitingTriage,
		&stats.Articles.Visible,
		&stats.Articles.NeedsScoring,
		&stats.Articles.Processed,
	); err != nil {
		return nil, fmt.Errorf("query article state counts: %w", err)
	}

	const factQuery = `
SELECT
	(SELECT COUNT(*) FROM pulse.members) AS members,
	(SELECT COUNT(*) FROM pulse.members m WHERE m.active) AS active_members,
	(SELECT COUNT(*) FROM pulse.member_aliases) AS aliases,
	(SELECT COUNT(*) FROM pulse.division_votes) AS division_votes,
	(SELECT COUNT(*) FROM pulse.questions) AS questions,
	(SELECT COUNT(*) FROM pulse.legislation) AS legislation,
	(SELECT COUNT(*) FROM pulse.article_mentions) AS mentions,
	(SELECT COUNT(*) FROM pulse.score_events e WHERE e.status = 'pending') AS pending_events,
	(SELECT COUNT(*) FROM pulse.member_scores s WHERE s.computed_at IS NOT NULL) AS scored_members
`

	if err := p.QueryRow(ctx, factQuery).Scan(
		&stats.Facts.Members,
		&stats.Facts.ActiveMembers,
		&stats.Facts.Aliases,
		&stats.Facts.DivisionVotes,
		&stats.Facts.Questions,
		&stats.Facts.Legislation,
		&stats.Facts.Mentions,
		&stats.Facts.PendingEvents,
		&stats.Facts.ScoredMembers,
	); err != nil {
		return nil, fmt.Errorf("query fact counts: %w", err)
	}

	const throughputQuery = `
SELECT
	(SELECT COUNT(*) FROM pulse.articles a WHERE a.fetched_at >= $1 AND a.fetched_at < $2) AS articles_fetched_today,
	(SELECT COUNT(*) FROM pulse.score_events e WHERE e.applied_at >= $1 AND e.applied_at < $2) AS events_applied_today,
	(SELECT COUNT(*) FROM pulse.pipeline_runs r WHERE r.started_at >= $1 AND r.started_at < $2) AS runs_started_today
`

	if err := p.QueryRow(ctx, throughputQuery, startUTC, endUTC).Scan(
		&stats.Throughput.ArticlesFetchedToday,
		&stats.Throughput.EventsAppliedToday,
		&stats.Throughput.RunsStartedToday,
	); err != nil {
		return nil, fmt.Errorf("query stats throughput: %w", err)
	}

	return stats, nil
}

// SourceCount is used by the sources CLI command.
type SourceCount struct {
	Source            string     `json:"source"`
	ArticleCount      int64      `json:"article_count"`
	VisibleCount      int64      `json:"visible_count"`
	EarliestFetchedAt *time.Time `json:"earliest_fetched_at,omitempty"`
	LatestFetchedAt   *time.Time `json:"latest_fetched_at,omitempty"`
}

// ListSourcesWithCounts returns per-source article counts and fetch ranges.
func (p *Pool) ListSourcesWithCounts(ctx context.Context) ([]SourceCount, error) {
	const q = `
SELECT
	a.source,
	COUNT(*)::BIGINT AS article_count,
	COUNT(*) FILTER (WHERE a.visible)::BIGINT AS visible_count,
	MIN(a.fetched_at) AS earliest_fetched_at,
	MAX(a.fetched_at) AS latest_fetched_at
FROM pulse.articles a
GROUP BY a.source
ORDER BY 1
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query sources with counts: %w", err)
	}
	defer rows.Close()

	items := make([]SourceCount, 0, 16)
	for rows.Next() {
		var row SourceCount
		if err := rows.Scan(
			&row.Source,
			&row.ArticleCount,
			&row.VisibleCount,
			&row.EarliestFetchedAt,
			&row.LatestFetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source rows: %w", err)
	}

	return items, nil
}
