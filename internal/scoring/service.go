package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/globaltime"
)

// Service drains pending score events into member trust scores. Each event is
// claimed and applied inside its own transaction so concurrent runners never
// double-apply and a crash loses at most the event in flight.
type Service struct {
	pool   *db.Pool
	logger zerolog.Logger
}

type ApplyResult struct {
	Applied int `json:"applied"`
	Moved   int `json:"moved"`
}

func NewService(pool *db.Pool, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		logger: logger,
	}
}

type pendingEvent struct {
	EventID  int64
	MemberID int64
	Kind     string
	RawDelta float64
}

// ApplyPending claims pending score events oldest-first and applies each
// through the adaptive engine. limit <= 0 drains everything.
func (s *Service) ApplyPending(ctx context.Context, limit int) (ApplyResult, error) {
	if s == nil || s.pool == nil {
		return ApplyResult{}, fmt.Errorf("scoring service is not initialized")
	}
	if limit <= 0 {
		limit = math.MaxInt
	}

	var result ApplyResult
	for result.Applied < limit {
		tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
		if err != nil {
			return result, fmt.Errorf("begin scoring tx: %w", err)
		}

		event, found, err := claimOnePendingEventTx(ctx, tx)
		if err != nil {
			_ = tx.Rollback(ctx)
			return result, err
		}
		if !found {
			if err := tx.Commit(ctx); err != nil {
				_ = tx.Rollback(ctx)
				return result, fmt.Errorf("commit empty scoring tx: %w", err)
			}
			break
		}

		moved, err := applyEventTx(ctx, tx, event)
		if err != nil {
			_ = tx.Rollback(ctx)
			return result, err
		}

		if err := tx.Commit(ctx); err != nil {
			_ = tx.Rollback(ctx)
			return result, fmt.Errorf("commit scoring tx: %w", err)
		}

		result.Applied++
		if moved {
			result.Moved++
		}
	}

	s.logger.Info().
		Int("applied", result.Applied).
		Int("moved", result.Moved).
		Msg("score events applied")
	return result, nil
}

func claimOnePendingEventTx(ctx context.Context, tx db.Tx) (pendingEvent, bool, error) {
	const q = `
SELECT e.event_id, e.member_id, e.kind, e.raw_delta
FROM pulse.score_events e
WHERE e.status = 'pending'
ORDER BY e.event_id
LIMIT 1
FOR UPDATE SKIP LOCKED
`

	var event pendingEvent
	err := tx.QueryRow(ctx, q).Scan(&event.EventID, &event.MemberID, &event.Kind, &event.RawDelta)
	if err != nil {
		if err == db.ErrNoRows {
			return pendingEvent{}, false, nil
		}
		return pendingEvent{}, false, fmt.Errorf("claim pending score event: %w", err)
	}
	return event, true, nil
}

func applyEventTx(ctx context.Context, tx db.Tx, event pendingEvent) (bool, error) {
	if _, err := tx.Exec(ctx, `
INSERT INTO pulse.member_scores (member_id)
VALUES ($1)
ON CONFLICT (member_id) DO NOTHING
`, event.MemberID); err != nil {
		return false, fmt.Errorf("ensure member score row: %w", err)
	}

	var trust float64
	var voteCount int
	err := tx.QueryRow(ctx, `
SELECT news_trust, news_vote_count
FROM pulse.member_scores
WHERE member_id = $1
FOR UPDATE
`, event.MemberID).Scan(&trust, &voteCount)
	if err != nil {
		return false, fmt.Errorf("lock member score row: %w", err)
	}

	next, applied := Apply(trust, event.RawDelta, voteCount)

	if _, err := tx.Exec(ctx, `
UPDATE pulse.member_scores
SET news_trust = $2, news_vote_count = news_vote_count + 1
WHERE member_id = $1
`, event.MemberID, next); err != nil {
		return false, fmt.Errorf("update member score: %w", err)
	}

	if _, err := tx.Exec(ctx, `
UPDATE pulse.score_events
SET status = 'applied',
    applied_delta = $2,
    vote_index = $3,
    score_before = $4,
    score_after = $5,
    applied_at = $6
WHERE event_id = $1
`, event.EventID, applied, voteCount, trust, next, globaltime.UTC()); err != nil {
		return false, fmt.Errorf("stamp score event: %w", err)
	}

	return applied != 0, nil
}
