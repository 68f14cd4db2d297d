package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DeleteArticleResult reports the rows removed with one article.
type DeleteArticleResult struct {
	Mentions       int64
	EventsDetached int64
	Articles       int64
}

// PruneResult reports the rows removed by an age-based prune.
type PruneResult struct {
	Mentions       int64
	EventsDetached int64
	Articles       int64
}

// DeleteArticle removes one article and its mentions. Score events that
// reference the article keep their applied deltas but lose the article
// link, so score history survives operator cleanup.
func (p *Pool) DeleteArticle(ctx context.Context, articleUUID string) (DeleteArticleResult, error) {
	trimmedUUID := strings.TrimSpace(articleUUID)
	if trimmedUUID == "" {
		return DeleteArticleResult{}, fmt.Errorf("article UUID is required")
	}

	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return DeleteArticleResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var articleID int64
	const lookupQuery = `
SELECT a.article_id
FROM pulse.articles a
WHERE a.article_uuid = $1::uuid
FOR UPDATE
`
	if err := tx.QueryRow(ctx, lookupQuery, trimmedUUID).Scan(&articleID); err != nil {
		if errors.Is(err, ErrNoRows) {
			return DeleteArticleResult{}, ErrNoRows
		}
		return DeleteArticleResult{}, fmt.Errorf("lock article: %w", err)
	}

	var result DeleteArticleResult

	const mentionsQuery = `
DELETE FROM pulse.article_mentions
WHERE article_id = $1
`
	tag, err := tx.Exec(ctx, mentionsQuery, articleID)
	if err != nil {
		return DeleteArticleResult{}, fmt.Errorf("delete article mentions: %w", err)
	}
	result.Mentions = tag.RowsAffected()

	const detachQuery = `
UPDATE pulse.score_events
SET article_id = NULL
WHERE article_id = $1
`
	tag, err = tx.Exec(ctx, detachQuery, articleID)
	if err != nil {
		return DeleteArticleResult{}, fmt.Errorf("detach score events: %w", err)
	}
	result.EventsDetached = tag.RowsAffected()

	const articleQuery = `
DELETE FROM pulse.articles
WHERE article_id = $1
`
	tag, err = tx.Exec(ctx, articleQuery, articleID)
	if err != nil {
		return DeleteArticleResult{}, fmt.Errorf("delete article: %w", err)
	}
	result.Articles = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return DeleteArticleResult{}, fmt.Errorf("commit transaction: %w", err)
	}

	return result, nil
}

// PruneArticlesBefore removes processed articles fetched before the cutoff,
// together with their mentions.
func (p *Pool) PruneArticlesBefore(ctx context.Context, before time.Time) (PruneResult, error) {
	beforeUTC := before.UTC()
	if beforeUTC.IsZero() {
		return PruneResult{}, fmt.Errorf("before time is required")
	}

	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return PruneResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var result PruneResult

	const mentionsQuery = `
DELETE FROM pulse.article_mentions mn
USING pulse.articles a
WHERE a.article_id = mn.article_id
  AND a.processed = true
  AND a.fetched_at < $1
`
	tag, err := tx.Exec(ctx, mentionsQuery, beforeUTC)
	if err != nil {
		return PruneResult{}, fmt.Errorf("prune mentions before=%s: %w", beforeUTC.Format(time.RFC3339), err)
	}
	result.Mentions = tag.RowsAffected()

	const detachQuery = `
UPDATE pulse.score_events e
SET article_id = NULL
FROM pulse.articles a
WHERE a.article_id = e.article_id
  AND a.processed = true
  AND a.fetched_at < $1
`
	tag, err = tx.Exec(ctx, detachQuery, beforeUTC)
	if err != nil {
		return PruneResult{}, fmt.Errorf("detach score events before=%s: %w", beforeUTC.Format(time.RFC3339), err)
	}
	result.EventsDetached = tag.RowsAffected()

	const articlesQuery = `
DELETE FROM pulse.articles a
WHERE a.processed = true
  AND a.fetched_at < $1
`
	tag, err = tx.Exec(ctx, articlesQuery, beforeUTC)
	if err != nil {
		return PruneResult{}, fmt.Errorf("prune articles before=%s: %w", beforeUTC.Format(time.RFC3339), err)
	}
	result.Articles = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return PruneResult{}, fmt.Errorf("commit transaction: %w", err)
	}

	return result, nil
}
