package db

import (
	"context"
	"fmt"
	"strings"
)

// MentionParams records one member appearing in one article.
type MentionParams struct {
	ArticleID  int64
	MemberID   int64
	Confidence float64
	Method     string
}

// UpsertArticleMention stores a mention once per article and member pair.
// Reruns over the same article refresh confidence and method instead of
// duplicating rows, so downstream score emission can key off first insert.
// Returns true when the mention is new.
func (p *Pool) UpsertArticleMention(ctx context.Context, params MentionParams) (bool, error) {
	if params.ArticleID <= 0 {
		return false, fmt.Errorf("article id is required")
	}
	if params.MemberID <= 0 {
		return false, fmt.Errorf("member id is required")
	}
	method := strings.ToLower(strings.TrimSpace(params.Method))
	switch method {
	case "ai", "keyword", "office":
	default:
		return false, fmt.Errorf("unknown mention method %q", params.Method)
	}

	confidence := params.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	const q = `
INSERT INTO pulse.article_mentions (article_id, member_id, confidence, method)
VALUES ($1, $2, $3, $4)
ON CONFLICT (article_id, member_id) DO UPDATE
SET confidence = EXCLUDED.confidence,
    method = EXCLUDED.method
RETURNING (xmax = 0)
`

	var inserted bool
	if err := p.QueryRow(ctx, q, params.ArticleID, params.MemberID, confidence, method).Scan(&inserted); err != nil {
		return false, fmt.Errorf("upsert article mention: %w", err)
	}
	return inserted, nil
}
