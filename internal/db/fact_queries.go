package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DivisionVoteParams carries one recorded vote upsert.
type DivisionVoteParams struct {
	DivisionURI  string
	MemberID     int64
	DivisionDate *time.Time
	Subject      string
	VoteChoice   string
}

// QuestionParams carries one parliamentary question upsert.
type QuestionParams struct {
	QuestionURI string
	MemberID    int64
	Heading     string
	Kind        string
	AskedAt     *time.Time
}

// LegislationParams carries one sponsorship-role upsert.
type LegislationParams struct {
	MeasureURI string
	MemberID   int64
	Role       string
	Title      string
	Year       int
}

// DivisionVoteRow is the aggregator load model for one recorded vote.
type DivisionVoteRow struct {
	DivisionURI string
	MemberID    int64
	VoteChoice  string
}

// QuestionRow is the aggregator load model for one question.
type QuestionRow struct {
	MemberID int64
	Heading  string
}

// LegislationRow is the aggregator load model for one sponsorship role.
type LegislationRow struct {
	MemberID int64
	Role     string
}

// UpsertDivisionVote stores a vote fact; reruns over overlapping data leave
// existing rows untouched.
func (p *Pool) UpsertDivisionVote(ctx context.Context, params DivisionVoteParams) (bool, error) {
	uri := strings.TrimSpace(params.DivisionURI)
	if uri == "" {
		return false, fmt.Errorf("division uri is required")
	}
	if params.MemberID <= 0 {
		return false, fmt.Errorf("member id is required")
	}
	choice := strings.ToLower(strings.TrimSpace(params.VoteChoice))
	switch choice {
	case "ta", "nil", "staon":
	default:
		return false, fmt.Errorf("unknown vote choice %q", params.VoteChoice)
	}

	const q = `
INSERT INTO pulse.division_votes (
	division_uri,
	member_id,
	division_date,
	subject,
	vote_choice
)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (division_uri, member_id) DO NOTHING
`

	tag, err := p.Exec(ctx, q, uri, params.MemberID, nullableTime(params.DivisionDate), strings.TrimSpace(params.Subject), choice)
	if err != nil {
		return false, fmt.Errorf("upsert division vote: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertQuestion stores a question fact keyed by its external URI.
func (p *Pool) UpsertQuestion(ctx context.Context, params QuestionParams) (bool, error) {
	uri := strings.TrimSpace(params.QuestionURI)
	if uri == "" {
		return false, fmt.Errorf("question uri is required")
	}
	if params.MemberID <= 0 {
		return false, fmt.Errorf("member id is required")
	}
	kind := strings.ToLower(strings.TrimSpace(params.Kind))
	if kind == "" {
		kind = "written"
	}

	const q = `
INSERT INTO pulse.questions (
	question_uri,
	member_id,
	heading,
	kind,
	asked_at
)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (question_uri) DO NOTHING
`

	tag, err := p.Exec(ctx, q, uri, params.MemberID, strings.TrimSpace(params.Heading), kind, nullableTime(params.AskedAt))
	if err != nil {
		return false, fmt.Errorf("upsert question: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertLegislationRole stores a sponsor/cosponsor fact.
func (p *Pool) UpsertLegislationRole(ctx context.Context, params LegislationParams) (bool, error) {
	uri := strings.TrimSpace(params.MeasureURI)
	if uri == "" {
		return false, fmt.Errorf("measure uri is required")
	}
	if params.MemberID <= 0 {
		return false, fmt.Errorf("member id is required")
	}
	role := strings.ToLower(strings.TrimSpace(params.Role))
	switch role {
	case "sponsor", "cosponsor":
	default:
		return false, fmt.Errorf("unknown legislation role %q", params.Role)
	}

	const q = `
INSERT INTO pulse.legislation (
	measure_uri,
	member_id,
	role,
	title,
	year
)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (measure_uri, member_id) DO NOTHING
`

	tag, err := p.Exec(ctx, q, uri, params.MemberID, role, strings.TrimSpace(params.Title), params.Year)
	if err != nil {
		return false, fmt.Errorf("upsert legislation role: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// LoadDivisionVotesPage loads one page of vote facts ordered by id.
func (p *Pool) LoadDivisionVotesPage(ctx context.Context, offset, limit int) ([]DivisionVoteRow, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	v.division_uri,
	v.member_id,
	v.vote_choice
FROM pulse.division_votes v
ORDER BY v.vote_id
OFFSET $1
LIMIT $2
`

	rows, err := p.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query division votes page: %w", err)
	}
	defer rows.Close()

	votes := make([]DivisionVoteRow, 0, limit)
	for rows.Next() {
		var row DivisionVoteRow
		if err := rows.Scan(&row.DivisionURI, &row.MemberID, &row.VoteChoice); err != nil {
			return nil, fmt.Errorf("scan division vote row: %w", err)
		}
		votes = append(votes, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate division vote rows: %w", err)
	}

	return votes, nil
}

// LoadQuestionsPage loads one page of question facts ordered by id.
func (p *Pool) LoadQuestionsPage(ctx context.Context, offset, limit int) ([]QuestionRow, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	qu.member_id,
	qu.heading
FROM pulse.questions qu
ORDER BY qu.question_id
OFFSET $1
LIMIT $2
`

	rows, err := p.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query questions page: %w", err)
	}
	defer rows.Close()

	questions := make([]QuestionRow, 0, limit)
	for rows.Next() {
		var row QuestionRow
		if err := rows.Scan(&row.MemberID, &row.Heading); err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}
		questions = append(questions, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question rows: %w", err)
	}

	return questions, nil
}

// LoadLegislationPage loads one page of sponsorship facts ordered by id.
func (p *Pool) LoadLegislationPage(ctx context.Context, offset, limit int) ([]LegislationRow, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	l.member_id,
	l.role
FROM pulse.legislation l
ORDER BY l.legislation_id
OFFSET $1
LIMIT $2
`

	rows, err := p.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query legislation page: %w", err)
	}
	defer rows.Close()

	roles := make([]LegislationRow, 0, limit)
	for rows.Next() {
		var row LegislationRow
		if err := rows.Scan(&row.MemberID, &row.Role); err != nil {
			return nil, fmt.Errorf("scan legislation row: %w", err)
		}
		roles = append(roles, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legislation rows: %w", err)
	}

	return roles, nil
}
