package members

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"glaspolitics.ie/pulse/internal/db"
)

// LoadMatcher builds a matcher from the stored members, their registered
// aliases and the configured office map. Rows that cannot be indexed are
// logged and skipped so one bad record never blocks attribution.
func LoadMatcher(ctx context.Context, pool *db.Pool, offices map[string]string, logger zerolog.Logger) (*Matcher, error) {
	rows, err := pool.ListActiveMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load members for matcher: %w", err)
	}

	matcher := NewMatcher()
	codeByID := make(map[int64]string, len(rows))
	for _, row := range rows {
		party := row.PartyName
		if party == "" {
			party = row.PartyCode
		}
		member := Member{
			ID:           row.MemberID,
			Code:         row.MemberCode,
			FullName:     row.FullName,
			FirstName:    row.FirstName,
			LastName:     row.LastName,
			Party:        party,
			Constituency: row.Constituency,
		}
		if err := matcher.AddMember(member); err != nil {
			logger.Warn().Err(err).Str("member_code", row.MemberCode).Msg("skipping member in matcher")
			continue
		}
		codeByID[row.MemberID] = row.MemberCode
	}

	aliases, err := pool.ListMemberAliases(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aliases for matcher: %w", err)
	}
	for _, alias := range aliases {
		code, ok := codeByID[alias.MemberID]
		if !ok {
			continue
		}
		matcher.AddAlias(code, alias.Alias)
	}

	for title, code := range offices {
		if !matcher.BindOffice(title, code) {
			logger.Warn().Str("office", title).Str("member_code", code).Msg("office holder not found; binding skipped")
		}
	}

	return matcher, nil
}
