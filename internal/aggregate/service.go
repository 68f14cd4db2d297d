// Package aggregate recomputes the dimensional scores (effectiveness,
// consistency, constituency service) for every active member in one batch
// run. Fact tables are bulk-loaded in fixed-size pages and partitioned in
// memory by member id; nothing here queries per member, which is what
// keeps a run tractable at member-count times vote-count scale.
package aggregate

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/globaltime"
	"glaspolitics.ie/pulse/internal/members"
)

const (
	pageSize = 500

	// Benchmark constants: full attendance and excellent legislative
	// activity for one Dáil term, and the question volume cap.
	fullAttendanceVotes  = 120
	excellentLegislation = 12
	questionVolumeCap    = 50

	defaultNewsTrust = 50

	// Constituency tokens shorter than this match too much unrelated
	// text ("mid", "st") and are not scanned on their own.
	minConstituencyToken = 4
)

// Overall composite weights, news-derived trust dominant.
const (
	weightNews          = 0.4
	weightEffectiveness = 0.25
	weightConsistency   = 0.2
	weightConstituency  = 0.15
)

// memberFacts is everything one member contributed to the fact tables.
type memberFacts struct {
	votes     []db.DivisionVoteRow
	headings  []string
	sponsor   int
	cosponsor int
}

// Report summarizes one aggregate run for the pipeline run record.
type Report struct {
	Members   int `json:"members"`
	Votes     int `json:"votes"`
	Questions int `json:"questions"`
	Roles     int `json:"roles"`
	Updated   int `json:"updated"`
	Errors    int `json:"errors"`
}

// Service recomputes dimensional scores from raw fact tables.
type Service struct {
	pool          *db.Pool
	localKeywords []string
	logger        zerolog.Logger
}

func NewService(pool *db.Pool, localKeywords []string, logger zerolog.Logger) *Service {
	return &Service{
		pool:          pool,
		localKeywords: localKeywords,
		logger:        logger.With().Str("component", "aggregate").Logger(),
	}
}

// Run recomputes every active member's dimensional scores. Per-member
// write failures are logged and skipped; the batch continues. Rerunning
// on unchanged facts writes identical scores.
func (s *Service) Run(ctx context.Context) (Report, error) {
	if s == nil || s.pool == nil {
		return Report{}, fmt.Errorf("aggregate service is not initialized")
	}

	roster, err := s.pool.ListActiveMembers(ctx)
	if err != nil {
		return Report{}, err
	}
	report := Report{Members: len(roster)}
	if len(roster) == 0 {
		s.logger.Info().Msg("no active members to aggregate")
		return report, nil
	}

	facts := make(map[int64]*memberFacts, len(roster))
	for _, member := range roster {
		facts[member.MemberID] = &memberFacts{}
	}
	party := make(map[int64]string, len(roster))
	for _, member := range roster {
		party[member.MemberID] = partyIdentity(member)
	}

	cache := NewMajorityCache()

	votes, err := s.loadVotes(ctx, facts, party, cache)
	if err != nil {
		return report, err
	}
	report.Votes = votes

	questions, err := s.loadQuestions(ctx, facts)
	if err != nil {
		return report, err
	}
	report.Questions = questions

	roles, err := s.loadLegislation(ctx, facts)
	if err != nil {
		return report, err
	}
	report.Roles = roles

	trust, err := s.loadNewsTrust(ctx)
	if err != nil {
		return report, err
	}

	keywords := normalizeKeywords(s.localKeywords)
	now := globaltime.UTC()

	for _, member := range roster {
		f := facts[member.MemberID]

		effectiveness := effectivenessScore(len(f.votes), f.sponsor, f.cosponsor)
		consistency := consistencyScore(f.votes, party[member.MemberID], cache)
		constituency := constituencyScore(f.headings, keywords, member.Constituency)

		newsTrust, ok := trust[member.MemberID]
		if !ok {
			newsTrust = defaultNewsTrust
		}
		overall := weightNews*newsTrust +
			weightEffectiveness*effectiveness +
			weightConsistency*consistency +
			weightConstituency*constituency

		if err := s.pool.WriteAggregateScores(ctx, db.AggregateScoreParams{
			MemberID:      member.MemberID,
			Effectiveness: effectiveness,
			Consistency:   consistency,
			Constituency:  constituency,
			Overall:       overall,
			ComputedAt:    now,
		}); err != nil {
			s.logger.Warn().Err(err).
				Int64("member_id", member.MemberID).
				Str("member", member.FullName).
				Msg("aggregate write failed, member skipped")
			report.Errors++
			continue
		}
		report.Updated++
	}

	s.logger.Info().
		Int("members", report.Members).
		Int("votes", report.Votes).
		Int("questions", report.Questions).
		Int("roles", report.Roles).
		Int("updated", report.Updated).
		Int("errors", report.Errors).
		Msg("aggregate run complete")
	return report, nil
}

func (s *Service) loadVotes(ctx context.Context, facts map[int64]*memberFacts, party map[int64]string, cache *MajorityCache) (int, error) {
	total := 0
	for offset := 0; ; offset += pageSize {
		page, err := s.pool.LoadDivisionVotesPage(ctx, offset, pageSize)
		if err != nil {
			return total, err
		}
		for _, vote := range page {
			f, ok := facts[vote.MemberID]
			if !ok {
				// Retired member, party unknown here; their vote can't
				// join any tally.
				continue
			}
			f.votes = append(f.votes, vote)
			cache.Observe(vote.DivisionURI, party[vote.MemberID], vote.VoteChoice)
			total++
		}
		if len(page) < pageSize {
			return total, nil
		}
	}
}

func (s *Service) loadQuestions(ctx context.Context, facts map[int64]*memberFacts) (int, error) {
	total := 0
	for offset := 0; ; offset += pageSize {
		page, err := s.pool.LoadQuestionsPage(ctx, offset, pageSize)
		if err != nil {
			return total, err
		}
		for _, q := range page {
			f, ok := facts[q.MemberID]
			if !ok {
				continue
			}
			f.headings = append(f.headings, q.Heading)
			total++
		}
		if len(page) < pageSize {
			return total, nil
		}
	}
}

func (s *Service) loadLegislation(ctx context.Context, facts map[int64]*memberFacts) (int, error) {
	total := 0
	for offset := 0; ; offset += pageSize {
		page, err := s.pool.LoadLegislationPage(ctx, offset, pageSize)
		if err != nil {
			return total, err
		}
		for _, role := range page {
			f, ok := facts[role.MemberID]
			if !ok {
				continue
			}
			if role.Role == "sponsor" {
				f.sponsor++
			} else {
				f.cosponsor++
			}
			total++
		}
		if len(page) < pageSize {
			return total, nil
		}
	}
}

func (s *Service) loadNewsTrust(ctx context.Context) (map[int64]float64, error) {
	trust := make(map[int64]float64)
	for offset := 0; ; offset += pageSize {
		page, err := s.pool.ListMemberScoresPage(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		for _, row := range page {
			trust[row.MemberID] = row.NewsTrust
		}
		if len(page) < pageSize {
			return trust, nil
		}
	}
}

// effectivenessScore blends attendance against the full-attendance
// benchmark with sponsor-weighted legislative activity.
func effectivenessScore(votesCast, sponsor, cosponsor int) float64 {
	attendance := float64(votesCast) / fullAttendanceVotes
	if attendance > 1 {
		attendance = 1
	}
	activity := float64(2*sponsor+cosponsor) / excellentLegislation
	if activity > 1 {
		activity = 1
	}
	return 100 * (0.6*attendance + 0.4*activity)
}

// consistencyScore measures how often the member voted with their party's
// majority. A member with no recorded votes sits at neutral 50.
func consistencyScore(votes []db.DivisionVoteRow, party string, cache *MajorityCache) float64 {
	if len(votes) == 0 {
		return 50
	}
	matched := 0
	for _, vote := range votes {
		if vote.VoteChoice == cache.Majority(vote.DivisionURI, party) {
			matched++
		}
	}
	return 100 * float64(matched) / float64(len(votes))
}

// constituencyScore blends the locally-scoped fraction of a member's
// questions with a volume component capped at the benchmark count, 70/30.
func constituencyScore(headings []string, keywords []string, constituency string) float64 {
	scan := append([]string(nil), keywords...)
	scan = append(scan, constituencyKeys(constituency)...)

	local := 0
	for _, heading := range headings {
		key := members.NormalizeKey(heading)
		for _, kw := range scan {
			if kw != "" && strings.Contains(key, kw) {
				local++
				break
			}
		}
	}

	localFraction := 0.0
	if len(headings) > 0 {
		localFraction = float64(local) / float64(len(headings))
	}
	volume := float64(len(headings)) / questionVolumeCap
	if volume > 1 {
		volume = 1
	}
	return 100 * (0.7*localFraction + 0.3*volume)
}

// constituencyKeys returns the scannable forms of a constituency name:
// the full folded name plus its longer tokens.
func constituencyKeys(constituency string) []string {
	full := members.NormalizeKey(constituency)
	if full == "" {
		return nil
	}
	keys := []string{full}
	tokens := strings.FieldsFunc(full, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, token := range tokens {
		if len([]rune(token)) >= minConstituencyToken && token != full {
			keys = append(keys, token)
		}
	}
	return keys
}

func normalizeKeywords(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, kw := range raw {
		key := members.NormalizeKey(kw)
		if key != "" {
			out = append(out, key)
		}
	}
	return out
}

// partyIdentity groups members for majority tallies, preferring the
// stable party code over the display name.
func partyIdentity(member db.MemberRow) string {
	if code := strings.TrimSpace(member.PartyCode); code != "" {
		return code
	}
	return strings.TrimSpace(member.PartyName)
}
