package oireachtas

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/globaltime"
	"glaspolitics.ie/pulse/internal/members"
)

// SyncService pulls members and activity facts from the API into the local
// fact tables. All writes are idempotent upserts keyed by external URI, so a
// rerun over overlapping windows never double-counts.
type SyncService struct {
	pool    *db.Pool
	client  *Client
	houseNo int
	logger  zerolog.Logger
}

func NewSyncService(pool *db.Pool, client *Client, houseNo int, logger zerolog.Logger) *SyncService {
	return &SyncService{
		pool:    pool,
		client:  client,
		houseNo: houseNo,
		logger:  logger.With().Str("component", "sync").Logger(),
	}
}

// SyncReport counts the work done by one sync pass.
type SyncReport struct {
	MembersSeen     int   `json:"members_seen"`
	MembersInserted int   `json:"members_inserted"`
	AliasesAdded    int64 `json:"aliases_added"`
	VotesAdded      int   `json:"votes_added"`
	QuestionsAdded  int   `json:"questions_added"`
	RolesAdded      int   `json:"roles_added"`
	Unmatched       int   `json:"unmatched"`
	Errors          int   `json:"errors"`
}

// SyncAll refreshes members first, then votes, questions and legislation
// since the cutoff. Fact rows whose member reference cannot be resolved are
// counted unmatched and discarded, never mis-attributed.
func (s *SyncService) SyncAll(ctx context.Context, since time.Time) (SyncReport, error) {
	var report SyncReport
	if s == nil || s.pool == nil || s.client == nil {
		return report, fmt.Errorf("sync service is not initialized")
	}

	if err := s.syncMembers(ctx, &report); err != nil {
		return report, err
	}

	// Facts resolve member refs through the matcher, so it must be built
	// after the member refresh.
	matcher, err := members.LoadMatcher(ctx, s.pool, nil, s.logger)
	if err != nil {
		return report, err
	}

	if err := s.syncVotes(ctx, matcher, since, &report); err != nil {
		return report, err
	}
	if err := s.syncQuestions(ctx, matcher, since, &report); err != nil {
		return report, err
	}
	if err := s.syncLegislation(ctx, matcher, since, &report); err != nil {
		return report, err
	}

	s.logger.Info().
		Int("members", report.MembersSeen).
		Int("votes_added", report.VotesAdded).
		Int("questions_added", report.QuestionsAdded).
		Int("roles_added", report.RolesAdded).
		Int("unmatched", report.Unmatched).
		Int("errors", report.Errors).
		Msg("sync finished")
	return report, nil
}

func (s *SyncService) syncMembers(ctx context.Context, report *SyncReport) error {
	apiMembers, err := s.client.Members(ctx, s.houseNo)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	now := globaltime.UTC()
	for _, m := range apiMembers {
		report.MembersSeen++
		memberID, inserted, err := s.pool.UpsertMember(ctx, db.UpsertMemberParams{
			MemberCode:   m.Code,
			FullName:     m.FullName,
			FirstName:    m.FirstName,
			LastName:     m.LastName,
			PartyCode:    m.PartyCode,
			PartyName:    m.PartyName,
			Constituency: m.Constituency,
			HouseNo:      m.HouseNo,
			Active:       m.Active,
		}, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("member_code", m.Code).Msg("member upsert failed")
			report.Errors++
			continue
		}
		if inserted {
			report.MembersInserted++
			// Rankings join member_scores, so a new member needs the
			// default row to show up before their first score event.
			if err := s.pool.EnsureMemberScore(ctx, memberID, now); err != nil {
				s.logger.Warn().Err(err).Str("member_code", m.Code).Msg("score row seed failed")
				report.Errors++
			}
		}

		added, err := s.pool.RegisterMemberAliases(ctx, memberID, standardAliasRows(m))
		report.AliasesAdded += added
		if err != nil {
			s.logger.Warn().Err(err).Str("member_code", m.Code).Msg("alias registration failed")
			report.Errors++
		}
	}
	return nil
}

func (s *SyncService) syncVotes(ctx context.Context, matcher *members.Matcher, since time.Time, report *SyncReport) error {
	votes, err := s.client.Divisions(ctx, s.houseNo, since)
	if err != nil {
		return fmt.Errorf("list divisions: %w", err)
	}

	for _, vote := range votes {
		member, ok := matcher.Lookup(vote.MemberRef)
		if !ok {
			report.Unmatched++
			continue
		}
		added, err := s.pool.UpsertDivisionVote(ctx, db.DivisionVoteParams{
			DivisionURI:  vote.DivisionURI,
			MemberID:     member.ID,
			DivisionDate: vote.Date,
			Subject:      vote.Subject,
			VoteChoice:   vote.Choice,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("division", vote.DivisionURI).Msg("vote upsert failed")
			report.Errors++
			continue
		}
		if added {
			report.VotesAdded++
		}
	}
	return nil
}

func (s *SyncService) syncQuestions(ctx context.Context, matcher *members.Matcher, since time.Time, report *SyncReport) error {
	questions, err := s.client.Questions(ctx, since)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}

	for _, question := range questions {
		member, ok := matcher.Lookup(question.MemberRef)
		if !ok {
			report.Unmatched++
			continue
		}
		added, err := s.pool.UpsertQuestion(ctx, db.QuestionParams{
			QuestionURI: question.QuestionURI,
			MemberID:    member.ID,
			Heading:     question.Heading,
			Kind:        question.Kind,
			AskedAt:     question.AskedAt,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("question", question.QuestionURI).Msg("question upsert failed")
			report.Errors++
			continue
		}
		if added {
			report.QuestionsAdded++
		}
	}
	return nil
}

func (s *SyncService) syncLegislation(ctx context.Context, matcher *members.Matcher, since time.Time, report *SyncReport) error {
	roles, err := s.client.Legislation(ctx, since)
	if err != nil {
		return fmt.Errorf("list legislation: %w", err)
	}

	for _, role := range roles {
		member, ok := matcher.Lookup(role.MemberRef)
		if !ok {
			report.Unmatched++
			continue
		}
		added, err := s.pool.UpsertLegislationRole(ctx, db.LegislationParams{
			MeasureURI: role.MeasureURI,
			MemberID:   member.ID,
			Role:       role.Role,
			Title:      role.Title,
			Year:       role.Year,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("measure", role.MeasureURI).Msg("legislation upsert failed")
			report.Errors++
			continue
		}
		if added {
			report.RolesAdded++
		}
	}
	return nil
}

// standardAliasRows lists the identifier variants worth persisting for one
// member: the URI shapes fact payloads use, plus both name forms.
func standardAliasRows(m Member) []db.MemberAliasRow {
	variants := members.StandardVariants(m.Code)
	rows := make([]db.MemberAliasRow, 0, len(variants)+2)
	for i, variant := range variants {
		kind := "uri"
		if i == 0 {
			kind = "code"
		}
		rows = append(rows, db.MemberAliasRow{Alias: variant, Kind: kind})
	}
	if m.FullName != "" {
		rows = append(rows, db.MemberAliasRow{Alias: m.FullName, Kind: "name"})
	}
	if m.LastName != "" && m.FirstName != "" {
		rows = append(rows, db.MemberAliasRow{Alias: m.LastName + ", " + m.FirstName, Kind: "name"})
	}
	return rows
}
