package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/llm"
	"glaspolitics.ie/pulse/internal/members"
)

type fakeModel struct {
	response string
	err      error
	calls    int
}

func (f *fakeModel) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testMatcher(t *testing.T) *members.Matcher {
	t.Helper()

	m := members.NewMatcher()
	roster := []members.Member{
		{ID: 1, Code: "Micheál-Martin.D.1989-11-29", FullName: "Micheál Martin", FirstName: "Micheál", LastName: "Martin", Party: "Fianna Fáil", Constituency: "Cork South-Central"},
		{ID: 2, Code: "Simon-Harris.D.2011-03-09", FullName: "Simon Harris", FirstName: "Simon", LastName: "Harris", Party: "Fine Gael", Constituency: "Wicklow"},
		{ID: 3, Code: "Paul-Murphy.D.2014-10-10", FullName: "Paul Murphy", FirstName: "Paul", LastName: "Murphy", Party: "Solidarity", Constituency: "Dublin South-West"},
		{ID: 4, Code: "Eoin-Ó-Broin.D.2016-02-26", FullName: "Eoin Ó Broin", FirstName: "Eoin", LastName: "Ó Broin", Party: "Sinn Féin", Constituency: "Dublin Mid-West"},
	}
	for _, member := range roster {
		if err := m.AddMember(member); err != nil {
			t.Fatalf("add member %s: %v", member.Code, err)
		}
	}
	if !m.BindOffice("Taoiseach", "Micheál-Martin.D.1989-11-29") {
		t.Fatalf("bind Taoiseach")
	}
	if !m.BindOffice("Tánaiste", "Simon-Harris.D.2011-03-09") {
		t.Fatalf("bind Tánaiste")
	}
	return m
}

func newTestService(t *testing.T, model llm.Client, fallback bool) *Service {
	t.Helper()
	return NewService(nil, model, testMatcher(t), Config{FallbackEnabled: fallback}, zerolog.Nop())
}

func TestResolve_OfficeTitleAndName(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, false)
	res := svc.resolve([]modelMention{
		{Name: "Tánaiste", Sentiment: -4, Confidence: 0.9},
		{Name: "Eoin Ó Broin", Sentiment: 3, Confidence: 0.85},
		{Name: "Joe Nobody", Sentiment: 1, Confidence: 0.5},
	})

	if res.Outcome != OutcomeAI {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeAI)
	}
	if len(res.Mentions) != 2 {
		t.Fatalf("mentions = %d, want 2", len(res.Mentions))
	}
	if res.Mentions[0].Member.ID != 2 {
		t.Fatalf("office title resolved to member %d, want the Tánaiste", res.Mentions[0].Member.ID)
	}
	if res.Mentions[0].Sentiment != -4 {
		t.Fatalf("sentiment = %v, want -4", res.Mentions[0].Sentiment)
	}
	if len(res.Unresolved) != 1 || res.Unresolved[0] != "Joe Nobody" {
		t.Fatalf("unresolved = %v", res.Unresolved)
	}
}

func TestResolve_UniqueSurnameOnlyForSingleWord(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, false)
	res := svc.resolve([]modelMention{{Name: "Harris", Sentiment: 2}})

	if len(res.Mentions) != 1 || res.Mentions[0].Member.ID != 2 {
		t.Fatalf("unique surname should resolve, got %+v", res.Mentions)
	}
}

func TestResolve_DeduplicatesAndClamps(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, false)
	res := svc.resolve([]modelMention{
		{Name: "Micheál Martin", Sentiment: -25, Confidence: 2},
		{Name: "Taoiseach", Sentiment: 5},
	})

	if len(res.Mentions) != 1 {
		t.Fatalf("same member via two identifiers should collapse, got %d mentions", len(res.Mentions))
	}
	if res.Mentions[0].Sentiment != -10 {
		t.Fatalf("sentiment clamp = %v, want -10", res.Mentions[0].Sentiment)
	}
	if res.Mentions[0].Confidence != aiConfidence {
		t.Fatalf("out-of-range confidence should fall back to the default, got %v", res.Mentions[0].Confidence)
	}
}

func TestResolve_EmptyIsUnmatched(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, false)
	res := svc.resolve(nil)
	if res.Outcome != OutcomeUnmatched {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeUnmatched)
	}
}

func TestFallbackScan_OfficeAndNameFolded(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, true)
	mentions := svc.fallbackScan(
		"Tanaiste defends spending figures",
		"Criticism from Paul Murphy followed the briefing.",
	)

	if len(mentions) != 2 {
		t.Fatalf("mentions = %d, want 2", len(mentions))
	}
	if mentions[0].Member.ID != 2 || mentions[0].Confidence != officeConfidence || mentions[0].Method != "office" {
		t.Fatalf("office match first with office confidence, got %+v", mentions[0])
	}
	if mentions[1].Member.ID != 3 || mentions[1].Confidence != nameConfidence || mentions[1].Method != "keyword" {
		t.Fatalf("name match second with name confidence, got %+v", mentions[1])
	}
}

func TestFallbackScan_FoldsFadas(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, true)
	mentions := svc.fallbackScan("Housing row", "Eoin O Broin published the figures.")

	if len(mentions) != 1 || mentions[0].Member.ID != 4 {
		t.Fatalf("fada-less spelling should still match, got %+v", mentions)
	}
}

func TestFallbackScan_NoDoubleCount(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, true)
	mentions := svc.fallbackScan("Taoiseach Micheál Martin speaks", "More from Micheál Martin.")

	if len(mentions) != 1 {
		t.Fatalf("office plus name for the same member should collapse, got %d", len(mentions))
	}
}

func TestExtractOne_AIFirstSkipsFallback(t *testing.T) {
	t.Parallel()

	model := &fakeModel{response: `{"politicians": [{"name": "Simon Harris", "sentiment": -3, "confidence": 0.9}]}`}
	svc := newTestService(t, model, true)

	res, err := svc.extractOne(context.Background(), db.ScoringCandidate{
		ArticleID: 1,
		Title:     "Harris under pressure",
		Body:      "The Tánaiste faced questions.",
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Outcome != OutcomeAI {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeAI)
	}
	if model.calls != 1 {
		t.Fatalf("model calls = %d, want 1", model.calls)
	}
}

func TestExtractOne_FallbackOnModelError(t *testing.T) {
	t.Parallel()

	model := &fakeModel{err: errors.New("upstream 500")}
	svc := newTestService(t, model, true)

	res, err := svc.extractOne(context.Background(), db.ScoringCandidate{
		ArticleID: 1,
		Title:     "Taoiseach announces review",
		Body:      "Details to follow.",
	})
	if err != nil {
		t.Fatalf("fallback should swallow the model error, got %v", err)
	}
	if res.Outcome != OutcomeFallback {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeFallback)
	}
	if len(res.Mentions) != 1 || res.Mentions[0].Member.ID != 1 {
		t.Fatalf("office scan should find the Taoiseach, got %+v", res.Mentions)
	}
}

func TestExtractOne_ModelErrorWithoutFallback(t *testing.T) {
	t.Parallel()

	model := &fakeModel{err: errors.New("upstream 500")}
	svc := newTestService(t, model, false)

	_, err := svc.extractOne(context.Background(), db.ScoringCandidate{ArticleID: 1, Title: "x"})
	if err == nil {
		t.Fatalf("expected the model error to surface when fallback is disabled")
	}
}

func TestExtractOne_EmptyAIThenEmptyFallbackIsUnmatched(t *testing.T) {
	t.Parallel()

	model := &fakeModel{response: `{"politicians": []}`}
	svc := newTestService(t, model, true)

	res, err := svc.extractOne(context.Background(), db.ScoringCandidate{
		ArticleID: 1,
		Title:     "GAA final preview",
		Body:      "No political content here.",
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Outcome != OutcomeUnmatched {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeUnmatched)
	}
	if len(res.Mentions) != 0 {
		t.Fatalf("mentions = %+v, want none", res.Mentions)
	}
}

func TestBuildPrompt_ListsOfficeHolders(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil, false)
	prompt := svc.buildPrompt(db.ScoringCandidate{Title: "Budget day", Source: "RTE News", Body: "Spending plans."})

	if !strings.Contains(prompt, "Taoiseach: Micheál Martin") {
		t.Fatalf("prompt missing officeholder context:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Tánaiste: Simon Harris") {
		t.Fatalf("prompt missing officeholder context:\n%s", prompt)
	}
}
