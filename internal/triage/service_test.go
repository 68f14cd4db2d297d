package triage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"glaspolitics.ie/pulse/internal/db"
	"glaspolitics.ie/pulse/internal/llm"
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

func countSelected(selected []bool) int {
	n := 0
	for _, s := range selected {
		if s {
			n++
		}
	}
	return n
}

func TestSelectForScoring_TopFractionAndThreshold(t *testing.T) {
	t.Parallel()

	importances := []int{90, 85, 70, 65, 50, 45, 30, 10}
	selected := selectForScoring(importances, 0.25, 40)

	if got := countSelected(selected); got != 2 {
		t.Fatalf("selected %d articles, want 2 (ceil(0.25*8))", got)
	}
	if !selected[0] || !selected[1] {
		t.Fatalf("expected the two highest-importance articles, got %v", selected)
	}
}

func TestSelectForScoring_BelowThresholdNeverSelected(t *testing.T) {
	t.Parallel()

	importances := []int{35, 30, 20, 10}
	selected := selectForScoring(importances, 0.5, 40)

	if got := countSelected(selected); got != 0 {
		t.Fatalf("selected %d articles below the minimum importance, want 0", got)
	}
}

func TestSelectForScoring_QuotaCapsEqualScores(t *testing.T) {
	t.Parallel()

	importances := make([]int, 10)
	for i := range importances {
		importances[i] = 80
	}
	selected := selectForScoring(importances, 0.25, 40)

	if got := countSelected(selected); got != 3 {
		t.Fatalf("selected %d articles, want 3 (ceil(0.25*10))", got)
	}
	for i := 0; i < 3; i++ {
		if !selected[i] {
			t.Fatalf("tie-break should keep batch order, got %v", selected)
		}
	}
}

func TestSelectForScoring_MixedThresholdInsideQuota(t *testing.T) {
	t.Parallel()

	// Quota admits two, but the second-ranked article sits below the
	// absolute minimum and must be rejected anyway.
	importances := []int{90, 35, 30, 20}
	selected := selectForScoring(importances, 0.5, 40)

	if !selected[0] {
		t.Fatalf("top article should be selected")
	}
	if selected[1] {
		t.Fatalf("article below the minimum importance was selected")
	}
	if got := countSelected(selected); got != 1 {
		t.Fatalf("selected %d articles, want 1", got)
	}
}

func TestSelectForScoring_ZeroFraction(t *testing.T) {
	t.Parallel()

	selected := selectForScoring([]int{100, 100}, 0, 0)
	if got := countSelected(selected); got != 0 {
		t.Fatalf("selected %d articles with a zero fraction, want 0", got)
	}
}

func TestAssess_DecodesModelResponse(t *testing.T) {
	t.Parallel()

	model := &fakeModel{response: "```json\n" +
		`{"importance": 88, "reasoning": "Cabinet reshuffle announced.", "story_type": "Appointment", "primary_subject": true}` +
		"\n```"}
	svc := NewService(nil, model, Config{}, zerolog.Nop())

	got, err := svc.assess(context.Background(), db.TriageCandidate{
		ArticleID: 1,
		Title:     "Taoiseach announces reshuffle",
		Source:    "RTE News",
		Body:      "The Taoiseach confirmed changes to the cabinet this morning.",
	})
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if got.Importance != 88 {
		t.Fatalf("importance = %d, want 88", got.Importance)
	}
	if got.StoryType != "appointment" {
		t.Fatalf("story type = %q, want lowercased %q", got.StoryType, "appointment")
	}
	if !got.PrimarySubject {
		t.Fatalf("primary subject flag lost")
	}
	if got.Reason != "Cabinet reshuffle announced." {
		t.Fatalf("reason = %q", got.Reason)
	}
}

func TestAssess_RejectsNonJSON(t *testing.T) {
	t.Parallel()

	model := &fakeModel{response: "I am unable to assess this article."}
	svc := NewService(nil, model, Config{}, zerolog.Nop())

	_, err := svc.assess(context.Background(), db.TriageCandidate{ArticleID: 1, Title: "x"})
	if err == nil {
		t.Fatalf("expected an error for a response with no JSON")
	}
}

func TestAssess_PropagatesModelError(t *testing.T) {
	t.Parallel()

	model := &fakeModel{err: errors.New("rate limited")}
	svc := NewService(nil, model, Config{}, zerolog.Nop())

	_, err := svc.assess(context.Background(), db.TriageCandidate{ArticleID: 1, Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected the model error to surface, got %v", err)
	}
}

func TestBuildPrompt_FallsBackToSummary(t *testing.T) {
	t.Parallel()

	prompt := buildPrompt(db.TriageCandidate{
		Title:   "Dáil votes on housing bill",
		Source:  "The Journal",
		Summary: "TDs voted 88 to 62 in favour.",
		Body:    "   ",
	})
	if !strings.Contains(prompt, "TDs voted 88 to 62 in favour.") {
		t.Fatalf("prompt should carry the summary when the body is empty:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Title: Dáil votes on housing bill") {
		t.Fatalf("prompt missing the title:\n%s", prompt)
	}
}

func TestExcerpt_TruncatesRuneAware(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", 50)
	got := excerpt(long, 10)
	if got != strings.Repeat("é", 10)+"..." {
		t.Fatalf("excerpt = %q", got)
	}
	if excerpt("short", 10) != "short" {
		t.Fatalf("short input should pass through unchanged")
	}
}
