package aggregate

import (
	"math"
	"testing"

	"glaspolitics.ie/pulse/internal/db"
)

func approx(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMajorityCache_SimpleMajority(t *testing.T) {
	t.Parallel()

	cache := NewMajorityCache()
	cache.Observe("/division/1", "FF", "ta")
	cache.Observe("/division/1", "FF", "ta")
	cache.Observe("/division/1", "FF", "nil")
	cache.Observe("/division/1", "SF", "nil")

	if got := cache.Majority("/division/1", "FF"); got != "ta" {
		t.Fatalf("FF majority = %q, want ta", got)
	}
	if got := cache.Majority("/division/1", "SF"); got != "nil" {
		t.Fatalf("SF majority = %q, want nil", got)
	}
}

func TestMajorityCache_TieBreakOrder(t *testing.T) {
	t.Parallel()

	cache := NewMajorityCache()
	cache.Observe("/division/2", "FG", "ta")
	cache.Observe("/division/2", "FG", "nil")
	if got := cache.Majority("/division/2", "FG"); got != "ta" {
		t.Fatalf("ta/nil tie = %q, want ta", got)
	}

	cache.Observe("/division/3", "FG", "nil")
	cache.Observe("/division/3", "FG", "staon")
	if got := cache.Majority("/division/3", "FG"); got != "nil" {
		t.Fatalf("nil/staon tie = %q, want nil", got)
	}
}

func TestMajorityCache_UnknownDivision(t *testing.T) {
	t.Parallel()

	cache := NewMajorityCache()
	if got := cache.Majority("/division/9", "FF"); got != "" {
		t.Fatalf("party with no votes on a division = %q, want empty", got)
	}
}

func TestMajorityCache_MemoizedAnswerStable(t *testing.T) {
	t.Parallel()

	cache := NewMajorityCache()
	cache.Observe("/division/4", "FF", "staon")
	first := cache.Majority("/division/4", "FF")

	// Later observations never change an answer already handed out.
	cache.Observe("/division/4", "FF", "ta")
	cache.Observe("/division/4", "FF", "ta")
	if got := cache.Majority("/division/4", "FF"); got != first {
		t.Fatalf("memoized majority changed from %q to %q", first, got)
	}
}

func TestEffectivenessScore_Benchmarks(t *testing.T) {
	t.Parallel()

	// Full attendance plus excellent legislative activity maxes out.
	approx(t, effectivenessScore(120, 6, 0), 100)
	// Half attendance, no legislation.
	approx(t, effectivenessScore(60, 0, 0), 30)
	// Attendance is capped at the benchmark.
	approx(t, effectivenessScore(240, 0, 0), 60)
	// A sponsorship counts double a co-sponsorship.
	approx(t, effectivenessScore(0, 1, 0), effectivenessScore(0, 0, 2))
	approx(t, effectivenessScore(0, 0, 0), 0)
}

func TestConsistencyScore_MatchesPartyMajority(t *testing.T) {
	t.Parallel()

	cache := NewMajorityCache()
	for i := 0; i < 3; i++ {
		cache.Observe("/division/1", "FF", "ta")
	}
	cache.Observe("/division/1", "FF", "nil")
	cache.Observe("/division/2", "FF", "nil")
	cache.Observe("/division/2", "FF", "nil")

	votes := []db.DivisionVoteRow{
		{DivisionURI: "/division/1", MemberID: 7, VoteChoice: "ta"},
		{DivisionURI: "/division/2", MemberID: 7, VoteChoice: "staon"},
	}
	approx(t, consistencyScore(votes, "FF", cache), 50)
}

func TestConsistencyScore_NoVotesIsNeutral(t *testing.T) {
	t.Parallel()

	approx(t, consistencyScore(nil, "FF", NewMajorityCache()), 50)
}

func TestConstituencyScore_LocalKeywordsAndVolume(t *testing.T) {
	t.Parallel()

	keywords := normalizeKeywords([]string{"local", "county council"})
	headings := []string{
		"Housing waiting lists in Cork South-Central",
		"Local road repairs",
		"EU fisheries policy",
		"National broadband rollout",
	}

	// Two of four headings are local (constituency name, keyword);
	// volume 4/50.
	want := 100 * (0.7*0.5 + 0.3*(4.0/50.0))
	approx(t, constituencyScore(headings, keywords, "Cork South-Central"), want)
}

func TestConstituencyScore_ConstituencyTokenMatches(t *testing.T) {
	t.Parallel()

	headings := []string{"Flood defences for Wicklow town"}
	want := 100 * (0.7*1.0 + 0.3*(1.0/50.0))
	approx(t, constituencyScore(headings, nil, "Wicklow"), want)
}

func TestConstituencyScore_NoQuestions(t *testing.T) {
	t.Parallel()

	approx(t, constituencyScore(nil, normalizeKeywords([]string{"local"}), "Carlow-Kilkenny"), 0)
}

func TestConstituencyScore_VolumeCapped(t *testing.T) {
	t.Parallel()

	headings := make([]string, 80)
	for i := range headings {
		headings[i] = "National policy question"
	}
	// Nothing local, volume capped at the benchmark.
	approx(t, constituencyScore(headings, nil, ""), 30)
}

func TestConstituencyKeys_FullNameAndLongTokens(t *testing.T) {
	t.Parallel()

	keys := constituencyKeys("Dún Laoghaire")
	if len(keys) != 2 {
		t.Fatalf("keys = %v", keys)
	}
	if keys[0] != "dun laoghaire" || keys[1] != "laoghaire" {
		t.Fatalf("keys = %v, want folded full name plus the long token", keys)
	}

	if got := constituencyKeys(""); got != nil {
		t.Fatalf("empty constituency should scan nothing, got %v", got)
	}
}

func TestPartyIdentity_PrefersCode(t *testing.T) {
	t.Parallel()

	member := db.MemberRow{PartyCode: "FF", PartyName: "Fianna Fáil"}
	if got := partyIdentity(member); got != "FF" {
		t.Fatalf("partyIdentity = %q, want FF", got)
	}
	member = db.MemberRow{PartyName: "Independent"}
	if got := partyIdentity(member); got != "Independent" {
		t.Fatalf("partyIdentity = %q, want Independent", got)
	}
}
