package dedup

import "testing"

func TestNormalizeTitle(t *testing.T) {
	t.Parallel()

	got := NormalizeTitle("  Taoiseach’s “Big” Housing-Plan!  ")
	if got != "taoiseachs big housing plan" {
		t.Fatalf("unexpected normalized title: %q", got)
	}
	if got := NormalizeTitle("   "); got != "" {
		t.Fatalf("expected empty result for blank title, got %q", got)
	}
}

func TestSimilarity_Identical(t *testing.T) {
	t.Parallel()

	title := "Taoiseach defends housing targets"
	if got := Similarity(title, title); got < 0.99 {
		t.Fatalf("expected near-1 similarity for identical titles, got %v", got)
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	t.Parallel()

	a := "Taoiseach defends housing targets in Dáil exchange"
	b := "Housing targets defended by Taoiseach after Dáil row"
	if Similarity(a, b) != Similarity(b, a) {
		t.Fatalf("similarity must be symmetric")
	}
}

func TestSimilarity_Unrelated(t *testing.T) {
	t.Parallel()

	a := "Taoiseach defends housing targets in budget row"
	b := "Cork hurling final attracts record crowd"
	if got := Similarity(a, b); got >= 0.3 {
		t.Fatalf("expected unrelated titles to score below 0.3, got %v", got)
	}
}

func TestSimilarity_NearDuplicate(t *testing.T) {
	t.Parallel()

	a := "Taoiseach defends housing targets in Dáil exchange"
	b := "Taoiseach defends housing targets after Dáil exchange"
	if got := Similarity(a, b); got < DefaultThreshold {
		t.Fatalf("expected near-duplicate titles to clear the threshold, got %v", got)
	}
}

func TestFindDuplicate_NoMatch(t *testing.T) {
	t.Parallel()

	recent := []Entry{
		{ID: "a1", Source: "rte", Title: "Cork hurling final attracts record crowd"},
	}
	if _, found := FindDuplicate("Taoiseach defends housing targets", recent, DefaultThreshold); found {
		t.Fatalf("expected no duplicate for unrelated titles")
	}
	if _, found := FindDuplicate("   ", recent, DefaultThreshold); found {
		t.Fatalf("expected no duplicate for blank candidate")
	}
}

func TestFindDuplicate_EarlyExitReturnsFirstStrongMatch(t *testing.T) {
	t.Parallel()

	title := "Taoiseach defends housing targets"
	recent := []Entry{
		{ID: "a1", Source: "rte", Title: title},
		{ID: "a2", Source: "irishtimes", Title: title},
	}

	match, found := FindDuplicate(title, recent, DefaultThreshold)
	if !found {
		t.Fatalf("expected a duplicate match")
	}
	if match.Entry.ID != "a1" {
		t.Fatalf("expected scan to stop at the first strong match, got %q", match.Entry.ID)
	}
}

func TestFindDuplicate_KeepsScanningPastWeakMatches(t *testing.T) {
	t.Parallel()

	recent := []Entry{
		{ID: "weak", Source: "rte", Title: "Taoiseach visits Cork university campus"},
		{ID: "exact", Source: "irishtimes", Title: "Taoiseach defends housing targets"},
	}

	match, found := FindDuplicate("Taoiseach defends housing targets", recent, 0.01)
	if !found {
		t.Fatalf("expected a duplicate match")
	}
	if match.Entry.ID != "exact" {
		t.Fatalf("expected the stronger later match to win, got %q", match.Entry.ID)
	}
}

func TestFilterBatch(t *testing.T) {
	t.Parallel()

	batch := []Entry{
		{ID: "1", Source: "rte", Title: "Taoiseach defends housing targets in Dáil"},
		{ID: "2", Source: "rte", Title: "Taoiseach defends housing targets in Dáil"},
		{ID: "3", Source: "irishtimes", Title: "Taoiseach defends housing targets in the Dáil"},
		{ID: "4", Source: "examiner", Title: "Cork hurling final attracts record crowd"},
	}

	kept, dropped := FilterBatch(batch, DefaultThreshold)

	if len(kept) != 3 {
		t.Fatalf("expected 3 kept entries, got %d", len(kept))
	}
	if kept[0].ID != "1" || kept[1].ID != "2" || kept[2].ID != "4" {
		t.Fatalf("unexpected kept order: %+v", kept)
	}
	if len(dropped) != 1 {
		t.Fatalf("expected 1 dropped entry, got %d", len(dropped))
	}
	if dropped[0].Entry.ID != "3" || dropped[0].DuplicateOf.ID != "1" {
		t.Fatalf("unexpected drop record: %+v", dropped[0])
	}
	if dropped[0].Score < DefaultThreshold {
		t.Fatalf("drop record must carry the combined score, got %v", dropped[0].Score)
	}
}
