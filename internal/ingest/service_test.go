package ingest

import (
	"strings"
	"testing"
	"time"

	payloadschema "glaspolitics.ie/pulse/schema"
)

func strPtr(s string) *string { return &s }

func TestArticleParams_CanonicalizesURL(t *testing.T) {
	t.Parallel()

	payload := &payloadschema.ArticlePayload{
		PayloadVersion: "v1",
		Source:         "rte-news",
		URL:            "HTTPS://www.RTE.ie/news/2026/0812/story/?utm_source=rss&b=2&a=1",
		Title:          "Dáil row over housing targets",
		BodyText:       strPtr("The Minister faced questions over missed delivery targets."),
	}

	params, err := ArticleParams(payload, time.Date(2026, 8, 12, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ArticleParams failed: %v", err)
	}
	if strings.Contains(params.URL, "utm_source") {
		t.Fatalf("tracking parameter survived canonicalization: %s", params.URL)
	}
	if !strings.HasPrefix(params.URL, "https://www.rte.ie/") {
		t.Fatalf("host not lowercased: %s", params.URL)
	}
	if len(params.ContentHash) == 0 {
		t.Fatal("content hash not computed")
	}
}

func TestArticleParams_Defaults(t *testing.T) {
	t.Parallel()

	payload := &payloadschema.ArticlePayload{
		PayloadVersion: "v1",
		Source:         "manual",
		URL:            "https://example.ie/a",
		Title:          "  Title with padding  ",
	}

	params, err := ArticleParams(payload, time.Now())
	if err != nil {
		t.Fatalf("ArticleParams failed: %v", err)
	}
	if params.Language != "en" {
		t.Fatalf("language default = %q, want en", params.Language)
	}
	if params.Title != "Title with padding" {
		t.Fatalf("title not trimmed: %q", params.Title)
	}
	if params.Body != "" {
		t.Fatalf("body should be empty, got %q", params.Body)
	}
	if params.Summary != nil {
		t.Fatalf("summary should be nil, got %q", *params.Summary)
	}
	if params.PublishedAt != nil {
		t.Fatalf("published_at should be nil, got %v", *params.PublishedAt)
	}
}

func TestArticleParams_ParsesPublishedAt(t *testing.T) {
	t.Parallel()

	payload := &payloadschema.ArticlePayload{
		PayloadVersion: "v1",
		Source:         "manual",
		URL:            "https://example.ie/a",
		Title:          "T",
		PublishedAt:    strPtr("2026-08-11T18:30:00+01:00"),
	}

	params, err := ArticleParams(payload, time.Now())
	if err != nil {
		t.Fatalf("ArticleParams failed: %v", err)
	}
	if params.PublishedAt == nil {
		t.Fatal("published_at not parsed")
	}
	want := time.Date(2026, 8, 11, 17, 30, 0, 0, time.UTC)
	if !params.PublishedAt.Equal(want) {
		t.Fatalf("published_at = %v, want %v", params.PublishedAt, want)
	}
}

func TestArticleParams_RejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := ArticleParams(nil, time.Now()); err == nil {
		t.Fatal("nil payload accepted")
	}

	badURL := &payloadschema.ArticlePayload{
		PayloadVersion: "v1",
		Source:         "manual",
		URL:            "not-a-url",
		Title:          "T",
	}
	if _, err := ArticleParams(badURL, time.Now()); err == nil {
		t.Fatal("non-canonicalizable URL accepted")
	}

	badTime := &payloadschema.ArticlePayload{
		PayloadVersion: "v1",
		Source:         "manual",
		URL:            "https://example.ie/a",
		Title:          "T",
		PublishedAt:    strPtr("yesterday"),
	}
	if _, err := ArticleParams(badTime, time.Now()); err == nil {
		t.Fatal("malformed published_at accepted")
	}
}

func TestArticleParams_SameStoryHashesEqual(t *testing.T) {
	t.Parallel()

	first := &payloadschema.ArticlePayload{
		PayloadVersion: "v1",
		Source:         "rte-news",
		URL:            "https://example.ie/a",
		Title:          "Taoiseach defends budget",
		BodyText:       strPtr("Wire copy shared across outlets."),
	}
	second := &payloadschema.ArticlePayload{
		PayloadVersion: "v1",
		Source:         "irish-times",
		URL:            "https://example.ie/b",
		Title:          "TAOISEACH   defends budget",
		BodyText:       strPtr("Wire copy  shared across outlets."),
	}

	p1, err := ArticleParams(first, time.Now())
	if err != nil {
		t.Fatalf("first payload failed: %v", err)
	}
	p2, err := ArticleParams(second, time.Now())
	if err != nil {
		t.Fatalf("second payload failed: %v", err)
	}
	if string(p1.ContentHash) != string(p2.ContentHash) {
		t.Fatal("republished wire copy should hash identically")
	}
}
