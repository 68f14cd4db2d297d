package payloadschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateArticlePayload_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"rte",
		"url":"https://www.rte.ie/news/politics/2026/0812/minister-questioned.html",
		"title":"Minister questioned over housing targets",
		"body_text":"The Minister for Housing faced sustained questioning in the Dail today.",
		"published_at":"2026-08-12T14:00:00Z",
		"language":"en",
		"authors":["Political Staff"],
		"tags":["housing","dail"],
		"source_metadata":{
			"feed_url":"https://www.rte.ie/feeds/rss/?index=/news/politics/",
			"fetched_at":"2026-08-12T15:00:00Z"
		}
	}`)

	item, err := ValidateArticlePayload(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}

	if item.Source != "rte" {
		t.Fatalf("expected source=rte, got %q", item.Source)
	}
	if item.PayloadVersion != "v1" {
		t.Fatalf("expected payload_version=v1, got %q", item.PayloadVersion)
	}
	if item.BodyText == nil || !strings.Contains(*item.BodyText, "Minister") {
		t.Fatalf("expected body_text to survive decoding, got %v", item.BodyText)
	}
}

func TestValidateArticlePayload_MissingRequired(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"irishtimes",
		"title":"Missing url field"
	}`)

	_, err := ValidateArticlePayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for missing url")
	}
}

func TestValidateArticlePayload_WhitespaceTitle(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"irishtimes",
		"url":"https://www.irishtimes.com/politics/2026/08/12/article",
		"title":"   "
	}`)

	_, err := ValidateArticlePayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for whitespace-only title")
	}
	if !strings.Contains(err.Error(), "title must not be empty") {
		t.Fatalf("expected title semantic error, got: %v", err)
	}
}

func TestValidateArticlePayload_WrongVersion(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v2",
		"source":"rte",
		"url":"https://www.rte.ie/news/article",
		"title":"Future payload"
	}`)

	_, err := ValidateArticlePayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for payload_version v2")
	}
}

func TestValidateArticlePayload_InvalidPublishedAt(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"rte",
		"url":"https://www.rte.ie/news/article",
		"title":"Bad date",
		"published_at":"yesterday"
	}`)

	_, err := ValidateArticlePayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for invalid published_at")
	}
}

func TestValidateArticlePayload_RejectsNonHTTPURL(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"rte",
		"url":"ftp://files.example.com/article.txt",
		"title":"Wrong scheme"
	}`)

	_, err := ValidateArticlePayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for non-http url")
	}
	if !strings.Contains(err.Error(), "http") {
		t.Fatalf("expected scheme error, got: %v", err)
	}
}

func TestValidateArticlePayload_RejectsUnknownField(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"rte",
		"url":"https://www.rte.ie/news/article",
		"title":"Extra field",
		"sentiment":0.7
	}`)

	_, err := ValidateArticlePayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for unknown top-level field")
	}
}

func TestValidateArticlePayload_RejectsBadLanguageCode(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"rte",
		"url":"https://www.rte.ie/news/article",
		"title":"Bad language",
		"language":"english"
	}`)

	_, err := ValidateArticlePayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for non ISO-639-1 language")
	}
}

func TestValidateArticlePayload_TrailingContent(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"rte",
		"url":"https://www.rte.ie/news/article",
		"title":"Trailing"
	}{}`)

	_, err := ValidateArticlePayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for trailing content")
	}
}
