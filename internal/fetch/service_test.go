package fetch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"glaspolitics.ie/pulse/internal/feeds"
	"glaspolitics.ie/pulse/internal/llm"
)

type scriptedModel struct {
	responses []string
	err       error
	prompts   []string
}

func (f *scriptedModel) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return "", f.err
	}
	call := len(f.prompts) - 1
	if call >= len(f.responses) {
		return "", errors.New("no scripted response left")
	}
	return f.responses[call], nil
}

func filterService(client llm.Client, batchSize int) *Service {
	return NewService(nil, nil, client, Config{FilterBatchSize: batchSize}, zerolog.Nop())
}

func politicsItems(titles ...string) []feeds.Item {
	items := make([]feeds.Item, len(titles))
	for i, title := range titles {
		items[i] = feeds.Item{Source: "src", Title: title}
	}
	return items
}

func TestRelevantTitles_NilClientKeepsEverything(t *testing.T) {
	t.Parallel()

	svc := filterService(nil, 0)
	keep := svc.relevantTitles(context.Background(), politicsItems("a", "b", "c"))
	for i, kept := range keep {
		if !kept {
			t.Fatalf("item %d dropped with no client configured", i)
		}
	}
}

func TestRelevantTitles_BatchesAndMapsIndices(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []string{
		`{"relevant": [1]}`,
		`{"relevant": [0]}`,
		`{"relevant": []}`,
	}}
	svc := filterService(model, 2)

	keep := svc.relevantTitles(context.Background(), politicsItems(
		"GAA final preview",
		"Dáil passes planning bill",
		"Minister defends health budget",
		"Celebrity wedding photos",
		"Weather warning issued",
	))

	if len(model.prompts) != 3 {
		t.Fatalf("calls = %d, want 3 batches of 2", len(model.prompts))
	}
	want := []bool{false, true, true, false, false}
	for i, kept := range keep {
		if kept != want[i] {
			t.Fatalf("keep[%d] = %v, want %v (full: %v)", i, kept, want[i], keep)
		}
	}
	if !strings.Contains(model.prompts[0], "0. GAA final preview") {
		t.Fatalf("first batch prompt missing numbered title:\n%s", model.prompts[0])
	}
	if !strings.Contains(model.prompts[1], "0. Minister defends health budget") {
		t.Fatalf("second batch must renumber from zero:\n%s", model.prompts[1])
	}
}

func TestRelevantTitles_FailsOpenOnModelError(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{err: errors.New("rate limited")}
	svc := filterService(model, 0)

	keep := svc.relevantTitles(context.Background(), politicsItems("a", "b"))
	for i, kept := range keep {
		if !kept {
			t.Fatalf("item %d dropped on model error; the filter must fail open", i)
		}
	}
}

func TestRelevantTitles_FailsOpenOnMalformedResponse(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []string{"none of these look political to me"}}
	svc := filterService(model, 0)

	keep := svc.relevantTitles(context.Background(), politicsItems("a", "b"))
	for i, kept := range keep {
		if !kept {
			t.Fatalf("item %d dropped on malformed response; the filter must fail open", i)
		}
	}
}

func TestRelevantTitles_IgnoresOutOfRangeIndices(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []string{`{"relevant": [0, 7, -2]}`}}
	svc := filterService(model, 0)

	keep := svc.relevantTitles(context.Background(), politicsItems("a", "b"))
	if !keep[0] || keep[1] {
		t.Fatalf("keep = %v, want only index 0", keep)
	}
}

func TestFilterBatch_IncludesSummaries(t *testing.T) {
	t.Parallel()

	model := &scriptedModel{responses: []string{`{"relevant": []}`}}
	svc := filterService(model, 0)

	items := []feeds.Item{{Source: "src", Title: "Budget day", Summary: "Ministers unveil spending plans."}}
	if _, err := svc.filterBatch(context.Background(), items); err != nil {
		t.Fatalf("filterBatch: %v", err)
	}
	if !strings.Contains(model.prompts[0], "Budget day | Ministers unveil spending plans.") {
		t.Fatalf("prompt missing summary:\n%s", model.prompts[0])
	}
}

func TestIsEnglish_HintShortCircuits(t *testing.T) {
	t.Parallel()

	svc := filterService(nil, 0)
	english := "The government published its housing plan today and ministers will debate it in the chamber this week."

	if svc.isEnglish(feeds.Item{Language: "ga"}, english) {
		t.Fatalf("a non-English source hint must gate regardless of content")
	}
	if svc.isEnglish(feeds.Item{Language: "GA-IE"}, english) {
		t.Fatalf("a regioned non-English hint must gate regardless of case")
	}
	if !svc.isEnglish(feeds.Item{Language: "en"}, english) {
		t.Fatalf("English hint with English content should pass")
	}
	if !svc.isEnglish(feeds.Item{Language: "en-US"}, english) {
		t.Fatalf("a regioned English hint should pass the gate")
	}
	if !svc.isEnglish(feeds.Item{}, english) {
		t.Fatalf("no hint with English content should pass")
	}
}

func TestIsEnglish_DetectsIrishContent(t *testing.T) {
	t.Parallel()

	svc := filterService(nil, 0)
	irish := "Tá an rialtas ag obair ar phlean nua tithíochta agus beidh díospóireacht sa Dáil an tseachtain seo chugainn faoi na moltaí."
	if svc.isEnglish(feeds.Item{}, irish) {
		t.Fatalf("Irish-language content slipped the language gate")
	}
}
