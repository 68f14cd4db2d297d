package fetch

import (
	"context"
	"fmt"
	"strings"

	"glaspolitics.ie/pulse/internal/feeds"
	"glaspolitics.ie/pulse/internal/llm"
)

const (
	defaultFilterBatch = 50

	filterSystemPrompt = "You are an expert at identifying Irish political news. You filter articles to find only those relevant to Irish politics, TDs, government, and policy."

	filterRules = `You are filtering news for Irish citizens interested in politics. Be strict: keep only articles about Irish politics, TDs and Senators, the Government of Ireland, the Oireachtas, Irish political parties, elections and referendums, or government policy affecting Ireland. Local council issues count when politically significant.

Exclude sport, crime and courts without a political angle, business without a policy angle, entertainment, obituaries, weather, and international news with no Irish connection. UK or EU stories stay out unless they affect Ireland directly. When in doubt, exclude.`
)

// filterResponse mirrors the JSON object the model returns per batch.
type filterResponse struct {
	Relevant []int `json:"relevant"`
}

// relevantTitles asks the model which items concern Irish politics, in
// batches. Any per-batch failure, transport or malformed response alike,
// fails open: every item in that batch is kept for the later gates. A nil
// client keeps everything.
func (s *Service) relevantTitles(ctx context.Context, items []feeds.Item) []bool {
	keep := make([]bool, len(items))
	if s.client == nil {
		for i := range keep {
			keep[i] = true
		}
		return keep
	}

	batchSize := s.cfg.FilterBatchSize
	if batchSize <= 0 {
		batchSize = defaultFilterBatch
	}

	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		indices, err := s.filterBatch(ctx, batch)
		if err != nil {
			s.logger.Warn().Err(err).
				Int("batch_size", len(batch)).
				Msg("relevance filter failed, keeping whole batch")
			for i := start; i < end; i++ {
				keep[i] = true
			}
			continue
		}
		for _, idx := range indices {
			if idx >= 0 && idx < len(batch) {
				keep[start+idx] = true
			}
		}
	}
	return keep
}

func (s *Service) filterBatch(ctx context.Context, batch []feeds.Item) ([]int, error) {
	var b strings.Builder
	b.WriteString(filterRules)
	b.WriteString("\n\nARTICLES:\n")
	for i, item := range batch {
		fmt.Fprintf(&b, "%d. %s", i, item.Title)
		if item.Summary != "" {
			b.WriteString(" | " + item.Summary)
		}
		b.WriteString("\n")
	}
	b.WriteString(`
Return only a JSON object with the relevant article numbers:
{"relevant": [0, 3, 5]}

If none are relevant, return {"relevant": []}.`)

	content, err := s.client.Complete(ctx, llm.Request{
		System:      filterSystemPrompt,
		Prompt:      b.String(),
		MaxTokens:   500,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("relevance completion: %w", err)
	}

	var decoded filterResponse
	if err := llm.DecodeJSON(content, &decoded); err != nil {
		return nil, fmt.Errorf("decode relevance response: %w", err)
	}
	return decoded.Relevant, nil
}
