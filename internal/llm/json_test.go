package llm

import "testing"

type triagePayload struct {
	Importance int    `json:"importance"`
	StoryType  string `json:"story_type"`
}

func TestDecodeJSON_Plain(t *testing.T) {
	t.Parallel()

	var got triagePayload
	if err := DecodeJSON(`{"importance": 72, "story_type": "policy"}`, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Importance != 72 || got.StoryType != "policy" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestDecodeJSON_MarkdownFence(t *testing.T) {
	t.Parallel()

	content := "```json\n{\"importance\": 15, \"story_type\": \"local\"}\n```"
	var got triagePayload
	if err := DecodeJSON(content, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Importance != 15 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestDecodeJSON_SurroundingProse(t *testing.T) {
	t.Parallel()

	content := "Here is the assessment you asked for:\n{\"importance\": 40, \"story_type\": \"scandal\"}\nLet me know if you need more."
	var got triagePayload
	if err := DecodeJSON(content, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Importance != 40 || got.StoryType != "scandal" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestDecodeJSON_ArrayWithBracesInStrings(t *testing.T) {
	t.Parallel()

	content := `The relevant indices are [{"index": 1, "note": "contains } inside"}, {"index": 3, "note": "x"}] as requested.`
	var got []struct {
		Index int `json:"index"`
	}
	if err := DecodeJSON(content, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].Index != 1 || got[1].Index != 3 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestDecodeJSON_NoJSON(t *testing.T) {
	t.Parallel()

	var got triagePayload
	if err := DecodeJSON("I cannot help with that.", &got); err == nil {
		t.Fatalf("expected an error for a response with no JSON")
	}
}
