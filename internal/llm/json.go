package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeJSON unmarshals a model response that should be a single JSON value.
// Markdown code fences and stray prose around the value are tolerated; models
// add both no matter how firmly the prompt says not to.
func DecodeJSON(content string, v any) error {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	block, ok := firstJSONBlock(cleaned)
	if !ok {
		return fmt.Errorf("response contains no JSON value")
	}
	if err := json.Unmarshal([]byte(block), v); err != nil {
		return fmt.Errorf("parse response JSON: %w", err)
	}
	return nil
}

// firstJSONBlock cuts from the first opening brace or bracket to its matching
// close, ignoring brackets inside string literals.
func firstJSONBlock(content string) (string, bool) {
	start := -1
	var open, close rune
	for i, r := range content {
		if r == '{' {
			start, open, close = i, '{', '}'
			break
		}
		if r == '[' {
			start, open, close = i, '[', ']'
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i, r := range content[start:] {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return content[start : start+i+1], true
			}
		}
	}
	return "", false
}
