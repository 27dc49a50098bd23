package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// decodeList decodes an LLM response expected to be a JSON array.
// Markdown fences are stripped first. On a failed direct decode it
// tries jsonrepair, then salvages a truncated array by closing it after
// the last complete item.
func decodeList[T any](raw string) ([]T, error) {
	s := stripFences(raw)
	if i := strings.IndexByte(s, '['); i >= 0 {
		s = s[i:]
	}

	var out []T
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out, nil
	}
	if fixed, err := jsonrepair.JSONRepair(s); err == nil {
		if err := json.Unmarshal([]byte(fixed), &out); err == nil {
			return out, nil
		}
	}
	if closed, ok := closeTruncatedArray(s); ok {
		if err := json.Unmarshal([]byte(closed), &out); err == nil {
			return out, nil
		}
	}
	return nil, fmt.Errorf("extract: response is not a JSON array")
}

// decodeObject decodes an LLM response expected to be a single JSON
// object, with the same salvage chain as [decodeList].
func decodeObject(raw string, v any) error {
	s := stripFences(raw)
	if i := strings.IndexByte(s, '{'); i >= 0 {
		s = s[i:]
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	fixed, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return fmt.Errorf("extract: response is not a JSON object: %w", err)
	}
	if err := json.Unmarshal([]byte(fixed), v); err != nil {
		return fmt.Errorf("extract: response is not a JSON object: %w", err)
	}
	return nil
}

// stripFences removes a surrounding markdown code fence, with or
// without a language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		first := strings.TrimSpace(s[:i])
		if len(first) <= 8 && !strings.ContainsAny(first, "[{") {
			s = s[i+1:]
		}
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// closeTruncatedArray cuts a truncated JSON array back to its last
// complete top-level item and closes it. Returns false when the input
// has no salvageable prefix.
func closeTruncatedArray(s string) (string, bool) {
	if len(s) == 0 || s[0] != '[' {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	lastComplete := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 1 {
				// A top-level item just closed.
				lastComplete = i
			}
			if depth == 0 {
				// The array itself closed; nothing to salvage.
				return "", false
			}
		}
	}
	if lastComplete < 0 {
		return "", false
	}
	return s[:lastComplete+1] + "]", true
}
