// internal/llmutil/parser.go
package llmutil

import (
	"strings"

	json "github.com/json-iterator/go"
)

// ExtractJSONObject returns the substring between the first '{' and the last
// '}' of a model response, discarding any surrounding prose or markdown.
// ok is false when the text holds no such span.
func ExtractJSONObject(text string) (string, bool) {
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first == -1 || last == -1 || last < first {
		return "", false
	}
	return text[first : last+1], true
}

// ExtractDecision decodes the JSON object embedded in a model response into T.
// It never fails loudly: ok is false when no object is found or it does not decode.
func ExtractDecision[T any](text string) (T, bool) {
	var out T
	raw, ok := ExtractJSONObject(text)
	if !ok {
		return out, false
	}
	if err := json.UnmarshalFromString(raw, &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}

// TruncateString truncates s to maxLen bytes, appending "..." when cut.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
