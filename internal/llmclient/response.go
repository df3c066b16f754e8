// internal/llmclient/response.go
package llmclient

import (
	"bytes"
	"strings"

	"github.com/tidwall/gjson"
)

// contentPaths are the text fields understood across API dialects, checked in
// this order within each record.
var contentPaths = []string{
	"message.content",           // Ollama chat
	"response",                  // Ollama generate
	"choices.0.message.content", // OpenAI-compatible
	"choices.0.delta.content",   // OpenAI-compatible streaming chunk
}

// ParseCompletionText extracts generated text from a response body holding
// either one JSON document or newline-delimited records. Malformed lines are
// skipped, and fragments are concatenated in arrival order.
func ParseCompletionText(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if gjson.ValidBytes(trimmed) {
		return recordText(gjson.ParseBytes(trimmed))
	}

	var b strings.Builder
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if line == "" || line == "[DONE]" || !gjson.Valid(line) {
			continue
		}
		b.WriteString(recordText(gjson.Parse(line)))
	}
	return b.String()
}

func recordText(record gjson.Result) string {
	if !record.IsObject() {
		return ""
	}
	var b strings.Builder
	for _, path := range contentPaths {
		if v := record.Get(path); v.Type == gjson.String {
			b.WriteString(v.Str)
		}
	}
	return b.String()
}
