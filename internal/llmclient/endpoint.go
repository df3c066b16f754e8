// internal/llmclient/endpoint.go
package llmclient

import (
	"net/url"
	"strings"
)

const (
	openAIHost     = "api.openai.com"
	ollamaHost     = "ollama.com"
	ollamaPort     = "11434"
	completionPath = "/chat/completions"
	ollamaChatPath = "/api/chat"
)

// NormalizeEndpoint maps a configured base URL onto a concrete chat endpoint:
//
//   - already a completions path: used as is
//   - Ollama (ollama.com or port 11434): /api/chat
//   - api.openai.com: /v1/chat/completions
//   - anything else: <base>/chat/completions
func NormalizeEndpoint(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")

	switch {
	case strings.HasSuffix(base, completionPath), strings.HasSuffix(base, ollamaChatPath):
		return base
	case isOllama(base):
		if strings.HasSuffix(base, "/api") {
			return base + "/chat"
		}
		return base + ollamaChatPath
	case hostname(base) == openAIHost:
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
		return base + completionPath
	default:
		return base + completionPath
	}
}

// RequiresCredential reports whether calls to endpoint must carry an API key.
// Only the public managed provider insists on one.
func RequiresCredential(endpoint string) bool {
	return hostname(endpoint) == openAIHost
}

func isOllama(base string) bool {
	u, err := url.Parse(base)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == ollamaHost || strings.HasSuffix(host, "."+ollamaHost) || u.Port() == ollamaPort
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
