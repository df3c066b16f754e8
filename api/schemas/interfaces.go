package schemas

import (
	"context"
)

// -- Browser Driver Interface --

// BrowserDriver is the capability the agent uses to act on a live page.
// Elements are addressed by the Path of a DomNode from the latest snapshot.
type BrowserDriver interface {
	// Navigate loads the given URL in the current tab.
	Navigate(ctx context.Context, url string) error
	// Observe captures a fresh snapshot of the page.
	Observe(ctx context.Context) (*PageSnapshot, error)
	// Click clicks the element at path.
	Click(ctx context.Context, path string) error
	// Type replaces the value of the element at path, optionally pressing Enter afterwards.
	Type(ctx context.Context, path, text string, pressEnter bool) error
	// Scroll scrolls the page vertically by the given number of pixels.
	Scroll(ctx context.Context, pixels int) error
	// WaitIdle waits, bounded, for the page to settle. It never fails the caller's step.
	WaitIdle(ctx context.Context) error
	// Dispose releases the browser session.
	Dispose(ctx context.Context) error
}

// -- LLM Interfaces --

// Role tags a message in a conversation with the reasoning service.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Reflection and other lightweight calls.
	TierPowerful ModelTier = "powerful" // Planning.
)

// GenerationOptions controls a single completion.
// Zero values let the client apply its defaults.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

// GenerationRequest encapsulates a complete request to the LLM: the ordered
// conversation, the desired model tier and generation options.
type GenerationRequest struct {
	Messages []ChatMessage     `json:"messages"`
	Tier     ModelTier         `json:"tier"`
	Options  GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider.
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}
