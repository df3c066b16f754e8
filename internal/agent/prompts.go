// internal/agent/prompts.go
package agent

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

const (
	// DefaultSnapshotChars caps the page summary sent to the planner.
	DefaultSnapshotChars = 3200

	summaryLineMax   = 120
	summaryTextMax   = 60
	summaryAttrMax   = 40
	truncationMarker = "\n... (truncated)"
	noPageMarker     = "No page loaded yet."
)

const plannerSystemPrompt = `You are an autonomous web agent. You receive the user's goal, a memory of what happened so far and the current page content (URL, title, elements). From that you decide the single next action. There are no preset rules; infer what to do from the goal and the page.

Available actions:
    - navigate: load a URL. (args: {"url": "https://..."})
    - click: click the element that best matches a short intent phrase. (args: {"intent": "sign in"})
    - type: type text into the field that best matches an intent. (args: {"intent": "search", "text": "...", "pressEnter": true})
    - scroll: scroll the page vertically. (args: {"pixels": 800})
    - observe: re-read the current page. (args: {})
    - bookmark_current_page: remember the current URL as a result. (args: {})
    - request_user_input: ask the user to do something in the browser (log in, solve a captcha). Put the request in "message".
    - request_confirmation: ask before a destructive or irreversible action. Put the question in "message" and the action in "pending_action": {"action": "...", "args": {...}}.
    - finish: the goal is achieved. Put a short result in "summary".

Respond with a single JSON object with these fields:
{"milestone": "optional progress note", "next_action": "<action>", "args": {...}, "rationale": "why", "summary": "only for finish", "message": "for user requests", "pending_action": {"action": "...", "args": {...}}}`

const reflectionSystemPrompt = `From the goal and history you infer whether we are stuck or blocked; if so, suggest one next step.`

const decompositionSystemPrompt = `You are a task planner for a web automation agent.`

// buildPlannerPrompt renders the user turn of a planning request.
func buildPlannerPrompt(goal, digest string, snap *schemas.PageSnapshot, maxChars int) string {
	page := noPageMarker
	if snap != nil {
		page = "Current page:\n" + PageSummary(snap, maxChars)
	}
	return fmt.Sprintf("Goal: %s\n\nMemory:\n%s\n\n%s\n\nFrom the goal and current page content, decide the single next step. Return JSON only.",
		goal, digest, page)
}

func buildReflectionPrompt(goal, digest string) string {
	return fmt.Sprintf("Goal: %s\nRecent:\n%s\n\nFrom this, are we stuck or blocked? If yes, suggest one next step. If we are making progress, return {}. Return JSON {\"adjustment\": \"...\"}.",
		goal, digest)
}

func buildDecompositionPrompt(goal string) string {
	return fmt.Sprintf(`User goal: %q

Break this goal into a clear, ordered list of concrete browser actions.
Rules:
- Each step must be atomic and executable in a browser
- Use natural language
- If the goal requires multiple items, repeat actions until the count is satisfied.
- Never stop after a single successful item if more are required.
- Use scroll when content may be below the fold.
- Ask the user for input if it is required.

Return JSON:
{"steps": ["...", "..."]}`, goal)
}

// PageSummary renders a compact, line-per-element description of the snapshot
// bounded by maxChars (DefaultSnapshotChars when non-positive).
func PageSummary(snap *schemas.PageSnapshot, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultSnapshotChars
	}

	lines := make([]string, 0, len(snap.Nodes)+3)
	lines = append(lines,
		"URL: "+snap.URL,
		"Title: "+snap.Title,
		"Elements (tag [type] role text placeholder aria):",
	)
	for _, n := range snap.Nodes {
		lines = append(lines, summarizeNode(n))
	}

	full := strings.Join(lines, "\n")
	if len(full) <= maxChars {
		return full
	}
	cut := maxChars - 50
	if cut < 0 {
		cut = 0
	}
	return truncateRunes(full, cut) + truncationMarker
}

func summarizeNode(n schemas.DomNode) string {
	parts := []string{n.Tag}
	if n.Type != "" && n.Tag == "input" {
		parts = append(parts, "["+n.Type+"]")
	}
	if n.Role != "" {
		parts = append(parts, "role="+n.Role)
	}
	if n.Text != "" {
		parts = append(parts, `"`+truncateRunes(n.Text, summaryTextMax)+`"`)
	}
	if n.Placeholder != "" {
		parts = append(parts, `placeholder="`+truncateRunes(n.Placeholder, summaryAttrMax)+`"`)
	}
	if n.AriaLabel != "" {
		parts = append(parts, `aria="`+truncateRunes(n.AriaLabel, summaryAttrMax)+`"`)
	}
	if n.Name != "" && n.Tag == "input" {
		parts = append(parts, "name="+n.Name)
	}

	line := strings.Join(parts, " ")
	if len(line) > summaryLineMax {
		return truncateRunes(line, summaryLineMax-3) + "..."
	}
	return line
}

// describeNode returns a short human label for an element.
func describeNode(n schemas.DomNode) string {
	for _, label := range []string{n.Text, n.AriaLabel, n.Placeholder, n.Name, n.ID} {
		if label = strings.TrimSpace(label); label != "" {
			return fmt.Sprintf("%s %q", n.Tag, truncateRunes(label, summaryTextMax))
		}
	}
	return n.Tag
}

// truncateRunes cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
