// internal/agent/models.go
package agent

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// ActionType is an enumeration of all possible actions the planner can decide
// to perform. Values are the identifiers the reasoning service emits.
type ActionType string

const (
	// -- Environmental Interaction --
	ActionNavigate ActionType = "navigate" // Loads args.url.
	ActionClick    ActionType = "click"    // Clicks the element best matching args.intent.
	ActionTypeText ActionType = "type"     // Types args.text into the element best matching args.intent.
	ActionObserve  ActionType = "observe"  // Re-captures the page.
	ActionScroll   ActionType = "scroll"   // Scrolls by args.pixels.

	// -- Collection --
	ActionBookmark ActionType = "bookmark_current_page" // Adds the current URL to the run's bookmarks.

	// -- Sub-protocols (handled by the orchestrator, never dispatched directly) --
	ActionRequestUserInput    ActionType = "request_user_input"
	ActionRequestConfirmation ActionType = "request_confirmation"

	// -- Mission Control --
	ActionFinish ActionType = "finish" // Ends the run successfully.
)

// AllActionTypes is the closed set of recognized actions.
var AllActionTypes = []ActionType{
	ActionNavigate,
	ActionClick,
	ActionTypeText,
	ActionObserve,
	ActionScroll,
	ActionBookmark,
	ActionRequestUserInput,
	ActionRequestConfirmation,
	ActionFinish,
}

// ParseActionType maps a planner identifier onto the recognized set.
func ParseActionType(s string) (ActionType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range AllActionTypes {
		if string(t) == s {
			return t, true
		}
	}
	return ActionType(s), false
}

// Args holds the free-form arguments of a decided action.
type Args map[string]interface{}

// String returns the argument as a string. Non-string scalars are formatted.
func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

// Bool returns the argument as a boolean. Truthy strings ("true", "1") count.
func (a Args) Bool(key string) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

// Int returns the argument as an integer, accepting JSON numbers and numeric
// strings. def is returned when the key is absent or not numeric.
func (a Args) Int(key string, def int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case float32:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return int(n)
		}
	}
	return def
}

// With returns a copy of the args with key set to value.
func (a Args) With(key string, value interface{}) Args {
	out := make(Args, len(a)+1)
	for k, v := range a {
		out[k] = v
	}
	out[key] = value
	return out
}

// PendingAction is the action a confirmation request would perform once approved.
type PendingAction struct {
	Action string `json:"action"`
	Args   Args   `json:"args,omitempty"`
}

// PlanOutput is one decision from the reasoning service.
type PlanOutput struct {
	Milestone     string         `json:"milestone,omitempty"`
	NextAction    string         `json:"next_action"`
	Args          Args           `json:"args,omitempty"`
	Rationale     string         `json:"rationale,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	Message       string         `json:"message,omitempty"`
	PendingAction *PendingAction `json:"pending_action,omitempty"`
}

// EventType categorizes the events a run emits to its observers.
type EventType string

const (
	EventThought             EventType = "thought"
	EventPlan                EventType = "plan"
	EventObservation         EventType = "observation"
	EventMilestone           EventType = "milestone"
	EventStatus              EventType = "status"
	EventError               EventType = "error"
	EventNeedUserInput       EventType = "need_user_input"
	EventRequestConfirmation EventType = "request_confirmation"
)

// Event is a human-readable step transition. Every event is also recorded in
// the run's interaction log under the same kind.
type Event struct {
	Type      EventType   `json:"type"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"-"`
}

// RunStatus is the terminal outcome of a task run.
type RunStatus string

const (
	StatusSuccess       RunStatus = "success"
	StatusNeedUserInput RunStatus = "need_user_input"
	StatusFailed        RunStatus = "failed"
)

// Result is the outcome of a task run.
type Result struct {
	Status    RunStatus `json:"status"`
	Summary   string    `json:"summary"`
	Bookmarks []string  `json:"bookmarks"`
	Steps     int       `json:"steps"`
}

// EventSink receives events synchronously as they are emitted.
type EventSink func(Event)

// UserInputFunc blocks until the user reports that the requested browser
// action is done.
type UserInputFunc func(ctx context.Context, message string) error

// ConfirmationFunc asks the user to approve the pending action.
type ConfirmationFunc func(ctx context.Context, message string, pending PendingAction) (bool, error)

// TaskParams describes one task run. The capabilities are optional: without
// WaitForUserInput a request for user input ends the run, and without
// WaitForConfirmation every confirmation is refused.
type TaskParams struct {
	Goal                string
	OnEvent             EventSink
	WaitForUserInput    UserInputFunc
	WaitForConfirmation ConfirmationFunc
}
