// File: internal/memory/log.go
package memory

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Kind classifies an entry in the interaction log.
type Kind string

const (
	KindThought             Kind = "thought"
	KindPlan                Kind = "plan"
	KindAction              Kind = "action"
	KindObservation         Kind = "observation"
	KindMilestone           Kind = "milestone"
	KindStatus              Kind = "status"
	KindError               Kind = "error"
	KindNeedUserInput       Kind = "need_user_input"
	KindRequestConfirmation Kind = "request_confirmation"
	KindSummary             Kind = "summary"
)

const (
	// DefaultWindow is the number of most recent items rendered into a digest.
	DefaultWindow = 40
	// DefaultMaxChars caps the digest length. Truncation keeps the tail.
	DefaultMaxChars = 4000

	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// Item is a single timestamped entry.
type Item struct {
	Timestamp time.Time `json:"ts"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
}

// Render formats the item as a single digest line.
func (i Item) Render() string {
	return "[" + i.Timestamp.UTC().Format(timestampLayout) + "] " + strings.ToUpper(string(i.Kind)) + ": " + i.Content
}

// Log is an append-only, time-ordered record of a single task run.
// It is safe for concurrent use, though a run only ever has one writer.
type Log struct {
	mu       sync.Mutex
	items    []Item
	window   int
	maxChars int
	now      func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithWindow sets how many recent items a digest covers.
func WithWindow(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.window = n
		}
	}
}

// WithMaxChars sets the digest length ceiling.
func WithMaxChars(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.maxChars = n
		}
	}
}

// WithClock overrides the time source used by Record.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates an empty log.
func New(opts ...Option) *Log {
	l := &Log{
		window:   DefaultWindow,
		maxChars: DefaultMaxChars,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add appends an item. A timestamp earlier than the last entry is clamped to
// it so the sequence stays monotonic; a zero timestamp is stamped with the
// log's clock.
func (l *Log) Add(item Item) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if item.Timestamp.IsZero() {
		item.Timestamp = l.now()
	}
	if n := len(l.items); n > 0 && item.Timestamp.Before(l.items[n-1].Timestamp) {
		item.Timestamp = l.items[n-1].Timestamp
	}
	l.items = append(l.items, item)
}

// Record appends an item of the given kind stamped with the current time.
func (l *Log) Record(kind Kind, content string) {
	l.Add(Item{Kind: kind, Content: content})
}

// Len returns the number of items recorded.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Items returns a copy of every item in order.
func (l *Log) Items() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Item, len(l.items))
	copy(out, l.items)
	return out
}

// Recent returns a copy of the last n items.
func (l *Log) Recent(n int) []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 {
		return nil
	}
	start := len(l.items) - n
	if start < 0 {
		start = 0
	}
	out := make([]Item, len(l.items)-start)
	copy(out, l.items[start:])
	return out
}

// Rendered returns every item rendered one per line.
func (l *Log) Rendered() string {
	return renderLines(l.Items())
}

// Digest renders the most recent window of items and keeps at most maxChars
// bytes from the end. The result is always a suffix of Rendered.
func (l *Log) Digest() string {
	return Tail(renderLines(l.Recent(l.window)), l.maxChars)
}

func renderLines(items []Item) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(item.Render())
	}
	return b.String()
}

// Tail returns the last max bytes of s, advanced to the next rune boundary
// so a multi-byte character is never split.
func Tail(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := len(s) - max
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}
