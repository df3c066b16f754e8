// internal/llmclient/backoff.go
package llmclient

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// linearBackOff waits step*n before the n-th retry, capped at max. A delay
// announced by the server takes precedence for the next retry only.
type linearBackOff struct {
	step    time.Duration
	max     time.Duration
	attempt int
	next    time.Duration
}

var _ backoff.BackOff = (*linearBackOff)(nil)

func newLinearBackOff(step, max time.Duration) *linearBackOff {
	return &linearBackOff{step: step, max: max}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.next > 0 {
		d := b.next
		b.next = 0
		return d
	}
	d := b.step * time.Duration(b.attempt)
	if b.max > 0 && d > b.max {
		d = b.max
	}
	return d
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
	b.next = 0
}

// honor overrides the next wait with a server-provided delay.
func (b *linearBackOff) honor(d time.Duration) {
	if d > 0 {
		b.next = d
	}
}

// parseRetryAfter reads a Retry-After header in either delta-seconds or
// HTTP-date form. It returns zero when the header is absent or unusable.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
