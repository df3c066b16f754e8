// File: internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "webpilot"

// Recorder owns the Prometheus collectors for task runs and reasoning calls.
// Every method is safe to call on a nil *Recorder, which records nothing.
type Recorder struct {
	runs              *prometheus.CounterVec
	steps             prometheus.Counter
	actions           *prometheus.CounterVec
	reasoningRequests *prometheus.CounterVec
	reasoningRetries  prometheus.Counter
	reasoningDuration prometheus.Histogram
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Task runs by terminal status.",
		}, []string{"status"}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Orchestrator steps started.",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Dispatched actions by type and outcome.",
		}, []string{"action", "outcome"}),
		reasoningRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_requests_total",
			Help:      "Reasoning service calls by outcome.",
		}, []string{"outcome"}),
		reasoningRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_retries_total",
			Help:      "Reasoning service attempts that were retried.",
		}),
		reasoningDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reasoning_request_duration_seconds",
			Help:      "Wall time of a reasoning service call including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
	}

	for _, c := range []prometheus.Collector{
		r.runs, r.steps, r.actions, r.reasoningRequests, r.reasoningRetries, r.reasoningDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RunFinished counts a run that ended with status.
func (r *Recorder) RunFinished(status string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(status).Inc()
}

// StepStarted counts one orchestrator step.
func (r *Recorder) StepStarted() {
	if r == nil {
		return
	}
	r.steps.Inc()
}

// ActionExecuted counts a dispatched action.
func (r *Recorder) ActionExecuted(action string, ok bool) {
	if r == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	r.actions.WithLabelValues(action, outcome).Inc()
}

// ReasoningRequest records a completed reasoning call.
func (r *Recorder) ReasoningRequest(ok bool, elapsed time.Duration) {
	if r == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	r.reasoningRequests.WithLabelValues(outcome).Inc()
	r.reasoningDuration.Observe(elapsed.Seconds())
}

// ReasoningRetry counts one retried attempt.
func (r *Recorder) ReasoningRetry() {
	if r == nil {
		return
	}
	r.reasoningRetries.Inc()
}
