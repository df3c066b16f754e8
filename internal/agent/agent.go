// internal/agent/agent.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
	"github.com/xkilldash9x/webpilot/internal/memory"
	"github.com/xkilldash9x/webpilot/internal/metrics"
	"github.com/xkilldash9x/webpilot/internal/resolver"
)

const (
	defaultMaxSteps    = 80
	defaultTimeBudget  = 300 * time.Second
	defaultSummaryTail = 1000

	defaultUserInputMessage    = "Please complete the required action in the browser."
	defaultConfirmationMessage = "Confirm this action?"
)

// Agent runs tasks against one browser session. Runs on the same Agent must
// not overlap: the session has a single writer.
type Agent struct {
	cfg           config.AgentConfig
	defaultScroll int
	logger        *zap.Logger
	planner       *Planner
	driver        schemas.BrowserDriver
	resolver      *resolver.Resolver
	metrics       *metrics.Recorder
	now           func() time.Time
}

// Option configures an Agent.
type Option func(*Agent)

// WithMetrics records run, step and action counters.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(a *Agent) { a.metrics = rec }
}

// WithClock replaces the wall clock used for the time budget and timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// New creates an agent that plans with llm and acts through driver.
func New(cfg config.Interface, llm schemas.LLMClient, driver schemas.BrowserDriver, logger *zap.Logger, opts ...Option) *Agent {
	agentCfg := cfg.Agent()
	if agentCfg.MaxSteps <= 0 {
		agentCfg.MaxSteps = defaultMaxSteps
	}
	if agentCfg.TimeBudget <= 0 {
		agentCfg.TimeBudget = defaultTimeBudget
	}
	if agentCfg.SummaryTail <= 0 {
		agentCfg.SummaryTail = defaultSummaryTail
	}

	a := &Agent{
		cfg:           agentCfg,
		defaultScroll: cfg.Browser().DefaultScroll,
		logger:        logger.Named("agent"),
		planner:       NewPlanner(llm, logger, agentCfg.SnapshotChars),
		driver:        driver,
		resolver:      resolver.New(cfg.Resolver(), logger),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// run is the mutable state of a single task run.
type run struct {
	id        string
	goal      string
	logger    *zap.Logger
	log       *memory.Log
	sink      EventSink
	now       func() time.Time
	executors *ExecutorRegistry
	snapshot  *schemas.PageSnapshot
	steps     int
}

func (r *run) emit(t EventType, message string, data interface{}) {
	ev := Event{Type: t, Message: message, Data: data, Timestamp: r.now()}
	if r.sink != nil {
		r.sink(ev)
	}
	content := message
	if content == "" {
		content, _ = json.MarshalToString(ev)
	}
	r.log.Add(memory.Item{Timestamp: ev.Timestamp, Kind: memory.Kind(t), Content: content})
	r.logger.Debug("Agent event", zap.String("type", string(t)), zap.String("message", message))
}

// RunTask drives the browser toward params.Goal until the planner finishes,
// the user is needed, or a budget runs out. The returned error is non-nil only
// when the run was aborted by the reasoning service or by ctx.
func (a *Agent) RunTask(ctx context.Context, params TaskParams) (Result, error) {
	r := &run{
		id:   uuid.New().String(),
		goal: params.Goal,
		sink: params.OnEvent,
		now:  a.now,
		log:  memory.New(memory.WithClock(a.now)),
	}
	r.logger = a.logger.With(zap.String("run_id", r.id))
	r.executors = NewExecutorRegistry(r.logger, a.driver, a.resolver, a.defaultScroll, r.emit)

	start := a.now()
	r.logger.Info("Task run started", zap.String("goal", params.Goal))

	result, err := a.loop(ctx, r, params, start)
	result.Bookmarks = r.executors.Bookmarks()
	result.Steps = r.steps

	a.metrics.RunFinished(string(result.Status))
	r.logger.Info("Task run finished",
		zap.String("status", string(result.Status)),
		zap.Int("steps", r.steps),
		zap.Duration("elapsed", a.now().Sub(start)),
		zap.Error(err))
	return result, err
}

func (a *Agent) loop(ctx context.Context, r *run, params TaskParams, start time.Time) (Result, error) {
	r.emit(EventStatus, "Starting task execution...", nil)

	if a.cfg.DecomposeGoal {
		a.decompose(ctx, r)
	}

	for {
		if err := ctx.Err(); err != nil {
			return a.abort(r, err)
		}
		if r.steps >= a.cfg.MaxSteps {
			r.logger.Warn("Run stopped", zap.Error(ErrStepBudgetExceeded), zap.Int("max_steps", a.cfg.MaxSteps))
			r.emit(EventError, fmt.Sprintf("Maximum steps (%d) exceeded", a.cfg.MaxSteps), nil)
			return failed(fmt.Sprintf("Task could not be completed within %d steps", a.cfg.MaxSteps)), nil
		}
		if a.now().Sub(start) > a.cfg.TimeBudget {
			r.logger.Warn("Run stopped", zap.Error(ErrTimeBudgetExceeded), zap.Duration("time_budget", a.cfg.TimeBudget))
			r.emit(EventError, "Execution timeout reached", nil)
			return failed(fmt.Sprintf("Task execution timed out after %ds", int(a.cfg.TimeBudget.Seconds()))), nil
		}

		r.steps++
		a.metrics.StepStarted()

		plan, err := a.planner.Decide(ctx, r.goal, r.log.Digest(), r.snapshot)
		if err != nil {
			if ctx.Err() != nil {
				return a.abort(r, ctx.Err())
			}
			r.emit(EventError, "Reasoning service failed: "+err.Error(), nil)
			return failed(err.Error()), err
		}
		if plan.Milestone != "" {
			r.emit(EventMilestone, plan.Milestone, nil)
		}
		rationale := plan.Rationale
		if rationale == "" {
			rationale = "Processing..."
		}
		r.emit(EventThought, rationale, nil)

		action, _ := ParseActionType(plan.NextAction)

		switch {
		case action == ActionRequestUserInput:
			done, result, err := a.awaitUserInput(ctx, r, params, plan)
			if done {
				return result, err
			}
			continue

		case action == ActionRequestConfirmation && plan.PendingAction != nil:
			finished, err := a.awaitConfirmation(ctx, r, params, plan)
			if err != nil {
				return a.abort(r, err)
			}
			if finished {
				return a.complete(r, start), nil
			}
			r.snapshot = a.refresh(ctx, r, "Failed to observe after confirmation")
			continue
		}

		if a.cfg.ReflectEvery > 0 && r.steps%a.cfg.ReflectEvery == 0 {
			a.reflect(ctx, r, "Reflection: ")
		}

		args := plan.Args
		if action == ActionFinish && plan.Summary != "" && args.String("summary") == "" {
			args = args.With("summary", plan.Summary)
		}

		if err := a.execute(ctx, r, action, args); err != nil {
			r.emit(EventThought, "Action failed, observing page state...", nil)
			_ = a.execute(ctx, r, ActionObserve, nil)
			a.reflect(ctx, r, "After failure: ")
		} else if action == ActionFinish {
			return a.complete(r, start), nil
		}

		r.snapshot = a.refresh(ctx, r, "Failed to update page snapshot")
	}
}

// execute dispatches one action and reports its failure as an error event.
func (a *Agent) execute(ctx context.Context, r *run, action ActionType, args Args) error {
	err := r.executors.Execute(ctx, action, args)
	label := string(action)
	if _, known := ParseActionType(label); !known {
		// Planner output is unbounded; keep the metric's label set closed.
		label = "unknown"
	}
	a.metrics.ActionExecuted(label, err == nil)
	if err != nil {
		var data interface{}
		var ae *ActionError
		if errors.As(err, &ae) {
			data = map[string]interface{}{"code": string(ae.Code), "action": string(ae.Action)}
		}
		r.emit(EventError, err.Error(), data)
	}
	return err
}

// awaitUserInput runs the user-input sub-protocol. done reports that the run is over.
func (a *Agent) awaitUserInput(ctx context.Context, r *run, params TaskParams, plan PlanOutput) (done bool, result Result, err error) {
	message := plan.Message
	if message == "" {
		message = plan.Args.String("message")
	}
	if message == "" {
		message = defaultUserInputMessage
	}
	r.emit(EventNeedUserInput, message, nil)

	if params.WaitForUserInput == nil {
		return true, Result{Status: StatusNeedUserInput, Summary: message}, nil
	}
	if err := params.WaitForUserInput(ctx, message); err != nil {
		if ctx.Err() != nil {
			result, err := a.abort(r, ctx.Err())
			return true, result, err
		}
		r.emit(EventError, "User input was not completed: "+err.Error(), nil)
		return true, failed("User input was not completed: " + err.Error()), err
	}

	r.snapshot = a.refresh(ctx, r, "Failed to observe after user input")
	return false, Result{}, nil
}

// awaitConfirmation runs the confirmation sub-protocol. finished reports that a
// confirmed finish ended the run; a non-nil error means ctx was canceled.
func (a *Agent) awaitConfirmation(ctx context.Context, r *run, params TaskParams, plan PlanOutput) (finished bool, err error) {
	pending := *plan.PendingAction
	message := plan.Message
	if message == "" {
		message = defaultConfirmationMessage
	}
	r.emit(EventRequestConfirmation, message, pending)

	confirmed := false
	if params.WaitForConfirmation != nil {
		ok, err := params.WaitForConfirmation(ctx, message, pending)
		switch {
		case ctx.Err() != nil:
			return false, ctx.Err()
		case err != nil:
			r.logger.Warn("Confirmation failed, treating as declined", zap.Error(err))
		default:
			confirmed = ok
		}
	}

	if !confirmed {
		r.emit(EventThought, "User declined. Observing page.", nil)
		_ = a.execute(ctx, r, ActionObserve, nil)
		return false, nil
	}

	action, _ := ParseActionType(pending.Action)
	if err := a.execute(ctx, r, action, pending.Args); err != nil {
		r.emit(EventThought, "Action failed after confirmation, observing...", nil)
		_ = a.execute(ctx, r, ActionObserve, nil)
		return false, nil
	}
	return action == ActionFinish, nil
}

// reflect runs the self-critique pass. Its failure never ends the run.
func (a *Agent) reflect(ctx context.Context, r *run, prefix string) {
	adjustment, err := a.planner.Reflect(ctx, r.goal, r.log.Digest())
	if err != nil {
		r.logger.Warn("Reflection skipped", zap.Error(err))
		return
	}
	if adjustment != "" {
		r.emit(EventThought, prefix+adjustment, nil)
	}
}

func (a *Agent) decompose(ctx context.Context, r *run) {
	steps, err := a.planner.Decompose(ctx, r.goal)
	if err != nil {
		r.logger.Warn("Goal decomposition failed, continuing without a plan", zap.Error(err))
		return
	}
	numbered := make([]string, len(steps))
	for i, s := range steps {
		numbered[i] = fmt.Sprintf("%d. %s", i+1, s)
	}
	r.emit(EventPlan, "Plan: "+strings.Join(numbered, "; "), steps)
}

// refresh re-captures the page. A failure is reported and the previous
// snapshot is kept.
func (a *Agent) refresh(ctx context.Context, r *run, failureMessage string) *schemas.PageSnapshot {
	snap, err := a.driver.Observe(ctx)
	if err != nil {
		r.emit(EventError, fmt.Sprintf("%s: %v", failureMessage, err), nil)
		return r.snapshot
	}
	return snap
}

func (a *Agent) complete(r *run, start time.Time) Result {
	r.emit(EventStatus, fmt.Sprintf("Task completed in %.2fs", a.now().Sub(start).Seconds()), nil)
	return Result{Status: StatusSuccess, Summary: memory.Tail(r.log.Digest(), a.cfg.SummaryTail)}
}

func (a *Agent) abort(r *run, err error) (Result, error) {
	r.emit(EventError, "Task canceled: "+err.Error(), nil)
	return failed("Task canceled: " + err.Error()), err
}

func failed(summary string) Result {
	return Result{Status: StatusFailed, Summary: summary}
}
