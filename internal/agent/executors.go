// internal/agent/executors.go
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/resolver"
)

const (
	defaultScrollPixels = 800
	defaultClickIntent  = "primary action"
	defaultTypeIntent   = "search"
)

// ActionHandler performs one action against the browser.
type ActionHandler func(ctx context.Context, args Args) error

// emitFunc publishes an event to the run's observers and its interaction log.
type emitFunc func(t EventType, message string, data interface{})

// -- Executor Registry --

// ExecutorRegistry maps every ActionType onto its handler for a single run.
// It owns the run's bookmark set.
type ExecutorRegistry struct {
	logger        *zap.Logger
	driver        schemas.BrowserDriver
	resolver      *resolver.Resolver
	emit          emitFunc
	defaultScroll int
	handlers      map[ActionType]ActionHandler

	bookmarks  []string
	bookmarked map[string]struct{}
}

// NewExecutorRegistry creates a registry with the full handler table.
func NewExecutorRegistry(logger *zap.Logger, driver schemas.BrowserDriver, res *resolver.Resolver, defaultScroll int, emit emitFunc) *ExecutorRegistry {
	if defaultScroll == 0 {
		defaultScroll = defaultScrollPixels
	}
	if emit == nil {
		emit = func(EventType, string, interface{}) {}
	}
	r := &ExecutorRegistry{
		logger:        logger.Named("executor_registry"),
		driver:        driver,
		resolver:      res,
		emit:          emit,
		defaultScroll: defaultScroll,
		handlers:      make(map[ActionType]ActionHandler),
		bookmarked:    make(map[string]struct{}),
	}
	r.registerHandlers()
	return r
}

func (r *ExecutorRegistry) registerHandlers() {
	r.handlers[ActionNavigate] = r.handleNavigate
	r.handlers[ActionClick] = r.handleClick
	r.handlers[ActionTypeText] = r.handleType
	r.handlers[ActionObserve] = r.handleObserve
	r.handlers[ActionScroll] = r.handleScroll
	r.handlers[ActionBookmark] = r.handleBookmark
	r.handlers[ActionFinish] = r.handleFinish
	r.handlers[ActionRequestUserInput] = r.refuseUserInput
	r.handlers[ActionRequestConfirmation] = r.refuseConfirmation
}

// Bookmarks returns the collected URLs in first-bookmark order.
func (r *ExecutorRegistry) Bookmarks() []string {
	return append([]string{}, r.bookmarks...)
}

// Execute finds the handler for the action and runs it. Every failure is an
// *ActionError; a panicking handler is reported as ErrCodeExecutorPanic.
func (r *ExecutorRegistry) Execute(ctx context.Context, action ActionType, args Args) (err error) {
	handler, ok := r.handlers[action]
	if !ok {
		return &ActionError{
			Code:   ErrCodeUnknownAction,
			Action: action,
			Err:    fmt.Errorf("%w %s", ErrUnknownAction, action),
		}
	}
	if args == nil {
		args = Args{}
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Action handler panicked", zap.String("action", string(action)), zap.Any("panic", p))
			err = &ActionError{Code: ErrCodeExecutorPanic, Action: action, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	if err := handler(ctx, args); err != nil {
		actionErr := newActionError(action, err)
		r.logger.Warn("Browser action execution failed",
			zap.String("action", string(action)),
			zap.String("error_code", string(actionErr.Code)),
			zap.Error(err))
		return actionErr
	}
	return nil
}

// -- Action Handlers --

func (r *ExecutorRegistry) handleNavigate(ctx context.Context, args Args) error {
	url := args.String("url")
	if url == "" {
		return invalidParams(ActionNavigate, "navigate requires args.url")
	}
	r.emit(EventStatus, "Navigate -> "+url, nil)

	if err := r.driver.Navigate(ctx, url); err != nil {
		return err
	}
	_ = r.driver.WaitIdle(ctx)
	snap, err := r.driver.Observe(ctx)
	if err != nil {
		return err
	}
	r.emit(EventObservation, fmt.Sprintf("Navigated to %s (%s)", snap.Title, snap.URL), nil)
	return nil
}

func (r *ExecutorRegistry) handleClick(ctx context.Context, args Args) error {
	intent := args.String("intent")
	if intent == "" {
		intent = args.String("target")
	}
	if intent == "" {
		intent = defaultClickIntent
	}
	r.emit(EventStatus, "Click by intent -> "+intent, nil)

	snap, err := r.driver.Observe(ctx)
	if err != nil {
		return err
	}
	best, err := r.resolver.Resolve(snap.Nodes, intent, r.resolver.DispatchTopK())
	if err != nil {
		return err
	}
	if err := r.driver.Click(ctx, best.Node.Path); err != nil {
		return err
	}
	_ = r.driver.WaitIdle(ctx)

	r.emit(EventObservation, "Clicked "+describeNode(best.Node), map[string]interface{}{
		"path":  best.Node.Path,
		"title": snap.Title,
	})
	return nil
}

func (r *ExecutorRegistry) handleType(ctx context.Context, args Args) error {
	intent := args.String("intent")
	if intent == "" {
		intent = defaultTypeIntent
	}
	text := args.String("text")
	pressEnter := args.Bool("pressEnter")
	r.emit(EventStatus, fmt.Sprintf("Type by intent -> %s: %s", intent, text), nil)

	snap, err := r.driver.Observe(ctx)
	if err != nil {
		return err
	}
	best, err := r.resolver.Resolve(resolver.FilterTypable(snap.Nodes), intent, r.resolver.DispatchTopK())
	if err != nil {
		return err
	}
	if err := r.driver.Type(ctx, best.Node.Path, text, pressEnter); err != nil {
		return err
	}
	_ = r.driver.WaitIdle(ctx)

	r.emit(EventObservation, "Typed into "+describeNode(best.Node), map[string]interface{}{
		"path":       best.Node.Path,
		"pressEnter": pressEnter,
	})
	return nil
}

func (r *ExecutorRegistry) handleObserve(ctx context.Context, _ Args) error {
	snap, err := r.driver.Observe(ctx)
	if err != nil {
		return err
	}
	r.emit(EventObservation, fmt.Sprintf("%s @ %s (%d elements)", snap.Title, snap.URL, len(snap.Nodes)), nil)
	return nil
}

func (r *ExecutorRegistry) handleScroll(ctx context.Context, args Args) error {
	pixels := args.Int("pixels", r.defaultScroll)
	r.emit(EventStatus, fmt.Sprintf("Scroll -> %dpx", pixels), nil)

	if err := r.driver.Scroll(ctx, pixels); err != nil {
		return err
	}
	_ = r.driver.WaitIdle(ctx)
	snap, err := r.driver.Observe(ctx)
	if err != nil {
		return err
	}
	r.emit(EventObservation, fmt.Sprintf("%s @ %s", snap.Title, snap.URL), nil)
	return nil
}

func (r *ExecutorRegistry) handleBookmark(ctx context.Context, _ Args) error {
	snap, err := r.driver.Observe(ctx)
	if err != nil {
		return err
	}
	if _, seen := r.bookmarked[snap.URL]; !seen {
		r.bookmarked[snap.URL] = struct{}{}
		r.bookmarks = append(r.bookmarks, snap.URL)
	}
	r.emit(EventMilestone, "Bookmarked: "+snap.Title, snap.URL)
	return nil
}

func (r *ExecutorRegistry) handleFinish(_ context.Context, args Args) error {
	msg := "Finish requested"
	if summary := args.String("summary"); summary != "" {
		msg += ": " + summary
	}
	r.emit(EventStatus, msg, nil)
	return nil
}

// The sub-protocol actions are run by the orchestrator. Reaching the table
// means the decision was incomplete.
func (r *ExecutorRegistry) refuseUserInput(context.Context, Args) error {
	return invalidParams(ActionRequestUserInput, "request_user_input cannot be dispatched directly")
}

func (r *ExecutorRegistry) refuseConfirmation(context.Context, Args) error {
	return &ActionError{Code: ErrCodeInvalidParameters, Action: ActionRequestConfirmation, Err: ErrMissingPendingAction}
}
