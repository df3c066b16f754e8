// internal/agent/errors.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/webpilot/internal/resolver"
)

// ErrorCode is a string type used for structured error reporting from action executors.
type ErrorCode string

const (
	// -- General Execution Errors --
	ErrCodeExecutionFailure  ErrorCode = "EXECUTION_FAILURE"
	ErrCodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"
	ErrCodeUnknownAction     ErrorCode = "UNKNOWN_ACTION_TYPE"
	// -- Browser/DOM Errors --
	ErrCodeElementNotFound ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeTimeoutError    ErrorCode = "TIMEOUT_ERROR"
	ErrCodeNavigationError ErrorCode = "NAVIGATION_ERROR"

	// -- Internal System Errors --
	ErrCodeExecutorPanic ErrorCode = "EXECUTOR_PANIC"
)

var (
	// ErrStepBudgetExceeded ends a run that used every allowed step.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")
	// ErrTimeBudgetExceeded ends a run that ran past its wall-clock budget.
	ErrTimeBudgetExceeded = errors.New("time budget exceeded")
	// ErrUnknownAction marks an action identifier outside the recognized set.
	ErrUnknownAction = errors.New("unknown action")
	// ErrMissingPendingAction marks a confirmation request with nothing to confirm.
	ErrMissingPendingAction = errors.New("confirmation requested without a pending action")
)

// ActionError is a failed dispatch, classified for the event stream and the planner.
type ActionError struct {
	Code   ErrorCode
	Action ActionType
	Err    error
}

func (e *ActionError) Error() string {
	if e.Code == ErrCodeUnknownAction {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// newActionError wraps err, classifying it unless it already carries an ActionError.
func newActionError(action ActionType, err error) *ActionError {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae
	}
	return &ActionError{Code: ParseBrowserError(err), Action: action, Err: err}
}

func invalidParams(action ActionType, format string, args ...interface{}) error {
	return &ActionError{Code: ErrCodeInvalidParameters, Action: action, Err: fmt.Errorf(format, args...)}
}

// ParseBrowserError maps a raw driver or resolver error onto an ErrorCode using
// typed checks first and message heuristics second.
func ParseBrowserError(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if errors.Is(err, resolver.ErrNoCandidate) {
		return ErrCodeElementNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeoutError
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "net::err") || strings.Contains(errStr, "navigation"):
		return ErrCodeNavigationError
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return ErrCodeTimeoutError
	case strings.Contains(errStr, "no element") || strings.Contains(errStr, "could not find node") || strings.Contains(errStr, "not found"):
		return ErrCodeElementNotFound
	}
	return ErrCodeExecutionFailure
}
