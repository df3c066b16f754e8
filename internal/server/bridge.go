// internal/server/bridge.go
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/agent"
	"github.com/xkilldash9x/webpilot/internal/eventhub"
)

const (
	defaultInputTimeout   = 10 * time.Minute
	defaultConfirmTimeout = 5 * time.Minute

	// TypeConfirmationRequest announces a pending confirmation and its id.
	TypeConfirmationRequest = "confirmation_request"
)

// ErrInputTimeout is returned when no client reported the user action in time.
var ErrInputTimeout = errors.New("timed out waiting for user input")

// Bridge connects the run's user-input and confirmation waits to WebSocket
// clients. Each wait is resolved by the first matching client frame.
type Bridge struct {
	logger         *zap.Logger
	inputTimeout   time.Duration
	confirmTimeout time.Duration
	broadcast      func(eventhub.Message) error
	now            func() time.Time

	mu      sync.Mutex
	input   chan struct{}
	pending map[string]chan bool
}

// NewBridge creates a bridge that announces confirmations through broadcast.
func NewBridge(inputTimeout, confirmTimeout time.Duration, broadcast func(eventhub.Message) error, logger *zap.Logger) *Bridge {
	if inputTimeout <= 0 {
		inputTimeout = defaultInputTimeout
	}
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}
	return &Bridge{
		logger:         logger.Named("bridge"),
		inputTimeout:   inputTimeout,
		confirmTimeout: confirmTimeout,
		broadcast:      broadcast,
		now:            time.Now,
		pending:        make(map[string]chan bool),
	}
}

// Handle resolves a pending wait from a client frame.
func (b *Bridge) Handle(msg eventhub.ClientMessage) {
	switch msg.Type {
	case eventhub.TypeUserInputDone:
		b.mu.Lock()
		ch := b.input
		b.input = nil
		b.mu.Unlock()
		if ch == nil {
			b.logger.Debug("User input reported with no pending request")
			return
		}
		close(ch)

	case eventhub.TypeConfirmation:
		b.mu.Lock()
		id := msg.ID
		if id == "" && len(b.pending) == 1 {
			for only := range b.pending {
				id = only
			}
		}
		ch, ok := b.pending[id]
		delete(b.pending, id)
		b.mu.Unlock()
		if !ok {
			b.logger.Warn("Confirmation for unknown request", zap.String("id", msg.ID))
			return
		}
		ch <- msg.Approved

	default:
		b.logger.Warn("Unsupported client message type", zap.String("type", msg.Type))
	}
}

// WaitForUserInput blocks until a client reports the action done. It fails
// with ErrInputTimeout after the input timeout.
func (b *Bridge) WaitForUserInput(ctx context.Context, message string) error {
	ch := make(chan struct{})
	b.mu.Lock()
	b.input = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		if b.input == ch {
			b.input = nil
		}
		b.mu.Unlock()
	}()

	b.logger.Info("Waiting for user input", zap.String("message", message))
	timer := time.NewTimer(b.inputTimeout)
	defer timer.Stop()

	select {
	case <-ch:
		return nil
	case <-timer.C:
		return ErrInputTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitForConfirmation announces the pending action and blocks for a client's
// answer. A timeout counts as a refusal.
func (b *Bridge) WaitForConfirmation(ctx context.Context, message string, pending agent.PendingAction) (bool, error) {
	id := uuid.New().String()
	ch := make(chan bool, 1)
	b.mu.Lock()
	b.pending[id] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	if b.broadcast != nil {
		if err := b.broadcast(eventhub.Message{
			Type:    TypeConfirmationRequest,
			Message: message,
			Data:    map[string]interface{}{"id": id, "pending_action": pending},
			TS:      b.now().UnixMilli(),
		}); err != nil {
			return false, err
		}
	}

	timer := time.NewTimer(b.confirmTimeout)
	defer timer.Stop()

	select {
	case approved := <-ch:
		return approved, nil
	case <-timer.C:
		b.logger.Warn("Confirmation timed out, treating as declined", zap.String("id", id))
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
