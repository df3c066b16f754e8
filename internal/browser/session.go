// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
)

const (
	defaultNavigationTimeout = 30 * time.Second
	defaultActionTimeout     = 5 * time.Second
	defaultIdleTimeout       = 3 * time.Second
	maxTypeTimeout           = 3 * time.Minute
)

// Session is one Chrome tab driven over CDP. It implements schemas.BrowserDriver.
// A session belongs to a single task run; only that run's step loop issues calls on it.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCancel context.CancelFunc

	mu       sync.Mutex
	isClosed bool
}

var _ schemas.BrowserDriver = (*Session)(nil)

// NewSession launches a browser through an exec allocator and opens its first tab.
// The session outlives ctx; callers must Dispose it.
func NewSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()
	sessionLogger := logger.With(zap.String("session_id", sessionID))

	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), DefaultAllocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sessionLogger.Sugar().Debugf),
		chromedp.WithErrorf(sessionLogger.Sugar().Debugf),
	)

	s := &Session{
		id:          sessionID,
		ctx:         tabCtx,
		cancel:      tabCancel,
		logger:      sessionLogger,
		cfg:         cfg,
		allocCancel: allocCancel,
	}

	if err := s.initialize(ctx); err != nil {
		tabCancel()
		allocCancel()
		return nil, err
	}
	sessionLogger.Info("Browser session started", zap.Bool("headless", cfg.Headless))
	return s, nil
}

// initialize starts the browser and applies viewport and header settings.
func (s *Session) initialize(ctx context.Context) error {
	// The first Run allocates the browser and must not carry a deadline.
	if err := chromedp.Run(s.ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}

	width, height := s.cfg.ViewportWidth, s.cfg.ViewportHeight
	if width <= 0 {
		width = defaultViewportWidth
	}
	if height <= 0 {
		height = defaultViewportHeight
	}

	tasks := chromedp.Tasks{
		emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false),
	}
	if len(s.cfg.Headers) > 0 {
		headers := make(network.Headers, len(s.cfg.Headers))
		for k, v := range s.cfg.Headers {
			headers[k] = v
		}
		tasks = append(tasks, network.Enable(), network.SetExtraHTTPHeaders(headers))
	}

	if err := s.runActions(ctx, tasks); err != nil {
		return fmt.Errorf("failed to run session initialization tasks: %w", err)
	}
	return nil
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Dispose closes the tab and shuts the browser down. It is safe to call more than once.
func (s *Session) Dispose(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	var err error
	if cancelErr := chromedp.Cancel(s.ctx); cancelErr != nil && ctx.Err() == nil {
		err = fmt.Errorf("failed to close browser tab: %w", cancelErr)
	}
	s.cancel()
	s.allocCancel()
	return err
}

func (s *Session) navigationTimeout() time.Duration {
	if s.cfg.NavigationTimeout > 0 {
		return s.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

func (s *Session) actionTimeout() time.Duration {
	if s.cfg.ActionTimeout > 0 {
		return s.cfg.ActionTimeout
	}
	return defaultActionTimeout
}

func (s *Session) idleTimeout() time.Duration {
	if s.cfg.IdleTimeout > 0 {
		return s.cfg.IdleTimeout
	}
	return defaultIdleTimeout
}

// runActions executes chromedp actions bounded by both the session lifetime and ctx.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}

// runWithTimeout is runActions under an additional per-operation deadline.
func (s *Session) runWithTimeout(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	timeoutCtx, cancel := context.WithTimeout(opCtx, timeout)
	defer cancel()

	return chromedp.Run(timeoutCtx, actions...)
}
