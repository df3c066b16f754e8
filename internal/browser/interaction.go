// internal/browser/interaction.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

const (
	scrollSettle = 500 * time.Millisecond
	readyStateJS = `document.readyState === "complete"`
)

// Navigate loads the specified URL, bounded by the navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL", zap.String("url", url))

	timeout := s.navigationTimeout()
	if err := s.runWithTimeout(ctx, timeout, chromedp.Navigate(url)); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("navigation timed out after %s: %w", timeout, err)
		}
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Observe captures the current URL, title and interactive elements of the page.
func (s *Session) Observe(ctx context.Context) (*schemas.PageSnapshot, error) {
	var url, title, payload string
	err := s.runWithTimeout(ctx, s.actionTimeout(),
		chromedp.Location(&url),
		chromedp.Title(&title),
		chromedp.Evaluate(snapshotScript(s.cfg.MaxNodes), &payload),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to capture page snapshot: %w", err)
	}

	snap, err := decodeSnapshot(url, title, payload)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Captured page snapshot", zap.String("url", url), zap.Int("nodes", len(snap.Nodes)))
	return snap, nil
}

// Click clicks the element at the given XPath.
func (s *Session) Click(ctx context.Context, path string) error {
	s.logger.Debug("Attempting to click element", zap.String("path", path))

	action := chromedp.Tasks{
		chromedp.ScrollIntoView(path, chromedp.BySearch),
		chromedp.Click(path, chromedp.BySearch, chromedp.NodeVisible),
	}
	if err := s.runWithTimeout(ctx, s.actionTimeout(), action); err != nil {
		return fmt.Errorf("click action failed for path '%s': %w", path, err)
	}
	return nil
}

// Type clears the element at the given XPath and types text into it.
func (s *Session) Type(ctx context.Context, path, text string, pressEnter bool) error {
	s.logger.Debug("Attempting to type into element", zap.String("path", path), zap.Int("text_length", len(text)), zap.Bool("enter", pressEnter))

	action := chromedp.Tasks{
		chromedp.ScrollIntoView(path, chromedp.BySearch),
		chromedp.Clear(path, chromedp.BySearch, chromedp.NodeVisible),
		chromedp.SendKeys(path, text, chromedp.BySearch),
	}
	if pressEnter {
		action = append(action, chromedp.SendKeys(path, kb.Enter, chromedp.BySearch))
	}

	timeout := s.actionTimeout() + time.Duration(float64(len(text))/2.5)*time.Second
	if timeout > maxTypeTimeout {
		timeout = maxTypeTimeout
	}
	if err := s.runWithTimeout(ctx, timeout, action); err != nil {
		return fmt.Errorf("type action failed for path '%s': %w", path, err)
	}
	return nil
}

// Scroll scrolls the window vertically by pixels and gives the page a moment to settle.
func (s *Session) Scroll(ctx context.Context, pixels int) error {
	s.logger.Debug("Scrolling page", zap.Int("pixels", pixels))

	actions := []chromedp.Action{
		chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d);`, pixels), nil),
		chromedp.Sleep(scrollSettle),
	}
	if err := s.runWithTimeout(ctx, s.actionTimeout(), actions...); err != nil {
		return fmt.Errorf("scroll action failed: %w", err)
	}
	return nil
}

// WaitIdle polls document.readyState for at most the idle timeout.
// Failing to settle is not an error.
func (s *Session) WaitIdle(ctx context.Context) error {
	timeout := s.idleTimeout()
	var ready bool
	err := s.runWithTimeout(ctx, timeout+time.Second,
		chromedp.Poll(readyStateJS, &ready, chromedp.WithPollingTimeout(timeout)),
	)
	if err != nil {
		s.logger.Debug("Page did not settle before idle timeout.", zap.Duration("timeout", timeout), zap.Error(err))
	}
	return nil
}
