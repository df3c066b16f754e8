// cmd/components.go
package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/agent"
	"github.com/xkilldash9x/webpilot/internal/browser"
	"github.com/xkilldash9x/webpilot/internal/config"
	"github.com/xkilldash9x/webpilot/internal/llmclient"
	"github.com/xkilldash9x/webpilot/internal/metrics"
	"github.com/xkilldash9x/webpilot/internal/server"
)

// componentFactory creates the collaborators of one task run. Tests swap in
// fakes so commands run without a browser or a reasoning service.
type componentFactory interface {
	NewLLM(cfg config.Interface, rec *metrics.Recorder, logger *zap.Logger) (schemas.LLMClient, error)
	NewBrowser(ctx context.Context, cfg config.Interface, logger *zap.Logger) (schemas.BrowserDriver, error)
}

type defaultFactory struct{}

func (defaultFactory) NewLLM(cfg config.Interface, rec *metrics.Recorder, logger *zap.Logger) (schemas.LLMClient, error) {
	return llmclient.NewClient(cfg.LLM(), logger, llmclient.WithMetrics(rec))
}

func (defaultFactory) NewBrowser(ctx context.Context, cfg config.Interface, logger *zap.Logger) (schemas.BrowserDriver, error) {
	return browser.NewSession(ctx, cfg.Browser(), logger)
}

// taskRunner returns a RunFunc that gives every run its own reasoning client
// and browser session, released when the run returns.
func taskRunner(cfg config.Interface, factory componentFactory, rec *metrics.Recorder, logger *zap.Logger) server.RunFunc {
	return func(ctx context.Context, params agent.TaskParams) (agent.Result, error) {
		llm, err := factory.NewLLM(cfg, rec, logger)
		if err != nil {
			return agent.Result{}, fmt.Errorf("failed to create reasoning client: %w", err)
		}
		defer func() {
			if err := llm.Close(); err != nil {
				logger.Warn("Failed to close reasoning client", zap.Error(err))
			}
		}()

		driver, err := factory.NewBrowser(ctx, cfg, logger)
		if err != nil {
			return agent.Result{}, fmt.Errorf("failed to start browser: %w", err)
		}
		defer func() {
			// The run's ctx may already be canceled; disposal must still happen.
			if err := driver.Dispose(context.Background()); err != nil {
				logger.Warn("Failed to dispose browser session", zap.Error(err))
			}
		}()

		return agent.New(cfg, llm, driver, logger, agent.WithMetrics(rec)).RunTask(ctx, params)
	}
}
