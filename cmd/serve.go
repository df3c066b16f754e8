// cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/webpilot/internal/config"
	"github.com/xkilldash9x/webpilot/internal/metrics"
	"github.com/xkilldash9x/webpilot/internal/observability"
	"github.com/xkilldash9x/webpilot/internal/server"
)

// newServeCmd creates the `serve` command that runs the HTTP and WebSocket front end.
func newServeCmd(factory componentFactory) *cobra.Command {
	var addr string
	var model string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task API and the live event stream",
		Long: `Starts the HTTP API (POST /api/task), the WebSocket event stream (/ws),
/healthz and /metrics. Runs are accepted one at a time; each gets its own browser.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if model != "" {
				cfg.SetLLMModel(model)
			}
			serverCfg := cfg.Server()
			if addr != "" {
				serverCfg.Addr = addr
			}
			return runServe(ctx, cfg, serverCfg, factory, logger)
		},
	}

	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&model, "model", "", "override the reasoning model")
	return serveCmd
}

// runServe runs the hub and the HTTP server until ctx is canceled or either fails.
func runServe(ctx context.Context, cfg config.Interface, serverCfg config.ServerConfig, factory componentFactory, logger *zap.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	srv := server.New(serverCfg, taskRunner(cfg, factory, rec, logger), registry, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Hub().Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Server exited cleanly")
	return nil
}
