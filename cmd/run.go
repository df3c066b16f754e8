// cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/agent"
	"github.com/xkilldash9x/webpilot/internal/config"
	"github.com/xkilldash9x/webpilot/internal/observability"
)

type runOptions struct {
	headless    bool
	interactive bool
	model       string
}

// newRunCmd creates the `run` command, one task run against a local Chrome.
func newRunCmd(factory componentFactory) *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run [goal...]",
		Short: "Run a single task in a locally launched browser",
		Long: `Launches Chrome, then plans and acts until the goal is reached, the step or
time budget runs out, or the run needs something only a person can provide.
With --interactive, requests for user input and confirmations are answered on stdin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headless") {
				cfg.SetBrowserHeadless(opts.headless)
			}
			if opts.model != "" {
				cfg.SetLLMModel(opts.model)
			}

			goal := strings.Join(args, " ")
			result, err := runTask(ctx, cfg, goal, opts.interactive, cmd.InOrStdin(), cmd.OutOrStdout(), factory, logger)
			if err != nil {
				return err
			}
			if result.Status != agent.StatusSuccess {
				return fmt.Errorf("task ended with status %s", result.Status)
			}
			return nil
		},
	}

	runCmd.Flags().BoolVar(&opts.headless, "headless", true, "run the browser without a visible window")
	runCmd.Flags().BoolVar(&opts.interactive, "interactive", true, "answer user-input and confirmation requests on stdin")
	runCmd.Flags().StringVar(&opts.model, "model", "", "override the reasoning model")
	return runCmd
}

// runTask contains the core, testable logic of the run command.
func runTask(
	ctx context.Context,
	cfg config.Interface,
	goal string,
	interactive bool,
	in io.Reader,
	out io.Writer,
	factory componentFactory,
	logger *zap.Logger,
) (agent.Result, error) {
	params := agent.TaskParams{
		Goal:    goal,
		OnEvent: printEvents(out),
	}
	if interactive {
		prompter := newTerminalPrompter(in, out)
		params.WaitForUserInput = prompter.WaitForUserInput
		params.WaitForConfirmation = prompter.WaitForConfirmation
	}

	result, err := taskRunner(cfg, factory, nil, logger)(ctx, params)
	if err != nil && result.Status == "" {
		return result, err
	}

	fmt.Fprintf(out, "\nStatus: %s\n", result.Status)
	if result.Summary != "" {
		fmt.Fprintf(out, "Summary: %s\n", result.Summary)
	}
	fmt.Fprintf(out, "Steps: %d\n", result.Steps)
	for _, url := range result.Bookmarks {
		fmt.Fprintf(out, "Bookmark: %s\n", url)
	}
	return result, err
}
