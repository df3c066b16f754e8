// cmd/prompt.go
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/xkilldash9x/webpilot/internal/agent"
)

var errInputClosed = errors.New("input closed")

// terminalPrompter answers the run's user-input and confirmation requests
// from a line-oriented reader, usually stdin.
type terminalPrompter struct {
	out   io.Writer
	in    io.Reader
	once  sync.Once
	lines chan string
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: in, out: out, lines: make(chan string)}
}

// start launches the single reader goroutine. It exits when the reader hits EOF.
func (p *terminalPrompter) start() {
	p.once.Do(func() {
		go func() {
			defer close(p.lines)
			scanner := bufio.NewScanner(p.in)
			for scanner.Scan() {
				p.lines <- scanner.Text()
			}
		}()
	})
}

func (p *terminalPrompter) readLine(ctx context.Context) (string, error) {
	p.start()
	select {
	case line, ok := <-p.lines:
		if !ok {
			return "", errInputClosed
		}
		return strings.TrimSpace(line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// WaitForUserInput blocks until the user presses Enter.
func (p *terminalPrompter) WaitForUserInput(ctx context.Context, message string) error {
	fmt.Fprintf(p.out, "\n>>> %s\n>>> Press Enter when you are done... ", message)
	_, err := p.readLine(ctx)
	return err
}

// WaitForConfirmation asks a yes/no question. Anything but y or yes declines.
func (p *terminalPrompter) WaitForConfirmation(ctx context.Context, message string, pending agent.PendingAction) (bool, error) {
	fmt.Fprintf(p.out, "\n>>> %s\n>>> Pending action: %s %v\n>>> Proceed? [y/N] ", message, pending.Action, map[string]interface{}(pending.Args))
	line, err := p.readLine(ctx)
	if errors.Is(err, errInputClosed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// printEvents writes one line per event.
func printEvents(out io.Writer) agent.EventSink {
	return func(ev agent.Event) {
		fmt.Fprintf(out, "[%s] %s\n", ev.Type, ev.Message)
	}
}
