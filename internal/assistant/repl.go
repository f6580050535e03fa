package assistant

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harun/ftrdraft/internal/tracing"
	"github.com/harun/ftrdraft/pkg/ftr"
	"github.com/harun/ftrdraft/pkg/toolexecutor"
)

// State is a phase of the interactive loop
type State int

const (
	StateConnecting State = iota
	StateListingTools
	StateReady
	StateProcessing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateListingTools:
		return "listing_tools"
	case StateReady:
		return "ready"
	case StateProcessing:
		return "processing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	ruleWidth       = 60
	descriptionCut  = 60
	quitCommands    = "quit exit q"
	noDescription   = "No description"
	interruptedLine = "\n\nSession interrupted. Goodbye!"
)

// Run drives the interactive session until the user quits, input ends or
// ctx is cancelled. Only a startup failure is returned as an error; the
// session, once opened, is released exactly once on every path.
func (a *Assistant) Run(ctx context.Context) error {
	ctx = tracing.NewRunContext(ctx)
	out := a.opts.Out

	a.setState(StateConnecting)
	a.printBanner()

	session := a.opts.NewSession()
	if err := session.Open(ctx); err != nil {
		fmt.Fprintf(out, "Failed to connect to Atlassian MCP server: %v\n", err)
		a.setState(StateClosed)
		return err
	}
	defer func() {
		a.release(session)
		a.setState(StateClosed)
	}()

	ctx = tracing.WithSessionID(ctx, session.ID())
	logger := tracing.LoggerFromContext(ctx, a.logger)

	a.setState(StateListingTools)
	tools := toolexecutor.New()
	descs, err := tools.RegisterMCPTools(ctx, ServerID, session)
	if err != nil {
		fmt.Fprintf(out, "Failed to connect to Atlassian MCP server: %v\n", err)
		return err
	}

	fmt.Fprintf(out, "Connected! Available Atlassian tools: %d\n", len(descs))
	fmt.Fprintln(out, strings.Repeat("-", ruleWidth))
	for _, d := range descs {
		fmt.Fprintf(out, "  - %s: %s...\n", d.Name, shortDescription(d.Description))
	}
	fmt.Fprintln(out, strings.Repeat("-", ruleWidth))
	fmt.Fprintln(out, "\nYou can now ask questions about your Atlassian content.")
	fmt.Fprintln(out, "Type 'quit' or 'exit' to end the session.")

	conv, err := a.opts.NewAgent(ftr.SystemPrompt, tools)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	done := make(chan struct{})
	lines := readLines(a.opts.In, done)
	defer func() {
		close(done)
		// A reader blocked in Read only returns once its input is closed.
		if c, ok := a.opts.In.(io.Closer); ok {
			_ = c.Close()
		}
	}()

	for {
		a.setState(StateReady)
		fmt.Fprint(out, "\nYou: ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, interruptedLine)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out, "\nGoodbye!")
				return nil
			}
			line = l
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if isQuit(input) {
			fmt.Fprintln(out, "\nGoodbye!")
			return nil
		}

		a.setState(StateProcessing)
		started := time.Now()
		result, err := a.invoke(ctx, conv, input)
		if ctx.Err() != nil {
			fmt.Fprintln(out, interruptedLine)
			return nil
		}
		if err != nil {
			logger.Warn().Err(err).Dur("duration", time.Since(started)).Msg("Turn failed")
			fmt.Fprintf(out, "\nError: %v\n", err)
			fmt.Fprintln(out, "Please try again or type 'quit' to exit.")
			continue
		}

		fmt.Fprintf(out, "\nAgent: %s\n", result)
	}
}

func (a *Assistant) printBanner() {
	out := a.opts.Out
	rule := strings.Repeat("=", ruleWidth)

	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "FTR Draft Generator Agent")
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "\nConnecting to Atlassian MCP Server...")
	fmt.Fprintln(out, "(A browser window will open for authentication)")
	fmt.Fprintf(out, "(You have %d seconds to complete login)\n\n", int(a.opts.StartupTimeout.Seconds()))
}

func isQuit(input string) bool {
	for _, cmd := range strings.Fields(quitCommands) {
		if strings.EqualFold(input, cmd) {
			return true
		}
	}
	return false
}

// shortDescription cuts to the first 60 runes
func shortDescription(desc string) string {
	if desc == "" {
		return noDescription
	}
	runes := []rune(desc)
	if len(runes) > descriptionCut {
		return string(runes[:descriptionCut])
	}
	return desc
}

// readLines feeds input lines to a channel that is closed at end of input.
// The reader stops once done is closed and its pending Read returns.
func readLines(r io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	return lines
}
