// Package assistant runs the FTR drafting conversation against an
// Atlassian MCP session: the interactive loop and the one-shot queries.
package assistant

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harun/ftrdraft/internal/tracing"
	"github.com/harun/ftrdraft/pkg/agent"
	"github.com/harun/ftrdraft/pkg/mcpsession"
	"github.com/harun/ftrdraft/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

// ServerID names the Atlassian provider in the capability table
const ServerID = "atlassian"

// ToolSession is an MCP session as seen by the assistant. *mcpsession.Session
// implements it.
type ToolSession interface {
	toolexecutor.ToolSource
	Open(ctx context.Context) error
	Close() error
}

// Conversation is an agent that answers one turn at a time
type Conversation interface {
	Invoke(ctx context.Context, prompt string) (agent.Result, error)
}

// SessionFactory returns a new, unopened session
type SessionFactory func() ToolSession

// AgentFactory builds an agent for a system prompt over a populated
// capability table.
type AgentFactory func(systemPrompt string, tools *toolexecutor.ToolExecutor) (Conversation, error)

// Options configures an Assistant
type Options struct {
	NewSession     SessionFactory
	NewAgent       AgentFactory
	StartupTimeout time.Duration // only shown in the banner
	TurnTimeout    time.Duration // zero means no per-turn limit
	In             io.Reader
	Out            io.Writer
	Logger         zerolog.Logger
	OnState        func(State) // observes loop transitions
}

// Assistant wires sessions and agents together
type Assistant struct {
	opts   Options
	logger zerolog.Logger
}

// New creates an assistant. In and Out default to stdin and stdout.
func New(opts Options) (*Assistant, error) {
	if opts.NewSession == nil {
		return nil, fmt.Errorf("session factory is required")
	}
	if opts.NewAgent == nil {
		return nil, fmt.Errorf("agent factory is required")
	}
	if opts.TurnTimeout < 0 {
		return nil, fmt.Errorf("turn timeout cannot be negative")
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	return &Assistant{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "assistant").Logger(),
	}, nil
}

// openTools opens a session and loads its tools into a fresh capability
// table. The caller owns the returned session when err is nil.
func (a *Assistant) openTools(ctx context.Context) (ToolSession, *toolexecutor.ToolExecutor, []mcpsession.ToolDescriptor, error) {
	session := a.opts.NewSession()
	if err := session.Open(ctx); err != nil {
		return nil, nil, nil, err
	}

	tools := toolexecutor.New()
	descs, err := tools.RegisterMCPTools(tracing.WithSessionID(ctx, session.ID()), ServerID, session)
	if err != nil {
		a.release(session)
		return nil, nil, nil, err
	}
	return session, tools, descs, nil
}

func (a *Assistant) release(session ToolSession) {
	if err := session.Close(); err != nil {
		a.logger.Warn().Err(err).Str("session_id", session.ID()).Msg("Failed to release session")
	}
}

// invoke runs one turn, bounded by the turn timeout when set
func (a *Assistant) invoke(ctx context.Context, conv Conversation, prompt string) (agent.Result, error) {
	if a.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.TurnTimeout)
		defer cancel()
	}
	return conv.Invoke(ctx, prompt)
}

func (a *Assistant) setState(s State) {
	a.logger.Debug().Stringer("state", s).Msg("State changed")
	if a.opts.OnState != nil {
		a.opts.OnState(s)
	}
}
