package assistant

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harun/ftrdraft/pkg/agent"
	"github.com/harun/ftrdraft/pkg/ftr"
	"github.com/harun/ftrdraft/pkg/mcpsession"
	"github.com/harun/ftrdraft/pkg/toolexecutor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu      sync.Mutex
	openErr error
	opens   int
	closes  int
}

func (s *fakeSession) ID() string { return "session-1" }

func (s *fakeSession) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.opens++
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSession) ListTools(ctx context.Context) ([]mcpsession.ToolDescriptor, error) {
	return []mcpsession.ToolDescriptor{
		{
			Name:        "searchConfluenceUsingCql",
			Description: "Search Confluence content using CQL",
			InputSchema: map[string]interface{}{"type": "object"},
			SessionID:   s.ID(),
		},
		{
			Name:        "getConfluenceSpaces",
			InputSchema: map[string]interface{}{"type": "object"},
			SessionID:   s.ID(),
		},
	}, nil
}

func (s *fakeSession) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcpsession.CallResult, error) {
	return &mcpsession.CallResult{Text: "ok"}, nil
}

func (s *fakeSession) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes
}

type fakeConversation struct {
	mu      sync.Mutex
	prompts []string
	reply   func(ctx context.Context, call int, prompt string) (agent.Result, error)
}

func (c *fakeConversation) Invoke(ctx context.Context, prompt string) (agent.Result, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	call := len(c.prompts)
	c.mu.Unlock()

	if c.reply == nil {
		return agent.Result{Response: "answer to " + prompt}, nil
	}
	return c.reply(ctx, call, prompt)
}

func (c *fakeConversation) calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

type harness struct {
	session      *fakeSession
	conv         *fakeConversation
	out          *bytes.Buffer
	systemPrompt string
	toolCount    int
	states       []State
}

func newHarness(t *testing.T, in io.Reader, mutate func(*Options)) (*Assistant, *harness) {
	t.Helper()

	h := &harness{
		session: &fakeSession{},
		conv:    &fakeConversation{},
		out:     &bytes.Buffer{},
	}

	opts := Options{
		NewSession: func() ToolSession { return h.session },
		NewAgent: func(systemPrompt string, tools *toolexecutor.ToolExecutor) (Conversation, error) {
			h.systemPrompt = systemPrompt
			h.toolCount = tools.GetToolCount()
			return h.conv, nil
		},
		StartupTimeout: 120 * time.Second,
		In:             in,
		Out:            h.out,
		Logger:         zerolog.Nop(),
		OnState:        func(s State) { h.states = append(h.states, s) },
	}
	if mutate != nil {
		mutate(&opts)
	}

	a, err := New(opts)
	require.NoError(t, err)
	return a, h
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{NewSession: func() ToolSession { return &fakeSession{} }})
	assert.Error(t, err)

	_, err = New(Options{
		NewSession:  func() ToolSession { return &fakeSession{} },
		NewAgent:    func(string, *toolexecutor.ToolExecutor) (Conversation, error) { return nil, nil },
		TurnTimeout: -time.Second,
	})
	assert.Error(t, err)
}

func TestRun_QuitOnFirstPrompt(t *testing.T) {
	a, h := newHarness(t, strings.NewReader("quit\n"), nil)

	require.NoError(t, a.Run(context.Background()))

	opens, closes := h.session.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
	assert.Empty(t, h.conv.calls())

	out := h.out.String()
	assert.Contains(t, out, "FTR Draft Generator Agent")
	assert.Contains(t, out, "(You have 120 seconds to complete login)")
	assert.Contains(t, out, "Connected! Available Atlassian tools: 2")
	assert.Contains(t, out, "  - searchConfluenceUsingCql: Search Confluence content using CQL...")
	assert.Contains(t, out, "  - getConfluenceSpaces: No description...")
	assert.Contains(t, out, "\nGoodbye!")

	assert.Equal(t, ftr.SystemPrompt, h.systemPrompt)
	assert.Equal(t, 2, h.toolCount)
	assert.Equal(t, []State{StateConnecting, StateListingTools, StateReady, StateClosed}, h.states)
}

func TestRun_QuitVariants(t *testing.T) {
	for _, input := range []string{"quit", "EXIT", "  Q  ", "Quit"} {
		t.Run(input, func(t *testing.T) {
			a, h := newHarness(t, strings.NewReader(input+"\n"), nil)

			require.NoError(t, a.Run(context.Background()))

			_, closes := h.session.counts()
			assert.Equal(t, 1, closes)
			assert.Empty(t, h.conv.calls())
			assert.Contains(t, h.out.String(), "Goodbye!")
		})
	}
}

func TestRun_EmptyInputReprompts(t *testing.T) {
	a, h := newHarness(t, strings.NewReader("\n   \nquit\n"), nil)

	require.NoError(t, a.Run(context.Background()))

	assert.Empty(t, h.conv.calls())
	assert.Equal(t, 3, strings.Count(h.out.String(), "You: "))
}

func TestRun_ForwardsRequests(t *testing.T) {
	a, h := newHarness(t, strings.NewReader("  find the EKS runbook  \nquit\n"), nil)

	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, []string{"find the EKS runbook"}, h.conv.calls())
	assert.Contains(t, h.out.String(), "\nAgent: answer to find the EKS runbook\n")
}

func TestRun_TurnErrorKeepsSessionOpen(t *testing.T) {
	a, h := newHarness(t, strings.NewReader("first\nsecond\nexit\n"), nil)
	h.conv.reply = func(ctx context.Context, call int, prompt string) (agent.Result, error) {
		if call == 1 {
			return agent.Result{}, errors.New("throttled")
		}
		return agent.Result{Response: "recovered"}, nil
	}

	require.NoError(t, a.Run(context.Background()))

	out := h.out.String()
	assert.Contains(t, out, "\nError: throttled\n")
	assert.Contains(t, out, "Please try again or type 'quit' to exit.")
	assert.Contains(t, out, "Agent: recovered")
	assert.Len(t, h.conv.calls(), 2)

	opens, closes := h.session.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
}

func TestRun_EndOfInput(t *testing.T) {
	a, h := newHarness(t, strings.NewReader("hello"), nil)

	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, []string{"hello"}, h.conv.calls())
	assert.Contains(t, h.out.String(), "Goodbye!")
	_, closes := h.session.counts()
	assert.Equal(t, 1, closes)
}

func TestRun_InterruptWhileReady(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, h := newHarness(t, pr, func(o *Options) {
		next := o.OnState
		o.OnState = func(s State) {
			next(s)
			if s == StateReady {
				cancel()
			}
		}
	})

	require.NoError(t, a.Run(ctx))

	assert.Contains(t, h.out.String(), "Session interrupted. Goodbye!")
	assert.Empty(t, h.conv.calls())
	opens, closes := h.session.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
	assert.Equal(t, StateClosed, h.states[len(h.states)-1])
}

func TestRun_ClosesInputOnReturn(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, _ := newHarness(t, pr, func(o *Options) {
		next := o.OnState
		o.OnState = func(s State) {
			next(s)
			if s == StateReady {
				cancel()
			}
		}
	})

	require.NoError(t, a.Run(ctx))

	_, err := pw.Write([]byte("late question\n"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestRun_InterruptWhileProcessing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, h := newHarness(t, strings.NewReader("slow question\nquit\n"), nil)
	h.conv.reply = func(ctx context.Context, call int, prompt string) (agent.Result, error) {
		cancel()
		<-ctx.Done()
		return agent.Result{}, ctx.Err()
	}

	require.NoError(t, a.Run(ctx))

	out := h.out.String()
	assert.Contains(t, out, "Session interrupted. Goodbye!")
	assert.NotContains(t, out, "Error:")
	_, closes := h.session.counts()
	assert.Equal(t, 1, closes)
}

func TestRun_TurnTimeout(t *testing.T) {
	a, h := newHarness(t, strings.NewReader("slow\nquit\n"), func(o *Options) {
		o.TurnTimeout = 20 * time.Millisecond
	})
	h.conv.reply = func(ctx context.Context, call int, prompt string) (agent.Result, error) {
		<-ctx.Done()
		return agent.Result{}, ctx.Err()
	}

	require.NoError(t, a.Run(context.Background()))

	out := h.out.String()
	assert.Contains(t, out, "Error: context deadline exceeded")
	assert.Contains(t, out, "Goodbye!")
}

func TestRun_StartupFailure(t *testing.T) {
	a, h := newHarness(t, strings.NewReader("quit\n"), nil)
	h.session.openErr = &mcpsession.StartupError{
		Kind:    mcpsession.StartupTimeout,
		Command: "npx",
		Err:     context.DeadlineExceeded,
	}

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, mcpsession.ErrStartupFailed))

	opens, closes := h.session.counts()
	assert.Equal(t, 0, opens)
	assert.Equal(t, 0, closes)
	assert.Empty(t, h.conv.calls())
	assert.Contains(t, h.out.String(), "Failed to connect to Atlassian MCP server:")
	assert.Equal(t, []State{StateConnecting, StateClosed}, h.states)
}

func TestGetFTREvidence(t *testing.T) {
	a, h := newHarness(t, nil, nil)
	h.conv.reply = func(ctx context.Context, call int, prompt string) (agent.Result, error) {
		return agent.Result{Response: "Found the EKS architecture page."}, nil
	}

	resp, err := a.GetFTREvidence(context.Background(), "eks", "DOC-001")
	require.NoError(t, err)
	assert.Equal(t, "Found the EKS architecture page.", resp)

	calls := h.conv.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "EKS")
	assert.Contains(t, calls[0], "DOC-001")
	assert.Equal(t, ftr.SystemPrompt, h.systemPrompt)

	opens, closes := h.session.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
}

func TestSearchConfluence(t *testing.T) {
	a, h := newHarness(t, nil, nil)

	resp, err := a.SearchConfluence(context.Background(), "lambda runbook")
	require.NoError(t, err)
	assert.Equal(t, "answer to Search Confluence for: lambda runbook", resp)
	assert.Equal(t, ftr.SearchSystemPrompt, h.systemPrompt)
}

func TestListConfluenceSpaces_ErrorPropagates(t *testing.T) {
	a, h := newHarness(t, nil, nil)
	h.conv.reply = func(ctx context.Context, call int, prompt string) (agent.Result, error) {
		return agent.Result{}, errors.New("model unavailable")
	}

	_, err := a.ListConfluenceSpaces(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
	assert.Equal(t, []string{ftr.SpacesPrompt}, h.conv.calls())
	assert.Equal(t, ftr.SpacesSystemPrompt, h.systemPrompt)

	_, closes := h.session.counts()
	assert.Equal(t, 1, closes)
}

func TestQueries_StartupFailure(t *testing.T) {
	a, h := newHarness(t, nil, nil)
	h.session.openErr = &mcpsession.StartupError{Kind: mcpsession.StartupLaunchFailed, Command: "npx", Err: errors.New("not found")}

	_, err := a.SearchConfluence(context.Background(), "x")
	assert.True(t, errors.Is(err, mcpsession.ErrStartupFailed))

	_, closes := h.session.counts()
	assert.Equal(t, 0, closes)
	assert.Empty(t, h.conv.calls())
}

func TestListTools(t *testing.T) {
	a, h := newHarness(t, nil, nil)

	tools, err := a.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "searchConfluenceUsingCql", tools[0].Name)

	opens, closes := h.session.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
	assert.Empty(t, h.conv.calls())
}

func TestShortDescription(t *testing.T) {
	assert.Equal(t, "No description", shortDescription(""))
	assert.Equal(t, "short", shortDescription("short"))
	assert.Equal(t, strings.Repeat("é", 60), shortDescription(strings.Repeat("é", 80)))
}

func TestIsQuit(t *testing.T) {
	assert.True(t, isQuit("q"))
	assert.True(t, isQuit("EXIT"))
	assert.False(t, isQuit("quit now"))
	assert.False(t, isQuit("queue"))
}
