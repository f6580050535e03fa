package mcpsession

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harun/ftrdraft/internal/observability"
	"github.com/harun/ftrdraft/internal/tracing"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultStartupTimeout leaves room for an out-of-band browser login.
	DefaultStartupTimeout = 120 * time.Second

	closeGrace   = 5 * time.Second
	maxToolPages = 50
)

// Config describes how to launch and greet the tool provider.
type Config struct {
	Command        string
	Args           []string
	Env            []string // appended to the parent environment
	StartupTimeout time.Duration
	ClientName     string
	ClientVersion  string

	// Stderr receives the subprocess stderr line by line. mcp-remote prints
	// the authorization URL there when it cannot open a browser.
	Stderr io.Writer
}

// ToolDescriptor is a tool advertised by the provider during one session.
type ToolDescriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
	SessionID   string                 `json:"session_id"`
}

// CallResult is the flattened content of a tool invocation.
type CallResult struct {
	Text    string
	IsError bool
}

// Factory builds sessions sharing one Config
type Factory struct {
	cfg    Config
	logger zerolog.Logger
}

// NewFactory creates a session factory; it performs no I/O.
func NewFactory(cfg Config, logger zerolog.Logger) *Factory {
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = DefaultStartupTimeout
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "ftrdraft"
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = "0.1.0"
	}
	cfg.Args = append([]string(nil), cfg.Args...)
	cfg.Env = append([]string(nil), cfg.Env...)

	return &Factory{
		cfg:    cfg,
		logger: logger.With().Str("component", "mcpsession").Logger(),
	}
}

// Config returns the factory configuration
func (f *Factory) Config() Config {
	return f.cfg
}

// NewSession returns an unopened session.
func (f *Factory) NewSession() *Session {
	id := uuid.New().String()
	return &Session{
		id:     id,
		cfg:    f.cfg,
		logger: f.logger.With().Str("session_id", id).Logger(),
	}
}

type sessionState int

const (
	stateNew sessionState = iota
	stateOpen
	stateClosed
)

// Session is one scoped connection to the tool provider subprocess.
type Session struct {
	id     string
	cfg    Config
	logger zerolog.Logger

	mu         sync.Mutex
	state      sessionState
	client     *client.Client
	cancel     context.CancelFunc
	serverName string
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// ServerName returns the name the provider reported during the handshake
func (s *Session) ServerName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverName
}

// IsOpen reports whether Open succeeded and Close has not been called
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateOpen
}

// Open launches the subprocess and performs the MCP initialize handshake.
// Calling Open on an open session is a no-op.
func (s *Session) Open(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateOpen:
		return nil
	case stateClosed:
		return ErrClosed
	}

	ctx = tracing.WithSessionID(ctx, s.id)
	ctx, span := tracing.StartSpan(ctx, "ftrdraft.mcpsession", "session.open",
		attribute.String("command", s.cfg.Command),
	)
	started := time.Now()
	defer func() {
		observability.RecordSessionOpen(time.Since(started), err == nil)
		tracing.EndSpan(span, err)
	}()

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Info().
		Str("command", s.cfg.Command).
		Strs("args", s.cfg.Args).
		Dur("startup_timeout", s.cfg.StartupTimeout).
		Msg("Starting tool provider")

	// The transport adds the parent environment itself.
	stdio := transport.NewStdio(s.cfg.Command, s.cfg.Env, s.cfg.Args...)
	c := client.NewClient(stdio)

	// The subprocess lives until Close, not until the caller's context ends.
	lifeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	if err := c.Start(lifeCtx); err != nil {
		cancel()
		return &StartupError{Kind: StartupLaunchFailed, Command: s.cfg.Command, Err: err}
	}

	if stderr := stdio.Stderr(); stderr != nil {
		go s.drainStderr(stderr)
	}

	initCtx, initCancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer initCancel()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{
		Name:    s.cfg.ClientName,
		Version: s.cfg.ClientVersion,
	}
	req.Params.Capabilities = mcp.ClientCapabilities{}

	res, initErr := c.Initialize(initCtx, req)
	if initErr != nil {
		s.teardown(c, cancel)

		if ctx.Err() != nil {
			return fmt.Errorf("mcp session open cancelled: %w", ctx.Err())
		}

		kind := StartupHandshakeFailed
		if errors.Is(initCtx.Err(), context.DeadlineExceeded) {
			kind = StartupTimeout
			initErr = fmt.Errorf("no handshake within %s: %w", s.cfg.StartupTimeout, initErr)
		}
		return &StartupError{Kind: kind, Command: s.cfg.Command, Err: initErr}
	}

	s.client = c
	s.cancel = cancel
	s.serverName = res.ServerInfo.Name
	s.state = stateOpen

	logger.Info().
		Str("server", res.ServerInfo.Name).
		Str("server_version", res.ServerInfo.Version).
		Str("protocol", res.ProtocolVersion).
		Dur("startup", time.Since(started)).
		Msg("Tool provider session open")

	return nil
}

func (s *Session) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.logger.Debug().Str("stream", "stderr").Msg(line)
		if s.cfg.Stderr != nil {
			fmt.Fprintln(s.cfg.Stderr, line)
		}
	}
}

// active returns the client of an open session
func (s *Session) active() (*client.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateNew:
		return nil, ErrNotOpen
	case stateClosed:
		return nil, ErrClosed
	}
	return s.client, nil
}

// ListTools enumerates the tools the provider exposes right now.
func (s *Session) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	c, err := s.active()
	if err != nil {
		return nil, err
	}

	var tools []ToolDescriptor
	req := mcp.ListToolsRequest{}
	for page := 0; page < maxToolPages; page++ {
		res, err := c.ListTools(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to list tools: %w", err)
		}

		for _, tool := range res.Tools {
			tools = append(tools, ToolDescriptor{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: inputSchemaOf(tool),
				SessionID:   s.id,
			})
		}

		if res.NextCursor == "" {
			break
		}
		req.Params.Cursor = res.NextCursor
	}

	observability.SetToolsDiscovered(len(tools))
	s.logger.Debug().Int("count", len(tools)).Msg("Tools listed")

	return tools, nil
}

// inputSchemaOf returns the tool's JSON schema as a generic map. Going
// through the wire form covers tools that carry a raw schema.
func inputSchemaOf(tool mcp.Tool) map[string]interface{} {
	fallback := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}

	raw, err := json.Marshal(tool)
	if err != nil {
		return fallback
	}

	var wire struct {
		InputSchema map[string]interface{} `json:"inputSchema"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil || len(wire.InputSchema) == 0 {
		return fallback
	}
	if typ, _ := wire.InputSchema["type"].(string); typ == "" {
		wire.InputSchema["type"] = "object"
	}
	return wire.InputSchema
}

// CallTool invokes a tool by name through this session.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallResult, error) {
	c, err := s.active()
	if err != nil {
		return nil, err
	}

	if args == nil {
		args = map[string]interface{}{}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := c.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	return &CallResult{
		Text:    flattenContent(res.Content),
		IsError: res.IsError,
	}, nil
}

func flattenContent(contents []mcp.Content) string {
	parts := make([]string, 0, len(contents))
	for _, content := range contents {
		switch c := content.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		default:
			raw, err := json.Marshal(content)
			if err != nil {
				continue
			}
			parts = append(parts, string(raw))
		}
	}
	return strings.Join(parts, "\n")
}

// Close releases the subprocess. Only the first call on an open session
// does any work; later calls and calls on unopened sessions return nil.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state != stateOpen {
		s.state = stateClosed
		s.mu.Unlock()
		return nil
	}
	s.state = stateClosed
	c, cancel := s.client, s.cancel
	s.client, s.cancel = nil, nil
	s.mu.Unlock()

	err := s.teardown(c, cancel)
	observability.RecordSessionRelease()
	s.logger.Info().Msg("Tool provider session released")

	return err
}

// teardown closes the transport and gives the subprocess closeGrace to
// exit before it is killed through its context.
func (s *Session) teardown(c *client.Client, cancel context.CancelFunc) error {
	done := make(chan error, 1)
	go func() {
		done <- c.Close()
	}()

	select {
	case err := <-done:
		cancel()
		if err != nil {
			s.logger.Debug().Err(err).Msg("Tool provider exited with error")
		}
		return err
	case <-time.After(closeGrace):
		s.logger.Warn().Dur("grace", closeGrace).Msg("Tool provider did not exit, killing it")
		cancel()
		<-done
		return nil
	}
}
