package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/ftrdraft/internal/observability"
	"github.com/harun/ftrdraft/internal/tracing"
	"github.com/harun/ftrdraft/pkg/toolexecutor"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultMaxTurns     = 10
	DefaultMaxTokens    = 4096
	DefaultMemoryWindow = 40
)

// ErrMaxTurnsExceeded is returned when the model keeps requesting tools
// past Config.MaxTurns.
var ErrMaxTurnsExceeded = errors.New("maximum tool execution turns exceeded")

// Config configures an Agent
type Config struct {
	ID           string
	Model        string
	SystemPrompt string
	Provider     LLMProvider
	Tools        *toolexecutor.ToolExecutor
	ToolPolicy   *toolexecutor.ToolPolicy
	ToolTimeout  time.Duration
	MaxTurns     int
	Temperature  float64
	MaxTokens    int
	MemoryWindow int // messages kept between turns; negative disables trimming
	Logger       zerolog.Logger
}

// Agent binds a model, a system prompt and a capability table, and keeps
// the conversation of its completed turns in memory.
type Agent struct {
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	memory []AgentMessage
}

// New creates an agent
func New(cfg Config) (*Agent, error) {
	observability.EnsureRegistered()

	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if cfg.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	}

	if cfg.ID == "" {
		cfg.ID = "ftr"
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MemoryWindow == 0 {
		cfg.MemoryWindow = DefaultMemoryWindow
	}

	return &Agent{
		cfg: cfg,
		logger: cfg.Logger.With().
			Str("component", "agent").
			Str("agent_id", cfg.ID).
			Str("provider", cfg.Provider.Provider()).
			Logger(),
	}, nil
}

// Memory returns a copy of the conversation kept from completed turns
func (a *Agent) Memory() []AgentMessage {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]AgentMessage, len(a.memory))
	copy(out, a.memory)
	return out
}

// Reset clears the conversation memory
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.memory = nil
}

// ToolSpecs returns the tools offered to the model, after policy filtering
func (a *Agent) ToolSpecs() []ToolSpec {
	if a.cfg.Tools == nil {
		return nil
	}

	defs := toolexecutor.FilterDefinitions(a.cfg.Tools.Definitions(), a.cfg.ToolPolicy)
	specs := make([]ToolSpec, 0, len(defs))
	for _, def := range defs {
		specs = append(specs, ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}
	return specs
}

// Invoke runs one conversational turn. The model may call tools any number
// of times up to MaxTurns; tool failures are reported back to the model.
// Memory is only updated when the turn succeeds.
func (a *Agent) Invoke(ctx context.Context, prompt string) (result Result, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx = tracing.NewTurnContext(ctx)
	ctx, span := tracing.StartSpan(ctx, "ftrdraft.agent", "agent.invoke",
		attribute.String("provider", a.cfg.Provider.Provider()),
		attribute.String("model", a.cfg.Model),
	)
	started := time.Now()
	logger := tracing.LoggerFromContext(ctx, a.logger)

	defer func() {
		observability.RecordAgentTurn(a.cfg.Provider.Provider(), time.Since(started), err == nil)
		observability.RecordTokens(a.cfg.Provider.Provider(), result.Usage.InputTokens, result.Usage.OutputTokens)
		tracing.EndSpan(span, err)
	}()

	messages := make([]AgentMessage, 0, len(a.memory)+2)
	messages = append(messages, a.memory...)
	messages = append(messages, AgentMessage{Role: RoleUser, Content: prompt})

	tools := a.ToolSpecs()
	execCtx := &toolexecutor.ExecutionContext{
		SessionKey: tracing.GetSessionID(ctx),
		AgentID:    a.cfg.ID,
		Timeout:    a.cfg.ToolTimeout,
		ToolPolicy: a.cfg.ToolPolicy,
	}

	logger.Debug().
		Int("history", len(a.memory)).
		Int("history_tokens", EstimateTokens(a.memory)).
		Int("tools", len(tools)).
		Msg("Invoking model")

	for cycle := 1; cycle <= a.cfg.MaxTurns; cycle++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		response, err := a.cfg.Provider.Call(ctx, LLMRequest{
			Model:        a.cfg.Model,
			Messages:     messages,
			Tools:        tools,
			Temperature:  a.cfg.Temperature,
			MaxTokens:    a.cfg.MaxTokens,
			SystemPrompt: a.cfg.SystemPrompt,
		})
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			logger.Warn().Err(err).Int("cycle", cycle).Msg("Model call failed")
			return result, fmt.Errorf("%s model call failed: %w", a.cfg.Provider.Provider(), err)
		}

		result.Usage.Add(response.Usage)
		result.Cycles = cycle

		if len(response.ToolCalls) == 0 {
			messages = append(messages, AgentMessage{Role: RoleAssistant, Content: response.Content})
			a.memory = trimMemory(messages, a.cfg.MemoryWindow)
			result.Response = response.Content

			logger.Info().
				Int("cycles", cycle).
				Int("tool_calls", len(result.ToolCalls)).
				Int("input_tokens", result.Usage.InputTokens).
				Int("output_tokens", result.Usage.OutputTokens).
				Dur("duration", time.Since(started)).
				Msg("Turn completed")

			return result, nil
		}

		messages = append(messages, AgentMessage{
			Role:      RoleAssistant,
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		for _, call := range response.ToolCalls {
			messages = append(messages, a.runTool(ctx, call, execCtx))
		}
		result.ToolCalls = append(result.ToolCalls, response.ToolCalls...)
	}

	logger.Warn().Int("max_turns", a.cfg.MaxTurns).Msg("Tool loop did not converge")
	return result, fmt.Errorf("%w (%d)", ErrMaxTurnsExceeded, a.cfg.MaxTurns)
}

// runTool executes one tool call and converts the outcome to a tool message
func (a *Agent) runTool(ctx context.Context, call ToolCall, execCtx *toolexecutor.ExecutionContext) AgentMessage {
	msg := AgentMessage{Role: RoleTool, ToolCallID: call.ID}

	if a.cfg.Tools == nil {
		msg.Content = fmt.Sprintf("Error: tool not found: %s", call.Name)
		msg.IsError = true
		return msg
	}

	res := a.cfg.Tools.Execute(ctx, call.Name, call.Parameters, execCtx)
	msg.Content = res.Text()
	msg.IsError = !res.Success

	a.logger.Debug().
		Str("tool", call.Name).
		Bool("success", res.Success).
		Bool("truncated", res.Truncated).
		Msg("Tool call finished")

	return msg
}

// trimMemory keeps at most window messages and always starts the kept
// history at a user prompt, so tool calls are never split from their results.
func trimMemory(messages []AgentMessage, window int) []AgentMessage {
	if window < 0 || len(messages) <= window {
		return messages
	}

	start := len(messages) - window
	for start < len(messages) && messages[start].Role != RoleUser {
		start++
	}

	kept := make([]AgentMessage, len(messages)-start)
	copy(kept, messages[start:])
	return kept
}
