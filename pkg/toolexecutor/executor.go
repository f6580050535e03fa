package toolexecutor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harun/ftrdraft/internal/observability"
	"github.com/harun/ftrdraft/internal/tracing"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultTimeout bounds a single tool call when the caller sets none.
	DefaultTimeout = 2 * time.Minute

	// DefaultMaxOutput caps the text handed back to the model.
	DefaultMaxOutput = 64 * 1024
)

// ToolDefinition defines a tool's metadata and handler.
// A nil InputSchema accepts any object.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
	Category    ToolCategory           `json:"category,omitempty"`
	Source      string                 `json:"source,omitempty"` // session id for MCP tools
	Handler     ToolHandler            `json:"-"`
}

// ToolHandler is the function signature for tool execution
type ToolHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// ExecutionContext provides runtime information for tool execution
type ExecutionContext struct {
	SessionKey string
	AgentID    string
	Timeout    time.Duration
	ToolPolicy *ToolPolicy
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	Success   bool                   `json:"success"`
	Output    interface{}            `json:"output,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Truncated bool                   `json:"truncated,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Text renders the result the way it is reported back to a model.
func (r ToolResult) Text() string {
	if !r.Success {
		return "Error: " + r.Error
	}

	switch out := r.Output.(type) {
	case nil:
		return ""
	case string:
		return out
	case fmt.Stringer:
		return out.String()
	default:
		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Sprintf("%v", out)
		}
		return string(data)
	}
}

// ToolExecutor is the runtime capability table: tool name to handler,
// description and compiled argument schema.
type ToolExecutor struct {
	tools     map[string]*ToolDefinition
	schemas   map[string]*gojsonschema.Schema
	maxOutput int
	mu        sync.RWMutex
}

// New creates a new ToolExecutor
func New() *ToolExecutor {
	return &ToolExecutor{
		tools:     make(map[string]*ToolDefinition),
		schemas:   make(map[string]*gojsonschema.Schema),
		maxOutput: DefaultMaxOutput,
	}
}

// RegisterTool registers a new tool, replacing any tool with the same name
func (te *ToolExecutor) RegisterTool(def ToolDefinition) error {
	if err := te.validateToolDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schemaMap := def.InputSchema
	if schemaMap == nil {
		schemaMap = map[string]interface{}{"type": "object"}
		def.InputSchema = schemaMap
	}
	if def.Category == "" {
		def.Category = CategorizeTool(def.Name)
	}
	def.Category = ToolCategory(strings.ToLower(string(def.Category)))

	schema, err := compileSchema(schemaMap)
	if err != nil {
		// Provider schemas may use keywords the validator does not know;
		// the provider still validates on its side.
		log.Warn().
			Str("tool", def.Name).
			Err(err).
			Msg("Tool schema could not be compiled, argument validation disabled")
		schema = nil
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	te.tools[def.Name] = &def
	te.schemas[def.Name] = schema

	log.Debug().Str("tool", def.Name).Str("category", string(def.Category)).Msg("Tool registered")

	return nil
}

// GetTool returns a tool definition by name
func (te *ToolExecutor) GetTool(name string) *ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return te.tools[name]
}

// ListTools returns all registered tool names in sorted order
func (te *ToolExecutor) ListTools() []string {
	te.mu.RLock()
	defer te.mu.RUnlock()

	tools := make([]string, 0, len(te.tools))
	for name := range te.tools {
		tools = append(tools, name)
	}
	sort.Strings(tools)

	return tools
}

// Definitions returns copies of all registered definitions sorted by name
func (te *ToolExecutor) Definitions() []ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(te.tools))
	for _, def := range te.tools {
		defs = append(defs, *def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	return defs
}

// GetToolCount returns the number of registered tools
func (te *ToolExecutor) GetToolCount() int {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return len(te.tools)
}

// Execute executes a tool with the given parameters. Failures are reported
// in the result, never as a Go error, so they can be handed to the model.
func (te *ToolExecutor) Execute(ctx context.Context, toolName string, params map[string]interface{}, execCtx *ExecutionContext) (result ToolResult) {
	startTime := time.Now()

	ctx, span := tracing.StartSpan(ctx, "ftrdraft.toolexecutor", "tool.call",
		attribute.String("tool", toolName),
	)
	defer func() {
		var err error
		if !result.Success {
			err = fmt.Errorf("%s", result.Error)
		}
		observability.RecordToolCall(toolName, time.Since(startTime), result.Success)
		tracing.EndSpan(span, err)
	}()

	te.mu.RLock()
	tool := te.tools[toolName]
	schema := te.schemas[toolName]
	maxOutput := te.maxOutput
	te.mu.RUnlock()

	if tool == nil {
		log.Error().Str("tool", toolName).Msg("Tool not found")
		return ToolResult{
			Success: false,
			Error:   fmt.Sprintf("tool not found: %s", toolName),
		}
	}

	if execCtx != nil && execCtx.ToolPolicy != nil {
		if !execCtx.ToolPolicy.Allows(*tool) {
			log.Warn().
				Str("tool", toolName).
				Str("agent_id", execCtx.AgentID).
				Msg("Tool execution blocked by policy")
			return ToolResult{
				Success: false,
				Error:   fmt.Sprintf("tool '%s' is not allowed by agent policy", toolName),
				Metadata: map[string]interface{}{
					"policy_violation": true,
					"agent_id":         execCtx.AgentID,
				},
			}
		}
	}

	if params == nil {
		params = map[string]interface{}{}
	}

	if err := te.validateParameters(schema, params); err != nil {
		log.Warn().Str("tool", toolName).Err(err).Msg("Parameter validation failed")
		return ToolResult{
			Success: false,
			Error:   fmt.Sprintf("parameter validation failed: %v", err),
		}
	}

	log.Debug().Str("tool", toolName).Msg("Executing tool")

	timeout := DefaultTimeout
	if execCtx != nil && execCtx.Timeout > 0 {
		timeout = execCtx.Timeout
	}

	timeoutCtx, cancel := context.WithTimeout(WithExecContext(ctx, execCtx), timeout)
	defer cancel()

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		out, err := tool.Handler(timeoutCtx, params)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- out
		}
	}()

	select {
	case out := <-resultChan:
		duration := time.Since(startTime)
		output, truncated := truncateOutput(out, maxOutput)

		log.Debug().
			Str("tool", toolName).
			Dur("duration", duration).
			Bool("truncated", truncated).
			Msg("Tool execution completed")

		return ToolResult{
			Success:   true,
			Output:    output,
			Truncated: truncated,
			Metadata: map[string]interface{}{
				"duration": duration.Milliseconds(),
			},
		}

	case err := <-errChan:
		duration := time.Since(startTime)

		log.Warn().
			Str("tool", toolName).
			Dur("duration", duration).
			Err(err).
			Msg("Tool execution failed")

		return ToolResult{
			Success: false,
			Error:   err.Error(),
			Metadata: map[string]interface{}{
				"duration": duration.Milliseconds(),
			},
		}

	case <-timeoutCtx.Done():
		duration := time.Since(startTime)

		msg := fmt.Sprintf("tool execution timeout after %v", timeout)
		if ctx.Err() != nil {
			msg = fmt.Sprintf("tool execution cancelled: %v", ctx.Err())
		}
		log.Warn().
			Str("tool", toolName).
			Dur("duration", duration).
			Msg(msg)

		return ToolResult{
			Success: false,
			Error:   msg,
			Metadata: map[string]interface{}{
				"duration": duration.Milliseconds(),
			},
		}
	}
}

// validateToolDefinition validates a tool definition
func (te *ToolExecutor) validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	if def.Category != "" && !IsValidCategory(string(def.Category)) {
		return fmt.Errorf("invalid tool category %q", def.Category)
	}

	return nil
}

// compileSchema compiles a schema map. The $schema keyword is dropped so
// newer draft URIs do not stop compilation.
func compileSchema(schemaMap map[string]interface{}) (*gojsonschema.Schema, error) {
	clean := make(map[string]interface{}, len(schemaMap))
	for k, v := range schemaMap {
		if k == "$schema" {
			continue
		}
		clean[k] = v
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(clean))
}

// validateParameters validates parameters against a JSON Schema
func (te *ToolExecutor) validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}

	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// truncateOutput truncates output if it exceeds maxSize bytes
func truncateOutput(output interface{}, maxSize int) (interface{}, bool) {
	if maxSize <= 0 {
		return output, false
	}

	str, ok := output.(string)
	if !ok {
		str = fmt.Sprintf("%v", output)
	}

	if len(str) <= maxSize {
		return output, false
	}

	truncated := strings.ToValidUTF8(str[:maxSize], "") + "\n... [output truncated]"
	log.Warn().
		Int("original", len(str)).
		Int("truncated", maxSize).
		Msg("Output truncated")

	return truncated, true
}
