package toolexecutor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return params["message"], nil
}

func TestToolExecutor_RegisterTool(t *testing.T) {
	te := New()

	def := ToolDefinition{
		Name:        "test_tool",
		Description: "A test tool",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return "result", nil
		},
	}

	err := te.RegisterTool(def)
	assert.NoError(t, err)

	tool := te.GetTool("test_tool")
	require.NotNil(t, tool)
	assert.Equal(t, "test_tool", tool.Name)
	assert.Equal(t, "object", tool.InputSchema["type"])
	assert.Equal(t, CategoryGeneral, tool.Category)
}

func TestToolExecutor_RegisterTool_InvalidDefinition(t *testing.T) {
	te := New()

	tests := []struct {
		name string
		def  ToolDefinition
	}{
		{
			name: "empty name",
			def: ToolDefinition{
				Description: "Test",
				Handler:     func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return nil, nil },
			},
		},
		{
			name: "nil handler",
			def: ToolDefinition{
				Name:        "test",
				Description: "Test",
			},
		},
		{
			name: "unknown category",
			def: ToolDefinition{
				Name:     "test",
				Category: "shell",
				Handler:  func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return nil, nil },
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := te.RegisterTool(tt.def)
			assert.Error(t, err)
		})
	}
}

func TestToolExecutor_RegisterTool_CategoryNormalized(t *testing.T) {
	te := New()

	require.NoError(t, te.RegisterTool(ToolDefinition{Name: "publish", Category: "WRITE", Handler: echoHandler}))

	tool := te.GetTool("publish")
	require.NotNil(t, tool)
	assert.Equal(t, CategoryWrite, tool.Category)
	assert.False(t, ReadOnlyPolicy().Allows(*tool))
}

func TestToolExecutor_RegisterTool_EmptyDescriptionAllowed(t *testing.T) {
	te := New()

	err := te.RegisterTool(ToolDefinition{Name: "bare", Handler: echoHandler})
	assert.NoError(t, err)
}

func TestToolExecutor_Execute_Success(t *testing.T) {
	te := New()

	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "echo",
		Description: "Echo tool",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"message": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"message"},
		},
		Handler: echoHandler,
	}))

	result := te.Execute(context.Background(), "echo", map[string]interface{}{
		"message": "Hello, World!",
	}, nil)

	assert.True(t, result.Success)
	assert.Equal(t, "Hello, World!", result.Output)
	assert.Equal(t, "Hello, World!", result.Text())
	assert.Empty(t, result.Error)
}

func TestToolExecutor_Execute_ToolNotFound(t *testing.T) {
	te := New()

	result := te.Execute(context.Background(), "nonexistent", map[string]interface{}{}, nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "tool not found")
	assert.True(t, strings.HasPrefix(result.Text(), "Error: "))
}

func TestToolExecutor_Execute_ValidationError(t *testing.T) {
	te := New()

	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "search",
		Description: "Search pages",
		InputSchema: map[string]interface{}{
			"$schema": "https://json-schema.org/draft/2020-12/schema",
			"type":    "object",
			"properties": map[string]interface{}{
				"cql":   map[string]interface{}{"type": "string"},
				"limit": map[string]interface{}{"type": "integer"},
			},
			"required": []interface{}{"cql"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return "ok", nil
		},
	}))

	missing := te.Execute(context.Background(), "search", nil, nil)
	assert.False(t, missing.Success)
	assert.Contains(t, missing.Error, "parameter validation failed")

	wrongType := te.Execute(context.Background(), "search", map[string]interface{}{
		"cql":   "type = page",
		"limit": "ten",
	}, nil)
	assert.False(t, wrongType.Success)

	ok := te.Execute(context.Background(), "search", map[string]interface{}{
		"cql":   "type = page",
		"limit": 10,
	}, nil)
	assert.True(t, ok.Success)
}

func TestToolExecutor_Execute_HandlerError(t *testing.T) {
	te := New()

	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "failing",
		Description: "Always fails",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return nil, errors.New("upstream unavailable")
		},
	}))

	result := te.Execute(context.Background(), "failing", nil, nil)

	assert.False(t, result.Success)
	assert.Equal(t, "upstream unavailable", result.Error)
	assert.Equal(t, "Error: upstream unavailable", result.Text())
}

func TestToolExecutor_Execute_Timeout(t *testing.T) {
	te := New()

	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "slow",
		Description: "Slow tool",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			select {
			case <-time.After(5 * time.Second):
				return "late", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}))

	result := te.Execute(context.Background(), "slow", nil, &ExecutionContext{Timeout: 50 * time.Millisecond})

	assert.False(t, result.Success)
}

func TestToolExecutor_Execute_ExecContextPropagated(t *testing.T) {
	te := New()

	var seen *ExecutionContext
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "inspect",
		Description: "Inspect context",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			seen = ExecContextFrom(ctx)
			return nil, nil
		},
	}))

	execCtx := &ExecutionContext{SessionKey: "session-1", AgentID: "ftr"}
	result := te.Execute(context.Background(), "inspect", nil, execCtx)

	require.True(t, result.Success)
	require.NotNil(t, seen)
	assert.Equal(t, "session-1", seen.SessionKey)
}

func TestToolExecutor_Execute_OutputTruncation(t *testing.T) {
	te := New()

	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "large_output",
		Description: "Returns large output",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return strings.Repeat("x", DefaultMaxOutput+500), nil
		},
	}))

	result := te.Execute(context.Background(), "large_output", nil, nil)

	require.True(t, result.Success)
	assert.True(t, result.Truncated)
	assert.Contains(t, result.Text(), "[output truncated]")
	assert.Less(t, len(result.Text()), DefaultMaxOutput+100)
}

func TestToolResult_TextStructuredOutput(t *testing.T) {
	result := ToolResult{Success: true, Output: map[string]interface{}{"count": 2}}
	assert.JSONEq(t, `{"count":2}`, result.Text())

	assert.Equal(t, "", ToolResult{Success: true}.Text())
}

func TestToolExecutor_ListToolsAndDefinitionsSorted(t *testing.T) {
	te := New()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, te.RegisterTool(ToolDefinition{Name: name, Description: name, Handler: echoHandler}))
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, te.ListTools())

	defs := te.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "zeta", defs[2].Name)
	assert.Equal(t, 3, te.GetToolCount())
}

func TestExecContextFrom_OutsideExecute(t *testing.T) {
	assert.Nil(t, ExecContextFrom(context.Background()))

	ctx := WithExecContext(context.Background(), nil)
	assert.Nil(t, ExecContextFrom(ctx))
}
