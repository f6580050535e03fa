package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverse struct {
	input  *bedrockruntime.ConverseInput
	output *bedrockruntime.ConverseOutput
	err    error
}

func (f *fakeConverse) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.output, f.err
}

func textOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
			},
		},
		StopReason: types.StopReasonEndTurn,
		Usage: &types.TokenUsage{
			InputTokens:  aws.Int32(12),
			OutputTokens: aws.Int32(4),
			TotalTokens:  aws.Int32(16),
		},
	}
}

func TestBedrockProvider_BuildsConverseInput(t *testing.T) {
	fake := &fakeConverse{output: textOutput("answer")}
	p := NewBedrockProviderWithClient(fake)

	resp, err := p.Call(context.Background(), LLMRequest{
		Model:        "amazon.nova-pro-v1:0",
		SystemPrompt: "system",
		Temperature:  0.3,
		MaxTokens:    512,
		Messages: []AgentMessage{
			{Role: RoleUser, Content: "find docs"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{
				{ID: "t1", Name: "searchConfluenceUsingCql", Parameters: map[string]interface{}{"cql": "a"}},
				{ID: "t2", Name: "getConfluenceSpaces"},
			}},
			{Role: RoleTool, ToolCallID: "t1", Content: "hit"},
			{Role: RoleTool, ToolCallID: "t2", Content: "boom", IsError: true},
		},
		Tools: []ToolSpec{{
			Name:        "searchConfluenceUsingCql",
			Description: "Search",
			InputSchema: map[string]interface{}{"type": "object"},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "answer", resp.Content)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, "end_turn", resp.StopReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 4, resp.Usage.OutputTokens)

	in := fake.input
	require.NotNil(t, in)
	assert.Equal(t, "amazon.nova-pro-v1:0", aws.ToString(in.ModelId))
	require.Len(t, in.System, 1)
	assert.Equal(t, int32(512), aws.ToInt32(in.InferenceConfig.MaxTokens))
	assert.InDelta(t, 0.3, float64(aws.ToFloat32(in.InferenceConfig.Temperature)), 0.0001)

	require.NotNil(t, in.ToolConfig)
	require.Len(t, in.ToolConfig.Tools, 1)
	spec, ok := in.ToolConfig.Tools[0].(*types.ToolMemberToolSpec)
	require.True(t, ok)
	assert.Equal(t, "searchConfluenceUsingCql", aws.ToString(spec.Value.Name))

	// user, assistant(tool uses), user(both tool results)
	require.Len(t, in.Messages, 3)
	assert.Equal(t, types.ConversationRoleAssistant, in.Messages[1].Role)
	assert.Len(t, in.Messages[1].Content, 2)

	results := in.Messages[2]
	assert.Equal(t, types.ConversationRoleUser, results.Role)
	require.Len(t, results.Content, 2)
	second, ok := results.Content[1].(*types.ContentBlockMemberToolResult)
	require.True(t, ok)
	assert.Equal(t, "t2", aws.ToString(second.Value.ToolUseId))
	assert.Equal(t, types.ToolResultStatusError, second.Value.Status)
}

func TestBedrockProvider_ParsesToolUse(t *testing.T) {
	fake := &fakeConverse{output: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Role: types.ConversationRoleAssistant,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: "Searching."},
					&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
						ToolUseId: aws.String("tooluse_1"),
						Name:      aws.String("searchConfluenceUsingCql"),
						Input:     document.NewLazyDocument(map[string]interface{}{"cql": "space = FTR"}),
					}},
				},
			},
		},
		StopReason: types.StopReasonToolUse,
	}}
	p := NewBedrockProviderWithClient(fake)

	resp, err := p.Call(context.Background(), LLMRequest{
		Model:    "amazon.nova-pro-v1:0",
		Messages: []AgentMessage{{Role: RoleUser, Content: "search"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Searching.", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	call := resp.ToolCalls[0]
	assert.Equal(t, "tooluse_1", call.ID)
	assert.Equal(t, "searchConfluenceUsingCql", call.Name)
	assert.Equal(t, "space = FTR", call.Parameters["cql"])
	assert.Nil(t, resp.Usage)
	assert.Nil(t, fake.input.ToolConfig)
}

func TestBedrockProvider_Error(t *testing.T) {
	fake := &fakeConverse{err: errors.New("AccessDeniedException")}
	p := NewBedrockProviderWithClient(fake)

	_, err := p.Call(context.Background(), LLMRequest{Model: "m", Messages: []AgentMessage{{Role: RoleUser, Content: "x"}}})
	assert.Error(t, err)
	assert.Equal(t, ProviderBedrock, p.Provider())
}

func TestToBedrockMessages_NoBlankText(t *testing.T) {
	msgs := toBedrockMessages([]AgentMessage{
		{Role: RoleUser, Content: "  "},
		{Role: RoleAssistant},
	})

	require.Len(t, msgs, 2)
	text, ok := msgs[0].Content[0].(*types.ContentBlockMemberText)
	require.True(t, ok)
	assert.NotEmpty(t, text.Value)
	assert.Len(t, msgs[1].Content, 1)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(context.Background(), ProviderConfig{Provider: "gemini"})
	assert.Error(t, err)

	_, err = NewProvider(context.Background(), ProviderConfig{Provider: ProviderAnthropic})
	assert.Error(t, err)

	p, err := NewProvider(context.Background(), ProviderConfig{Provider: ProviderOpenAI, OpenAIAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Provider())

	p, err = NewProvider(context.Background(), ProviderConfig{Provider: ProviderAnthropic, AnthropicAPIKey: "sk-ant-test"})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p.Provider())
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"cql"}, requiredFields(map[string]interface{}{"required": []interface{}{"cql"}}))
	assert.Equal(t, []string{"a"}, requiredFields(map[string]interface{}{"required": []string{"a"}}))
	assert.Nil(t, requiredFields(map[string]interface{}{}))
}

func TestDecodeToolInput(t *testing.T) {
	params, err := decodeToolInput(document.NewLazyDocument(map[string]interface{}{"cql": "x", "limit": 10}))
	require.NoError(t, err)
	assert.Equal(t, "x", params["cql"])
	assert.Equal(t, float64(10), params["limit"])

	empty, err := decodeToolInput(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
