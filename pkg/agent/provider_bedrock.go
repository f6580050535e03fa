package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// ConverseAPI is the part of the Bedrock runtime client the provider uses
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockProvider implements LLMProvider with the Bedrock Converse API
type BedrockProvider struct {
	client ConverseAPI
}

// NewBedrockProvider loads the default AWS credential chain for region and
// optional shared-config profile.
func NewBedrockProvider(ctx context.Context, region, profile string) (*BedrockProvider, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewBedrockProviderWithClient(bedrockruntime.NewFromConfig(awsCfg)), nil
}

// NewBedrockProviderWithClient wraps an existing Converse client
func NewBedrockProviderWithClient(client ConverseAPI) *BedrockProvider {
	return &BedrockProvider{client: client}
}

// Provider returns the provider name
func (p *BedrockProvider) Provider() string {
	return ProviderBedrock
}

// Call makes a Converse call
func (p *BedrockProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(request.Model),
		Messages: toBedrockMessages(request.Messages),
	}

	if request.SystemPrompt != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: request.SystemPrompt},
		}
	}

	inference := &types.InferenceConfiguration{}
	if request.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(int32(request.MaxTokens))
	}
	if request.Temperature > 0 {
		inference.Temperature = aws.Float32(float32(request.Temperature))
	}
	input.InferenceConfig = inference

	if len(request.Tools) > 0 {
		tools := make([]types.Tool, 0, len(request.Tools))
		for _, spec := range request.Tools {
			toolSpec := types.ToolSpecification{
				Name: aws.String(spec.Name),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(spec.InputSchema),
				},
			}
			if spec.Description != "" {
				toolSpec.Description = aws.String(spec.Description)
			}
			tools = append(tools, &types.ToolMemberToolSpec{Value: toolSpec})
		}
		input.ToolConfig = &types.ToolConfiguration{Tools: tools}
	}

	output, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, err
	}

	msg, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected converse output type %T", output.Output)
	}

	var content strings.Builder
	toolCalls := []ToolCall{}

	for _, block := range msg.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			content.WriteString(b.Value)
		case *types.ContentBlockMemberToolUse:
			params, err := decodeToolInput(b.Value.Input)
			if err != nil {
				return nil, err
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:         aws.ToString(b.Value.ToolUseId),
				Name:       aws.ToString(b.Value.Name),
				Parameters: params,
			})
		}
	}

	resp := &LLMResponse{
		Content:    content.String(),
		ToolCalls:  toolCalls,
		StopReason: string(output.StopReason),
	}
	if output.Usage != nil {
		resp.Usage = &TokenUsage{
			InputTokens:  int(aws.ToInt32(output.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(output.Usage.OutputTokens)),
		}
	}

	return resp, nil
}

// toBedrockMessages converts history to Converse messages. Consecutive tool
// results become one user message of tool-result blocks.
func toBedrockMessages(messages []AgentMessage) []types.Message {
	out := make([]types.Message, 0, len(messages))

	for _, group := range groupToolResults(messages) {
		msg := group[0]

		switch msg.Role {
		case RoleTool:
			blocks := make([]types.ContentBlock, 0, len(group))
			for _, result := range group {
				status := types.ToolResultStatusSuccess
				if result.IsError {
					status = types.ToolResultStatusError
				}
				blocks = append(blocks, &types.ContentBlockMemberToolResult{
					Value: types.ToolResultBlock{
						ToolUseId: aws.String(result.ToolCallID),
						Content: []types.ToolResultContentBlock{
							&types.ToolResultContentBlockMemberText{Value: nonEmpty(result.Content)},
						},
						Status: status,
					},
				})
			}
			out = append(out, types.Message{Role: types.ConversationRoleUser, Content: blocks})

		case RoleAssistant:
			blocks := []types.ContentBlock{}
			if msg.Content != "" {
				blocks = append(blocks, &types.ContentBlockMemberText{Value: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				params := tc.Parameters
				if params == nil {
					params = map[string]interface{}{}
				}
				blocks = append(blocks, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(tc.ID),
						Name:      aws.String(tc.Name),
						Input:     document.NewLazyDocument(params),
					},
				})
			}
			if len(blocks) == 0 {
				blocks = append(blocks, &types.ContentBlockMemberText{Value: nonEmpty("")})
			}
			out = append(out, types.Message{Role: types.ConversationRoleAssistant, Content: blocks})

		case RoleUser:
			out = append(out, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: nonEmpty(msg.Content)}},
			})
		}
	}

	return out
}

// decodeToolInput goes through JSON so numbers come back as float64 and
// not as smithy document numbers.
func decodeToolInput(input document.Interface) (map[string]interface{}, error) {
	params := map[string]interface{}{}
	if input == nil {
		return params, nil
	}

	raw, err := input.MarshalSmithyDocument()
	if err != nil {
		return nil, fmt.Errorf("failed to read tool input: %w", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return params, nil
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("failed to parse tool input: %w", err)
	}
	return params, nil
}

// nonEmpty substitutes a placeholder, Converse rejects blank text blocks
func nonEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(empty)"
	}
	return s
}
