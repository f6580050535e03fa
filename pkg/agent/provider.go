package agent

import (
	"context"
	"fmt"
)

// Provider names
const (
	ProviderBedrock   = "bedrock"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// LLMProvider is an interface for LLM API providers
type LLMProvider interface {
	// Call makes an LLM API call
	Call(ctx context.Context, request LLMRequest) (*LLMResponse, error)

	// Provider returns the provider name
	Provider() string
}

// LLMRequest contains the request parameters for LLM call
type LLMRequest struct {
	Model        string
	Messages     []AgentMessage
	Tools        []ToolSpec
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// LLMResponse contains the response from LLM
type LLMResponse struct {
	Content    string
	ToolCalls  []ToolCall
	Usage      *TokenUsage
	StopReason string
}

// ProviderConfig selects and authenticates a model backend
type ProviderConfig struct {
	Provider        string
	Region          string
	Profile         string
	AnthropicAPIKey string
	OpenAIAPIKey    string
}

// NewProvider creates an LLM provider. An empty provider name selects
// Bedrock.
func NewProvider(ctx context.Context, cfg ProviderConfig) (LLMProvider, error) {
	switch cfg.Provider {
	case ProviderBedrock, "":
		return NewBedrockProvider(ctx, cfg.Region, cfg.Profile)
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		return NewAnthropicProvider(cfg.AnthropicAPIKey), nil
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAIProvider(cfg.OpenAIAPIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
