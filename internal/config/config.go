package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Atlassian Rovo MCP endpoint, reached through the mcp-remote proxy which
// performs the OAuth 2.1 browser login on first use.
const (
	AtlassianMCPEndpoint = "https://mcp.atlassian.com/v1/mcp"
	MCPRemoteCommand     = "npx"

	// DefaultStartupTimeout leaves room for the interactive browser login.
	DefaultStartupTimeout = 120 * time.Second
)

// Supported model providers
const (
	ProviderBedrock   = "bedrock"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// MCPRemoteArgs returns the argument list passed to MCPRemoteCommand.
func MCPRemoteArgs() []string {
	return []string{"-y", "mcp-remote", AtlassianMCPEndpoint}
}

// Config is built once at startup and passed by value into the factories.
type Config struct {
	// AWS
	AWSRegion  string `json:"aws_region" mapstructure:"aws_region"`
	AWSProfile string `json:"aws_profile,omitempty" mapstructure:"aws_profile"`

	// Model
	Model ModelConfig `json:"model" mapstructure:"model"`

	// MCP transport
	MCP MCPConfig `json:"mcp" mapstructure:"mcp"`

	// TurnTimeout bounds a single conversational turn; zero disables it.
	TurnTimeout time.Duration `json:"turn_timeout" mapstructure:"turn_timeout"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// MetricsAddr serves prometheus metrics when set, e.g. ":9464".
	MetricsAddr string `json:"metrics_addr,omitempty" mapstructure:"metrics_addr"`
}

// ModelConfig selects the LLM backend
type ModelConfig struct {
	Provider        string  `json:"provider" mapstructure:"provider"`
	ID              string  `json:"id" mapstructure:"id"`
	Temperature     float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens       int     `json:"max_tokens" mapstructure:"max_tokens"`
	MaxTurns        int     `json:"max_turns" mapstructure:"max_turns"`
	AnthropicAPIKey string  `json:"anthropic_api_key,omitempty" mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string  `json:"openai_api_key,omitempty" mapstructure:"openai_api_key"`
}

// MCPConfig holds the tool-provider subprocess settings
type MCPConfig struct {
	Command        string        `json:"command" mapstructure:"command"`
	Args           []string      `json:"args" mapstructure:"args"`
	StartupTimeout time.Duration `json:"startup_timeout" mapstructure:"startup_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file,omitempty" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() Config {
	return Config{
		AWSRegion: "us-east-1",
		Model: ModelConfig{
			Provider:    ProviderBedrock,
			ID:          "amazon.nova-pro-v1:0",
			Temperature: 0.3,
			MaxTokens:   4096,
			MaxTurns:    10,
		},
		MCP: MCPConfig{
			Command:        MCPRemoteCommand,
			Args:           MCPRemoteArgs(),
			StartupTimeout: DefaultStartupTimeout,
		},
		Logging: LoggingConfig{
			Level:     "warn",
			Redaction: true,
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c Config) String() string {
	masked := c
	if masked.Model.AnthropicAPIKey != "" {
		masked.Model.AnthropicAPIKey = "***"
	}
	if masked.Model.OpenAIAPIKey != "" {
		masked.Model.OpenAIAPIKey = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.AWSRegion == "" && c.Model.Provider == ProviderBedrock {
		return fmt.Errorf("aws region is required for the bedrock provider")
	}

	v := NewValidator()

	switch c.Model.Provider {
	case ProviderBedrock:
	case ProviderAnthropic:
		if err := v.ValidateAPIKey(c.Model.AnthropicAPIKey, ProviderAnthropic); err != nil {
			return err
		}
	case ProviderOpenAI:
		if err := v.ValidateAPIKey(c.Model.OpenAIAPIKey, ProviderOpenAI); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid model provider %q (must be: bedrock, anthropic, openai)", c.Model.Provider)
	}

	if err := v.ValidateModel(c.Model.Provider, c.Model.ID); err != nil {
		return err
	}

	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	if c.Model.MaxTurns <= 0 {
		return fmt.Errorf("max turns must be positive")
	}

	if c.MCP.Command == "" {
		return fmt.Errorf("mcp command is required")
	}
	if c.MCP.StartupTimeout <= 0 {
		return fmt.Errorf("mcp startup timeout must be positive")
	}

	if c.TurnTimeout < 0 {
		return fmt.Errorf("turn timeout cannot be negative")
	}

	if err := v.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}
