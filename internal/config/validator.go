package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Bedrock model ids look like "amazon.nova-pro-v1:0", cross-region inference
// profiles add a geo prefix ("us.anthropic.claude-3-5-sonnet-20241022-v2:0")
// and provisioned models are addressed by ARN.
var bedrockModelPattern = regexp.MustCompile(`^([a-z]{2}\.)?[a-z0-9-]+\.[A-Za-z0-9._-]+(:[0-9]+)?$`)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case ProviderAnthropic:
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case ProviderOpenAI:
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateModel validates a model identifier for the given provider
func (v *Validator) ValidateModel(provider, model string) error {
	if model == "" {
		return fmt.Errorf("model id cannot be empty")
	}

	if provider == ProviderBedrock {
		if strings.HasPrefix(model, "arn:") {
			return nil
		}
		if !bedrockModelPattern.MatchString(model) {
			return fmt.Errorf("invalid bedrock model id %q", model)
		}
	}

	return nil
}

// ValidateLogLevel validates a zerolog level name
func (v *Validator) ValidateLogLevel(level string) error {
	if level == "" {
		return nil
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	return nil
}
