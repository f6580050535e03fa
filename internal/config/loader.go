package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Environment variable names
const (
	EnvAWSRegion       = "AWS_REGION"
	EnvAWSProfile      = "AWS_PROFILE"
	EnvModelID         = "BEDROCK_MODEL_ID"
	EnvModelProvider   = "MODEL_PROVIDER"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvTurnTimeout     = "FTR_TURN_TIMEOUT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFile         = "LOG_FILE"
	EnvMetricsAddr     = "METRICS_ADDR"
)

// DefaultEnvFile is read from the working directory when present.
const DefaultEnvFile = ".env"

// Loader handles configuration loading
type Loader struct {
	envFile string
}

// NewLoader creates a new config loader. An empty envFile disables
// dotenv loading.
func NewLoader(envFile string) *Loader {
	return &Loader{
		envFile: envFile,
	}
}

// Load reads the environment (and the dotenv file, if any) on top of
// DefaultConfig. Real environment variables win over the dotenv file.
func (l *Loader) Load() (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetDefault(EnvAWSRegion, cfg.AWSRegion)
	v.SetDefault(EnvModelID, cfg.Model.ID)
	v.SetDefault(EnvModelProvider, cfg.Model.Provider)
	v.SetDefault(EnvLogLevel, cfg.Logging.Level)

	if l.envFile != "" {
		if _, err := os.Stat(l.envFile); err == nil {
			v.SetConfigFile(l.envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("failed to read env file %s: %w", l.envFile, err)
			}
			// Export the file too: the AWS SDK reads its credentials from
			// the process environment. Variables already set are kept.
			if err := gotenv.Load(l.envFile); err != nil {
				return Config{}, fmt.Errorf("failed to export env file %s: %w", l.envFile, err)
			}
		}
	}

	v.AutomaticEnv()

	cfg.AWSRegion = v.GetString(EnvAWSRegion)
	cfg.AWSProfile = v.GetString(EnvAWSProfile)
	cfg.Model.ID = v.GetString(EnvModelID)
	cfg.Model.Provider = v.GetString(EnvModelProvider)
	cfg.Model.AnthropicAPIKey = v.GetString(EnvAnthropicAPIKey)
	cfg.Model.OpenAIAPIKey = v.GetString(EnvOpenAIAPIKey)
	cfg.Logging.Level = v.GetString(EnvLogLevel)
	cfg.Logging.File = v.GetString(EnvLogFile)
	cfg.MetricsAddr = v.GetString(EnvMetricsAddr)

	if raw := v.GetString(EnvTurnTimeout); raw != "" {
		timeout := v.GetDuration(EnvTurnTimeout)
		if timeout == 0 && raw != "0" && raw != "0s" {
			return Config{}, fmt.Errorf("invalid %s: %q", EnvTurnTimeout, raw)
		}
		cfg.TurnTimeout = timeout
	}

	return cfg, nil
}

// Load is a convenience function that creates a loader and loads the config
func Load(envFile string) (Config, error) {
	return NewLoader(envFile).Load()
}
