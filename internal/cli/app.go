package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harun/ftrdraft/internal/assistant"
	"github.com/harun/ftrdraft/internal/config"
	"github.com/harun/ftrdraft/internal/logger"
	"github.com/harun/ftrdraft/internal/observability"
	"github.com/harun/ftrdraft/internal/tracing"
	"github.com/harun/ftrdraft/pkg/agent"
	"github.com/harun/ftrdraft/pkg/mcpsession"
	"github.com/harun/ftrdraft/pkg/toolexecutor"
	"github.com/spf13/cobra"
)

// app holds what a command needs for one run
type app struct {
	cfg       config.Config
	log       *logger.Logger
	assistant *assistant.Assistant
	ctx       context.Context
	stop      context.CancelFunc
}

// loadConfig reads the environment and applies command line overrides
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp builds config, logging, tracing, metrics, the model provider and
// the session factory. The returned context is cancelled on SIGINT or
// SIGTERM.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
		Output:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := tracing.InitOpenTelemetry("ftrdraft", version); err != nil {
		log.Warn().Err(err).Msg("OpenTelemetry disabled")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := observability.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics server stopped")
			}
		}()
	}

	provider, err := agent.NewProvider(ctx, agent.ProviderConfig{
		Provider:        cfg.Model.Provider,
		Region:          cfg.AWSRegion,
		Profile:         cfg.AWSProfile,
		AnthropicAPIKey: cfg.Model.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.Model.OpenAIAPIKey,
	})
	if err != nil {
		stop()
		_ = log.Close()
		return nil, err
	}

	factory := mcpsession.NewFactory(mcpsession.Config{
		Command:        cfg.MCP.Command,
		Args:           cfg.MCP.Args,
		StartupTimeout: cfg.MCP.StartupTimeout,
		ClientName:     "ftrdraft",
		ClientVersion:  version,
		Stderr:         cmd.ErrOrStderr(),
	}, log.Component("mcp"))

	var policy *toolexecutor.ToolPolicy
	if readOnly {
		policy = toolexecutor.ReadOnlyPolicy()
	}

	agentLogger := log.Component("agent")
	asst, err := assistant.New(assistant.Options{
		NewSession: func() assistant.ToolSession {
			return factory.NewSession()
		},
		NewAgent: func(systemPrompt string, tools *toolexecutor.ToolExecutor) (assistant.Conversation, error) {
			return agent.New(agent.Config{
				Model:        cfg.Model.ID,
				SystemPrompt: systemPrompt,
				Provider:     provider,
				Tools:        tools,
				ToolPolicy:   policy,
				MaxTurns:     cfg.Model.MaxTurns,
				Temperature:  cfg.Model.Temperature,
				MaxTokens:    cfg.Model.MaxTokens,
				Logger:       agentLogger,
			})
		},
		StartupTimeout: cfg.MCP.StartupTimeout,
		TurnTimeout:    cfg.TurnTimeout,
		In:             cmd.InOrStdin(),
		Out:            cmd.OutOrStdout(),
		Logger:         log.GetZerolog(),
	})
	if err != nil {
		stop()
		_ = log.Close()
		return nil, err
	}

	log.Debug().
		Str("provider", provider.Provider()).
		Str("model", cfg.Model.ID).
		Bool("read_only", readOnly).
		Msg("Assistant ready")

	return &app{
		cfg:       cfg,
		log:       log,
		assistant: asst,
		ctx:       ctx,
		stop:      stop,
	}, nil
}

// close flushes traces and releases the log file
func (a *app) close() {
	a.stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
		a.log.Debug().Err(err).Msg("Tracer shutdown failed")
	}
	_ = a.log.Close()
}
