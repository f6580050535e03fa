package toolexecutor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harun/ftrdraft/pkg/mcpsession"
	"github.com/rs/zerolog/log"
)

// ToolSource is an open tool-provider session. *mcpsession.Session
// implements it.
type ToolSource interface {
	ID() string
	ListTools(ctx context.Context) ([]mcpsession.ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcpsession.CallResult, error)
}

// ErrToolReported marks a call the provider completed but flagged as failed.
var ErrToolReported = errors.New("tool reported an error")

// RegisterMCPTools enumerates the tools of an open session and registers
// them. Handlers close over the session, so the tools stop working once it
// is closed. Name conflicts with already registered tools are resolved by
// prefixing the server id. A name listed twice keeps its first entry. The
// descriptors are returned in provider order.
func (te *ToolExecutor) RegisterMCPTools(ctx context.Context, serverID string, source ToolSource) ([]mcpsession.ToolDescriptor, error) {
	if strings.TrimSpace(serverID) == "" {
		return nil, fmt.Errorf("mcp server id is required")
	}
	if source == nil {
		return nil, fmt.Errorf("mcp tool source is required")
	}

	tools, err := source.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch MCP tools: %w", err)
	}

	registered := make([]mcpsession.ToolDescriptor, 0, len(tools))
	seen := make(map[string]bool, len(tools))
	for _, tool := range tools {
		originalName := tool.Name
		if originalName == "" {
			continue
		}
		if seen[originalName] {
			log.Warn().
				Str("tool", originalName).
				Str("server", serverID).
				Msg("Duplicate tool in listing skipped")
			continue
		}
		seen[originalName] = true

		toolName := originalName
		if existing := te.GetTool(toolName); existing != nil && existing.Source != source.ID() {
			toolName = fmt.Sprintf("%s_%s", serverID, originalName)
			log.Warn().
				Str("original_name", originalName).
				Str("prefixed_name", toolName).
				Str("server", serverID).
				Msg("Tool name conflict resolved by prefixing with server id")
		}

		def := ToolDefinition{
			Name:        toolName,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
			Source:      source.ID(),
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				res, err := source.CallTool(ctx, originalName, params)
				if err != nil {
					return nil, err
				}
				if res.IsError {
					withCaller(ctx, log.Debug()).
						Str("tool", originalName).
						Str("server", serverID).
						Msg("Provider reported tool failure")
					return nil, fmt.Errorf("%w: %s", ErrToolReported, res.Text)
				}
				return res.Text, nil
			},
		}

		if err := te.RegisterTool(def); err != nil {
			return registered, fmt.Errorf("failed to register MCP tool %s: %w", toolName, err)
		}

		tool.Name = toolName
		registered = append(registered, tool)
	}

	log.Info().
		Str("server", serverID).
		Str("session_id", source.ID()).
		Int("count", len(registered)).
		Msg("MCP tools registered")

	return registered, nil
}
