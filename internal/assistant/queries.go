package assistant

import (
	"context"
	"fmt"

	"github.com/harun/ftrdraft/internal/tracing"
	"github.com/harun/ftrdraft/pkg/ftr"
	"github.com/harun/ftrdraft/pkg/mcpsession"
)

// SearchConfluence runs a single search request in its own session
func (a *Assistant) SearchConfluence(ctx context.Context, query string) (string, error) {
	return a.ask(ctx, ftr.SearchSystemPrompt, ftr.SearchPrompt(query))
}

// ListConfluenceSpaces asks for the spaces visible to the signed-in user
func (a *Assistant) ListConfluenceSpaces(ctx context.Context) (string, error) {
	return a.ask(ctx, ftr.SpacesSystemPrompt, ftr.SpacesPrompt)
}

// GetFTREvidence looks for documentation backing one FTR requirement.
// Inputs are not validated here; see ftr.ValidateRequirement.
func (a *Assistant) GetFTREvidence(ctx context.Context, competency, requirementID string) (string, error) {
	return a.ask(ctx, ftr.SystemPrompt, ftr.EvidencePrompt(competency, requirementID))
}

// ListTools opens a session only to enumerate its tools
func (a *Assistant) ListTools(ctx context.Context) ([]mcpsession.ToolDescriptor, error) {
	ctx = tracing.NewRunContext(ctx)

	session, _, descs, err := a.openTools(ctx)
	if err != nil {
		return nil, err
	}
	defer a.release(session)

	return descs, nil
}

// ask opens a session, sends one request to a fresh agent and releases
// the session before returning.
func (a *Assistant) ask(ctx context.Context, systemPrompt, prompt string) (string, error) {
	ctx = tracing.NewRunContext(ctx)

	session, tools, _, err := a.openTools(ctx)
	if err != nil {
		return "", err
	}
	defer a.release(session)

	conv, err := a.opts.NewAgent(systemPrompt, tools)
	if err != nil {
		return "", fmt.Errorf("failed to create agent: %w", err)
	}

	result, err := a.invoke(tracing.WithSessionID(ctx, session.ID()), conv, prompt)
	if err != nil {
		return "", err
	}
	return result.String(), nil
}
