// Package agent runs conversational turns against an LLM provider with a
// tool loop over a toolexecutor capability table.
//
// Invariants:
// - Which tools are called is decided by the model alone.
// - Tool failures are reported to the model, never raised to the caller.
// - A failed turn leaves the conversation memory untouched.
// - The tool loop is bounded by Config.MaxTurns.
//
// Usage:
//
//	provider, _ := agent.NewProvider(ctx, agent.ProviderConfig{Region: "us-east-1"})
//	a, _ := agent.New(agent.Config{
//		Model:        "amazon.nova-pro-v1:0",
//		SystemPrompt: ftr.SystemPrompt,
//		Provider:     provider,
//		Tools:        executor,
//	})
//	result, err := a.Invoke(ctx, "Find evidence for DOC-001")
package agent
