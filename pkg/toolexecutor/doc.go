// Package toolexecutor is the runtime capability table handed to agents:
// tool name to handler, description and compiled JSON schema.
//
// Invariants:
// - Tool names are unique; conflicting MCP tools get a server prefix.
// - Arguments are validated against the tool's input schema before the call.
// - Tool failures come back as ToolResult values, never as Go errors.
// - MCP tool handlers close over the session that listed them.
//
// Usage:
//
//	exec := toolexecutor.New()
//	tools, err := exec.RegisterMCPTools(ctx, "atlassian", session)
//	result := exec.Execute(ctx, "searchConfluenceUsingCql", args, nil)
package toolexecutor
