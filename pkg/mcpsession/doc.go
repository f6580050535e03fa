// Package mcpsession opens scoped Model Context Protocol sessions against a
// tool provider reached through a local subprocess (stdio transport).
//
// Invariants:
// - Factory.NewSession performs no process or network I/O.
// - Open launches the subprocess and completes the MCP handshake within the
//   configured startup timeout, or returns a *StartupError and leaves nothing
//   running.
// - Close releases the subprocess at most once and is safe to defer.
// - Tools listed by a session are only callable through that session.
//
// Usage:
//
//	factory := mcpsession.NewFactory(mcpsession.Config{
//		Command:        "npx",
//		Args:           []string{"-y", "mcp-remote", "https://mcp.atlassian.com/v1/mcp"},
//		StartupTimeout: 120 * time.Second,
//	}, logger)
//	session := factory.NewSession()
//	if err := session.Open(ctx); err != nil {
//		return err
//	}
//	defer session.Close()
//	tools, _ := session.ListTools(ctx)
package mcpsession
