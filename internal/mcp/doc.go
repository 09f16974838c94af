// Package mcp implements the Model Context Protocol transport described in
// §4.5: a client that consumes external MCP servers over stdio or remote
// HTTP using the official MCP Go SDK, and a stdio server/client pair that
// frames JSON-RPC 2.0 messages LSP-style ("Content-Length: <N>\r\n\r\n<json>")
// for exposing the local Ability Registry as MCP tools.
//
// # Consuming external MCP servers
//
// Client wraps the official SDK client and manages multiple named server
// connections:
//
//	client := mcp.NewClient()
//	err := client.AddServer(ctx, "weather", &mcp.Config{
//		Enabled: true,
//		Type:    mcp.TransportTypeStdio,
//		Command: []string{"python", "-m", "weather_mcp_server"},
//		Timeout: 5000,
//	})
//	tools := client.Tools()
//
// Remote tools are bridged into the shared ability.Registry via
// NewBridgedAbility, after their names pass through SanitizeToolName so
// they fit the ability naming constraints (prefix "mcp_<server>__", 64
// character cap, sha1-suffixed truncation).
//
// # Exposing local abilities over stdio
//
// StdioAbilityServer reads framed JSON-RPC requests from stdin and writes
// framed responses to stdout, serving initialize, tools/list, tools/call,
// and ping against an ability.Scheduler:
//
//	server := mcp.NewStdioAbilityServer(scheduler, mcp.ServerConfig{
//		DefaultUserID:    "local",
//		DefaultSessionID: "local",
//	})
//	err := server.Serve(ctx, os.Stdin, os.Stdout)
//
// StdioClient is the matching client half for talking to another Cerise
// process (or any server speaking the same framing) over a subprocess's
// stdio pipes: it spawns the subprocess, performs the initialize handshake,
// and exposes Request/Notify/ListTools/CallTool.
package mcp
