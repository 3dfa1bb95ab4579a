package mcp

import "time"

// jsonrpcVersion is the JSON-RPC protocol version used by MCP.
const jsonrpcVersion = "2.0"

// protocolVersion is the MCP protocol version advertised during the
// initialize handshake.
const protocolVersion = "2024-11-05"

// clientName identifies this client in the initialize handshake.
const clientName = "OpenChat"

// MCP method names used by this engine.
const (
	methodInitialize  = "initialize"
	methodToolsList   = "tools/list"
	methodToolsCall   = "tools/call"
	methodPing        = "ping"
	methodInitialized = "notifications/initialized"
)

// Default per-operation timeouts, applied whenever the caller passes a
// zero or negative value. Persisted server rows may additionally
// override the connect timeout per server.
const (
	DefaultConnectTimeout   = 5 * time.Second
	DefaultListToolsTimeout = 5 * time.Second
	DefaultToolCallTimeout  = 20 * time.Second
)
