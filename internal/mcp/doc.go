// Package mcp implements the MCP (Model Context Protocol) client engine
// for OpenChat: connecting to external tool servers, discovering their
// tools, and invoking them on behalf of the chat loop.
//
// MCP uses JSON-RPC 2.0 over two transports: stdio (a spawned subprocess
// speaking newline-delimited JSON on its standard streams) and HTTP
// (one JSON document per POST body). Both are hidden behind the Session
// interface; the Manager caches initialized sessions keyed by the id of
// the persisted server configuration row, and CheckServer provides a
// one-shot connectivity probe for "test this configuration" flows.
//
// Timeouts are enforced at every blocking boundary (spawn, write, read,
// HTTP round-trip) so a misbehaving server can never hang the caller.
// No sensitive values (env var contents, header values, request bodies)
// are logged; only metadata-level information is emitted.
//
// This implementation covers the client/host side only — OpenChat does
// not act as an MCP server.
package mcp
