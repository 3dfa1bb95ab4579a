package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Request is a JSON-RPC 2.0 request message.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// newRequest creates a JSON-RPC 2.0 request with the given id, method
// and params.
func newRequest(id uint64, method string, params any) *Request {
	return &Request{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// Notification is a JSON-RPC 2.0 notification (no id, no response
// expected).
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// newNotification creates a JSON-RPC 2.0 notification.
func newNotification(method string, params any) *Notification {
	return &Notification{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  params,
	}
}

// Response is a JSON-RPC 2.0 response message. A well-formed response
// carries either Result or Error; a response with neither is treated as
// a successful call whose result is null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface. Only the message crosses the
// engine boundary; callers display it verbatim, so the numeric code is
// not included.
func (e *RPCError) Error() string {
	if e.Message == "" {
		return "rpc error"
	}
	return e.Message
}

// nullResult is the JSON-RPC null value, returned when a response
// carries neither result nor error.
var nullResult = json.RawMessage("null")

// result extracts the result value from a decoded response. An error
// member yields a failure carrying its message (or the fallback "rpc
// error"); a response with neither result nor error yields null.
func (r *Response) result() (json.RawMessage, error) {
	if r.Error != nil {
		return nil, errors.New(r.Error.Error())
	}
	if r.Result == nil {
		return nullResult, nil
	}
	return r.Result, nil
}

// decodeResult extracts the result value from a raw JSON-RPC response
// body. No id correlation is performed — each transport issues exactly
// one read per write, so matching is positional.
func decodeResult(body []byte) (json.RawMessage, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resp.result()
}
