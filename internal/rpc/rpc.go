// Package rpc implements the JSON-RPC 2.0 tool surface: the server-side
// dispatcher mounted under the REST router and the stdio relay that bridges
// line-delimited agent clients to it.
package rpc

import "encoding/json"

// Version is the only JSON-RPC protocol version accepted.
const Version = "2.0"

// protocolVersion is the tool-protocol revision reported by initialize.
const protocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeToolError      = -32000
)

// Request is a JSON-RPC 2.0 request envelope. A request without an id is a
// notification and must never be answered.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func result(id json.RawMessage, v any) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: v}
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	if id == nil {
		id = json.RawMessage("null")
	}
	return &Response{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: message}}
}
