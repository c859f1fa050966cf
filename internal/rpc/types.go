// Package rpc serves the migration engine commands as JSON-RPC 2.0 over a
// newline-delimited stream.
package rpc

import "encoding/json"

// Version is the only accepted jsonrpc member.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
)

// EngineErrorCode is the code of every error raised by a command.
const EngineErrorCode = 4466

// Request is a JSON-RPC 2.0 request. A request without id is a
// notification and gets no response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// IsNotification reports a request without id.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// ErrorData describes a command failure. ErrorCode is set for known errors
// only.
type ErrorData struct {
	IsPanic   bool   `json:"is_panic"`
	Message   string `json:"message"`
	Meta      any    `json:"meta"`
	ErrorCode string `json:"error_code,omitempty"`
}

var jsonNull = json.RawMessage("null")
