// Package jsonl serves the permission handler to a host process over
// newline-delimited JSON on a pair of streams.
//
// The host sends requests:
//
//	{"id":"1","method":"tool_call","params":{"toolName":"bash","input":{"command":"ls"}}}
//
// and receives one response per request plus unsolicited messages of type
// "select", "notify", "status" and "event". A "select" message is answered
// with a "select_result" request carrying the same id.
package jsonl

import "encoding/json"

// Request methods.
const (
	MethodSessionStart = "session_start"
	MethodToolCall     = "tool_call"
	MethodUserBash     = "user_bash"
	MethodPermission   = "permission"
	MethodCycle        = "cycle"
	MethodStatus       = "status"
	MethodShortcut     = "shortcut"
	MethodMessage      = "message"
	MethodSystemPrompt = "system_prompt"
	MethodSelectResult = "select_result"
)

// Message types written by the server.
const (
	TypeResponse = "response"
	TypeSelect   = "select"
	TypeNotify   = "notify"
	TypeStatus   = "status"
	TypeEvent    = "event"
)

// Error codes.
const (
	CodeParseError    = "parse_error"
	CodeInvalidParams = "invalid_params"
	CodeUnknownMethod = "unknown_method"
	CodeInternal      = "internal_error"
	CodeUnknownSelect = "unknown_select"
)

// Request is one line from the host.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Message is one line to the host. Only the fields of its type are set.
type Message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	Title   string          `json:"title,omitempty"`
	Options []string        `json:"options,omitempty"`
	Message string          `json:"message,omitempty"`
	Level   string          `json:"level,omitempty"`
	Text    string          `json:"text,omitempty"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Error is a failed request.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sessionStartParams struct {
	PermissionLevel string `json:"permission_level"`
}

type argsParams struct {
	Args string `json:"args"`
}

type messageParams struct {
	Text string `json:"text"`
}

type selectResultParams struct {
	ID     string `json:"id"`
	Choice string `json:"choice"`
}

// LevelResult reports the level after a command.
type LevelResult struct {
	Level string `json:"level"`
}

// StatusResult describes the current permission state.
type StatusResult struct {
	Level    string `json:"level"`
	Scheme   string `json:"scheme"`
	Shortcut string `json:"shortcut"`
	Widget   string `json:"widget"`
}

// UserBashResult carries the blocked execution result, if any.
type UserBashResult struct {
	Result  interface{} `json:"result"`
	Outcome interface{} `json:"outcome"`
}
