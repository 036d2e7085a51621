// Package mcpserver exposes the permission engine as MCP tools so an agent
// can ask whether an operation would be allowed before it runs.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/doeshing/sentry-go/internal/application/permission"
	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/ports"
)

// Tool names.
const (
	ToolClassifyCommand    = "classify_command"
	ToolAuthorizeToolCall  = "authorize_tool_call"
	ToolGetPermissionLevel = "get_permission_level"
	ToolSetPermissionLevel = "set_permission_level"
	ToolRecordMessage      = "record_message"
)

type tools struct {
	handler      *permission.Handler
	conversation ports.Conversation
}

// NewServer creates an MCP server backed by handler. Decisions are made
// headless; the MCP client is expected to surface blocks to its user.
func NewServer(handler *permission.Handler, conversation ports.Conversation, version string) *server.MCPServer {
	t := &tools{handler: handler, conversation: conversation}

	s := server.NewMCPServer(
		"sentry",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(mcp.NewTool(ToolClassifyCommand,
		mcp.WithDescription("Classifies a shell command as low, medium or high impact without running it"),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("The shell command to classify"),
		),
	), t.classifyCommand)

	s.AddTool(mcp.NewTool(ToolAuthorizeToolCall,
		mcp.WithDescription("Authorizes an agent tool call against the current permission level and records the decision"),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Tool name, e.g. bash, read, edit, write"),
		),
		mcp.WithObject("input",
			mcp.Description("Tool input, e.g. {\"command\": \"ls\"} or {\"path\": \"README.md\"}"),
		),
	), t.authorizeToolCall)

	s.AddTool(mcp.NewTool(ToolGetPermissionLevel,
		mcp.WithDescription("Returns the current permission level and scheme"),
	), t.getPermissionLevel)

	s.AddTool(mcp.NewTool(ToolSetPermissionLevel,
		mcp.WithDescription("Sets and persists the permission level"),
		mcp.WithString("level",
			mcp.Required(),
			mcp.Description("low, medium or high (yolo with the yolo scheme)"),
		),
	), t.setPermissionLevel)

	s.AddTool(mcp.NewTool(ToolRecordMessage,
		mcp.WithDescription("Records a user message so later decisions can consider the user's intent"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The user's message"),
		),
	), t.recordMessage)

	return s
}

// Serve runs the server over stdio until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func (t *tools) classifyCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, ok := stringArg(request, "command")
	if !ok {
		return mcp.NewToolResultError("command argument is required"), nil
	}
	call := domain.ToolCall{ToolName: "bash", Input: map[string]interface{}{"command": command}}
	return jsonResult(t.handler.Assess(ctx, call, t.conversation))
}

func (t *tools) authorizeToolCall(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, ok := stringArg(request, "tool_name")
	if !ok {
		return mcp.NewToolResultError("tool_name argument is required"), nil
	}
	input := map[string]interface{}{}
	if raw, present := request.GetArguments()["input"]; present && raw != nil {
		object, isObject := raw.(map[string]interface{})
		if !isObject {
			return mcp.NewToolResultError(fmt.Sprintf("input must be an object, got %T", raw)), nil
		}
		input = object
	}
	outcome := t.handler.OnToolCall(ctx, domain.ToolCall{ToolName: name, Input: input}, t.conversation)
	return jsonResult(outcome)
}

func (t *tools) getPermissionLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.state())
}

func (t *tools) setPermissionLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	value, ok := stringArg(request, "level")
	if !ok {
		return mcp.NewToolResultError("level argument is required"), nil
	}
	store := t.handler.Store
	level, err := store.Scheme().Parse(value)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := store.Set(ctx, level, permission.SetOptions{}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(t.state())
}

func (t *tools) recordMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, ok := stringArg(request, "text")
	if !ok {
		return mcp.NewToolResultError("text argument is required"), nil
	}
	if err := t.handler.RecordUserMessage(ctx, text); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("recorded"), nil
}

type levelState struct {
	Level  domain.PermissionLevel `json:"level"`
	Scheme domain.Scheme          `json:"scheme"`
	Widget string                 `json:"widget"`
}

func (t *tools) state() levelState {
	store := t.handler.Store
	level := store.Current()
	return levelState{Level: level, Scheme: store.Scheme(), Widget: permission.WidgetLabel(level)}
}

func stringArg(request mcp.CallToolRequest, key string) (string, bool) {
	value, ok := request.GetArguments()[key].(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

func jsonResult(value interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
