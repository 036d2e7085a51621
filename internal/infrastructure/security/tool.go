package security

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/ports"
)

// UnknownResolver resolves assessments the rule tables could not map.
type UnknownResolver interface {
	ClassifyUnknown(ctx context.Context, assessment domain.Assessment, conv ports.Conversation) domain.Assessment
}

var readOnlyTools = map[string]bool{
	"read": true,
	"grep": true,
	"find": true,
	"ls":   true,
}

// ToolClassifier assigns an impact assessment to any tool call.
type ToolClassifier struct {
	Rules    *RuleClassifier
	Resolver UnknownResolver
	Behavior domain.Behavior
}

// NewToolClassifier wires a tool classifier. resolver may be nil, in which
// case unknown assessments are returned unresolved.
func NewToolClassifier(rules *RuleClassifier, resolver UnknownResolver, behavior domain.Behavior) *ToolClassifier {
	return &ToolClassifier{Rules: rules, Resolver: resolver, Behavior: behavior}
}

// Classify assesses a tool call, handing unknown results to the resolver.
func (c *ToolClassifier) Classify(ctx context.Context, call domain.ToolCall, conv ports.Conversation) domain.Assessment {
	assessment := c.classifyStatic(call)
	if !assessment.Unknown || c.Resolver == nil {
		return assessment
	}
	return c.Resolver.ClassifyUnknown(ctx, assessment, conv)
}

// ClassifyUserBash assesses a command typed by the user.
func (c *ToolClassifier) ClassifyUserBash(ctx context.Context, command string, conv ports.Conversation) domain.Assessment {
	assessment := c.Rules.ClassifyCommand(command, domain.SourceUserBash)
	if !assessment.Unknown || c.Resolver == nil {
		return assessment
	}
	return c.Resolver.ClassifyUnknown(ctx, assessment, conv)
}

func (c *ToolClassifier) classifyStatic(call domain.ToolCall) domain.Assessment {
	source := domain.AgentSource(call.ToolName)
	switch {
	case call.ToolName == "bash":
		command, _ := call.StringInput("command")
		return c.Rules.ClassifyCommand(command, domain.SourceAgentBash)
	case readOnlyTools[call.ToolName]:
		return domain.Assessment{
			Level:     domain.ImpactLow,
			Source:    source,
			Operation: call.ToolName,
			Reason:    domain.ReasonReadOnlyTool,
		}
	case call.ToolName == "edit" || call.ToolName == "write":
		path, ok := call.StringInput("path")
		if !ok || path == "" {
			path = "(unknown path)"
		}
		level := c.Behavior.GetEditLevel()
		if call.ToolName == "write" {
			level = c.Behavior.GetWriteLevel()
		}
		reason := domain.ReasonEditWriteTool
		if ok && c.isProtected(path) {
			level, reason = domain.ImpactHigh, domain.ReasonProtectedPath
		}
		return domain.Assessment{
			Level:     level,
			Source:    source,
			Operation: call.ToolName + " " + path,
			Reason:    reason,
		}
	default:
		operation := call.ToolName
		if serialized := serializeInput(call.Input); serialized != "" {
			operation += " " + serialized
		}
		return domain.Assessment{
			Level:     domain.ImpactMedium,
			Source:    source,
			Operation: operation,
			Unknown:   true,
			Reason:    domain.ReasonUnmappedTool,
		}
	}
}

// isProtected matches path against the protected globs. Patterns without a
// slash are matched against the base name as well.
func (c *ToolClassifier) isProtected(path string) bool {
	if len(c.Behavior.ProtectedPaths) == 0 {
		return false
	}
	clean := filepath.ToSlash(filepath.Clean(path))
	candidates := []string{clean, strings.TrimPrefix(clean, "/"), filepath.Base(clean)}
	for _, pattern := range c.Behavior.ProtectedPaths {
		for _, candidate := range candidates {
			if ok, err := doublestar.Match(pattern, candidate); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func serializeInput(input map[string]interface{}) string {
	if input == nil {
		return ""
	}
	data, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	return truncate(string(data), domain.ToolInputDisplayLimit)
}
