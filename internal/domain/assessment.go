package domain

// Source tags identify where an operation came from.
const (
	SourceAgentBash = "agent:bash"
	SourceUserBash  = "user:bash"
)

// AgentSource returns the source tag for an agent tool call.
func AgentSource(tool string) string {
	return "agent:" + tool
}

// Reasons attached by the pipeline stages.
const (
	ReasonEmpty            = "empty"
	ReasonUnmappedCommand  = "unmapped command"
	ReasonUnmappedTool     = "unmapped tool"
	ReasonReadOnlyTool     = "read-only tool"
	ReasonEditWriteTool    = "edit/write tool"
	ReasonProtectedPath    = "protected path"
	ReasonAIClassified     = "ai-classified"
	ReasonAIUnavailable    = "ai-unavailable-default-high"
	ReasonHistoryEscalated = "history-escalated"
)

// Assessment is the impact assessment of one operation. Pipeline stages
// return modified copies and never mutate a received value.
type Assessment struct {
	Level     ImpactLevel `json:"level"`
	Source    string      `json:"source"`
	Operation string      `json:"operation"`
	Unknown   bool        `json:"unknown"`
	Reason    string      `json:"reason"`
	// Floor is the highest level among the rule-matched parts of an unknown
	// compound command. Later stages never resolve below it.
	Floor ImpactLevel `json:"floor,omitempty"`
}

// WithLevel returns a copy with a new level and reason.
func (a Assessment) WithLevel(level ImpactLevel, reason string) Assessment {
	a.Level = level
	a.Reason = reason
	return a
}

// Resolved returns a known copy with the given level, raised to the floor,
// and reason.
func (a Assessment) Resolved(level ImpactLevel, reason string) Assessment {
	if a.Floor != "" {
		level = MaxImpact(level, a.Floor)
	}
	a.Level = level
	a.Reason = reason
	a.Unknown = false
	a.Floor = ""
	return a
}

// ImpactLabel is the level name, or "unknown" for unresolved assessments.
func (a Assessment) ImpactLabel() string {
	if a.Unknown {
		return "unknown"
	}
	return string(a.Level)
}

// Decision is the outcome of an authorization.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow is the decision for an approved operation.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Block is the decision for a rejected operation.
func Block(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// ToolCall is an agent tool invocation awaiting authorization.
type ToolCall struct {
	ToolName string                 `json:"toolName"`
	Input    map[string]interface{} `json:"input"`
}

// StringInput returns input[key] when it is a string.
func (c ToolCall) StringInput(key string) (string, bool) {
	if c.Input == nil {
		return "", false
	}
	value, ok := c.Input[key].(string)
	return value, ok
}

// BashEvent is a shell command typed by the user.
type BashEvent struct {
	Command string `json:"command"`
}

// BashResult is the synthetic execution result returned for a blocked
// user command.
type BashResult struct {
	Output    string `json:"output"`
	ExitCode  int    `json:"exitCode"`
	Cancelled bool   `json:"cancelled"`
	Truncated bool   `json:"truncated"`
}

// BlockedBash builds the failed result for a rejected user command.
func BlockedBash(reason string) *BashResult {
	return &BashResult{Output: reason, ExitCode: 1}
}
