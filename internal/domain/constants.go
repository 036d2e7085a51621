package domain

import "time"

// File permissions
const (
	DirectoryPermissions  = 0o755
	SecureFilePermissions = 0o600
)

// Environment variables read at startup.
const (
	EnvHome     = "SENTRY_HOME"
	EnvConfig   = "SENTRY_CONFIG"
	EnvDebug    = "SENTRY_DEBUG"
	EnvLogLevel = "SENTRY_LOG_LEVEL"
	EnvSession  = "SENTRY_SESSION"
)

// Truncation limits used when building prompts and summaries.
const (
	CompoundOperationDisplayLimit = 30
	ToolInputDisplayLimit         = 300
	PromptOperationLimit          = 1200
	HistoryMessageLimit           = 350
	HistoryMessageCount           = 3
)

// History constants
const (
	DefaultHistoryLimit = 20
	DefaultHTTPTimeout  = 60 * time.Second
	TimestampFormat     = time.RFC3339
)
