package domain

// ProviderKind selects the completer backing the AI assessor.
type ProviderKind string

const (
	ProviderNone      ProviderKind = "none"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderOpenAI    ProviderKind = "openai"
	// ProviderHTTP talks to any chat endpoint described by APIFormat.
	ProviderHTTP ProviderKind = "http"
)

// DefaultMaxTokens caps classifier completions, which only need a tiny JSON
// object back.
const DefaultMaxTokens = 64

// ModelSettings describes the model used for classification and escalation.
type ModelSettings struct {
	Provider   ProviderKind `json:"provider"`
	Name       string       `json:"name"`
	Endpoint   string       `json:"endpoint,omitempty"`
	AuthEnvVar string       `json:"auth_env_var,omitempty"`
	MaxTokens  int          `json:"max_tokens,omitempty"`
	APIFormat  APIFormat    `json:"api_format,omitempty"`
}

// Enabled reports whether a completer should be built at all.
func (m ModelSettings) Enabled() bool {
	return m.Provider != "" && m.Provider != ProviderNone && m.Name != ""
}

// GetMaxTokens returns the completion budget.
func (m ModelSettings) GetMaxTokens() int {
	if m.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return m.MaxTokens
}

// GetAuthEnvVar returns the variable holding the API key.
func (m ModelSettings) GetAuthEnvVar() string {
	if m.AuthEnvVar != "" {
		return m.AuthEnvVar
	}
	switch m.Provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// APIFormat describes the request and response shape of a generic chat
// endpoint. Every field is optional; the zero value is OpenAI compatible.
type APIFormat struct {
	AuthHeaderName    string            `json:"auth_header_name,omitempty"`
	AuthHeaderPrefix  *string           `json:"auth_header_prefix,omitempty"`
	SystemMessageMode string            `json:"system_message_mode,omitempty"`
	ResponseJSONPath  string            `json:"response_json_path,omitempty"`
	ExtraHeaders      map[string]string `json:"extra_headers,omitempty"`
}

const (
	DefaultAuthHeaderName     = "Authorization"
	DefaultAuthHeaderPrefix   = "Bearer "
	SystemMessageModeInline   = "inline"
	SystemMessageModeSeparate = "separate"
	DefaultResponsePath       = "choices[0].message.content"
)

// GetAuthHeaderName returns the authentication header name.
func (f APIFormat) GetAuthHeaderName() string {
	if f.AuthHeaderName == "" {
		return DefaultAuthHeaderName
	}
	return f.AuthHeaderName
}

// GetAuthHeaderPrefix returns the prefix put before the key. An explicit
// empty string is honored.
func (f APIFormat) GetAuthHeaderPrefix() string {
	if f.AuthHeaderPrefix == nil {
		return DefaultAuthHeaderPrefix
	}
	return *f.AuthHeaderPrefix
}

// IsSystemMessageSeparate reports whether the system prompt goes in a
// top-level "system" field.
func (f APIFormat) IsSystemMessageSeparate() bool {
	return f.SystemMessageMode == SystemMessageModeSeparate
}

// GetResponseJSONPath returns where the completion text lives.
func (f APIFormat) GetResponseJSONPath() string {
	if f.ResponseJSONPath == "" {
		return DefaultResponsePath
	}
	return f.ResponseJSONPath
}
