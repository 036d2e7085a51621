package domain

import (
	"encoding/json"
	"time"
)

// Session log entry types.
const (
	EntryTypeCustom      = "custom"
	EntryTypeMessage     = "message"
	CustomTypePermission = "permission-level"
)

// SessionEntry is one record of the append-only session log.
type SessionEntry struct {
	Type       string          `json:"type"`
	CustomType string          `json:"customType,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// PermissionLevelData is the payload of a permission-level entry.
type PermissionLevelData struct {
	Level PermissionLevel `json:"level"`
}

// MessageData is the payload of a message entry.
type MessageData struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// NewPermissionEntry builds the custom entry that persists a level.
func NewPermissionEntry(level PermissionLevel, at time.Time) SessionEntry {
	data, _ := json.Marshal(PermissionLevelData{Level: level})
	return SessionEntry{Type: EntryTypeCustom, CustomType: CustomTypePermission, Data: data, Timestamp: at}
}

// NewMessageEntry builds a conversation message entry.
func NewMessageEntry(role, text string, at time.Time) SessionEntry {
	data, _ := json.Marshal(MessageData{Role: role, Text: text})
	return SessionEntry{Type: EntryTypeMessage, Data: data, Timestamp: at}
}

// PermissionLevel extracts the level from a permission-level entry.
func (e SessionEntry) PermissionLevel() (PermissionLevel, bool) {
	if e.Type != EntryTypeCustom || e.CustomType != CustomTypePermission {
		return "", false
	}
	var data PermissionLevelData
	if err := json.Unmarshal(e.Data, &data); err != nil || data.Level == "" {
		return "", false
	}
	return data.Level, true
}

// UserText extracts the text of a user message entry.
func (e SessionEntry) UserText() (string, bool) {
	if e.Type != EntryTypeMessage {
		return "", false
	}
	var data MessageData
	if err := json.Unmarshal(e.Data, &data); err != nil || data.Role != "user" || data.Text == "" {
		return "", false
	}
	return data.Text, true
}

// DecisionRecord is the audit trail of one authorization.
type DecisionRecord struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"session_id"`
	Timestamp       time.Time       `json:"timestamp"`
	Source          string          `json:"source"`
	Operation       string          `json:"operation"`
	Level           ImpactLevel     `json:"level"`
	Unknown         bool            `json:"unknown"`
	Reason          string          `json:"reason"`
	PermissionLevel PermissionLevel `json:"permission_level"`
	Allowed         bool            `json:"allowed"`
	BlockReason     string          `json:"block_reason,omitempty"`
}

// DecisionStats summarizes the audit store.
type DecisionStats struct {
	Total   int                 `json:"total"`
	Allowed int                 `json:"allowed"`
	Blocked int                 `json:"blocked"`
	Unknown int                 `json:"unknown"`
	ByLevel map[ImpactLevel]int `json:"by_level"`
}
