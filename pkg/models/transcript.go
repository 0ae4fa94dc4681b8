package models

import "time"

// EntryRole identifies what produced a transcript entry.
type EntryRole string

const (
	RoleUser       EntryRole = "user"
	RoleAssistant  EntryRole = "assistant"
	RoleToolCall   EntryRole = "tool_call"
	RoleToolResult EntryRole = "tool_result"
)

// TranscriptEntry is one logical entry of a Claude Code session transcript.
// A single JSONL line can expand into several entries (assistant text followed
// by its tool_use blocks, for example). Index is the only ordering guarantee;
// a zero Timestamp means the line carried no timestamp.
type TranscriptEntry struct {
	Index     int            `yaml:"index" json:"index"`
	Role      EntryRole      `yaml:"role" json:"role"`
	Timestamp time.Time      `yaml:"timestamp,omitempty" json:"timestamp,omitempty"`
	Text      string         `yaml:"text,omitempty" json:"text,omitempty"`
	ToolName  string         `yaml:"tool_name,omitempty" json:"tool_name,omitempty"`
	ToolInput map[string]any `yaml:"tool_input,omitempty" json:"tool_input,omitempty"`
	ToolUseID string         `yaml:"tool_use_id,omitempty" json:"tool_use_id,omitempty"`
	IsError   bool           `yaml:"is_error,omitempty" json:"is_error,omitempty"`
	UUID      string         `yaml:"uuid,omitempty" json:"uuid,omitempty"`
}

// IsTurn reports whether the entry is a conversational user or assistant turn.
func (e TranscriptEntry) IsTurn() bool {
	return e.Role == RoleUser || e.Role == RoleAssistant
}

// ContextWindow is the conversational context selected for a single event.
// It is derived per event and never cached, since the transcript keeps growing.
type ContextWindow struct {
	PrecedingUserTurn      *TranscriptEntry `yaml:"preceding_user_turn,omitempty" json:"preceding_user_turn,omitempty"`
	PrecedingAssistantTurn *TranscriptEntry `yaml:"preceding_assistant_turn,omitempty" json:"preceding_assistant_turn,omitempty"`
	TurnsConsidered        int              `yaml:"turns_considered" json:"turns_considered"`
}

// Empty reports whether no context turn was found.
func (w ContextWindow) Empty() bool {
	return w.PrecedingUserTurn == nil && w.PrecedingAssistantTurn == nil
}
