package models

import "time"

// EventKind classifies an observed hook event.
type EventKind string

const (
	KindToolUse      EventKind = "tool_use"
	KindNotification EventKind = "notification"
	KindStop         EventKind = "stop"
)

// Event is a single action observed by a hook invocation. Events come from the
// host tool runner and are read-only to the pipeline. Result is nil when the
// host did not report a tool response.
type Event struct {
	ToolName   string         `yaml:"tool_name,omitempty" json:"tool_name,omitempty"`
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Result     map[string]any `yaml:"result,omitempty" json:"result,omitempty"`
	Kind       EventKind      `yaml:"kind" json:"kind"`
	Timestamp  time.Time      `yaml:"timestamp,omitempty" json:"timestamp,omitempty"`
	SessionID  string         `yaml:"session_id,omitempty" json:"session_id,omitempty"`
	ToolUseID  string         `yaml:"tool_use_id,omitempty" json:"tool_use_id,omitempty"`
	Message    string         `yaml:"message,omitempty" json:"message,omitempty"`

	// StopHookActive is set by the host when a stop hook is already running
	// for this session; analysis is skipped to avoid duplicate summaries.
	StopHookActive bool `yaml:"stop_hook_active,omitempty" json:"stop_hook_active,omitempty"`
}

// StringParam returns the named parameter when it is a non-empty string.
func (e Event) StringParam(key string) string {
	return StringValue(e.Parameters, key)
}

// StringValue returns m[key] when it holds a string, or "" otherwise.
func StringValue(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, ok := m[key].(string)
	if !ok {
		return ""
	}
	return s
}
