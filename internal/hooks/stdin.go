package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

// Hook event names sent by Claude Code in hook_event_name.
const (
	EventPostToolUse  = "PostToolUse"
	EventNotification = "Notification"
	EventStop         = "Stop"
	EventSessionEnd   = "SessionEnd"
)

// HookInput is the stdin JSON of every hook invocation. The legacy keys
// event, tool and parameters are accepted for older hook wrappers.
type HookInput struct {
	SessionID      string         `json:"session_id"`
	HookEventName  string         `json:"hook_event_name"`
	ToolName       string         `json:"tool_name"`
	ToolInput      map[string]any `json:"tool_input"`
	ToolResponse   any            `json:"tool_response"`
	ToolUseID      string         `json:"tool_use_id"`
	TranscriptPath string         `json:"transcript_path"`
	CWD            string         `json:"cwd"`
	Message        string         `json:"message"`
	Reason         string         `json:"reason"`
	StopHookActive bool           `json:"stop_hook_active"`
	Timestamp      string         `json:"timestamp"`

	LegacyEvent      string         `json:"event"`
	LegacyTool       string         `json:"tool"`
	LegacyParameters map[string]any `json:"parameters"`
}

// ParseStdin reads JSON from the given reader into a new instance of T.
func ParseStdin[T any](r io.Reader) (*T, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	if len(data) == 0 {
		// Return zero-value struct when no input is provided.
		var zero T
		return &zero, nil
	}
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing stdin JSON: %w", err)
	}
	return &result, nil
}

// EventName returns the hook event name, falling back to the legacy key.
func (in HookInput) EventName() string {
	if in.HookEventName != "" {
		return in.HookEventName
	}
	return in.LegacyEvent
}

// Kind maps the hook event name onto an event kind. Unknown names are
// treated as tool use so that PreToolUse-style wrappers still work.
func (in HookInput) Kind() models.EventKind {
	switch in.EventName() {
	case EventNotification:
		return models.KindNotification
	case EventStop, EventSessionEnd:
		return models.KindStop
	default:
		return models.KindToolUse
	}
}

// ToEvent converts the raw hook input into a pipeline event. now is used
// when the input carries no parseable timestamp.
func (in HookInput) ToEvent(now time.Time) models.Event {
	ev := models.Event{
		ToolName:       in.ToolName,
		Parameters:     in.ToolInput,
		Result:         responseMap(in.ToolResponse),
		Kind:           in.Kind(),
		Timestamp:      parseTimestamp(in.Timestamp, now),
		SessionID:      in.SessionID,
		ToolUseID:      in.ToolUseID,
		Message:        in.Message,
		StopHookActive: in.StopHookActive,
	}
	if ev.ToolName == "" {
		ev.ToolName = in.LegacyTool
	}
	if ev.Parameters == nil {
		ev.Parameters = in.LegacyParameters
	}
	return ev
}

// responseMap normalises tool_response, which the host sends either as an
// object or as a bare string (for example Bash output in older versions).
func responseMap(raw any) map[string]any {
	switch v := raw.(type) {
	case nil:
		return nil
	case map[string]any:
		return v
	case string:
		return map[string]any{"output": v}
	default:
		return map[string]any{"output": v}
	}
}

func parseTimestamp(ts string, now time.Time) time.Time {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return now.UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC()
		}
	}
	return now.UTC()
}
