package core

import (
	"fmt"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

// SessionTally is the running activity count of a session. It is always
// re-derived from the transcript, never kept between invocations.
type SessionTally struct {
	UserMessages      int
	AssistantMessages int
	ToolUses          int
}

// TallyEntries counts user turns, assistant turns and tool calls.
func TallyEntries(entries []models.TranscriptEntry) SessionTally {
	var t SessionTally
	for _, e := range entries {
		switch e.Role {
		case models.RoleUser:
			t.UserMessages++
		case models.RoleAssistant:
			t.AssistantMessages++
		case models.RoleToolCall:
			t.ToolUses++
		}
	}
	return t
}

// Zero reports whether nothing was counted.
func (t SessionTally) Zero() bool {
	return t.UserMessages == 0 && t.AssistantMessages == 0 && t.ToolUses == 0
}

func (t SessionTally) String() string {
	return fmt.Sprintf("Session activity: %d user messages, %d assistant messages, %d tool uses",
		t.UserMessages, t.AssistantMessages, t.ToolUses)
}
