package core

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

const (
	messageActor    = "Claude"
	messageRole     = "claude_code"
	messageRoleType = "system"

	sourceConversation = "Claude Code conversation"
	sourceNotification = "Claude Code notification"
	sourceSummary      = "Claude Code session summary"
)

// MessageBuilder renders a classified event and its context into a message.
type MessageBuilder interface {
	Build(ev models.Event, action Action, window models.ContextWindow, tally SessionTally) models.Message
}

type messageBuilder struct {
	groupID    string
	maxSegment int
	redactor   Redactor
}

// NewMessageBuilder creates a MessageBuilder. redactor may be nil.
func NewMessageBuilder(groupID string, maxSegment int, redactor Redactor) MessageBuilder {
	return &messageBuilder{groupID: groupID, maxSegment: maxSegment, redactor: redactor}
}

// Build joins the user request, assistant reasoning, action sentence and
// tally with newlines, omitting empty segments.
func (b *messageBuilder) Build(ev models.Event, action Action, window models.ContextWindow, tally SessionTally) models.Message {
	var lines []string
	if u := window.PrecedingUserTurn; u != nil {
		if seg := truncateSegment(u.Text, b.maxSegment); seg != "" {
			lines = append(lines, "User request: "+seg)
		}
	}
	if a := window.PrecedingAssistantTurn; a != nil {
		if seg := truncateSegment(a.Text, b.maxSegment); seg != "" {
			lines = append(lines, "Claude's reasoning: "+seg)
		}
	}
	lines = append(lines, action.Sentence)
	if !tally.Zero() {
		lines = append(lines, tally.String())
	}

	content := strings.Join(lines, "\n")
	if b.redactor != nil {
		content = b.redactor.Redact(content)
	}

	source := sourceConversation
	if action.Kind == KindNotification {
		source = sourceNotification
	}

	return models.Message{
		Content:           content,
		RoleType:          messageRoleType,
		Role:              messageRole,
		Name:              MessageName(action.ToolName, ev.Timestamp),
		SourceDescription: source,
		Timestamp:         ev.Timestamp.UTC(),
		GroupID:           b.groupID,
	}
}

// MessageName returns "{actor}_{tool}_{RFC3339 UTC timestamp}".
func MessageName(toolName string, ts time.Time) string {
	if toolName == "" {
		toolName = "Unknown"
	}
	return messageActor + "_" + toolName + "_" + ts.UTC().Format(time.RFC3339)
}

// truncateSegment collapses whitespace and cuts s to at most limit runes,
// preferring a word boundary and marking the cut with "...".
func truncateSegment(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	cut := string([]rune(s)[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}
