package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

// SessionAnalyzer turns a whole session into a SessionSummary.
type SessionAnalyzer interface {
	Analyze(sessionID string, entries []models.TranscriptEntry, events []models.Event) models.SessionSummary
}

type sessionAnalyzer struct {
	cfg        models.AnalyzerConfig
	classifier Classifier
}

// NewSessionAnalyzer creates a SessionAnalyzer. Tool events count towards
// metrics unless their tool is excluded; unknown tools are counted too.
func NewSessionAnalyzer(cfg models.AnalyzerConfig, classifierCfg models.ClassifierConfig) SessionAnalyzer {
	classifierCfg.IncludeUnknownTools = true
	return &sessionAnalyzer{cfg: cfg, classifier: NewClassifier(classifierCfg)}
}

// Analyze runs every summary rule over the snapshot. It makes no external
// calls and returns identical output for identical input.
func (a *sessionAnalyzer) Analyze(sessionID string, entries []models.TranscriptEntry, events []models.Event) models.SessionSummary {
	in := analysisInput{
		entries:    entries,
		events:     events,
		classifier: a.classifier,
		cfg:        a.cfg,
	}
	summary := models.SessionSummary{
		SessionID:     sessionID,
		TotalMessages: len(entries),
	}
	for _, r := range summaryRules {
		r.apply(in, &summary)
	}
	return summary
}

// EventsFromTranscript rebuilds the tool event log from transcript tool
// calls, pairing each with its result by tool_use_id. Calls without an id
// pair with the next unclaimed result. A call with no result gets a nil
// Result, meaning its status is unknown.
func EventsFromTranscript(sessionID string, entries []models.TranscriptEntry) []models.Event {
	results := map[string]models.TranscriptEntry{}
	var anonymous []models.TranscriptEntry
	for _, e := range entries {
		if e.Role != models.RoleToolResult {
			continue
		}
		if e.ToolUseID != "" {
			results[e.ToolUseID] = e
		} else {
			anonymous = append(anonymous, e)
		}
	}

	var events []models.Event
	next := 0
	for i, e := range entries {
		if e.Role != models.RoleToolCall {
			continue
		}
		ev := models.Event{
			Kind:       models.KindToolUse,
			ToolName:   e.ToolName,
			Parameters: e.ToolInput,
			Timestamp:  e.Timestamp,
			SessionID:  sessionID,
			ToolUseID:  e.ToolUseID,
		}
		if r, ok := results[e.ToolUseID]; ok && e.ToolUseID != "" {
			ev.Result = map[string]any{"is_error": r.IsError}
		} else if e.ToolUseID == "" {
			for next < len(anonymous) && anonymous[next].Index < i {
				next++
			}
			if next < len(anonymous) {
				ev.Result = map[string]any{"is_error": anonymous[next].IsError}
				next++
			}
		}
		events = append(events, ev)
	}
	return events
}

// FormatSummary renders a summary as a knowledge-graph message.
func FormatSummary(s models.SessionSummary, groupID string, ts time.Time) models.Message {
	var b strings.Builder

	fmt.Fprintf(&b, "Session summary for %s: %d messages (%d user, %d assistant), %d tool uses, %.0f%% success rate",
		s.SessionID, s.TotalMessages, s.Metrics.UserTurns, s.Metrics.AssistantTurns,
		s.Metrics.ToolUseCount, s.Metrics.SuccessRate*100)
	if s.Metrics.DurationSeconds > 0 {
		fmt.Fprintf(&b, ", duration %.1f minutes", s.Metrics.DurationSeconds/60)
	}

	if s.PrimaryGoal != "" {
		b.WriteString("\nGoal: " + s.PrimaryGoal)
	}
	if len(s.FilesModified) > 0 {
		parts := make([]string, 0, len(s.FilesModified))
		for _, f := range s.FilesModified {
			parts = append(parts, fmt.Sprintf("%s (%s)", f.Path, strings.Join(f.Operations, ", ")))
		}
		fmt.Fprintf(&b, "\nFiles modified (%d): %s", len(parts), strings.Join(parts, "; "))
	}
	writeList(&b, "Problems solved", s.ProblemsSolved)
	if len(s.Technologies) > 0 {
		b.WriteString("\nTechnologies: " + strings.Join(s.Technologies, ", "))
	}
	writeList(&b, "Key decisions", s.KeyDecisions)
	writeList(&b, "Learnings", s.Learnings)
	writeList(&b, "Follow-up items", s.FollowUpItems)

	return models.Message{
		Content:           b.String(),
		RoleType:          messageRoleType,
		Role:              messageRole,
		Name:              MessageName("SessionSummary", ts),
		SourceDescription: sourceSummary,
		Timestamp:         ts.UTC(),
		GroupID:           groupID,
	}
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n" + title + ":")
	for _, item := range items {
		b.WriteString("\n- " + item)
	}
}
