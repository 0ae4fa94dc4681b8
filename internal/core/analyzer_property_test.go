package core

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

var propertyTools = []string{
	"Read", "Write", "Edit", "MultiEdit", "Bash", "Grep", "Glob", "WebFetch",
	"TodoWrite", "LS", "mcp__other__tool",
}

var propertySentences = []string{
	"Fixed the failing build.",
	"Please help me implement caching in the Go service.",
	"I decided to use Redis instead of memcached.",
	"It turns out the issue was a stale lock file.",
	"You should add more tests later.",
	"Running the command now.",
	"",
}

// genTranscript draws a transcript with monotonically increasing timestamps,
// some of them missing.
func genTranscript(t *rapid.T) []models.TranscriptEntry {
	n := rapid.IntRange(0, 30).Draw(t, "entries")
	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	entries := make([]models.TranscriptEntry, 0, n)
	for i := 0; i < n; i++ {
		e := models.TranscriptEntry{
			Index: i,
			Role: rapid.SampledFrom([]models.EntryRole{
				models.RoleUser, models.RoleAssistant, models.RoleToolCall, models.RoleToolResult,
			}).Draw(t, "role"),
		}
		if rapid.Bool().Draw(t, "timed") {
			e.Timestamp = base.Add(time.Duration(i) * time.Second)
		}
		switch e.Role {
		case models.RoleUser, models.RoleAssistant:
			e.Text = rapid.SampledFrom(propertySentences).Draw(t, "text")
		case models.RoleToolCall:
			e.ToolName = rapid.SampledFrom(propertyTools).Draw(t, "tool")
			e.ToolInput = map[string]any{
				"file_path": rapid.StringMatching(`/[a-z]{1,8}/[a-z]{1,8}\.(go|py|ts)`).Draw(t, "path"),
				"command":   rapid.SampledFrom([]string{"go test ./...", "npm install", "ls"}).Draw(t, "command"),
			}
			e.ToolUseID = rapid.SampledFrom([]string{"", "toolu_1", "toolu_2", "toolu_3"}).Draw(t, "id")
		case models.RoleToolResult:
			e.ToolUseID = rapid.SampledFrom([]string{"", "toolu_1", "toolu_2", "toolu_3"}).Draw(t, "id")
			e.IsError = rapid.Bool().Draw(t, "is_error")
		}
		entries = append(entries, e)
	}
	return entries
}

// TestProperty_AnalyzerDeterministic verifies that analyzing the same
// snapshot twice yields identical summaries.
func TestProperty_AnalyzerDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		entries := genTranscript(t)
		events := EventsFromTranscript("s", entries)
		a := NewSessionAnalyzer(models.DefaultConfig().Analyzer, models.ClassifierConfig{})

		first := a.Analyze("s", entries, events)
		second := a.Analyze("s", entries, events)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("summaries differ:\n%+v\n%+v", first, second)
		}
		ts := time.Unix(0, 0)
		if FormatSummary(first, "g", ts) != FormatSummary(second, "g", ts) {
			t.Fatal("formatted summaries differ")
		}
	})
}

// TestProperty_SuccessRateInRange verifies success_rate stays within [0,1]
// and is exactly 1.0 when no tool event failed.
func TestProperty_SuccessRateInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		entries := genTranscript(t)
		events := EventsFromTranscript("s", entries)
		m := NewSessionAnalyzer(models.DefaultConfig().Analyzer, models.ClassifierConfig{}).
			Analyze("s", entries, events).Metrics

		if m.SuccessRate < 0 || m.SuccessRate > 1 {
			t.Fatalf("SuccessRate = %v out of range", m.SuccessRate)
		}
		if m.FailedCount == 0 && m.SuccessRate != 1.0 {
			t.Fatalf("SuccessRate = %v with no failures", m.SuccessRate)
		}
		if m.FailedCount > m.ToolUseCount {
			t.Fatalf("FailedCount %d exceeds ToolUseCount %d", m.FailedCount, m.ToolUseCount)
		}
	})
}

// TestProperty_ContextSelectorDeterministic verifies that selecting twice for
// the same event and unchanged transcript gives the same window.
func TestProperty_ContextSelectorDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		entries := genTranscript(t)
		ev := toolEvent(rapid.SampledFrom(propertyTools).Draw(t, "tool"), nil)
		ev.ToolUseID = rapid.SampledFrom([]string{"", "toolu_1", "toolu_9"}).Draw(t, "id")
		if rapid.Bool().Draw(t, "timed") {
			ev.Timestamp = time.Date(2025, 1, 15, 10, 0, rapid.IntRange(0, 40).Draw(t, "sec"), 0, time.UTC)
		}
		s := NewContextSelector(models.DefaultConfig().Context)

		first := s.Select(ev, entries)
		second := s.Select(ev, entries)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("windows differ:\n%+v\n%+v", first, second)
		}
		if anchor := s.Anchor(ev, entries); anchor < 0 || anchor > len(entries) {
			t.Fatalf("Anchor = %d out of range [0,%d]", anchor, len(entries))
		}
	})
}

// TestProperty_ExcludedToolsSuppressed verifies that excluded tools are
// suppressed regardless of parameters or configuration.
func TestProperty_ExcludedToolsSuppressed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tool := rapid.SampledFrom([]string{"TodoWrite", "TodoRead", "ExitPlanMode", "EnterPlanMode"}).Draw(t, "tool")
		cfg := models.ClassifierConfig{IncludeUnknownTools: rapid.Bool().Draw(t, "include_unknown")}
		params := map[string]any{
			"file_path": rapid.StringMatching(`/[a-z]{1,10}`).Draw(t, "path"),
		}
		if a := NewClassifier(cfg).Classify(toolEvent(tool, params)); !a.Suppressed() {
			t.Fatalf("%s should be suppressed, got %+v", tool, a)
		}
	})
}

// TestProperty_MessageContentNeverEmpty verifies that every non-suppressed
// event yields content that carries its action sentence, and carries the
// user intent whenever a user turn was selected.
func TestProperty_MessageContentNeverEmpty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		entries := genTranscript(t)
		ev := toolEvent(rapid.SampledFrom([]string{"Read", "Edit", "Bash", "Grep"}).Draw(t, "tool"),
			map[string]any{"file_path": "/x/y.go", "command": "ls", "pattern": "TODO"})

		action := NewClassifier(models.ClassifierConfig{}).Classify(ev)
		sel := NewContextSelector(models.DefaultConfig().Context)
		window := sel.Select(ev, entries)
		tally := TallyEntries(entries[:sel.Anchor(ev, entries)])
		msg := NewMessageBuilder("g", 300, nil).Build(ev, action, window, tally)

		if !strings.Contains(msg.Content, action.Sentence) {
			t.Fatalf("content %q misses action sentence %q", msg.Content, action.Sentence)
		}
		if window.PrecedingUserTurn != nil && !strings.Contains(msg.Content, "User request: ") {
			t.Fatalf("content %q misses the user intent segment", msg.Content)
		}
	})
}
