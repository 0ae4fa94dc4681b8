package core

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

const (
	goalScanEntries     = 10
	minGoalChars        = 10
	maxGoalChars        = 200
	goalFallbackChars   = 100
	maxInsightChars     = 200
	followUpRecentTurns = 5
	minDecisionChars    = 20
	minLearningChars    = 15
	minFollowUpChars    = 15
)

// analysisInput is the read-only snapshot every rule works on.
type analysisInput struct {
	entries    []models.TranscriptEntry
	events     []models.Event
	classifier Classifier
	cfg        models.AnalyzerConfig
}

func (in analysisInput) turns(role models.EntryRole) []string {
	var out []string
	for _, e := range in.entries {
		if e.Role == role && strings.TrimSpace(e.Text) != "" {
			out = append(out, e.Text)
		}
	}
	return out
}

// summaryRule fills one part of the summary from the snapshot.
type summaryRule struct {
	name  string
	apply func(in analysisInput, s *models.SessionSummary)
}

// summaryRules run in order; each touches only its own fields.
var summaryRules = []summaryRule{
	{"goal", func(in analysisInput, s *models.SessionSummary) {
		s.PrimaryGoal = extractGoal(in.entries, in.cfg.GoalUserTurns)
	}},
	{"files_modified", func(in analysisInput, s *models.SessionSummary) {
		s.FilesModified = extractModifiedFiles(in.entries, in.events)
	}},
	{"problems_solved", func(in analysisInput, s *models.SessionSummary) {
		s.ProblemsSolved = matchingSentences(in.turns(models.RoleAssistant), solutionPattern, 0, in.cfg.MaxProblems)
	}},
	{"technologies", func(in analysisInput, s *models.SessionSummary) {
		s.Technologies = extractTechnologies(in.entries, in.events)
	}},
	{"key_decisions", func(in analysisInput, s *models.SessionSummary) {
		s.KeyDecisions = matchingSentences(in.turns(models.RoleAssistant), decisionPattern, minDecisionChars, in.cfg.MaxDecisions)
	}},
	{"learnings", func(in analysisInput, s *models.SessionSummary) {
		s.Learnings = matchingSentences(in.turns(models.RoleAssistant), learningPattern, minLearningChars, in.cfg.MaxLearnings)
	}},
	{"metrics", func(in analysisInput, s *models.SessionSummary) {
		s.Metrics = computeMetrics(in.entries, in.events, in.classifier)
	}},
	{"follow_ups", func(in analysisInput, s *models.SessionSummary) {
		s.FollowUpItems = extractFollowUps(in.turns(models.RoleAssistant), s.Metrics.FailedCount, in.cfg.MaxFollowUps)
	}},
}

// extractGoal looks at the first substantial user turns near the start of
// the session. The longest one containing a goal keyword wins and its
// keyword sentence becomes the goal; otherwise the first turn is used.
func extractGoal(entries []models.TranscriptEntry, maxTurns int) string {
	if maxTurns <= 0 {
		maxTurns = 3
	}
	head := entries
	if len(head) > goalScanEntries {
		head = head[:goalScanEntries]
	}

	var candidates []string
	seen := 0
	for _, e := range head {
		if e.Role != models.RoleUser {
			continue
		}
		if seen >= maxTurns {
			break
		}
		seen++
		text := strings.TrimSpace(e.Text)
		if len(text) > minGoalChars {
			candidates = append(candidates, text)
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	best, bestSentence := -1, ""
	for i, c := range candidates {
		sentence, ok := goalSentence(c)
		if !ok {
			continue
		}
		if best < 0 || len(c) > len(candidates[best]) {
			best, bestSentence = i, sentence
		}
	}
	if best >= 0 {
		return truncateSegment(bestSentence, maxGoalChars)
	}
	return truncateSegment(candidates[0], goalFallbackChars)
}

// goalSentence returns the first sentence of text containing a goal keyword.
func goalSentence(text string) (string, bool) {
	for _, s := range splitSentences(text) {
		for _, w := range wordPattern.FindAllString(strings.ToLower(s), -1) {
			if goalKeywordSet[strings.Trim(w, ".-_")] {
				return s, true
			}
		}
	}
	return "", false
}

// writePath returns the file a write-class tool call touched.
func writePath(toolName string, params map[string]any) (string, bool) {
	if toolKinds[toolName] != KindFileWrite {
		return "", false
	}
	if p := models.StringValue(params, "file_path"); p != "" {
		return p, true
	}
	if p := models.StringValue(params, "notebook_path"); p != "" {
		return p, true
	}
	return "", false
}

// extractModifiedFiles collects write-class tool calls from both the event
// log and the transcript, sorted by path.
func extractModifiedFiles(entries []models.TranscriptEntry, events []models.Event) []models.FileModification {
	type fileInfo struct {
		ops         map[string]bool
		first, last time.Time
	}
	files := map[string]*fileInfo{}

	record := func(tool string, params map[string]any, ts time.Time) {
		path, ok := writePath(tool, params)
		if !ok {
			return
		}
		fi, exists := files[path]
		if !exists {
			fi = &fileInfo{ops: map[string]bool{}}
			files[path] = fi
		}
		fi.ops[tool] = true
		if ts.IsZero() {
			return
		}
		if fi.first.IsZero() || ts.Before(fi.first) {
			fi.first = ts
		}
		if ts.After(fi.last) {
			fi.last = ts
		}
	}

	for _, ev := range events {
		if ev.Kind == models.KindToolUse {
			record(ev.ToolName, ev.Parameters, ev.Timestamp)
		}
	}
	for _, e := range entries {
		if e.Role == models.RoleToolCall {
			record(e.ToolName, e.ToolInput, e.Timestamp)
		}
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make([]models.FileModification, 0, len(paths))
	for _, p := range paths {
		fi := files[p]
		ops := make([]string, 0, len(fi.ops))
		for op := range fi.ops {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		out = append(out, models.FileModification{
			Path:          p,
			Operations:    ops,
			FirstModified: fi.first,
			LastModified:  fi.last,
		})
	}
	return out
}

// matchingSentences returns, in order and without duplicates, the
// sentences of texts matching pattern and longer than minChars.
func matchingSentences(texts []string, pattern *regexp.Regexp, minChars, limit int) []string {
	if limit <= 0 {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, text := range texts {
		for _, s := range splitSentences(text) {
			if len(s) <= minChars || !pattern.MatchString(s) {
				continue
			}
			s = truncateSegment(s, maxInsightChars)
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// extractFollowUps scans the last few assistant turns for suggestions and
// adds a review item when operations failed.
func extractFollowUps(assistantTurns []string, failed, limit int) []string {
	if limit <= 0 {
		return nil
	}
	recent := assistantTurns
	if len(recent) > followUpRecentTurns {
		recent = recent[len(recent)-followUpRecentTurns:]
	}

	room := limit
	if failed > 0 {
		room--
	}
	out := matchingSentences(recent, followUpPattern, minFollowUpChars, room)
	if failed > 0 {
		out = append(out, fmt.Sprintf("Review %d failed operations", failed))
	}
	return out
}

// extractTechnologies matches conversation text and tool parameters against
// the vocabulary. File extensions and command names count too.
func extractTechnologies(entries []models.TranscriptEntry, events []models.Event) []string {
	found := map[string]bool{}

	params := func(p map[string]any) {
		if path := filePathParam(p); path != "" {
			if name, ok := technologyForPath(path); ok {
				found[name] = true
			}
		}
		if cmd := models.StringValue(p, "command"); cmd != "" {
			if name, ok := technologyForCommand(cmd); ok {
				found[name] = true
			}
			technologiesInText(cmd, found)
		}
	}

	for _, e := range entries {
		switch e.Role {
		case models.RoleUser, models.RoleAssistant:
			technologiesInText(e.Text, found)
		case models.RoleToolCall:
			params(e.ToolInput)
		}
	}
	for _, ev := range events {
		if ev.Kind == models.KindToolUse {
			params(ev.Parameters)
		}
	}

	out := make([]string, 0, len(found))
	for name := range found {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// computeMetrics derives counts, duration and success rate. success_rate
// only considers tool events with a known status and is 1.0 when none failed.
func computeMetrics(entries []models.TranscriptEntry, events []models.Event, c Classifier) models.SessionMetrics {
	var m models.SessionMetrics
	for _, e := range entries {
		switch e.Role {
		case models.RoleUser:
			m.UserTurns++
		case models.RoleAssistant:
			m.AssistantTurns++
		}
	}

	known := 0
	for _, ev := range events {
		if ev.Kind != models.KindToolUse {
			continue
		}
		kind := c.KindOf(ev.ToolName)
		if kind == KindSuppressed {
			continue
		}
		m.ToolUseCount++
		failed, ok := FailureHeuristic(kind, ev.Result)
		if !ok {
			continue
		}
		known++
		if failed {
			m.FailedCount++
		}
	}

	m.SuccessRate = 1.0
	if known > 0 && m.FailedCount > 0 {
		m.SuccessRate = float64(known-m.FailedCount) / float64(known)
	}

	first, last := timeBounds(func(yield func(time.Time)) {
		for _, ev := range events {
			yield(ev.Timestamp)
		}
	})
	if !last.After(first) {
		first, last = timeBounds(func(yield func(time.Time)) {
			for _, e := range entries {
				yield(e.Timestamp)
			}
		})
	}
	if !first.IsZero() {
		m.DurationSeconds = last.Sub(first).Seconds()
	}
	return m
}

// timeBounds returns the earliest and latest non-zero times produced by each.
func timeBounds(each func(yield func(time.Time))) (first, last time.Time) {
	each(func(ts time.Time) {
		if ts.IsZero() {
			return
		}
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	})
	return first, last
}
