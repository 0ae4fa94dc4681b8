package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

// ToolKind is the semantic category of an observed action.
type ToolKind string

const (
	KindFileRead      ToolKind = "file_read"
	KindFileWrite     ToolKind = "file_write"
	KindCommand       ToolKind = "command"
	KindWebSearch     ToolKind = "web_search"
	KindWebFetch      ToolKind = "web_fetch"
	KindTaskCreation  ToolKind = "task_creation"
	KindPatternSearch ToolKind = "pattern_search"
	KindNotification  ToolKind = "notification"
	KindSessionStop   ToolKind = "session_stop"
	KindGeneric       ToolKind = "generic"
	KindSuppressed    ToolKind = "suppressed"
)

// toolKinds maps host tool names onto kinds.
var toolKinds = map[string]ToolKind{
	"Read":         KindFileRead,
	"Write":        KindFileWrite,
	"Edit":         KindFileWrite,
	"MultiEdit":    KindFileWrite,
	"NotebookEdit": KindFileWrite,
	"Bash":         KindCommand,
	"WebSearch":    KindWebSearch,
	"WebFetch":     KindWebFetch,
	"Task":         KindTaskCreation,
	"Grep":         KindPatternSearch,
	"Glob":         KindPatternSearch,
	"LS":           KindPatternSearch,
}

// excludedTools never produce a message.
var excludedTools = map[string]bool{
	"TodoWrite":      true,
	"TodoRead":       true,
	"exit_plan_mode": true,
	"ExitPlanMode":   true,
	"EnterPlanMode":  true,
}

type sentenceFunc func(ev models.Event) string

// sentences holds one formatter per kind.
var sentences = map[ToolKind]sentenceFunc{
	KindFileRead: func(ev models.Event) string {
		return "Claude read file: " + filePathParam(ev.Parameters)
	},
	KindFileWrite: func(ev models.Event) string {
		return "Claude modified file: " + filePathParam(ev.Parameters)
	},
	KindCommand: func(ev models.Event) string {
		return "Claude executed command: " + ev.StringParam("command")
	},
	KindWebSearch: func(ev models.Event) string {
		return "Claude searched web for: " + ev.StringParam("query")
	},
	KindWebFetch: func(ev models.Event) string {
		return "Claude fetched URL: " + ev.StringParam("url")
	},
	KindTaskCreation: func(ev models.Event) string {
		desc := ev.StringParam("description")
		if desc == "" {
			desc = ev.StringParam("prompt")
		}
		return "Claude created task: " + desc
	},
	KindPatternSearch: func(ev models.Event) string {
		pattern, path := ev.StringParam("pattern"), ev.StringParam("path")
		if pattern == "" {
			return "Claude searched for pattern: " + path
		}
		if path == "" {
			return "Claude searched for pattern: " + pattern
		}
		return fmt.Sprintf("Claude searched for pattern: %s in %s", pattern, path)
	},
	KindNotification: func(ev models.Event) string {
		msg := strings.TrimSpace(ev.Message)
		if msg == "" {
			return "Claude notification"
		}
		return "Claude notification: " + msg
	},
	KindSessionStop: func(models.Event) string {
		return "Claude session ended"
	},
	KindGeneric: genericSentence,
}

func genericSentence(ev models.Event) string {
	params := "{}"
	if len(ev.Parameters) > 0 {
		// encoding/json sorts map keys, keeping the sentence deterministic.
		if b, err := json.Marshal(ev.Parameters); err == nil {
			params = string(b)
		}
	}
	return fmt.Sprintf("Claude used %s tool with parameters: %s", ev.ToolName, params)
}

// filePathParam returns file_path, falling back to notebook_path and path.
func filePathParam(params map[string]any) string {
	for _, key := range []string{"file_path", "notebook_path", "path"} {
		if v := models.StringValue(params, key); v != "" {
			return v
		}
	}
	return ""
}

// Action is the classified form of an event.
type Action struct {
	Kind     ToolKind
	ToolName string
	Sentence string
}

// Suppressed reports whether the event must not produce a message.
func (a Action) Suppressed() bool {
	return a.Kind == KindSuppressed
}

// Classifier maps events to actions.
type Classifier interface {
	Classify(ev models.Event) Action
	// KindOf returns the kind for a tool name, or KindSuppressed.
	KindOf(toolName string) ToolKind
}

type classifier struct {
	includeUnknown bool
	excluded       map[string]bool
}

// NewClassifier creates a Classifier. Extra excluded tools from cfg are
// added to the built-in exclusion set.
func NewClassifier(cfg models.ClassifierConfig) Classifier {
	excluded := make(map[string]bool, len(excludedTools)+len(cfg.ExtraExcludedTools))
	for name := range excludedTools {
		excluded[name] = true
	}
	for _, name := range cfg.ExtraExcludedTools {
		excluded[strings.TrimSpace(name)] = true
	}
	return &classifier{includeUnknown: cfg.IncludeUnknownTools, excluded: excluded}
}

func (c *classifier) KindOf(toolName string) ToolKind {
	if c.excluded[toolName] {
		return KindSuppressed
	}
	if kind, ok := toolKinds[toolName]; ok {
		return kind
	}
	if c.includeUnknown && toolName != "" {
		return KindGeneric
	}
	return KindSuppressed
}

func (c *classifier) Classify(ev models.Event) Action {
	var kind ToolKind
	toolName := ev.ToolName
	switch ev.Kind {
	case models.KindNotification:
		kind = KindNotification
		toolName = "Notification"
	case models.KindStop:
		kind = KindSessionStop
		toolName = "SessionSummary"
	default:
		kind = c.KindOf(ev.ToolName)
	}

	action := Action{Kind: kind, ToolName: toolName}
	if kind == KindSuppressed {
		return action
	}
	action.Sentence = sentences[kind](ev)
	return action
}

// FailureHeuristic inspects a tool result and reports whether it failed.
// known is false when there is no result to inspect.
func FailureHeuristic(kind ToolKind, result map[string]any) (failed, known bool) {
	if result == nil {
		return false, false
	}

	switch v := result["error"].(type) {
	case bool:
		if v {
			return true, true
		}
	case string:
		if strings.TrimSpace(v) != "" {
			return true, true
		}
	case map[string]any:
		return true, true
	}
	if b, ok := result["is_error"].(bool); ok && b {
		return true, true
	}
	if b, ok := result["success"].(bool); ok && !b {
		return true, true
	}

	switch kind {
	case KindCommand:
		if b, ok := result["interrupted"].(bool); ok && b {
			return true, true
		}
		for _, key := range []string{"exit_code", "exitCode", "returncode"} {
			if n, ok := numberValue(result[key]); ok && n != 0 {
				return true, true
			}
		}
	case KindWebFetch:
		if n, ok := numberValue(result["code"]); ok && n >= 400 {
			return true, true
		}
	}
	return false, true
}

func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
