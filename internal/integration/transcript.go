package integration

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

// ErrTranscriptUnavailable is returned when a session transcript cannot be
// located or opened. Callers continue without conversational context.
var ErrTranscriptUnavailable = errors.New("transcript unavailable")

// errLineTooLong marks a line longer than maxLineBytes. Tool results can
// carry whole files, so the limit is generous.
var errLineTooLong = errors.New("line exceeds 10MB")

const maxLineBytes = 10 * 1024 * 1024

// MalformedEntryError records a transcript line that could not be decoded.
// The reader skips the line and resumes at the next one.
type MalformedEntryError struct {
	Line int
	Err  error
}

func (e MalformedEntryError) Error() string {
	return fmt.Sprintf("malformed transcript entry at line %d: %v", e.Line, e.Err)
}

func (e MalformedEntryError) Unwrap() error {
	return e.Err
}

// TranscriptStore resolves session transcripts on disk.
type TranscriptStore interface {
	// Open resolves the transcript for sessionID. An explicit transcriptPath
	// wins; otherwise <claudeDir>/projects/*/<sessionID>.jsonl is searched.
	Open(sessionID, transcriptPath string) (*Transcript, error)

	// LoadTranscript opens and reads the whole transcript. Skipped
	// malformed lines come back as warnings. On a read failure it returns
	// the entries decoded before the error.
	LoadTranscript(sessionID, transcriptPath string) ([]models.TranscriptEntry, []error, error)
}

type transcriptStore struct {
	claudeDir  string
	maxEntries int
}

// NewTranscriptStore creates a TranscriptStore rooted at claudeDir. An empty
// claudeDir resolves to $CLAUDE_CONFIG_DIR or ~/.claude. maxEntries caps how
// many entries each iteration yields (0 means unlimited).
func NewTranscriptStore(claudeDir string, maxEntries int) TranscriptStore {
	return &transcriptStore{
		claudeDir:  ResolveClaudeDir(claudeDir),
		maxEntries: maxEntries,
	}
}

// ResolveClaudeDir returns dir when set, then $CLAUDE_CONFIG_DIR, then ~/.claude.
func ResolveClaudeDir(dir string) string {
	if dir != "" {
		return dir
	}
	if env := os.Getenv("CLAUDE_CONFIG_DIR"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude"
	}
	return filepath.Join(home, ".claude")
}

func (s *transcriptStore) Open(sessionID, transcriptPath string) (*Transcript, error) {
	path := transcriptPath
	if path == "" {
		if sessionID == "" {
			return nil, fmt.Errorf("no session id or transcript path: %w", ErrTranscriptUnavailable)
		}
		matches, err := filepath.Glob(filepath.Join(s.claudeDir, "projects", "*", sessionID+".jsonl"))
		if err != nil || len(matches) == 0 {
			return nil, fmt.Errorf("locating transcript for session %s: %w", sessionID, ErrTranscriptUnavailable)
		}
		path = matches[0]
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript %s: %w: %w", path, ErrTranscriptUnavailable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("transcript %s is a directory: %w", path, ErrTranscriptUnavailable)
	}

	return OpenTranscript(path, sessionID, s.maxEntries), nil
}

func (s *transcriptStore) LoadTranscript(sessionID, transcriptPath string) ([]models.TranscriptEntry, []error, error) {
	t, err := s.Open(sessionID, transcriptPath)
	if err != nil {
		return nil, nil, err
	}
	entries, err := t.Load()
	var warnings []error
	for _, w := range t.Warnings() {
		warnings = append(warnings, w)
	}
	return entries, warnings, err
}

// Transcript is a lazily read session log. Each call to Entries re-opens the
// file, so a transcript that grows between iterations yields the new lines.
type Transcript struct {
	Path       string
	SessionID  string
	maxEntries int

	mu       sync.Mutex
	warnings []MalformedEntryError
}

// OpenTranscript wraps a transcript file without touching the disk.
func OpenTranscript(path, sessionID string, maxEntries int) *Transcript {
	return &Transcript{Path: path, SessionID: sessionID, maxEntries: maxEntries}
}

// Entries returns the transcript entries in log order. Malformed lines are
// skipped and recorded in Warnings. Read failures end the sequence early.
func (t *Transcript) Entries() iter.Seq[models.TranscriptEntry] {
	return func(yield func(models.TranscriptEntry) bool) {
		_ = t.scan(yield)
	}
}

// Load materialises the whole transcript. On a read failure it returns the
// entries decoded so far together with the error.
func (t *Transcript) Load() ([]models.TranscriptEntry, error) {
	var entries []models.TranscriptEntry
	err := t.scan(func(e models.TranscriptEntry) bool {
		entries = append(entries, e)
		return true
	})
	return entries, err
}

// Warnings returns the malformed lines seen by the most recent iteration.
func (t *Transcript) Warnings() []MalformedEntryError {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]MalformedEntryError, len(t.warnings))
	copy(out, t.warnings)
	return out
}

func (t *Transcript) scan(yield func(models.TranscriptEntry) bool) error {
	var warnings []MalformedEntryError
	defer func() {
		t.mu.Lock()
		t.warnings = warnings
		t.mu.Unlock()
	}()

	f, err := os.Open(t.Path) //nolint:gosec // G304: path from hook input or claude dir
	if err != nil {
		return fmt.Errorf("opening transcript %s: %w: %w", t.Path, ErrTranscriptUnavailable, err)
	}
	defer func() { _ = f.Close() }()

	reader := bufio.NewReaderSize(f, 64*1024)
	var buf []byte
	index := 0
	lineNo := 0
	for {
		line, tooLong, err := readLine(reader, buf[:0])
		buf = line
		if err != nil && !errors.Is(err, io.EOF) {
			warnings = append(warnings, MalformedEntryError{Line: lineNo + 1, Err: err})
			return fmt.Errorf("reading transcript %s: %w", t.Path, err)
		}
		if err != nil && len(line) == 0 && !tooLong {
			return nil
		}
		lineNo++

		switch {
		case tooLong:
			warnings = append(warnings, MalformedEntryError{Line: lineNo, Err: errLineTooLong})
		case len(bytes.TrimSpace(line)) == 0:
		default:
			entries, derr := decodeLine(line)
			if derr != nil {
				warnings = append(warnings, MalformedEntryError{Line: lineNo, Err: derr})
				break
			}
			for _, e := range entries {
				if t.maxEntries > 0 && index >= t.maxEntries {
					return nil
				}
				e.Index = index
				index++
				if !yield(e) {
					return nil
				}
			}
		}

		if err != nil {
			return nil
		}
	}
}

// readLine reads one line into buf without its line ending. A line longer
// than maxLineBytes is consumed to its end and reported as tooLong, so the
// next call starts on the following line.
func readLine(r *bufio.Reader, buf []byte) ([]byte, bool, error) {
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong && len(buf)+len(chunk) > maxLineBytes {
			tooLong = true
			buf = buf[:0]
		}
		if !tooLong {
			buf = append(buf, chunk...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return bytes.TrimRight(buf, "\r\n"), tooLong, err
	}
}

// jsonlLine is one line of a Claude Code transcript. Content, Tool, Input
// and Error cover the flat form where tool calls are top-level lines.
type jsonlLine struct {
	Type      string          `json:"type"`
	IsMeta    bool            `json:"isMeta,omitempty"`
	Message   json.RawMessage `json:"message,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	UUID      string          `json:"uuid,omitempty"`

	Tool      string         `json:"tool,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	Error     any            `json:"error,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
}

type jsonlMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     map[string]any  `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// decodeLine expands one JSONL line into zero or more entries. Lines of
// unknown type (summary, file-history-snapshot, system) yield nothing.
func decodeLine(line []byte) ([]models.TranscriptEntry, error) {
	var raw jsonlLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, err
	}

	ts := parseTimestamp(raw.Timestamp)
	base := models.TranscriptEntry{Timestamp: ts, UUID: raw.UUID}

	switch raw.Type {
	case "user", "assistant":
		if raw.IsMeta {
			return nil, nil
		}
		content := raw.Content
		if len(raw.Message) > 0 {
			var msg jsonlMessage
			if err := json.Unmarshal(raw.Message, &msg); err != nil {
				return nil, fmt.Errorf("decoding message: %w", err)
			}
			content = msg.Content
		}
		role := models.RoleUser
		if raw.Type == "assistant" {
			role = models.RoleAssistant
		}
		return expandContent(base, role, content), nil

	case "tool_use":
		e := base
		e.Role = models.RoleToolCall
		e.ToolName = raw.Tool
		e.ToolInput = raw.Input
		e.ToolUseID = raw.ToolUseID
		return []models.TranscriptEntry{e}, nil

	case "tool_result":
		e := base
		e.Role = models.RoleToolResult
		e.ToolUseID = raw.ToolUseID
		e.IsError = truthy(raw.Error)
		e.Text = extractTextFromContent(raw.Content)
		return []models.TranscriptEntry{e}, nil

	default:
		return nil, nil
	}
}

// expandContent turns message content into entries. Text blocks of one line
// are joined into a single turn placed before any tool blocks.
func expandContent(base models.TranscriptEntry, role models.EntryRole, raw json.RawMessage) []models.TranscriptEntry {
	if len(raw) == 0 {
		return nil
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		if strings.TrimSpace(plain) == "" {
			return nil
		}
		e := base
		e.Role = role
		e.Text = plain
		return []models.TranscriptEntry{e}
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil
	}

	var textParts []string
	var tools []models.TranscriptEntry
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if strings.TrimSpace(b.Text) != "" {
				textParts = append(textParts, b.Text)
			}
		case "tool_use":
			e := base
			e.Role = models.RoleToolCall
			e.ToolName = b.Name
			e.ToolInput = b.Input
			e.ToolUseID = b.ID
			tools = append(tools, e)
		case "tool_result":
			e := base
			e.Role = models.RoleToolResult
			e.ToolUseID = b.ToolUseID
			e.IsError = b.IsError
			e.Text = extractTextFromContent(b.Content)
			tools = append(tools, e)
		case "thinking":
			// Skip thinking blocks.
		}
	}

	var out []models.TranscriptEntry
	if len(textParts) > 0 {
		e := base
		e.Role = role
		e.Text = strings.Join(textParts, "\n")
		out = append(out, e)
	}
	return append(out, tools...)
}

// extractTextFromContent handles content that is either a plain string
// or an array of content blocks, returning concatenated text.
func extractTextFromContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plainStr string
	if err := json.Unmarshal(raw, &plainStr); err == nil {
		return plainStr
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}

	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	default:
		return true
	}
}

// parseTimestamp parses an ISO 8601 timestamp string, falling back to zero time.
func parseTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}

// TranscriptInfo describes a transcript found on disk.
type TranscriptInfo struct {
	Path      string
	SessionID string
	Project   string
	ModTime   time.Time
	Size      int64
}

// ListTranscripts returns every <claudeDir>/projects/*/*.jsonl file, newest first.
func ListTranscripts(claudeDir string) ([]TranscriptInfo, error) {
	dir := ResolveClaudeDir(claudeDir)
	matches, err := filepath.Glob(filepath.Join(dir, "projects", "*", "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("listing transcripts in %s: %w", dir, err)
	}

	infos := make([]TranscriptInfo, 0, len(matches))
	for _, m := range matches {
		st, err := os.Stat(m)
		if err != nil || st.IsDir() {
			continue
		}
		infos = append(infos, TranscriptInfo{
			Path:      m,
			SessionID: strings.TrimSuffix(filepath.Base(m), ".jsonl"),
			Project:   filepath.Base(filepath.Dir(m)),
			ModTime:   st.ModTime(),
			Size:      st.Size(),
		})
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if !infos[i].ModTime.Equal(infos[j].ModTime) {
			return infos[i].ModTime.After(infos[j].ModTime)
		}
		return infos[i].Path < infos[j].Path
	})
	return infos, nil
}
