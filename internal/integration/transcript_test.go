package integration

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

func writeTranscript(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "transcript.jsonl")
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test transcript: %v", err)
	}
	return path
}

func TestTranscript_ValidTranscript(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir,
		`{"type":"user","message":{"role":"user","content":"find all python files"},"timestamp":"2025-01-15T10:00:00Z","uuid":"u1"}`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"thinking","thinking":"hmm"},{"type":"text","text":"I'll search using glob"},{"type":"tool_use","id":"toolu_1","name":"Bash","input":{"command":"find . -name '*.py'"}}]},"timestamp":"2025-01-15T10:01:00Z"}`,
		`{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_1","content":"./a.py","is_error":false}]},"timestamp":"2025-01-15T10:01:05Z"}`,
	)

	tr := OpenTranscript(path, "s1", 0)
	entries, err := tr.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantRoles := []models.EntryRole{models.RoleUser, models.RoleAssistant, models.RoleToolCall, models.RoleToolResult}
	if len(entries) != len(wantRoles) {
		t.Fatalf("expected %d entries, got %d: %+v", len(wantRoles), len(entries), entries)
	}
	for i, want := range wantRoles {
		if entries[i].Role != want {
			t.Errorf("entry %d role = %s, want %s", i, entries[i].Role, want)
		}
		if entries[i].Index != i {
			t.Errorf("entry %d index = %d", i, entries[i].Index)
		}
	}

	if entries[0].Text != "find all python files" || entries[0].UUID != "u1" {
		t.Errorf("unexpected user entry: %+v", entries[0])
	}
	if entries[1].Text != "I'll search using glob" {
		t.Errorf("thinking blocks should be skipped, got %q", entries[1].Text)
	}
	if entries[2].ToolName != "Bash" || entries[2].ToolUseID != "toolu_1" {
		t.Errorf("unexpected tool call: %+v", entries[2])
	}
	if models.StringValue(entries[2].ToolInput, "command") != "find . -name '*.py'" {
		t.Errorf("tool input not decoded: %v", entries[2].ToolInput)
	}
	if entries[3].ToolUseID != "toolu_1" || entries[3].IsError || entries[3].Text != "./a.py" {
		t.Errorf("unexpected tool result: %+v", entries[3])
	}
	want := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	if !entries[0].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", entries[0].Timestamp, want)
	}
	if len(tr.Warnings()) != 0 {
		t.Errorf("expected no warnings, got %v", tr.Warnings())
	}
}

func TestTranscript_FlatFormat(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir,
		`{"type":"user","content":"fix the login bug","timestamp":"2025-01-15T10:00:00Z"}`,
		`{"type":"tool_use","tool":"Edit","input":{"file_path":"/auth/login.py"},"timestamp":"2025-01-15T10:01:00Z"}`,
		`{"type":"tool_result","error":true,"timestamp":"2025-01-15T10:01:01Z"}`,
		`{"type":"assistant","content":[{"type":"text","text":"Fixed authentication token validation"}]}`,
	)

	entries, err := OpenTranscript(path, "", 0).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[1].Role != models.RoleToolCall || entries[1].ToolName != "Edit" {
		t.Errorf("unexpected tool call: %+v", entries[1])
	}
	if !entries[2].IsError {
		t.Error("expected flat tool_result error to set IsError")
	}
	if entries[3].Text != "Fixed authentication token validation" || !entries[3].Timestamp.IsZero() {
		t.Errorf("unexpected assistant entry: %+v", entries[3])
	}
}

func TestTranscript_SkipsMetaAndUnknownLines(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir,
		`{"type":"summary","summary":"Old session"}`,
		`{"type":"file-history-snapshot","snapshot":{}}`,
		`{"type":"user","isMeta":true,"message":{"role":"user","content":"<command>"}}`,
		`{"type":"user","message":{"role":"user","content":"real question"}}`,
	)

	entries, err := OpenTranscript(path, "", 0).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "real question" {
		t.Fatalf("expected only the real user turn, got %+v", entries)
	}
}

func TestTranscript_MalformedLinesAreRecorded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.jsonl")
	content := `{"type":"user","message":{"role":"user","content":"first"}}` + "\n" +
		`{not json` + "\n" +
		`{"type":"assistant","message":{"role":"assistant","content":"second"}}` + "\n" +
		`{"type":"user","message":{"role":"us` // partial trailing line
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := OpenTranscript(path, "", 0)
	entries, err := tr.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Index != 1 {
		t.Errorf("indices should stay contiguous, got %d", entries[1].Index)
	}

	warnings := tr.Warnings()
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(warnings))
	}
	if warnings[0].Line != 2 || warnings[1].Line != 4 {
		t.Errorf("unexpected warning lines: %d, %d", warnings[0].Line, warnings[1].Line)
	}
	if !strings.Contains(warnings[0].Error(), "line 2") {
		t.Errorf("unexpected warning message: %s", warnings[0].Error())
	}
}

func TestTranscript_OversizedLineSkipped(t *testing.T) {
	huge := `{"type":"user","message":{"role":"user","content":"` + strings.Repeat("x", 11*1024*1024) + `"}}`
	path := writeTranscript(t, t.TempDir(),
		`{"type":"user","message":{"role":"user","content":"before"}}`,
		huge,
		`{"type":"assistant","message":{"role":"assistant","content":"after"}}`,
	)

	tr := OpenTranscript(path, "", 0)
	entries, err := tr.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Text != "before" || entries[1].Text != "after" {
		t.Errorf("unexpected entries: %q, %q", entries[0].Text, entries[1].Text)
	}

	warnings := tr.Warnings()
	if len(warnings) != 1 || warnings[0].Line != 2 {
		t.Fatalf("expected one warning at line 2, got %v", warnings)
	}
	if !errors.Is(warnings[0], errLineTooLong) {
		t.Errorf("warning should wrap errLineTooLong, got %v", warnings[0])
	}
}

func TestTranscriptStore_LoadTranscriptReturnsWarnings(t *testing.T) {
	path := writeTranscript(t, t.TempDir(),
		`{"type":"user","message":{"role":"user","content":"ok"}}`,
		`{broken`,
	)

	entries, warnings, err := NewTranscriptStore(t.TempDir(), 0).LoadTranscript("", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || len(warnings) != 1 {
		t.Fatalf("got %d entries and %d warnings, want 1 and 1", len(entries), len(warnings))
	}

	var malformed MalformedEntryError
	if !errors.As(warnings[0], &malformed) || malformed.Line != 2 {
		t.Errorf("warning = %v, want a MalformedEntryError at line 2", warnings[0])
	}
}

func TestTranscript_MaxEntriesCapsFromHead(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir,
		`{"type":"user","message":{"role":"user","content":"one"}}`,
		`{"type":"assistant","message":{"role":"assistant","content":"two"}}`,
		`{"type":"user","message":{"role":"user","content":"three"}}`,
	)

	entries, err := OpenTranscript(path, "", 2).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 || entries[1].Text != "two" {
		t.Fatalf("expected first two entries, got %+v", entries)
	}
}

func TestTranscript_EntriesIsRestartable(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir,
		`{"type":"user","message":{"role":"user","content":"one"}}`,
	)
	tr := OpenTranscript(path, "", 0)

	count := func() int {
		n := 0
		for range tr.Entries() {
			n++
		}
		return n
	}
	if got := count(); got != 1 {
		t.Fatalf("first pass: expected 1 entry, got %d", got)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(`{"type":"assistant","message":{"role":"assistant","content":"two"}}` + "\n")
	_ = f.Close()

	if got := count(); got != 2 {
		t.Fatalf("second pass should see appended line, got %d", got)
	}
}

func TestTranscript_EntriesStopsEarly(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir,
		`{"type":"user","message":{"role":"user","content":"one"}}`,
		`{"type":"user","message":{"role":"user","content":"two"}}`,
	)
	var seen []string
	for e := range OpenTranscript(path, "", 0).Entries() {
		seen = append(seen, e.Text)
		break
	}
	if len(seen) != 1 || seen[0] != "one" {
		t.Fatalf("unexpected entries: %v", seen)
	}
}

func TestTranscriptStore_Open(t *testing.T) {
	claudeDir := t.TempDir()
	projDir := filepath.Join(claudeDir, "projects", "-home-me-repo")
	if err := os.MkdirAll(projDir, 0o755); err != nil {
		t.Fatal(err)
	}
	sessionPath := filepath.Join(projDir, "abc-123.jsonl")
	if err := os.WriteFile(sessionPath, []byte(`{"type":"user","message":{"role":"user","content":"hi"}}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewTranscriptStore(claudeDir, 0)

	t.Run("by session id", func(t *testing.T) {
		tr, err := store.Open("abc-123", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tr.Path != sessionPath {
			t.Errorf("Path = %s, want %s", tr.Path, sessionPath)
		}
	})

	t.Run("explicit path wins", func(t *testing.T) {
		tr, err := store.Open("other", sessionPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tr.Path != sessionPath {
			t.Errorf("Path = %s, want %s", tr.Path, sessionPath)
		}
	})

	t.Run("missing session", func(t *testing.T) {
		_, err := store.Open("nope", "")
		if !errors.Is(err, ErrTranscriptUnavailable) {
			t.Fatalf("expected ErrTranscriptUnavailable, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := store.Open("", filepath.Join(claudeDir, "missing.jsonl"))
		if !errors.Is(err, ErrTranscriptUnavailable) {
			t.Fatalf("expected ErrTranscriptUnavailable, got %v", err)
		}
	})

	t.Run("nothing to resolve", func(t *testing.T) {
		_, err := store.Open("", "")
		if !errors.Is(err, ErrTranscriptUnavailable) {
			t.Fatalf("expected ErrTranscriptUnavailable, got %v", err)
		}
	})

	t.Run("load by session id", func(t *testing.T) {
		entries, warnings, err := store.LoadTranscript("abc-123", "")
		if err != nil || len(warnings) != 0 {
			t.Fatalf("unexpected error: %v, warnings: %v", err, warnings)
		}
		if len(entries) != 1 || entries[0].Text != "hi" {
			t.Errorf("unexpected entries %+v", entries)
		}
	})

	t.Run("load missing session", func(t *testing.T) {
		entries, _, err := store.LoadTranscript("nope", "")
		if !errors.Is(err, ErrTranscriptUnavailable) || entries != nil {
			t.Fatalf("expected ErrTranscriptUnavailable and no entries, got %v, %v", entries, err)
		}
	})
}

func TestTranscript_LoadMissingFile(t *testing.T) {
	_, err := OpenTranscript(filepath.Join(t.TempDir(), "gone.jsonl"), "", 0).Load()
	if !errors.Is(err, ErrTranscriptUnavailable) {
		t.Fatalf("expected ErrTranscriptUnavailable, got %v", err)
	}
}

func TestListTranscripts_NewestFirst(t *testing.T) {
	claudeDir := t.TempDir()
	projDir := filepath.Join(claudeDir, "projects", "proj")
	if err := os.MkdirAll(projDir, 0o755); err != nil {
		t.Fatal(err)
	}

	older := filepath.Join(projDir, "old.jsonl")
	newer := filepath.Join(projDir, "new.jsonl")
	for _, p := range []string{older, newer} {
		if err := os.WriteFile(p, []byte("{}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}

	infos, err := ListTranscripts(claudeDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 transcripts, got %d", len(infos))
	}
	if infos[0].SessionID != "new" || infos[1].SessionID != "old" {
		t.Errorf("unexpected order: %s, %s", infos[0].SessionID, infos[1].SessionID)
	}
	if infos[0].Project != "proj" {
		t.Errorf("Project = %s, want proj", infos[0].Project)
	}
}

func TestResolveClaudeDir(t *testing.T) {
	t.Setenv("CLAUDE_CONFIG_DIR", "/tmp/claude-cfg")
	if got := ResolveClaudeDir("/explicit"); got != "/explicit" {
		t.Errorf("explicit dir = %s", got)
	}
	if got := ResolveClaudeDir(""); got != "/tmp/claude-cfg" {
		t.Errorf("env dir = %s", got)
	}
}
