package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/cli"
)

func TestResolveBasePath_HomeEnvSet(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("GRAPHITI_HOOK_HOME", tmpDir)

	got := ResolveBasePath()
	if got != tmpDir {
		t.Errorf("ResolveBasePath() = %q, want %q", got, tmpDir)
	}
}

func TestResolveBasePath_FindsConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "sub", "nested")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, ".graphiti-hook.yaml"), []byte("graphiti:\n  group_id: test\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GRAPHITI_HOOK_HOME", "")
	t.Chdir(subDir)

	got := ResolveBasePath()
	// macOS temp dirs live behind a /private symlink.
	want, _ := filepath.EvalSymlinks(tmpDir)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != want {
		t.Errorf("ResolveBasePath() = %q, want %q (should find config in parent)", got, tmpDir)
	}
}

func TestResolveBasePath_FallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GRAPHITI_HOOK_HOME", "")
	t.Chdir(t.TempDir())

	if got := ResolveBasePath(); got != home {
		t.Errorf("ResolveBasePath() = %q, want home %q", got, home)
	}
}

func newTestApp(t *testing.T, config string) *App {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", base)
	for _, env := range []string{"GRAPHITI_URL", "GRAPHITI_TIMEOUT", "GRAPHITI_GROUP_ID", "GRAPHITI_MAX_RETRIES", "GRAPHITI_COMPRESSION", "GRAPHITI_HOOK_LOG_LEVEL", "GRAPHITI_NATS_URL", "CLAUDE_CONFIG_DIR"} {
		t.Setenv(env, "")
	}
	if config != "" {
		if err := os.WriteFile(filepath.Join(base, ".graphiti-hook.yaml"), []byte(config), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	app, err := NewApp(base)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestNewApp_WiresServices(t *testing.T) {
	app := newTestApp(t, "graphiti:\n  url: http://graphiti.test:9000\n  group_id: team\n")

	if app.Config.Graphiti.URL != "http://graphiti.test:9000" {
		t.Errorf("Graphiti.URL = %q, want config file value", app.Config.Graphiti.URL)
	}
	if app.Config.Graphiti.GroupID != "team" {
		t.Errorf("Graphiti.GroupID = %q, want team", app.Config.Graphiti.GroupID)
	}

	checks := []struct {
		name    string
		missing bool
	}{
		{"HookEngine", app.HookEngine == nil},
		{"Analyzer", app.Analyzer == nil},
		{"Graphiti", app.Graphiti == nil},
		{"Transcripts", app.Transcripts == nil},
		{"StatsCalc", app.StatsCalc == nil},
		{"Logger", app.Logger == nil},
	}
	for _, c := range checks {
		if c.missing {
			t.Errorf("%s not wired", c.name)
		}
	}
	if app.Mirror != nil {
		t.Error("Mirror should be nil without mirror.nats_url")
	}

	if cli.Config != app.Config {
		t.Error("cli.Config not set")
	}
	if cli.HookEngine == nil || cli.Analyzer == nil || cli.Graphiti == nil {
		t.Error("cli services not set")
	}
	wantLog := filepath.Join(app.BasePath, ".graphiti-hook", "logs", "hook.log")
	if cli.LogPath != wantLog {
		t.Errorf("cli.LogPath = %q, want %q", cli.LogPath, wantLog)
	}
}

func TestNewApp_InvalidConfigFallsBackToDefaults(t *testing.T) {
	app := newTestApp(t, "graphiti:\n  max_retries: -3\n")

	if app.Config.Graphiti.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want default 2", app.Config.Graphiti.MaxRetries)
	}
	if app.HookEngine == nil {
		t.Error("HookEngine should still be wired")
	}
}

func TestNewApp_MirrorConfigured(t *testing.T) {
	app := newTestApp(t, "mirror:\n  nats_url: nats://127.0.0.1:1\n")

	if app.Mirror == nil {
		t.Fatal("Mirror should be wired when mirror.nats_url is set")
	}
}

func TestApp_CloseIsIdempotentOnEmptyApp(t *testing.T) {
	a := &App{}
	if err := a.Close(); err != nil {
		t.Errorf("Close() on empty App = %v", err)
	}
}
