package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/hooks"
	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Handle Claude Code hook events",
	Long: `Process Claude Code hook events and forward them to Graphiti.

Each subcommand reads the hook JSON from stdin. Tool uses and notifications
become enriched messages; Stop and SessionEnd produce a session summary.

These commands always exit 0 so that Claude Code is never interrupted.`,
}

// hookSubcommands maps each hook subcommand to the event it handles.
var hookSubcommands = []struct {
	use   string
	event string
}{
	{"post-tool-use", hooks.EventPostToolUse},
	{"notification", hooks.EventNotification},
	{"stop", hooks.EventStop},
	{"session-end", hooks.EventSessionEnd},
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Register graphiti-hook in Claude Code settings",
	Long: `Add PostToolUse, Notification, Stop and SessionEnd entries that run
'graphiti-hook hook <event>' to .claude/settings.json. Existing settings and
hooks for other events are preserved.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		targetDir, _ := cmd.Flags().GetString("dir")
		if targetDir == "" {
			var err error
			targetDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("getting working directory: %w", err)
			}
		}

		bin, err := os.Executable()
		if err != nil {
			bin = "graphiti-hook"
		}
		settingsPath := filepath.Join(targetDir, ".claude", "settings.json")
		if err := updateSettingsWithHooks(settingsPath, bin); err != nil {
			return fmt.Errorf("updating settings.json: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Hooks registered in %s\n", settingsPath)
		return nil
	},
}

var hookStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hook configuration status",
	Long:  `Display which hook events are forwarded and where messages are sent.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := activeConfig()
		w := cmd.OutOrStdout()

		fmt.Fprintf(w, "Hook system:    %s\n\n", enabledStr(cfg.Hooks.Enabled))
		fmt.Fprintf(w, "PostToolUse:    %s\n", enabledStr(cfg.Hooks.PostToolUse))
		fmt.Fprintf(w, "Notification:   %s\n", enabledStr(cfg.Hooks.Notification))
		fmt.Fprintf(w, "Stop summary:   %s\n", enabledStr(cfg.Hooks.SummarizeOnStop))
		fmt.Fprintf(w, "SessionEnd:     %s\n", enabledStr(cfg.Hooks.SessionEnd))
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Graphiti:       %s (group %s)\n", cfg.Graphiti.URL, cfg.Graphiti.GroupID)
		fmt.Fprintf(w, "Redaction:      %s\n", enabledStr(cfg.Redaction.Enabled))
		if cfg.Mirror.NATSURL != "" {
			fmt.Fprintf(w, "NATS mirror:    %s (%s.*)\n", cfg.Mirror.NATSURL, cfg.Mirror.SubjectPrefix)
		} else {
			fmt.Fprintf(w, "NATS mirror:    %s\n", enabledStr(false))
		}
		if LogPath != "" {
			fmt.Fprintf(w, "Log file:       %s\n", LogPath)
		}
		return nil
	},
}

func enabledStr(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

// hookEnabled reports whether events named eventName are forwarded.
func hookEnabled(cfg models.HookConfig, eventName string) bool {
	if !cfg.Enabled {
		return false
	}
	switch eventName {
	case hooks.EventNotification:
		return cfg.Notification
	case hooks.EventStop:
		return cfg.SummarizeOnStop
	case hooks.EventSessionEnd:
		return cfg.SessionEnd
	default:
		return cfg.PostToolUse
	}
}

// runHook handles one hook invocation. defaultEvent applies when the input
// does not name its event. Every failure is logged and swallowed.
func runHook(cmd *cobra.Command, stdin io.Reader, defaultEvent string) error {
	if HookEngine == nil {
		return nil
	}

	input, err := hooks.ParseStdin[hooks.HookInput](stdin)
	if err != nil {
		logger().Warn("ignoring hook input", "error", err)
		return nil // Non-blocking, swallow errors.
	}
	if input.EventName() == "" {
		input.HookEventName = defaultEvent
	}
	if !hookEnabled(activeConfig().Hooks, input.EventName()) {
		logger().Debug("hook disabled", "event", input.EventName())
		return nil
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	HookEngine.HandleEvent(ctx, input.ToEvent(time.Now().UTC()), input.TranscriptPath)
	return nil
}

func newHookEventCmd(use, event string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Handle %s hook events (non-blocking)", event),
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook(cmd, cmd.InOrStdin(), event)
		},
	}
}

var hookDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Handle any hook event, routed by hook_event_name",
	Long: `Read a hook payload from stdin and route it by its hook_event_name field.
Useful as a single command for every hook entry in settings.json.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(cmd, cmd.InOrStdin(), hooks.EventPostToolUse)
	},
}

// updateSettingsWithHooks merges graphiti-hook entries into settings.json.
func updateSettingsWithHooks(settingsPath, bin string) error {
	settings := map[string]any{}
	data, err := os.ReadFile(settingsPath) //nolint:gosec // G304: path from trusted CLI input
	if err == nil {
		if err := json.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("parsing %s: %w", settingsPath, err)
		}
	}

	hooksSection, _ := settings["hooks"].(map[string]any)
	if hooksSection == nil {
		hooksSection = map[string]any{}
	}
	for _, sc := range hookSubcommands {
		entry := map[string]any{
			"hooks": []any{
				map[string]any{
					"type":    "command",
					"command": fmt.Sprintf("%s hook %s", bin, sc.use),
				},
			},
		}
		if sc.event == hooks.EventPostToolUse {
			entry["matcher"] = "*"
		}
		hooksSection[sc.event] = []any{entry}
	}
	settings["hooks"] = hooksSection

	if err := os.MkdirAll(filepath.Dir(settingsPath), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if !strings.HasSuffix(string(out), "\n") {
		out = append(out, '\n')
	}
	if err := os.WriteFile(settingsPath, out, 0o644); err != nil {
		return fmt.Errorf("writing settings.json: %w", err)
	}
	return nil
}

func init() {
	hookInstallCmd.Flags().String("dir", "", "Target directory (defaults to current directory)")

	for _, sc := range hookSubcommands {
		hookCmd.AddCommand(newHookEventCmd(sc.use, sc.event))
	}
	hookCmd.AddCommand(hookDispatchCmd)
	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookStatusCmd)
	rootCmd.AddCommand(hookCmd)
}
