package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/core"
	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

var (
	analyzeFormat string
	analyzeSubmit bool
)

var summaryTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("230")).
	Background(lipgloss.Color("62")).
	Padding(0, 1)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [transcript-or-session-id]",
	Short: "Analyze a Claude Code session transcript",
	Long: `Run the session analyzer over a transcript and print the summary.

The argument is a path to a JSONL transcript or a session id. Without an
argument, a numbered list of recent sessions is shown to pick from.

Use --submit to also send the summary to Graphiti.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Analyzer == nil || Transcripts == nil {
			return fmt.Errorf("analyzer not initialized")
		}
		switch analyzeFormat {
		case "text", "yaml", "json":
		default:
			return fmt.Errorf("unsupported format %q (use text, yaml or json)", analyzeFormat)
		}

		path, sessionID, err := resolveTranscriptArg(cmd, args)
		if err != nil {
			return err
		}
		summary, _, err := analyzeTranscript(sessionID, path)
		if err != nil {
			return err
		}

		if err := writeSummary(cmd.OutOrStdout(), summary, analyzeFormat); err != nil {
			return err
		}

		if analyzeSubmit {
			return submitSummary(cmd, summary)
		}
		return nil
	},
}

// resolveTranscriptArg turns the optional argument into a transcript path
// and session id, falling back to the interactive picker.
func resolveTranscriptArg(cmd *cobra.Command, args []string) (path, sessionID string, err error) {
	if len(args) == 0 {
		picked, err := pickTranscript(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return "", "", err
		}
		return picked.Path, picked.SessionID, nil
	}

	arg := args[0]
	if info, statErr := os.Stat(arg); statErr == nil && !info.IsDir() {
		return arg, strings.TrimSuffix(filepath.Base(arg), ".jsonl"), nil
	}
	return "", arg, nil
}

// analyzeTranscript loads a transcript and runs the analyzer over it.
func analyzeTranscript(sessionID, path string) (models.SessionSummary, []models.TranscriptEntry, error) {
	entries, warnings, err := Transcripts.LoadTranscript(sessionID, path)
	if err != nil {
		return models.SessionSummary{}, nil, fmt.Errorf("loading transcript: %w", err)
	}
	for _, w := range warnings {
		logger().Warn("malformed transcript entry", "session_id", sessionID, "error", w)
	}
	events := core.EventsFromTranscript(sessionID, entries)
	return Analyzer.Analyze(sessionID, entries, events), entries, nil
}

func writeSummary(w io.Writer, summary models.SessionSummary, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("formatting summary as JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case "yaml":
		data, err := yaml.Marshal(summary)
		if err != nil {
			return fmt.Errorf("formatting summary as YAML: %w", err)
		}
		fmt.Fprint(w, string(data))
	default:
		msg := core.FormatSummary(summary, activeConfig().Graphiti.GroupID, time.Now().UTC())
		fmt.Fprintln(w, summaryTitleStyle.Render(" Session "+summary.SessionID+" "))
		fmt.Fprintln(w)
		fmt.Fprintln(w, msg.Content)
	}
	return nil
}

func submitSummary(cmd *cobra.Command, summary models.SessionSummary) error {
	if Graphiti == nil {
		return fmt.Errorf("graphiti client not initialized")
	}
	cfg := activeConfig()
	msg := core.FormatSummary(summary, cfg.Graphiti.GroupID, time.Now().UTC())
	if cfg.Redaction.Enabled {
		msg.Content = core.NewDefaultRedactor().Redact(msg.Content)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	outcome := Graphiti.Submit(ctx, msg)
	if !outcome.Delivered() {
		return fmt.Errorf("summary not delivered: %s after %d attempt(s): %s", outcome.Status, outcome.Attempts, outcome.Reason)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nSummary delivered to %s (%d attempt(s))\n", outcome.Endpoint, outcome.Attempts)
	return nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "text", "Output format: text, yaml or json")
	analyzeCmd.Flags().BoolVar(&analyzeSubmit, "submit", false, "Send the summary to Graphiti")
	rootCmd.AddCommand(analyzeCmd)
}
