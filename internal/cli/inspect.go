package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/core"
	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/observability"
	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

// Inspect panel indices.
const (
	panelSummary = iota
	panelMetrics
	panelContext
	panelCount
)

type inspectModel struct {
	activePanel int
	width       int
	height      int

	sessionID string
	path      string

	// Data.
	summary  *models.SessionSummary
	delivery *observability.DeliveryStats
	last     *lastToolUse

	// State.
	loading bool
	err     error
}

// lastToolUse is the most recent tool call of the session together with the
// context window and message the hook would produce for it.
type lastToolUse struct {
	toolName string
	window   models.ContextWindow
	message  models.Message
}

// inspectLoadedMsg carries loaded data back to the model.
type inspectLoadedMsg struct {
	summary  *models.SessionSummary
	delivery *observability.DeliveryStats
	last     *lastToolUse
	err      error
}

var (
	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	goodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newInspectModel(sessionID, path string) inspectModel {
	return inspectModel{
		activePanel: panelSummary,
		sessionID:   sessionID,
		path:        path,
		loading:     true,
	}
}

func (m inspectModel) Init() tea.Cmd {
	return m.load
}

func (m inspectModel) load() tea.Msg {
	return loadInspectData(m.sessionID, m.path)
}

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, m.load
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case inspectLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.summary = msg.summary
		m.delivery = msg.delivery
		m.last = msg.last
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m inspectModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := summaryTitleStyle.Render(" Session " + m.sessionID + " ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading transcript...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	summaryPanel := m.renderSummaryPanel()
	metricsPanel := m.renderMetricsPanel()
	contextPanel := m.renderContextPanel()

	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		colWidth := availableWidth / 3
		summaryPanel = m.applyPanelStyle(panelSummary, summaryPanel, colWidth-4)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, colWidth-4)
		contextPanel = m.applyPanelStyle(panelContext, contextPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, summaryPanel, metricsPanel, contextPanel)
	} else {
		panelWidth := max(availableWidth-4, 20)
		summaryPanel = m.applyPanelStyle(panelSummary, summaryPanel, panelWidth)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, panelWidth)
		contextPanel = m.applyPanelStyle(panelContext, contextPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, summaryPanel, metricsPanel, contextPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m inspectModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m inspectModel) renderSummaryPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Summary"))
	b.WriteString("\n")

	if m.summary == nil {
		b.WriteString("  No summary available.")
		return b.String()
	}

	s := m.summary
	goal := s.PrimaryGoal
	if goal == "" {
		goal = dimStyle.Render("(none)")
	}
	fmt.Fprintf(&b, "  Goal: %s\n", goal)

	if len(s.FilesModified) > 0 {
		fmt.Fprintf(&b, "\n  Files modified (%d):\n", len(s.FilesModified))
		for _, f := range s.FilesModified {
			fmt.Fprintf(&b, "    %s %s\n", f.Path, dimStyle.Render("("+strings.Join(f.Operations, ", ")+")"))
		}
	}
	writePanelList(&b, "Problems solved", s.ProblemsSolved)
	writePanelList(&b, "Key decisions", s.KeyDecisions)
	writePanelList(&b, "Follow-ups", s.FollowUpItems)
	if len(s.Technologies) > 0 {
		fmt.Fprintf(&b, "\n  Technologies: %s", strings.Join(s.Technologies, ", "))
	}

	return b.String()
}

func writePanelList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n  %s:\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "    - %s\n", item)
	}
}

func (m inspectModel) renderMetricsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Metrics"))
	b.WriteString("\n")

	if m.summary != nil {
		md := m.summary.Metrics
		lines := []struct {
			label string
			value int
		}{
			{"Messages", m.summary.TotalMessages},
			{"User turns", md.UserTurns},
			{"Assistant", md.AssistantTurns},
			{"Tool uses", md.ToolUseCount},
			{"Failed", md.FailedCount},
		}
		for _, l := range lines {
			fmt.Fprintf(&b, "  %-14s %d\n", l.label, l.value)
		}
		fmt.Fprintf(&b, "  %-14s %s\n", "Success", rateStyle(md.SuccessRate).Render(fmt.Sprintf("%.0f%%", md.SuccessRate*100)))
		if md.DurationSeconds > 0 {
			fmt.Fprintf(&b, "  %-14s %.1f min\n", "Duration", md.DurationSeconds/60)
		}
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Delivery (7d)"))
	b.WriteString("\n")
	if m.delivery == nil || m.delivery.Total == 0 {
		b.WriteString("  No outcomes logged.")
		return b.String()
	}
	d := m.delivery
	fmt.Fprintf(&b, "  %-14s %d\n", "Outcomes", d.Total)
	for _, status := range []string{"delivered", "rejected", "unreachable", "suppressed", "skipped"} {
		if n := d.ByStatus[status]; n > 0 {
			fmt.Fprintf(&b, "  %-14s %d\n", status, n)
		}
	}
	fmt.Fprintf(&b, "  %-14s %s\n", "Rate", rateStyle(d.DeliveryRate).Render(fmt.Sprintf("%.0f%%", d.DeliveryRate*100)))

	return b.String()
}

func (m inspectModel) renderContextPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Last context"))
	b.WriteString("\n")

	if m.last == nil {
		b.WriteString("  No tool use in transcript.")
		return b.String()
	}

	fmt.Fprintf(&b, "  Tool: %s\n", m.last.toolName)
	w := m.last.window
	if w.PrecedingUserTurn != nil {
		fmt.Fprintf(&b, "\n  User: %s\n", w.PrecedingUserTurn.Text)
	}
	if w.PrecedingAssistantTurn != nil {
		fmt.Fprintf(&b, "\n  Assistant: %s\n", w.PrecedingAssistantTurn.Text)
	}
	if w.Empty() {
		b.WriteString(dimStyle.Render("  (no preceding turns)"))
		b.WriteString("\n")
	}
	if m.last.message.Content != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("  Message:"))
		fmt.Fprintf(&b, "\n  %s", m.last.message.Content)
	}

	return b.String()
}

func rateStyle(rate float64) lipgloss.Style {
	switch {
	case rate >= 0.9:
		return goodStyle
	case rate >= 0.5:
		return warnStyle
	default:
		return badStyle
	}
}

// loadInspectData analyzes the transcript and rebuilds the message for the
// last tool call, the same way the hook would have.
func loadInspectData(sessionID, path string) inspectLoadedMsg {
	var result inspectLoadedMsg

	summary, entries, err := analyzeTranscript(sessionID, path)
	if err != nil {
		result.err = err
		return result
	}
	result.summary = &summary
	result.last = rebuildLastToolUse(sessionID, entries)

	if StatsCalc != nil {
		stats, err := StatsCalc.Calculate(time.Now().UTC().AddDate(0, 0, -7))
		if err != nil {
			result.err = fmt.Errorf("loading delivery stats: %w", err)
			return result
		}
		result.delivery = stats
	}

	return result
}

// rebuildLastToolUse replays the message pipeline for the final tool call.
func rebuildLastToolUse(sessionID string, entries []models.TranscriptEntry) *lastToolUse {
	idx := -1
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Role == models.RoleToolCall {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	cfg := activeConfig()
	call := entries[idx]
	ev := models.Event{
		Kind:       models.KindToolUse,
		SessionID:  sessionID,
		ToolName:   call.ToolName,
		Parameters: call.ToolInput,
		ToolUseID:  call.ToolUseID,
		Timestamp:  call.Timestamp,
	}

	selector := core.NewContextSelector(cfg.Context)
	window := selector.Select(ev, entries)
	last := &lastToolUse{toolName: call.ToolName, window: window}

	action := core.NewClassifier(cfg.Classifier).Classify(ev)
	if action.Suppressed() {
		return last
	}
	var redactor core.Redactor
	if cfg.Redaction.Enabled {
		redactor = core.NewDefaultRedactor()
	}
	tally := core.TallyEntries(entries[:selector.Anchor(ev, entries)])
	builder := core.NewMessageBuilder(cfg.Graphiti.GroupID, cfg.Context.MaxSegmentChars, redactor)
	last.message = builder.Build(ev, action, window, tally)
	return last
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [transcript-or-session-id]",
	Short: "Interactive view of a session's summary, metrics and context",
	Long: `Launch a terminal view of one session: the analyzer summary, session and
delivery metrics, and the context the hook selects for the last tool use.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Analyzer == nil || Transcripts == nil {
			return fmt.Errorf("analyzer not initialized")
		}
		path, sessionID, err := resolveTranscriptArg(cmd, args)
		if err != nil {
			return err
		}
		p := tea.NewProgram(newInspectModel(sessionID, path), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
