package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

// MessageSubmitter delivers a message to the knowledge graph. Implementations
// report failures through the outcome and never return an error.
type MessageSubmitter interface {
	Submit(ctx context.Context, msg models.Message) models.SubmissionOutcome
}

// TranscriptSource loads the entries of a session transcript along with a
// warning per skipped malformed line. On error it may still return the
// entries read before the failure.
type TranscriptSource interface {
	LoadTranscript(sessionID, transcriptPath string) ([]models.TranscriptEntry, []error, error)
}

// MessageMirror receives a copy of every delivered message.
type MessageMirror interface {
	Publish(ctx context.Context, msg models.Message) error
}

// HookEngine turns one hook event into at most one knowledge-graph message.
type HookEngine interface {
	// HandleEvent never fails; every problem is logged and reflected in the
	// returned outcome.
	HandleEvent(ctx context.Context, ev models.Event, transcriptPath string) models.SubmissionOutcome
}

type hookEngine struct {
	cfg        models.Config
	classifier Classifier
	selector   ContextSelector
	builder    MessageBuilder
	analyzer   SessionAnalyzer
	redactor   Redactor
	submitter  MessageSubmitter
	transcript TranscriptSource
	mirror     MessageMirror
	logger     *slog.Logger
}

// HookEngineDeps holds the collaborators of a HookEngine. Mirror and Logger
// may be nil.
type HookEngineDeps struct {
	Submitter  MessageSubmitter
	Transcript TranscriptSource
	Mirror     MessageMirror
	Logger     *slog.Logger
}

// NewHookEngine creates a HookEngine from the runtime configuration.
func NewHookEngine(cfg models.Config, deps HookEngineDeps) HookEngine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var redactor Redactor
	if cfg.Redaction.Enabled {
		redactor = NewDefaultRedactor()
	}

	return &hookEngine{
		cfg:        cfg,
		classifier: NewClassifier(cfg.Classifier),
		selector:   NewContextSelector(cfg.Context),
		builder:    NewMessageBuilder(cfg.Graphiti.GroupID, cfg.Context.MaxSegmentChars, redactor),
		analyzer:   NewSessionAnalyzer(cfg.Analyzer, cfg.Classifier),
		redactor:   redactor,
		submitter:  deps.Submitter,
		transcript: deps.Transcript,
		mirror:     deps.Mirror,
		logger:     logger,
	}
}

func (e *hookEngine) HandleEvent(ctx context.Context, ev models.Event, transcriptPath string) models.SubmissionOutcome {
	log := e.logger.With("session_id", ev.SessionID, "kind", string(ev.Kind), "tool", ev.ToolName)
	start := time.Now()

	var outcome models.SubmissionOutcome
	var msg models.Message
	switch ev.Kind {
	case models.KindStop:
		outcome, msg = e.handleStop(ctx, ev, transcriptPath, log)
	default:
		outcome, msg = e.handleAction(ctx, ev, transcriptPath, log)
	}

	attrs := []any{
		"status", string(outcome.Status),
		"attempts", outcome.Attempts,
		"elapsed_ms", time.Since(start).Milliseconds(),
	}
	if outcome.Reason != "" {
		attrs = append(attrs, "reason", outcome.Reason)
	}
	switch outcome.Status {
	case models.OutcomeDelivered:
		log.Info("message delivered", append(attrs, "name", msg.Name, "endpoint", outcome.Endpoint)...)
		e.publishMirror(ctx, msg, log)
	case models.OutcomeSuppressed, models.OutcomeSkipped:
		log.Debug("event not submitted", attrs...)
	default:
		log.Warn("message dropped", append(attrs, "status_code", outcome.StatusCode)...)
	}
	return outcome
}

// handleAction processes tool-use and notification events.
func (e *hookEngine) handleAction(ctx context.Context, ev models.Event, transcriptPath string, log *slog.Logger) (models.SubmissionOutcome, models.Message) {
	action := e.classifier.Classify(ev)
	if action.Suppressed() {
		return models.SubmissionOutcome{Status: models.OutcomeSuppressed, Reason: "excluded tool"}, models.Message{}
	}

	entries := e.loadEntries(ev.SessionID, transcriptPath, log)
	window := e.selector.Select(ev, entries)
	tally := TallyEntries(entries[:e.selector.Anchor(ev, entries)])
	msg := e.builder.Build(ev, action, window, tally)

	return e.submit(ctx, msg), msg
}

// handleStop analyzes the whole session and submits its summary.
func (e *hookEngine) handleStop(ctx context.Context, ev models.Event, transcriptPath string, log *slog.Logger) (models.SubmissionOutcome, models.Message) {
	if ev.StopHookActive {
		return models.SubmissionOutcome{Status: models.OutcomeSkipped, Reason: "stop hook already active"}, models.Message{}
	}

	entries := e.loadEntries(ev.SessionID, transcriptPath, log)
	if len(entries) == 0 {
		return models.SubmissionOutcome{Status: models.OutcomeSkipped, Reason: "empty transcript"}, models.Message{}
	}

	events := append(EventsFromTranscript(ev.SessionID, entries), ev)
	summary := e.analyzer.Analyze(ev.SessionID, entries, events)
	log.Debug("session analyzed",
		"files_modified", len(summary.FilesModified),
		"tool_uses", summary.Metrics.ToolUseCount,
		"success_rate", summary.Metrics.SuccessRate)

	msg := FormatSummary(summary, e.cfg.Graphiti.GroupID, ev.Timestamp)
	if e.redactor != nil {
		msg.Content = e.redactor.Redact(msg.Content)
	}
	return e.submit(ctx, msg), msg
}

// loadEntries reads the transcript. A missing or unreadable transcript
// degrades to whatever was read, possibly nothing.
func (e *hookEngine) loadEntries(sessionID, transcriptPath string, log *slog.Logger) []models.TranscriptEntry {
	if e.transcript == nil {
		return nil
	}
	entries, warnings, err := e.transcript.LoadTranscript(sessionID, transcriptPath)
	for _, w := range warnings {
		log.Warn("malformed transcript entry", "path", transcriptPath, "error", w)
	}
	if err != nil {
		log.Warn("transcript unavailable, continuing without context",
			"path", transcriptPath, "entries_read", len(entries), "error", err)
	}
	return entries
}

func (e *hookEngine) submit(ctx context.Context, msg models.Message) models.SubmissionOutcome {
	if e.submitter == nil {
		return models.SubmissionOutcome{Status: models.OutcomeSkipped, Reason: "no submitter configured"}
	}
	return e.submitter.Submit(ctx, msg)
}

func (e *hookEngine) publishMirror(ctx context.Context, msg models.Message, log *slog.Logger) {
	if e.mirror == nil {
		return
	}
	if err := e.mirror.Publish(ctx, msg); err != nil {
		log.Warn("mirror publish failed", "error", err)
	}
}
