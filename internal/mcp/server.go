// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the knowledge graph and the session analyzer as MCP tools for AI coding
// assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/core"
	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/integration"
	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/observability"
)

// Searcher queries the knowledge graph.
type Searcher interface {
	Search(ctx context.Context, query string, maxNodes, maxFacts int) (*integration.SearchResult, error)
}

// Server wraps the hook services and exposes them as MCP tools.
type Server struct {
	server     *gomcp.Server
	searcher   Searcher
	transcript core.TranscriptSource
	analyzer   core.SessionAnalyzer
	stats      observability.StatsCalculator
}

// NewServer creates a new MCP server with the given service dependencies.
// stats may be nil when no hook log is available.
func NewServer(searcher Searcher, transcript core.TranscriptSource, analyzer core.SessionAnalyzer, stats observability.StatsCalculator, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		searcher:   searcher,
		transcript: transcript,
		analyzer:   analyzer,
		stats:      stats,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "graphiti-hook", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type searchMemoryInput struct {
	Query    string `json:"query" jsonschema:"required,free text to search the knowledge graph for"`
	MaxNodes int    `json:"max_nodes,omitempty" jsonschema:"maximum number of entity nodes to return (default 5)"`
	MaxFacts int    `json:"max_facts,omitempty" jsonschema:"maximum number of facts to return (default 10)"`
}

type nodeOutput struct {
	Name    string   `json:"name"`
	Summary string   `json:"summary,omitempty"`
	Labels  []string `json:"labels,omitempty"`
}

type factOutput struct {
	Fact    string `json:"fact"`
	ValidAt string `json:"valid_at,omitempty"`
}

type searchMemoryOutput struct {
	Nodes []nodeOutput `json:"nodes"`
	Facts []factOutput `json:"facts"`
}

type analyzeSessionInput struct {
	TranscriptPath string `json:"transcript_path,omitempty" jsonschema:"path to a Claude Code JSONL transcript"`
	SessionID      string `json:"session_id,omitempty" jsonschema:"session id, used to locate the transcript when no path is given"`
}

type fileOutput struct {
	Path       string   `json:"path"`
	Operations []string `json:"operations"`
}

type analyzeSessionOutput struct {
	SessionID      string       `json:"session_id"`
	TotalMessages  int          `json:"total_messages"`
	PrimaryGoal    string       `json:"primary_goal,omitempty"`
	FilesModified  []fileOutput `json:"files_modified"`
	ProblemsSolved []string     `json:"problems_solved"`
	Technologies   []string     `json:"technologies"`
	KeyDecisions   []string     `json:"key_decisions"`
	Learnings      []string     `json:"learnings"`
	FollowUpItems  []string     `json:"follow_up_items"`
	ToolUseCount   int          `json:"tool_use_count"`
	FailedCount    int          `json:"failed_count"`
	SuccessRate    float64      `json:"success_rate"`
	DurationSecs   float64      `json:"duration_seconds"`
	SkippedLines   int          `json:"skipped_lines"`
}

type deliveryStatsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for stats (e.g. 7d, 24h). Defaults to 7d."`
}

type deliveryStatsOutput struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	ByTool         map[string]int `json:"by_tool"`
	Sessions       int            `json:"sessions"`
	Retried        int            `json:"retried"`
	DeliveryRate   float64        `json:"delivery_rate"`
	MeanElapsedMS  float64        `json:"mean_elapsed_ms"`
	TranscriptGaps int            `json:"transcript_gaps"`
	OldestOutcome  string         `json:"oldest_outcome,omitempty"`
	NewestOutcome  string         `json:"newest_outcome,omitempty"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "search_memory",
		Description: "Search the Graphiti knowledge graph for entities and facts recorded from past Claude Code sessions.",
	}, s.handleSearchMemory)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "analyze_session",
		Description: "Analyze a Claude Code session transcript and return its goal, modified files, solved problems, technologies and metrics.",
	}, s.handleAnalyzeSession)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_delivery_stats",
		Description: "Get submission statistics from the hook log: delivered, rejected, unreachable and suppressed counts.",
	}, s.handleDeliveryStats)
}

// --- Tool handlers ---

func (s *Server) handleSearchMemory(ctx context.Context, _ *gomcp.CallToolRequest, input searchMemoryInput) (*gomcp.CallToolResult, searchMemoryOutput, error) {
	empty := searchMemoryOutput{Nodes: []nodeOutput{}, Facts: []factOutput{}}
	if input.Query == "" {
		return errorResult("query is required"), empty, nil
	}

	result, err := s.searcher.Search(ctx, input.Query, input.MaxNodes, input.MaxFacts)
	if err != nil {
		return errorResult(fmt.Sprintf("searching memory: %s", err)), empty, nil
	}

	out := searchMemoryOutput{
		Nodes: make([]nodeOutput, len(result.Nodes)),
		Facts: make([]factOutput, len(result.Facts)),
	}
	for i, n := range result.Nodes {
		out.Nodes[i] = nodeOutput{Name: n.Name, Summary: n.Summary, Labels: n.Labels}
	}
	for i, f := range result.Facts {
		out.Facts[i] = factOutput{Fact: f.Fact, ValidAt: f.ValidAt}
	}
	return nil, out, nil
}

func (s *Server) handleAnalyzeSession(_ context.Context, _ *gomcp.CallToolRequest, input analyzeSessionInput) (*gomcp.CallToolResult, analyzeSessionOutput, error) {
	if input.TranscriptPath == "" && input.SessionID == "" {
		return errorResult("transcript_path or session_id is required"), analyzeSessionOutput{}, nil
	}

	entries, warnings, err := s.transcript.LoadTranscript(input.SessionID, input.TranscriptPath)
	if err != nil {
		return errorResult(fmt.Sprintf("loading transcript: %s", err)), analyzeSessionOutput{}, nil
	}

	summary := s.analyzer.Analyze(input.SessionID, entries, core.EventsFromTranscript(input.SessionID, entries))

	out := analyzeSessionOutput{
		SessionID:      summary.SessionID,
		TotalMessages:  summary.TotalMessages,
		PrimaryGoal:    summary.PrimaryGoal,
		FilesModified:  make([]fileOutput, len(summary.FilesModified)),
		ProblemsSolved: nonNil(summary.ProblemsSolved),
		Technologies:   nonNil(summary.Technologies),
		KeyDecisions:   nonNil(summary.KeyDecisions),
		Learnings:      nonNil(summary.Learnings),
		FollowUpItems:  nonNil(summary.FollowUpItems),
		ToolUseCount:   summary.Metrics.ToolUseCount,
		FailedCount:    summary.Metrics.FailedCount,
		SuccessRate:    summary.Metrics.SuccessRate,
		DurationSecs:   summary.Metrics.DurationSeconds,
		SkippedLines:   len(warnings),
	}
	for i, f := range summary.FilesModified {
		out.FilesModified[i] = fileOutput{Path: f.Path, Operations: f.Operations}
	}
	return nil, out, nil
}

func (s *Server) handleDeliveryStats(_ context.Context, _ *gomcp.CallToolRequest, input deliveryStatsInput) (*gomcp.CallToolResult, deliveryStatsOutput, error) {
	if s.stats == nil {
		return errorResult("delivery stats not available (hook log disabled)"), emptyStatsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyStatsOutput(), nil
	}

	stats, err := s.stats.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating stats: %s", err)), emptyStatsOutput(), nil
	}

	out := deliveryStatsOutput{
		Total:          stats.Total,
		ByStatus:       stats.ByStatus,
		ByTool:         stats.ByTool,
		Sessions:       stats.Sessions,
		Retried:        stats.Retried,
		DeliveryRate:   stats.DeliveryRate,
		MeanElapsedMS:  stats.MeanElapsedMS,
		TranscriptGaps: stats.TranscriptGaps,
	}
	if stats.OldestOutcome != nil {
		out.OldestOutcome = stats.OldestOutcome.Format(time.RFC3339)
	}
	if stats.NewestOutcome != nil {
		out.NewestOutcome = stats.NewestOutcome.Format(time.RFC3339)
	}

	return nil, out, nil
}

// --- Helpers ---

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func emptyStatsOutput() deliveryStatsOutput {
	return deliveryStatsOutput{
		ByStatus: make(map[string]int),
		ByTool:   make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
