package models

import "time"

// SessionSummary aggregates the insights extracted from a whole session.
// It is built once at session end and only ever sent to the remote sink.
type SessionSummary struct {
	SessionID      string             `yaml:"session_id" json:"session_id"`
	TotalMessages  int                `yaml:"total_messages" json:"total_messages"`
	PrimaryGoal    string             `yaml:"primary_goal,omitempty" json:"primary_goal,omitempty"`
	FilesModified  []FileModification `yaml:"files_modified,omitempty" json:"files_modified,omitempty"`
	ProblemsSolved []string           `yaml:"problems_solved,omitempty" json:"problems_solved,omitempty"`
	Technologies   []string           `yaml:"technologies,omitempty" json:"technologies,omitempty"`
	Metrics        SessionMetrics     `yaml:"metrics" json:"metrics"`
	FollowUpItems  []string           `yaml:"follow_up_items,omitempty" json:"follow_up_items,omitempty"`
	KeyDecisions   []string           `yaml:"key_decisions,omitempty" json:"key_decisions,omitempty"`
	Learnings      []string           `yaml:"learnings,omitempty" json:"learnings,omitempty"`
}

// FileModification records a path touched by write-class tools.
type FileModification struct {
	Path          string    `yaml:"path" json:"path"`
	Operations    []string  `yaml:"operations" json:"operations"`
	FirstModified time.Time `yaml:"first_modified,omitempty" json:"first_modified,omitempty"`
	LastModified  time.Time `yaml:"last_modified,omitempty" json:"last_modified,omitempty"`
}

// SessionMetrics holds numeric session statistics.
type SessionMetrics struct {
	DurationSeconds float64 `yaml:"duration_seconds" json:"duration_seconds"`
	ToolUseCount    int     `yaml:"tool_use_count" json:"tool_use_count"`
	FailedCount     int     `yaml:"failed_count" json:"failed_count"`
	SuccessRate     float64 `yaml:"success_rate" json:"success_rate"`
	UserTurns       int     `yaml:"user_turns" json:"user_turns"`
	AssistantTurns  int     `yaml:"assistant_turns" json:"assistant_turns"`
}

// ModifiedPaths returns the modified file paths in summary order.
func (s SessionSummary) ModifiedPaths() []string {
	paths := make([]string, 0, len(s.FilesModified))
	for _, f := range s.FilesModified {
		paths = append(paths, f.Path)
	}
	return paths
}
