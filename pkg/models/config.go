package models

import "time"

// Config is the complete runtime configuration, read from .graphiti-hook.yaml
// and the GRAPHITI_* environment variables via Viper.
type Config struct {
	Graphiti   GraphitiConfig   `yaml:"graphiti" mapstructure:"graphiti"`
	Context    ContextConfig    `yaml:"context" mapstructure:"context"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer" mapstructure:"analyzer"`
	Transcript TranscriptConfig `yaml:"transcript" mapstructure:"transcript"`
	Redaction  RedactionConfig  `yaml:"redaction" mapstructure:"redaction"`
	Mirror     MirrorConfig     `yaml:"mirror" mapstructure:"mirror"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Hooks      HookConfig       `yaml:"hooks" mapstructure:"hooks"`
}

// GraphitiConfig controls the knowledge-graph submission client.
type GraphitiConfig struct {
	URL              string        `yaml:"url" mapstructure:"url"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	GroupID          string        `yaml:"group_id" mapstructure:"group_id"`
	MaxRetries       int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"`
	FallbackEndpoint bool          `yaml:"fallback_endpoint" mapstructure:"fallback_endpoint"`
	Compression      string        `yaml:"compression,omitempty" mapstructure:"compression"`
}

// ContextConfig bounds the context window selected for each event.
type ContextConfig struct {
	WindowPairs     int `yaml:"window_pairs" mapstructure:"window_pairs"`
	MaxScanEntries  int `yaml:"max_scan_entries" mapstructure:"max_scan_entries"`
	MaxSegmentChars int `yaml:"max_segment_chars" mapstructure:"max_segment_chars"`
}

// ClassifierConfig tunes which tools produce messages.
type ClassifierConfig struct {
	IncludeUnknownTools bool     `yaml:"include_unknown_tools" mapstructure:"include_unknown_tools"`
	ExtraExcludedTools  []string `yaml:"extra_excluded_tools,omitempty" mapstructure:"extra_excluded_tools"`
}

// AnalyzerConfig caps the output of the end-of-session analysis.
type AnalyzerConfig struct {
	GoalUserTurns int `yaml:"goal_user_turns" mapstructure:"goal_user_turns"`
	MaxProblems   int `yaml:"max_problems" mapstructure:"max_problems"`
	MaxFollowUps  int `yaml:"max_follow_ups" mapstructure:"max_follow_ups"`
	MaxDecisions  int `yaml:"max_decisions" mapstructure:"max_decisions"`
	MaxLearnings  int `yaml:"max_learnings" mapstructure:"max_learnings"`
}

// TranscriptConfig locates and bounds transcript reads.
type TranscriptConfig struct {
	ClaudeDir  string `yaml:"claude_dir,omitempty" mapstructure:"claude_dir"`
	MaxEntries int    `yaml:"max_entries" mapstructure:"max_entries"`
}

// RedactionConfig toggles secret redaction of outbound content.
type RedactionConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// MirrorConfig enables publishing delivered messages to NATS.
type MirrorConfig struct {
	NATSURL       string `yaml:"nats_url,omitempty" mapstructure:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix" mapstructure:"subject_prefix"`
}

// LogConfig controls the rotating hook log.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Dir    string `yaml:"dir,omitempty" mapstructure:"dir"`
	Stderr bool   `yaml:"stderr" mapstructure:"stderr"`
}

// DefaultConfig returns the configuration used when no file or environment
// override is present.
func DefaultConfig() Config {
	return Config{
		Graphiti: GraphitiConfig{
			URL:              "http://localhost:8001",
			Timeout:          30 * time.Second,
			GroupID:          "claude_conversations",
			MaxRetries:       2,
			RetryBackoff:     500 * time.Millisecond,
			FallbackEndpoint: true,
		},
		Context: ContextConfig{
			WindowPairs:     2,
			MaxScanEntries:  200,
			MaxSegmentChars: 300,
		},
		Analyzer: AnalyzerConfig{
			GoalUserTurns: 3,
			MaxProblems:   10,
			MaxFollowUps:  5,
			MaxDecisions:  5,
			MaxLearnings:  3,
		},
		Redaction: RedactionConfig{Enabled: true},
		Mirror:    MirrorConfig{SubjectPrefix: "graphiti.messages"},
		Log:       LogConfig{Level: "info"},
		Hooks:     DefaultHookConfig(),
	}
}
