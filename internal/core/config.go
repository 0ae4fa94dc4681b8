// Package core contains the business logic of the Graphiti hook: configuration,
// tool classification, context selection, message building, session analysis,
// redaction and the hook engine that ties them together.
package core

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
	"github.com/spf13/viper"
)

// ConfigFileName is the base name of the YAML configuration file.
const ConfigFileName = ".graphiti-hook"

// envBindings maps configuration keys to the environment variables that
// override them.
var envBindings = map[string]string{
	"graphiti.url":          "GRAPHITI_URL",
	"graphiti.timeout":      "GRAPHITI_TIMEOUT",
	"graphiti.group_id":     "GRAPHITI_GROUP_ID",
	"graphiti.max_retries":  "GRAPHITI_MAX_RETRIES",
	"graphiti.compression":  "GRAPHITI_COMPRESSION",
	"log.level":             "GRAPHITI_HOOK_LOG_LEVEL",
	"mirror.nats_url":       "GRAPHITI_NATS_URL",
	"transcript.claude_dir": "CLAUDE_CONFIG_DIR",
}

// ConfigurationManager loads and validates the hook configuration from
// .graphiti-hook.yaml and GRAPHITI_* environment variables.
type ConfigurationManager interface {
	Load() (*models.Config, error)
	ValidateConfig(cfg *models.Config) error
	// ConfigFile returns the file used by the last Load, or "" when only
	// defaults and the environment applied.
	ConfigFile() string
}

// viperConfigManager implements ConfigurationManager using Viper.
type viperConfigManager struct {
	basePath string
	used     string
}

// NewConfigurationManager creates a ConfigurationManager that looks for
// .graphiti-hook.yaml in basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

func (cm *viperConfigManager) ConfigFile() string {
	return cm.used
}

// Load reads the configuration file, falling back to defaults when it does
// not exist, and applies environment overrides.
func (cm *viperConfigManager) Load() (*models.Config, error) {
	def := models.DefaultConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	v.SetDefault("graphiti.url", def.Graphiti.URL)
	v.SetDefault("graphiti.timeout", def.Graphiti.Timeout.String())
	v.SetDefault("graphiti.group_id", def.Graphiti.GroupID)
	v.SetDefault("graphiti.max_retries", def.Graphiti.MaxRetries)
	v.SetDefault("graphiti.retry_backoff", def.Graphiti.RetryBackoff.String())
	v.SetDefault("graphiti.fallback_endpoint", def.Graphiti.FallbackEndpoint)
	v.SetDefault("graphiti.compression", def.Graphiti.Compression)
	v.SetDefault("context.window_pairs", def.Context.WindowPairs)
	v.SetDefault("context.max_scan_entries", def.Context.MaxScanEntries)
	v.SetDefault("context.max_segment_chars", def.Context.MaxSegmentChars)
	v.SetDefault("classifier.include_unknown_tools", def.Classifier.IncludeUnknownTools)
	v.SetDefault("analyzer.goal_user_turns", def.Analyzer.GoalUserTurns)
	v.SetDefault("analyzer.max_problems", def.Analyzer.MaxProblems)
	v.SetDefault("analyzer.max_follow_ups", def.Analyzer.MaxFollowUps)
	v.SetDefault("analyzer.max_decisions", def.Analyzer.MaxDecisions)
	v.SetDefault("analyzer.max_learnings", def.Analyzer.MaxLearnings)
	v.SetDefault("transcript.max_entries", def.Transcript.MaxEntries)
	v.SetDefault("redaction.enabled", def.Redaction.Enabled)
	v.SetDefault("mirror.subject_prefix", def.Mirror.SubjectPrefix)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.stderr", def.Log.Stderr)
	v.SetDefault("hooks.enabled", def.Hooks.Enabled)
	v.SetDefault("hooks.post_tool_use", def.Hooks.PostToolUse)
	v.SetDefault("hooks.notification", def.Hooks.Notification)
	v.SetDefault("hooks.session_end", def.Hooks.SessionEnd)
	v.SetDefault("hooks.summarize_on_stop", def.Hooks.SummarizeOnStop)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	cm.used = ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s.yaml: %w", ConfigFileName, err)
		}
	} else {
		cm.used = v.ConfigFileUsed()
	}

	timeout, err := parseSeconds(v.GetString("graphiti.timeout"))
	if err != nil {
		return nil, fmt.Errorf("graphiti.timeout: %w", err)
	}
	retryBackoff, err := parseSeconds(v.GetString("graphiti.retry_backoff"))
	if err != nil {
		return nil, fmt.Errorf("graphiti.retry_backoff: %w", err)
	}

	cfg := &models.Config{
		Graphiti: models.GraphitiConfig{
			URL:              strings.TrimSpace(v.GetString("graphiti.url")),
			Timeout:          timeout,
			GroupID:          v.GetString("graphiti.group_id"),
			MaxRetries:       v.GetInt("graphiti.max_retries"),
			RetryBackoff:     retryBackoff,
			FallbackEndpoint: v.GetBool("graphiti.fallback_endpoint"),
			Compression:      v.GetString("graphiti.compression"),
		},
		Context: models.ContextConfig{
			WindowPairs:     v.GetInt("context.window_pairs"),
			MaxScanEntries:  v.GetInt("context.max_scan_entries"),
			MaxSegmentChars: v.GetInt("context.max_segment_chars"),
		},
		Classifier: models.ClassifierConfig{
			IncludeUnknownTools: v.GetBool("classifier.include_unknown_tools"),
			ExtraExcludedTools:  v.GetStringSlice("classifier.extra_excluded_tools"),
		},
		Analyzer: models.AnalyzerConfig{
			GoalUserTurns: v.GetInt("analyzer.goal_user_turns"),
			MaxProblems:   v.GetInt("analyzer.max_problems"),
			MaxFollowUps:  v.GetInt("analyzer.max_follow_ups"),
			MaxDecisions:  v.GetInt("analyzer.max_decisions"),
			MaxLearnings:  v.GetInt("analyzer.max_learnings"),
		},
		Transcript: models.TranscriptConfig{
			ClaudeDir:  v.GetString("transcript.claude_dir"),
			MaxEntries: v.GetInt("transcript.max_entries"),
		},
		Redaction: models.RedactionConfig{
			Enabled: v.GetBool("redaction.enabled"),
		},
		Mirror: models.MirrorConfig{
			NATSURL:       v.GetString("mirror.nats_url"),
			SubjectPrefix: v.GetString("mirror.subject_prefix"),
		},
		Log: models.LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Dir:    v.GetString("log.dir"),
			Stderr: v.GetBool("log.stderr"),
		},
		Hooks: models.HookConfig{
			Enabled:         v.GetBool("hooks.enabled"),
			PostToolUse:     v.GetBool("hooks.post_tool_use"),
			Notification:    v.GetBool("hooks.notification"),
			SessionEnd:      v.GetBool("hooks.session_end"),
			SummarizeOnStop: v.GetBool("hooks.summarize_on_stop"),
		},
	}

	return cfg, nil
}

// parseSeconds accepts either a Go duration ("45s", "1m") or a plain number
// of seconds ("30", "2.5"), the form GRAPHITI_TIMEOUT has always used.
func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks the configuration for invalid values and returns a
// single error listing every problem found.
func (cm *viperConfigManager) ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.Graphiti.URL == "" {
		errs = append(errs, "graphiti.url must not be empty")
	} else if u, err := url.Parse(cfg.Graphiti.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("graphiti.url %q is not an absolute URL", cfg.Graphiti.URL))
	}
	if cfg.Graphiti.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("graphiti.timeout must be positive, got %s", cfg.Graphiti.Timeout))
	}
	if cfg.Graphiti.GroupID == "" {
		errs = append(errs, "graphiti.group_id must not be empty")
	}
	if cfg.Graphiti.MaxRetries < 0 {
		errs = append(errs, fmt.Sprintf("graphiti.max_retries must be non-negative, got %d", cfg.Graphiti.MaxRetries))
	}
	if c := cfg.Graphiti.Compression; c != "" && !strings.EqualFold(c, "zstd") && !strings.EqualFold(c, "none") {
		errs = append(errs, fmt.Sprintf("graphiti.compression %q is invalid, must be one of: zstd, none", c))
	}
	if cfg.Context.WindowPairs < 1 {
		errs = append(errs, fmt.Sprintf("context.window_pairs must be at least 1, got %d", cfg.Context.WindowPairs))
	}
	if cfg.Context.MaxScanEntries < 1 {
		errs = append(errs, fmt.Sprintf("context.max_scan_entries must be at least 1, got %d", cfg.Context.MaxScanEntries))
	}
	if cfg.Context.MaxSegmentChars < 10 {
		errs = append(errs, fmt.Sprintf("context.max_segment_chars must be at least 10, got %d", cfg.Context.MaxSegmentChars))
	}
	if cfg.Transcript.MaxEntries < 0 {
		errs = append(errs, fmt.Sprintf("transcript.max_entries must be non-negative, got %d", cfg.Transcript.MaxEntries))
	}
	if !validLogLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error", cfg.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
