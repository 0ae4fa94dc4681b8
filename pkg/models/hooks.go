package models

// HookConfig selects which hook events are forwarded to the sink.
type HookConfig struct {
	Enabled      bool `yaml:"enabled" mapstructure:"enabled"`
	PostToolUse  bool `yaml:"post_tool_use" mapstructure:"post_tool_use"`
	Notification bool `yaml:"notification" mapstructure:"notification"`
	SessionEnd   bool `yaml:"session_end" mapstructure:"session_end"`

	// SummarizeOnStop also runs the session analyzer for Stop events, which
	// the host emits after every assistant response rather than once per session.
	SummarizeOnStop bool `yaml:"summarize_on_stop" mapstructure:"summarize_on_stop"`
}

// DefaultHookConfig returns the default hook selection: everything forwarded,
// summaries produced on both Stop and SessionEnd.
func DefaultHookConfig() HookConfig {
	return HookConfig{
		Enabled:         true,
		PostToolUse:     true,
		Notification:    true,
		SessionEnd:      true,
		SummarizeOnStop: true,
	}
}
