package cli

import (
	"log/slog"

	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/core"
	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/integration"
	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/observability"
	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	Config      *models.Config
	ConfigMgr   core.ConfigurationManager
	HookEngine  core.HookEngine
	Analyzer    core.SessionAnalyzer
	Transcripts integration.TranscriptStore
	Graphiti    integration.GraphitiClient
	StatsCalc   observability.StatsCalculator
	Logger      *slog.Logger
	LogPath     string
)

// activeConfig returns the loaded configuration, or the defaults before
// initialization.
func activeConfig() models.Config {
	if Config == nil {
		return models.DefaultConfig()
	}
	return *Config
}

func logger() *slog.Logger {
	if Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return Logger
}
