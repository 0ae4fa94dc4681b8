// Package internal provides the App struct that wires all components of the
// Graphiti hook together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/cli"
	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/core"
	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/integration"
	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/observability"
	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

// App holds all service dependencies of the hook.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.Config

	// Core services
	HookEngine core.HookEngine
	Analyzer   core.SessionAnalyzer

	// Integration services
	Graphiti    integration.GraphitiClient
	Transcripts integration.TranscriptStore
	Mirror      integration.Mirror

	// Observability
	Logger    *observability.Logger
	StatsCalc observability.StatsCalculator
}

// NewApp creates and wires all components. basePath is the directory searched
// for .graphiti-hook.yaml.
//
// A configuration that fails to load or validate does not stop the app: the
// defaults are used and the problem is logged, because hook invocations must
// never fail the host.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, cfgErr := app.ConfigMgr.Load()
	if cfgErr == nil {
		cfgErr = app.ConfigMgr.ValidateConfig(cfg)
	}
	if cfgErr != nil {
		def := models.DefaultConfig()
		cfg = &def
	}
	app.Config = cfg

	// --- Observability ---
	logger, logErr := observability.NewLogger(cfg.Log)
	app.Logger = logger
	if logErr != nil {
		logger.Warn("hook log unavailable, logging to stderr", "error", logErr)
	}
	if cfgErr != nil {
		logger.Warn("invalid configuration, using defaults", "error", cfgErr, "base_path", basePath)
	}
	app.StatsCalc = observability.NewStatsCalculator(logger.Path())

	// --- Integration services ---
	app.Graphiti = integration.NewGraphitiClient(cfg.Graphiti)
	app.Transcripts = integration.NewTranscriptStore(cfg.Transcript.ClaudeDir, cfg.Transcript.MaxEntries)

	deps := core.HookEngineDeps{
		Submitter:  app.Graphiti,
		Transcript: app.Transcripts,
		Logger:     logger.Logger,
	}
	if cfg.Mirror.NATSURL != "" {
		app.Mirror = integration.NewNATSMirror(cfg.Mirror.NATSURL, cfg.Mirror.SubjectPrefix, 0)
		deps.Mirror = app.Mirror
	}

	// --- Core services ---
	app.HookEngine = core.NewHookEngine(*cfg, deps)
	app.Analyzer = core.NewSessionAnalyzer(cfg.Analyzer, cfg.Classifier)

	// --- Wire CLI ---
	cli.Config = app.Config
	cli.ConfigMgr = app.ConfigMgr
	cli.HookEngine = app.HookEngine
	cli.Analyzer = app.Analyzer
	cli.Transcripts = app.Transcripts
	cli.Graphiti = app.Graphiti
	cli.StatsCalc = app.StatsCalc
	cli.Logger = logger.Logger
	cli.LogPath = logger.Path()

	return app, nil
}

// Close releases the NATS connection and the log file. It is safe to call on
// a partially initialized App.
func (a *App) Close() error {
	if a.Mirror != nil {
		a.Mirror.Close()
	}
	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			return fmt.Errorf("closing hook log: %w", err)
		}
	}
	return nil
}

// ResolveBasePath determines where configuration is read from.
// Priority: GRAPHITI_HOOK_HOME env var > nearest directory containing
// .graphiti-hook.yaml walking up from cwd > home directory > cwd.
func ResolveBasePath() string {
	if home := os.Getenv("GRAPHITI_HOOK_HOME"); home != "" {
		return home
	}

	configFile := core.ConfigFileName + ".yaml"
	dir, err := os.Getwd()
	if err == nil {
		for {
			if _, err := os.Stat(filepath.Join(dir, configFile)); err == nil {
				return dir
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	cwd, _ := os.Getwd()
	return cwd
}
