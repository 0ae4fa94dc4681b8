package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

const (
	logDirName  = ".graphiti-hook/logs"
	logFileName = "hook.log"
	maxSizeMB   = 1
	maxAgeDays  = 14
	maxBackups  = 20
)

// Logger bundles the slog logger with the rotating file behind it.
type Logger struct {
	*slog.Logger
	path string
	file io.Closer
}

// Path returns the log file path, or "" when logging to stderr only.
func (l *Logger) Path() string {
	return l.path
}

// Close closes the rotating log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// LogPath returns the log file location for cfg. An empty cfg.Dir means
// ~/.graphiti-hook/logs.
func LogPath(cfg models.LogConfig) (string, error) {
	dir := cfg.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, logDirName)
	}
	return filepath.Join(dir, logFileName), nil
}

// NewLogger creates a JSON slog logger writing to a rotating file, and to
// stderr as well when cfg.Stderr is set. When the log directory cannot be
// created the logger falls back to stderr and the error is returned
// alongside it.
func NewLogger(cfg models.LogConfig) (*Logger, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	path, err := LogPath(cfg)
	if err == nil {
		err = os.MkdirAll(filepath.Dir(path), 0o755)
	}
	if err != nil {
		fallback := slog.New(slog.NewJSONHandler(os.Stderr, opts))
		return &Logger{Logger: fallback}, fmt.Errorf("creating log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxAge:     maxAgeDays,
		MaxBackups: maxBackups,
		Compress:   true,
		LocalTime:  true,
	}
	var w io.Writer = rotator
	if cfg.Stderr {
		w = io.MultiWriter(rotator, os.Stderr)
	}
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(w, opts)),
		path:   path,
		file:   rotator,
	}, nil
}

// ParseLevel maps a config level name to a slog level; unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
