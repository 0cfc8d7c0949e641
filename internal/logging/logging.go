// Package logging configures the process-wide slog default: human-readable
// output on an interactive stderr, JSON otherwise, optionally fanned out to
// a size-rotated log file.
package logging

import (
	"log/slog"
	"os"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig controls the rotated log file sink.
type FileConfig struct {
	Enabled    bool   `json:"enabled"`
	Filename   string `json:"filename"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// Setup installs the default logger. level is one of debug/info/warn/error;
// anything else falls back to warn. fileCfg may be nil.
func Setup(level string, fileCfg *FileConfig) {
	consoleLevel := ParseLevel(level)

	var console slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		console = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: consoleLevel})
	} else {
		console = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: consoleLevel})
	}

	handlers := []slog.Handler{console}
	if fileCfg != nil && fileCfg.Enabled && fileCfg.Filename != "" {
		writer := &lumberjack.Logger{
			Filename:   fileCfg.Filename,
			MaxSize:    fileCfg.MaxSizeMB,
			MaxBackups: fileCfg.MaxBackups,
			MaxAge:     fileCfg.MaxAgeDays,
			Compress:   fileCfg.Compress,
		}
		// The file sink always captures debug detail; its size is bounded
		// by rotation, not by level.
		handlers = append(handlers, slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	slog.SetDefault(slog.New(NewMultiHandler(handlers...)))
	slog.Debug("logging configured",
		"console_level", consoleLevel.String(),
		"file_sink", fileCfg != nil && fileCfg.Enabled)
}

// ParseLevel maps a config string to a slog level, defaulting to warn.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
