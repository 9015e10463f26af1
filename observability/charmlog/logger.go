// Package charmlog adapts charmbracelet/log to core.Logger.
package charmlog

import (
	"io"
	"strings"

	"github.com/Swind/go-task-manager/core"
	"github.com/charmbracelet/log"
)

// Options holds configuration for the console logger.
type Options struct {
	Level           log.Level
	Formatter       log.Formatter
	ReportTimestamp bool
	ReportCaller    bool
	Prefix          string
}

// DefaultOptions returns default options for console logging.
func DefaultOptions() Options {
	return Options{
		Level:           log.InfoLevel,
		Formatter:       log.TextFormatter,
		ReportTimestamp: true,
		Prefix:          "taskmanager",
	}
}

// Logger implements core.Logger on top of a charmbracelet/log Logger.
type Logger struct {
	logger *log.Logger
}

var _ core.Logger = (*Logger)(nil)

// New creates a Logger writing to w.
func New(w io.Writer, opts Options) *Logger {
	return &Logger{logger: log.NewWithOptions(w, log.Options{
		Level:           opts.Level,
		Formatter:       opts.Formatter,
		ReportTimestamp: opts.ReportTimestamp,
		ReportCaller:    opts.ReportCaller,
		Prefix:          opts.Prefix,
	})}
}

// NewWithLogger wraps an existing charmbracelet/log Logger.
func NewWithLogger(logger *log.Logger) *Logger {
	return &Logger{logger: logger}
}

// NewFromConfig creates a Logger from string configuration values, as
// loaded from TOML.
func NewFromConfig(w io.Writer, level, format string, timestamps bool) *Logger {
	opts := DefaultOptions()
	opts.Level = ParseLevel(level)
	opts.Formatter = ParseFormatter(format)
	opts.ReportTimestamp = timestamps
	return New(w, opts)
}

// Base returns the underlying charmbracelet/log Logger.
func (l *Logger) Base() *log.Logger {
	return l.logger
}

func (l *Logger) Debug(msg string, fields ...core.Field) { l.logger.Debug(msg, keyvals(fields)...) }
func (l *Logger) Info(msg string, fields ...core.Field)  { l.logger.Info(msg, keyvals(fields)...) }
func (l *Logger) Warn(msg string, fields ...core.Field)  { l.logger.Warn(msg, keyvals(fields)...) }
func (l *Logger) Error(msg string, fields ...core.Field) { l.logger.Error(msg, keyvals(fields)...) }

func keyvals(fields []core.Field) []any {
	if len(fields) == 0 {
		return nil
	}
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}

// ParseLevel parses a string log level to a charmbracelet/log Level.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ParseFormatter parses a string formatter name to a charmbracelet/log Formatter.
func ParseFormatter(format string) log.Formatter {
	switch strings.ToLower(format) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
