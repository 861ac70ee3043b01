package main

import (
	"context"
	"log/slog"

	"github.com/sirupsen/logrus"
)

// setupLogging configures the process-wide logrus logger from the
// global flags.
func setupLogging(jsonLog, verbose bool) {
	if jsonLog {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// libraryLogger returns the slog logger handed to the publish package.
// Its records land in logrus, so one --verbose flag governs both the
// CLI's own output and the library's command/reply trace.
func libraryLogger() *slog.Logger {
	return slog.New(&logrusHandler{})
}

// logrusHandler forwards slog records into the logrus default logger.
type logrusHandler struct {
	attrs []slog.Attr
}

func (h *logrusHandler) Enabled(_ context.Context, level slog.Level) bool {
	return logrus.IsLevelEnabled(slogToLogrusLevel(level))
}

func (h *logrusHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make(logrus.Fields, len(h.attrs)+record.NumAttrs())
	for _, attr := range h.attrs {
		fields[attr.Key] = attr.Value.Any()
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields[attr.Key] = attr.Value.Any()
		return true
	})
	logrus.WithFields(fields).Log(slogToLogrusLevel(record.Level), record.Message)
	return nil
}

func (h *logrusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &logrusHandler{attrs: merged}
}

func (h *logrusHandler) WithGroup(name string) slog.Handler {
	// The library does not use groups; flatten them.
	return h
}

func slogToLogrusLevel(level slog.Level) logrus.Level {
	switch {
	case level >= slog.LevelError:
		return logrus.ErrorLevel
	case level >= slog.LevelWarn:
		return logrus.WarnLevel
	case level >= slog.LevelInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}
