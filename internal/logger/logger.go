// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger provides a simple logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type slogLogger struct {
	log *slog.Logger
}

// New creates a Logger writing text records to w with the given component
// name attached.
func New(w io.Writer, component string, level slog.Level) Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &slogLogger{log: slog.New(h).With("component", component)}
}

// FromSlog wraps an existing slog.Logger
func FromSlog(l *slog.Logger) Logger {
	return &slogLogger{log: l}
}

func (l *slogLogger) Info(format string, args ...interface{}) {
	l.logf(slog.LevelInfo, format, args...)
}

func (l *slogLogger) Error(format string, args ...interface{}) {
	l.logf(slog.LevelError, format, args...)
}

func (l *slogLogger) Debug(format string, args ...interface{}) {
	l.logf(slog.LevelDebug, format, args...)
}

func (l *slogLogger) logf(level slog.Level, format string, args ...interface{}) {
	ctx := context.Background()
	if !l.log.Enabled(ctx, level) {
		return
	}
	l.log.Log(ctx, level, fmt.Sprintf(format, args...))
}

// ParseLevel maps debug, info, warn and error to a slog level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return level, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

type nopLogger struct{}

// Nop returns a Logger discarding everything
func Nop() Logger { return nopLogger{} }

func (nopLogger) Info(format string, args ...interface{})  {}
func (nopLogger) Error(format string, args ...interface{}) {}
func (nopLogger) Debug(format string, args ...interface{}) {}
