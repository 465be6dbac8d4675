// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for the snomedgraph tools.
//
// The package wraps Go's standard slog with a small configuration layer
// shared by the CLI and the engine packages. Output goes to stderr so
// command results on stdout stay machine-readable; the engine packages
// take a plain *slog.Logger and never construct one themselves.
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("graph loaded", "vertices", g.Len(), "edges", g.EdgeCount())
//	logger.Error("build failed", "error", err)
//
// # Configured Usage
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelDebug,
//	    Service: "snomedctl",
//	    JSON:    true,
//	})
//
// # Log Levels
//
// Four levels are supported, matching slog conventions:
//
//   - Debug: traversal internals, per-file row counts
//   - Info: build summaries, store activity
//   - Warn: recoverable build issues (synonym promotion, skipped rows)
//   - Error: operation failures (the process continues)
//
// # Thread Safety
//
// Logger is safe for concurrent use; it holds no mutable state beyond
// the underlying slog.Logger, which is itself thread-safe.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity.
//
// Levels are ordered Debug < Info < Warn < Error. Setting a minimum
// level discards everything below it.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages.
	LevelInfo

	// LevelWarn is for recoverable issues the run can continue past.
	LevelWarn

	// LevelError is for failed operations.
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// toSlogLevel bridges Level to the standard library.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a config or flag string into a Level.
//
// Accepted values (case-insensitive): "debug", "info", "warn", "warning",
// "error". The empty string means LevelInfo.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures the Logger.
//
// A zero-value Config creates a logger that writes Info and above to
// stderr in text format.
type Config struct {
	// Level sets the minimum log level. Default: LevelInfo.
	Level Level

	// Service is included in every entry as the "service" attribute.
	// Default: "" (no service attribute).
	Service string

	// JSON switches stderr output from human-readable text to JSON.
	JSON bool

	// Quiet discards all output. Command results printed to stdout are
	// unaffected.
	Quiet bool
}

// =============================================================================
// Logger
// =============================================================================

// Logger is a thin wrapper over slog.Logger carrying its Config.
type Logger struct {
	slog   *slog.Logger
	config Config
}

// New creates a Logger from the configuration.
//
// Description:
//
//	Builds a text or JSON stderr handler filtered at the configured
//	level, attaches the service attribute, and wraps it. Quiet swaps the
//	handler's destination for io.Discard.
//
// Inputs:
//
//	config - Logger configuration
//
// Outputs:
//
//	*Logger - Ready for use; no Close required
func New(config Config) *Logger {
	var out io.Writer = os.Stderr
	if config.Quiet {
		out = io.Discard
	}
	return newWithWriter(config, out)
}

// newWithWriter builds the handler stack onto an arbitrary destination.
func newWithWriter(config Config, out io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level: config.Level.toSlogLevel(),
	}

	var handler slog.Handler
	if config.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("service", config.Service),
		})
	}

	return &Logger{
		slog:   slog.New(handler),
		config: config,
	}
}

// Default returns a logger with default settings: Info level, text
// format, stderr, service "snomedgraph".
func Default() *Logger {
	return New(Config{
		Level:   LevelInfo,
		Service: "snomedgraph",
	})
}

// Debug logs a message at Debug level with key-value attributes.
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// Info logs a message at Info level with key-value attributes.
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

// Warn logs a message at Warn level with key-value attributes.
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// Error logs a message at Error level with key-value attributes.
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// With returns a child logger that includes the given attributes on
// every entry.
//
// Example:
//
//	buildLogger := logger.With("release", release.Version)
//	buildLogger.Info("build started")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:   l.slog.With(args...),
		config: l.config,
	}
}

// Slog exposes the underlying slog.Logger for packages that take one.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Level returns the configured minimum level.
func (l *Logger) Level() Level {
	return l.config.Level
}
