// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.level.String()
			if got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(99), slog.LevelInfo},
		{Level(-1), slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			got := tt.level.toSlogLevel()
			if got != tt.want {
				t.Errorf("Level.toSlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"ERROR", LevelError, false},
		{" Info ", LevelInfo, false},
		{"", LevelInfo, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseLevel(%q) expected error, got nil", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(Config{Level: LevelWarn}, &buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") {
		t.Error("debug message should be filtered at Warn level")
	}
	if strings.Contains(out, "info message") {
		t.Error("info message should be filtered at Warn level")
	}
	if !strings.Contains(out, "warn message") {
		t.Error("warn message missing from output")
	}
	if !strings.Contains(out, "error message") {
		t.Error("error message missing from output")
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(Config{JSON: true, Service: "snomedctl"}, &buf)

	logger.Info("graph loaded", "vertices", 361234, "edges", 1548210)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "graph loaded" {
		t.Errorf("msg = %v, want %q", entry["msg"], "graph loaded")
	}
	if entry["service"] != "snomedctl" {
		t.Errorf("service = %v, want %q", entry["service"], "snomedctl")
	}
	if entry["vertices"] != float64(361234) {
		t.Errorf("vertices = %v, want 361234", entry["vertices"])
	}
}

func TestLogger_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(Config{Service: "snomedctl"}, &buf)

	logger.Info("build finished", "warnings", 3)

	out := buf.String()
	if !strings.Contains(out, "build finished") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, "service=snomedctl") {
		t.Errorf("output missing service attribute: %q", out)
	}
	if !strings.Contains(out, "warnings=3") {
		t.Errorf("output missing attribute: %q", out)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(Config{JSON: true}, &buf)

	child := logger.With("release", "20240201")
	child.Info("build started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["release"] != "20240201" {
		t.Errorf("release = %v, want %q", entry["release"], "20240201")
	}

	// The parent logger is unaffected.
	buf.Reset()
	logger.Info("plain entry")
	buf2 := buf.Bytes()
	var plain map[string]any
	if err := json.Unmarshal(buf2, &plain); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if _, ok := plain["release"]; ok {
		t.Error("parent logger should not carry child attributes")
	}
}

func TestLogger_Quiet(t *testing.T) {
	// Quiet loggers must still be safe to call.
	logger := New(Config{Quiet: true, Level: LevelDebug})
	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("dropped")
	logger.Error("dropped")
}

func TestLogger_Slog(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(Config{}, &buf)

	s := logger.Slog()
	if s == nil {
		t.Fatal("Slog() returned nil")
	}
	s.Info("through slog")
	if !strings.Contains(buf.String(), "through slog") {
		t.Error("slog entry missing from output")
	}
}

func TestLogger_LevelAccessor(t *testing.T) {
	logger := New(Config{Level: LevelError, Quiet: true})
	if logger.Level() != LevelError {
		t.Errorf("Level() = %v, want %v", logger.Level(), LevelError)
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil {
		t.Fatal("Default() returned nil")
	}
	if logger.Level() != LevelInfo {
		t.Errorf("default level = %v, want %v", logger.Level(), LevelInfo)
	}
}
