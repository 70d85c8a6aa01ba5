// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-manta.
//
// go-manta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{" error ", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, DebugLevel, FormatText)
	ctx := context.Background()

	logger.Debug(ctx, "request", String("method", "GET"), Int("status", 200))
	out := buf.String()
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "method=GET") || !strings.Contains(out, "status=200") {
		t.Errorf("unexpected output: %s", out)
	}

	buf.Reset()
	logger.Warn(ctx, "slow", Duration("elapsed", 2*time.Second))
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "elapsed=2s") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, WarnLevel, FormatText)
	ctx := context.Background()

	logger.Debug(ctx, "hidden")
	logger.Info(ctx, "hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got: %s", buf.String())
	}
	if logger.Enabled(DebugLevel) {
		t.Error("debug must be disabled")
	}
	if !logger.Enabled(ErrorLevel) {
		t.Error("error must be enabled")
	}

	logger.Error(ctx, "shown", Err(errors.New("boom")))
	if !strings.Contains(buf.String(), "error=boom") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestJSONLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, InfoLevel, FormatJSON).WithFields(String("component", "executor"))

	logger.Info(context.Background(), "hello", Int64("size", 42))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json output %q: %v", buf.String(), err)
	}
	if entry["component"] != "executor" {
		t.Errorf("expected component field, got %v", entry)
	}
	if entry["size"] != float64(42) {
		t.Errorf("expected size field, got %v", entry)
	}
	if entry["msg"] != "hello" {
		t.Errorf("expected msg, got %v", entry)
	}
}

func TestNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()
	ctx := context.Background()

	logger.Debug(ctx, "x")
	logger.Info(ctx, "x")
	logger.Warn(ctx, "x")
	logger.Error(ctx, "x")
	if logger.WithFields(String("a", "b")) == nil {
		t.Error("WithFields must return a logger")
	}
	if logger.Enabled(ErrorLevel) {
		t.Error("no-op logger must report disabled")
	}
}
