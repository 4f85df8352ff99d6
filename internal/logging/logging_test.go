package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		development bool
		wantErr     bool
		enabled     zapcore.Level
		disabled    zapcore.Level
	}{
		{name: "production info", level: "info", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
		{name: "development debug", level: "debug", development: true, enabled: zapcore.DebugLevel, disabled: zapcore.DebugLevel - 1},
		{name: "warn", level: "warn", enabled: zapcore.WarnLevel, disabled: zapcore.InfoLevel},
		{name: "invalid", level: "chatty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, tt.development)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !logger.Core().Enabled(tt.enabled) {
				t.Errorf("level %s should be enabled", tt.enabled)
			}
			if logger.Core().Enabled(tt.disabled) {
				t.Errorf("level %s should be disabled", tt.disabled)
			}
		})
	}
}

func TestForPackage(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ForPackage(zap.New(core), "capture").Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["package"]; got != "capture" {
		t.Errorf("package field = %v, want capture", got)
	}

	// nil logger falls back to a no-op logger
	ForPackage(nil, "x").Info("dropped")
}
