package logger_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/n9te9/go-graphql-stitching-gateway/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		level   string
		wantErr bool
	}{
		{name: "json info", format: "json", level: "info"},
		{name: "text debug", format: "text", level: "debug"},
		{name: "none ignores format", format: "whatever", level: "none"},
		{name: "unknown level", format: "json", level: "verbose", wantErr: true},
		{name: "unknown format", format: "xml", level: "info", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := logger.NewLogger(tt.format, tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Fatal("NewLogger() returned nil logger")
			}
		})
	}
}

func TestObserverLogger_With(t *testing.T) {
	l, logs := logger.NewObserverLogger("debug")

	l.With(zap.String("request_id", "abc")).Info("served")
	l.Debug("plain")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	if entries[0].Level != zapcore.InfoLevel {
		t.Errorf("level = %v, want info", entries[0].Level)
	}
	if d := cmp.Diff(map[string]any{"request_id": "abc"}, entries[0].ContextMap()); d != "" {
		t.Errorf("fields diff: %s", d)
	}
	if d := cmp.Diff(map[string]any{}, entries[1].ContextMap()); d != "" {
		t.Errorf("With() leaked fields into parent: %s", d)
	}
}
