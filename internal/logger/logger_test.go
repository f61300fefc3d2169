//nolint:testpackage // Exercising the unexported level parser
package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
		{"DEBUG", zapcore.DebugLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		log, err := New(Config{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("New(format=%q) error = %v", format, err)
		}
		if log == nil {
			t.Fatalf("New(format=%q) returned nil logger", format)
		}
	}
}

func TestNopLogger(t *testing.T) {
	log := NewNop()

	log.Info("ignored", String("k", "v"))
	if err := log.With(Int("n", 1)).Sync(); err != nil {
		t.Errorf("Sync() = %v, want nil", err)
	}
}
