package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLogLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLogLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLogInitFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	old := LogOutput
	LogOutput = &buf
	defer func() {
		LogOutput = old
		LogInit("info")
	}()

	LogInit("warn")
	Logger.Info().Msg("hidden message")
	Logger.Warn().Msg("visible message")

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Errorf("info message logged at warn level: %s", out)
	}
	if !strings.Contains(out, "visible message") {
		t.Errorf("warn message missing from output: %s", out)
	}
}
