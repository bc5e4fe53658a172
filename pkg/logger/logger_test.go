package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestInit_LevelFallback(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  zerolog.Level
	}{
		// An unset LOG_LEVEL must not end up as NoLevel, which would
		// suppress every event.
		{"empty", "", zerolog.InfoLevel},
		{"invalid", "loud", zerolog.InfoLevel},
		{"debug", "debug", zerolog.DebugLevel},
		{"warn", "warn", zerolog.WarnLevel},
		{"error", "error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Init(tt.level)
			if got := Get().GetLevel(); got != tt.want {
				t.Errorf("Init(%q) level = %v, expected %v", tt.level, got, tt.want)
			}
		})
	}

	// Restore the default for other tests in the package.
	Init("info")
}
