package util

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	Logger zerolog.Logger

	// LogOutput is where LogInit sends console output.
	LogOutput io.Writer = os.Stderr
)

func ParseLogLevel(inlevel string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(inlevel)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func LogInit(inlevel string) {
	level := ParseLogLevel(inlevel)
	Logger = zerolog.New(
		zerolog.ConsoleWriter{Out: LogOutput, TimeFormat: time.RFC3339},
	).Level(level).With().Timestamp().Caller().Logger()

	Logger.Debug().Msgf("logging initialized at level %v", level)
}
