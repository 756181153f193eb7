package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "processing-requests"

// Logger aliases zerolog.Logger so packages can accept a logger without
// importing zerolog themselves.
type Logger = zerolog.Logger

// NewLogger writes to stdout. See NewLoggerTo.
func NewLogger(appEnv string, levelOverride ...string) zerolog.Logger {
	level := ""
	if len(levelOverride) > 0 {
		level = levelOverride[0]
	}
	return NewLoggerTo(os.Stdout, appEnv, level)
}

// NewLoggerTo builds the service logger. Development uses the console writer
// at debug level; other environments emit JSON at info. A valid level name
// overrides either default.
func NewLoggerTo(w io.Writer, appEnv, level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if appEnv == "development" {
		lvl = zerolog.DebugLevel
	}
	if name := strings.ToLower(strings.TrimSpace(level)); name != "" {
		if parsed, err := zerolog.ParseLevel(name); err == nil {
			lvl = parsed
		}
	}

	if appEnv == "development" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("env", appEnv).
		Logger()
}
