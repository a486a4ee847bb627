// Package logger configures the process-wide structured logger.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Logger is the shared logger used by every package.
var Logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      time.DateTime,
	Level:           log.InfoLevel,
})

// Configure sets the level (debug, info, warn, error) and output destination.
// A nil writer keeps stderr.
func Configure(level string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	Logger = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           ParseLevel(level),
	})
}

// ParseLevel maps a level name to a log level, defaulting to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

func Debug(msg interface{}, keyvals ...interface{}) { Logger.Debug(msg, keyvals...) }

func Info(msg interface{}, keyvals ...interface{}) { Logger.Info(msg, keyvals...) }

func Warn(msg interface{}, keyvals ...interface{}) { Logger.Warn(msg, keyvals...) }

func Error(msg interface{}, keyvals ...interface{}) { Logger.Error(msg, keyvals...) }

// Fatal logs and exits with status 1.
func Fatal(msg interface{}, keyvals ...interface{}) { Logger.Fatal(msg, keyvals...) }
