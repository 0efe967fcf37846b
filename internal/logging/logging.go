// Package logging provides the structured logging wrapper used throughout
// pcie-monitor (pkg/pcie and cmd/pcie-monitor), adapted from the teacher
// repo's pkg/logger.go global-logrus-instance pattern.
package logging

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

var std = log.New()

func init() {
	std.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

// SetLevelFromString sets the global log level from a string such as
// "debug", "info", "warn", or "error".
func SetLevelFromString(level string) error {
	l, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logging: invalid log level %q: %w", level, err)
	}
	std.SetLevel(l)
	return nil
}

// Logger returns the shared *logrus.Logger backing this package, for
// callers (such as internal/sink.LogSink) that need a concrete logrus
// handle rather than the package-level helper functions.
func Logger() *log.Logger { return std }

// SetOutput redirects where log lines are written.
func SetOutput(w io.Writer) { std.SetOutput(w) }

// SetFormatter overrides the default formatter.
func SetFormatter(f log.Formatter) { std.SetFormatter(f) }

func Debug(args ...interface{}) { std.Debug(args...) }
func Info(args ...interface{})  { std.Info(args...) }
func Warn(args ...interface{})  { std.Warn(args...) }
func Error(args ...interface{}) { std.Error(args...) }

func WithField(key string, value interface{}) *log.Entry { return std.WithField(key, value) }
func WithFields(fields log.Fields) *log.Entry             { return std.WithFields(fields) }
func WithError(err error) *log.Entry                      { return std.WithError(err) }
