// Package logger provides the process-wide log sink for the Meta Ads MCP
// server. Logs are appended to a per-user file so stdio stays free for the
// MCP transport; verbose mode mirrors entries to stderr for interactive use.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var log = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Init directs logs to the append-only file at path. When verbose is true,
// entries are also mirrored to stderr and the debug level is enabled.
func Init(path string, verbose bool) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	if verbose {
		log.SetOutput(io.MultiWriter(file, os.Stderr))
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetOutput(file)
		log.SetLevel(logrus.InfoLevel)
	}
	return nil
}

// SetOutput overrides the log destination. Useful for tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// WithFields returns an entry carrying structured fields.
func WithFields(fields map[string]any) *logrus.Entry {
	return log.WithFields(fields)
}

// Debugf logs at debug level.
func Debugf(format string, args ...any) {
	log.Debugf(format, args...)
}

// Infof logs at info level.
func Infof(format string, args ...any) {
	log.Infof(format, args...)
}

// Warnf logs at warn level.
func Warnf(format string, args ...any) {
	log.Warnf(format, args...)
}

// Errorf logs at error level.
func Errorf(format string, args ...any) {
	log.Errorf(format, args...)
}
