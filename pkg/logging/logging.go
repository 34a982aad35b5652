// Package logging builds the logrus loggers used by the CLI and its stages.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ParseLevel maps the LOG_LEVEL values accepted in configuration.
// Unknown values fall back to info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "debug":
		return logrus.DebugLevel
	case "trace":
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// New returns a logger writing to stderr and, when path is set, also to that
// file. The returned closer releases the file; it is never nil.
func New(level, format, path string) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetLevel(ParseLevel(level))
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if strings.TrimSpace(path) == "" {
		logger.SetOutput(os.Stderr)
		return logger, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open log file %s", path)
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, f))
	return logger, f, nil
}

// Nop returns an entry that discards everything.
func Nop() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

// OrNop returns e, or a discarding entry when e is nil.
func OrNop(e *logrus.Entry) *logrus.Entry {
	if e == nil {
		return Nop()
	}
	return e
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
