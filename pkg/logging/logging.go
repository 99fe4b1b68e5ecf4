// Package logging constructs the engine's logger. A *logrus.Logger already
// satisfies loggers.Advanced (see the teacher's pkg/migration/runner.go,
// which accepts a bare *logrus.Logger through SetLogger), so every other
// package in this module takes a loggers.Advanced and this is the only
// place that knows the concrete type.
package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger New builds.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Defaults to info
	// on an unrecognized or empty value.
	Level string

	// Path, if non-empty, routes output through a rotating file writer
	// instead of stderr.
	Path string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a *logrus.Logger per opts.
func New(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if opts.Path == "" {
		logger.SetOutput(os.Stderr)
		return logger, nil
	}
	if err := mustValidPath(opts.Path); err != nil {
		return nil, err
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 5
	}
	maxAge := opts.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 28
	}

	logger.SetOutput(&lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   true,
	})
	return logger, nil
}

// mustValidPath is used by callers that want to fail fast on an
// unwritable log path rather than discover it on the first write.
func mustValidPath(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("log path %q is not writable: %w", path, err)
	}
	return f.Close()
}
