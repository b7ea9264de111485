package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/YuminosukeSato/pipeperm/pkg/errors"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

var (
	providerMu sync.RWMutex
	global     Logger = NewZerologLogger(os.Stderr, LevelInfo)
)

// SetupLogger installs a JSON zerolog logger on stdout at the given level
// and routes library warnings (convergence, undefined metrics) through it.
func SetupLogger(loglevel string) error {
	level, err := ParseLevel(loglevel)
	if err != nil {
		return err
	}
	SetupLoggerWithWriter(os.Stdout, level)
	return nil
}

// SetupLoggerWithWriter is SetupLogger with an explicit destination.
func SetupLoggerWithWriter(w io.Writer, level Level) {
	zl := NewZerologLogger(w, level)
	SetLogger(zl)
	errors.SetZerologWarnFunc(zl.warn)
}

// ParseLevel converts "debug", "info", "warn" or "error" to a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log_level", "must be one of debug, info, warn, error", level)
	}
}

// SetLogger replaces the process-wide logger.
func SetLogger(l Logger) {
	providerMu.Lock()
	defer providerMu.Unlock()
	global = l
}

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return global
}

// GetLoggerWithName returns the process-wide logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}
