// Package logger holds the process-global zap logger the cache library
// logs through. The default is a no-op logger so an embedding application
// stays silent until it opts in, either through Init with a level string
// or by handing over its own logger with SetLogger.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// Init builds a production logger at the given level and installs it as
// the global logger. An unknown level string falls back to info.
func Init(level string) error {
	cfg := zap.NewProductionConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	SetLogger(logger)
	return nil
}

// SetLogger installs the embedding application's own logger, letting the
// library log into the host's pipeline. A nil logger restores the silent
// default.
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mu.Lock()
	global = logger
	mu.Unlock()
}

// Logger returns the current global logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// WithModule returns a child logger annotated with the library module it
// serves, such as cache, lock or reaper.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}
