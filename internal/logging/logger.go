// Package logging provides category-scoped loggers for croco.
// Each subsystem logs through a named zap child so log lines can be
// filtered per concern. Call Initialize once at startup; Get is safe
// before that and falls back to a no-op logger.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a logging subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config, wiring
	CategoryChat    Category = "chat"    // Orchestrator, onboarding, transcript
	CategoryAPI     Category = "api"     // Gemini API calls, streaming
	CategoryMemory  Category = "memory"  // Profile synthesis
	CategoryStore   Category = "store"   // SQLite persistence
	CategoryGateway Category = "gateway" // HTTP/WebSocket gateway
)

// Options controls logger construction.
type Options struct {
	Verbose bool // debug level when true
	JSON    bool // JSON output instead of console encoding
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	loggers = make(map[Category]*zap.SugaredLogger)
)

// Initialize builds the process-wide root logger. Subsequent Get calls
// return children of this root. Calling it again replaces the root and
// invalidates cached children.
func Initialize(opts Options) error {
	cfg := zap.NewProductionConfig()
	if !opts.JSON {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	root = logger
	loggers = make(map[Category]*zap.SugaredLogger)
	return nil
}

// Get returns the sugared logger for a category.
func Get(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	l := root.Named(string(cat)).Sugar()
	loggers[cat] = l
	return l
}

// Sync flushes buffered log entries. Called before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

// Convenience wrappers for the chattiest categories. Printf-style with
// the category baked in, matching how call sites actually log.

func Chat(format string, args ...interface{}) { Get(CategoryChat).Infof(format, args...) }

func ChatDebug(format string, args ...interface{}) { Get(CategoryChat).Debugf(format, args...) }

func API(format string, args ...interface{}) { Get(CategoryAPI).Infof(format, args...) }

func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debugf(format, args...) }

func Memory(format string, args ...interface{}) { Get(CategoryMemory).Infof(format, args...) }

func MemoryDebug(format string, args ...interface{}) { Get(CategoryMemory).Debugf(format, args...) }

func Store(format string, args ...interface{}) { Get(CategoryStore).Infof(format, args...) }

func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debugf(format, args...) }
