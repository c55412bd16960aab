// Package logging provides config-driven categorized logging for cascadebridge.
// Every category is a named child of one process-wide zap logger; categories can be
// switched off individually from the logging section of the config file.
// Until Initialize is called all loggers are no-ops, which keeps tests quiet.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, shutdown, discovery
	CategoryConfig    Category = "config"    // Config load and hot reload
	CategoryRPC       Category = "rpc"       // Language server calls
	CategorySession   Category = "session"   // Cascade creation and thread bindings
	CategoryReconcile Category = "reconcile" // Poll loop, flushes, rate limiting
	CategoryDirective Category = "directive" // Reply/review marker scanning
	CategoryApproval  Category = "approval"  // Review panels and decisions
	CategoryChat      Category = "chat"      // Presentation adapter calls
	CategoryDiscord   Category = "discord"   // Discord gateway events
	CategoryBridge    Category = "bridge"    // Message routing and commands
	CategoryAudit     Category = "audit"     // Audit trail (see audit.go)
)

// Options mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	File       string          // empty = stderr
	DebugMode  bool            // forces debug level
	Categories map[string]bool // per-category toggles, missing = enabled
}

// Logger is a categorized printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	root       = zap.NewNop()
	level      = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
)

// Initialize builds the process logger from opts. It may be called again
// (e.g. on config reload); existing category loggers are rebuilt lazily.
func Initialize(opts Options) error {
	var cfg zap.Config
	if strings.EqualFold(opts.Format, "console") || strings.EqualFold(opts.Format, "text") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}
	if opts.DebugMode {
		lvl = zapcore.DebugLevel
	}
	level.SetLevel(lvl)
	cfg.Level = level

	if opts.File != "" {
		cfg.OutputPaths = []string{opts.File}
		cfg.ErrorOutputPaths = []string{opts.File}
	} else {
		cfg.OutputPaths = []string{"stderr"}
	}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	replace(logger, opts.Categories)
	Get(CategoryBoot).Debug("logging initialized level=%s format=%s", lvl, opts.Format)
	return nil
}

// InitializeWithCore installs a logger over an existing core. Tests use it
// with zaptest/observer to assert on log output.
func InitializeWithCore(core zapcore.Core, cats map[string]bool) {
	replace(zap.New(core), cats)
}

func replace(logger *zap.Logger, cats map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	old := root
	root = logger
	categories = cats
	loggers = make(map[Category]*Logger)
	_ = old.Sync()
}

// ParseLevel converts a config level string; empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// SetLevel changes the level of every logger at runtime.
func SetLevel(s string) error {
	lvl, err := ParseLevel(s)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabled(category)
}

func categoryEnabled(category Category) bool {
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	base := zap.NewNop()
	if categoryEnabled(category) {
		base = root.Named(string(category))
	}
	l := &Logger{category: category, sugar: base.Sugar()}
	loggers[category] = l
	return l
}

// Zap exposes the underlying structured logger of a category.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

// With returns a child logger carrying key/value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Sync flushes buffered log entries (call at shutdown).
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }
func BootError(format string, args ...interface{}) { Get(CategoryBoot).Error(format, args...) }

func Config(format string, args ...interface{})     { Get(CategoryConfig).Info(format, args...) }
func ConfigWarn(format string, args ...interface{}) { Get(CategoryConfig).Warn(format, args...) }

func RPCDebug(format string, args ...interface{}) { Get(CategoryRPC).Debug(format, args...) }
func RPCWarn(format string, args ...interface{})  { Get(CategoryRPC).Warn(format, args...) }

func Session(format string, args ...interface{})      { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }
func SessionWarn(format string, args ...interface{})  { Get(CategorySession).Warn(format, args...) }

func Reconcile(format string, args ...interface{})      { Get(CategoryReconcile).Info(format, args...) }
func ReconcileDebug(format string, args ...interface{}) { Get(CategoryReconcile).Debug(format, args...) }
func ReconcileWarn(format string, args ...interface{})  { Get(CategoryReconcile).Warn(format, args...) }
func ReconcileError(format string, args ...interface{}) { Get(CategoryReconcile).Error(format, args...) }

func DirectiveDebug(format string, args ...interface{}) { Get(CategoryDirective).Debug(format, args...) }

func Approval(format string, args ...interface{})      { Get(CategoryApproval).Info(format, args...) }
func ApprovalWarn(format string, args ...interface{})  { Get(CategoryApproval).Warn(format, args...) }
func ApprovalError(format string, args ...interface{}) { Get(CategoryApproval).Error(format, args...) }

func ChatDebug(format string, args ...interface{}) { Get(CategoryChat).Debug(format, args...) }
func ChatWarn(format string, args ...interface{})  { Get(CategoryChat).Warn(format, args...) }

func Discord(format string, args ...interface{})      { Get(CategoryDiscord).Info(format, args...) }
func DiscordWarn(format string, args ...interface{})  { Get(CategoryDiscord).Warn(format, args...) }
func DiscordError(format string, args ...interface{}) { Get(CategoryDiscord).Error(format, args...) }

func Bridge(format string, args ...interface{})      { Get(CategoryBridge).Info(format, args...) }
func BridgeDebug(format string, args ...interface{}) { Get(CategoryBridge).Debug(format, args...) }
func BridgeWarn(format string, args ...interface{})  { Get(CategoryBridge).Warn(format, args...) }
func BridgeError(format string, args ...interface{}) { Get(CategoryBridge).Error(format, args...) }

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
