// Package logging provides config-driven categorized file logging for querynerd.
// Logs are written to the configured directory with one file per category per day.
// Nothing is written unless debug mode is on; every logger is then a no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Boot/initialization
	CategoryRouting  Category = "routing"  // Router node: classification
	CategoryPlanning Category = "planning" // Planner node: plan generation
	CategoryGraph    Category = "graph"    // Node sequencing
	CategoryAPI      Category = "api"      // LLM API calls
	CategoryStore    Category = "store"    // Run store
)

// AllCategories lists every category in a stable order.
func AllCategories() []Category {
	return []Category{CategoryBoot, CategoryRouting, CategoryPlanning, CategoryGraph, CategoryAPI, CategoryStore}
}

// Options mirrors the logging section of the config file.
type Options struct {
	Dir        string
	DebugMode  bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
}

var (
	mu      sync.RWMutex
	opts    Options
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	loggers = make(map[Category]*zap.Logger)
	files   = make(map[Category]*os.File)
)

// Initialize sets up the logging directory. Call once at startup.
func Initialize(o Options) error {
	mu.Lock()
	opts = o
	level.SetLevel(ParseLevel(o.Level))
	mu.Unlock()

	if !o.DebugMode {
		return nil
	}
	if o.Dir == "" {
		return fmt.Errorf("logging: directory required in debug mode")
	}
	if err := os.MkdirAll(o.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("logging initialized",
		zap.String("dir", o.Dir),
		zap.String("level", level.Level().String()),
		zap.Bool("json", o.JSONFormat))
	if len(o.Categories) == 0 {
		boot.Info("all categories enabled (no category filter)")
	}
	return nil
}

// ParseLevel maps a config level name to a zap level. Unknown names mean info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsDebugMode returns whether file logging is enabled
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()

	if !opts.DebugMode {
		return false
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. It returns a no-op
// logger if debug mode or the category is disabled.
func Get(category Category) *zap.Logger {
	if !IsCategoryEnabled(category) {
		return zap.NewNop()
	}

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

	file, err := openDated(opts.Dir, string(category))
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: %v\n", err)
		return zap.NewNop()
	}

	core := zapcore.NewCore(encoder(opts.JSONFormat), zapcore.AddSync(file), level)
	l := zap.New(core).With(zap.String("cat", string(category)))
	loggers[category] = l
	files[category] = file
	return l
}

// Tee returns a logger writing to both base and the category file.
func Tee(base *zap.Logger, category Category) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return zap.New(zapcore.NewTee(base.Core(), Get(category).Core()))
}

// CloseAll syncs and closes all open log files (call at shutdown)
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()

	for cat, l := range loggers {
		_ = l.Sync()
		if f := files[cat]; f != nil {
			f.Close()
		}
	}
	loggers = make(map[Category]*zap.Logger)
	files = make(map[Category]*os.File)
}

func openDated(dir, name string) (*os.File, error) {
	date := time.Now().Format("2006-01-02")
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, name))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open log file %s: %w", path, err)
	}
	return f, nil
}

func encoder(jsonFormat bool) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if jsonFormat {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// Timer measures one operation and logs its duration on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer starts timing op under category.
func StartTimer(category Category, op string) *Timer {
	return &Timer{category: category, op: op, start: time.Now()}
}

// Stop logs and returns the elapsed time.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("timing",
		zap.String("op", t.op),
		zap.Duration("elapsed", elapsed))
	return elapsed
}
