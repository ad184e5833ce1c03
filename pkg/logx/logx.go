// Package logx provides structured logging with component tags and
// env-controlled debug domains.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger writes leveled, timestamped lines tagged with a component name
// (e.g. "slack", "inference", "logproc").
type Logger struct {
	component string
	logger    *log.Logger
}

// debugConfig controls which components emit debug output. Populated once
// from the environment; SetDebug can override it (tests, CLI flags).
var (
	debugMu      sync.RWMutex
	debugEnabled bool
	debugDomains map[string]bool // nil = all domains
)

func init() { //nolint:gochecknoinits // env var initialization
	if v := os.Getenv("DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		debugEnabled = true
	}
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugDomains = make(map[string]bool)
		for _, d := range strings.Split(domains, ",") {
			debugDomains[strings.TrimSpace(d)] = true
		}
	}
}

// SetDebug enables or disables debug logging. An empty domain list enables
// debug for every component.
func SetDebug(enabled bool, domains []string) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugEnabled = enabled
	if len(domains) == 0 {
		debugDomains = nil
		return
	}
	debugDomains = make(map[string]bool)
	for _, d := range domains {
		debugDomains[strings.TrimSpace(d)] = true
	}
}

func debugEnabledFor(component string) bool {
	debugMu.RLock()
	defer debugMu.RUnlock()
	if !debugEnabled {
		return false
	}
	if debugDomains == nil {
		return true
	}
	return debugDomains[component]
}

// NewLogger returns a logger tagged with the given component name.
// Output goes to stderr so stdout stays clean for CLI consumers.
func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		logger:    log.New(os.Stderr, "", 0),
	}
}

// WithComponent returns a copy of the logger tagged with a new component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{component: component, logger: l.logger}
}

// Component returns the component tag of this logger.
func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	l.logger.Printf("[%s] [%s] %s: %s", timestamp, l.component, level, fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) {
	if !debugEnabledFor(l.component) {
		return
	}
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// Global convenience logger for code without a component of its own.
var defaultLogger = NewLogger("bugzooka")

func Debugf(format string, args ...any) { defaultLogger.Debug(format, args...) }
func Infof(format string, args ...any)  { defaultLogger.Info(format, args...) }
func Warnf(format string, args ...any)  { defaultLogger.Warn(format, args...) }

// Errorf logs and returns the formatted error. Use when a failure needs both
// logging and propagation:
//
//	return logx.Errorf("artifact download failed: %w", err)
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err and returns fmt.Errorf("%s: %w", msg, err).
// Returns nil when err is nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrapped.Error())
	return wrapped
}
