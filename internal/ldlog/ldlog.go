// Package ldlog is the level-tagged logging sink spec.md §1 treats as an
// external collaborator: the core only ever calls through the Loggers
// struct here, never a concrete logging library directly, so an embedder
// can redirect output (to log/slog, zap, a no-op sink in tests, etc.) by
// implementing the two methods of Logger for each level. Modeled on the teacher's use of
// github.com/launchdarkly/go-sdk-common/v3/ldlog, which gives every level
// its own independently silenceable destination.
package ldlog

import (
	"fmt"
	"log"
	"os"
)

// Level is a logging severity.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
	None
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "NONE"
	}
}

// Logger is a single-level logging destination.
type Logger interface {
	Println(values ...interface{})
	Printf(format string, values ...interface{})
}

// Loggers bundles one Logger per level. Any field left nil is treated as
// disabled for that level.
type Loggers struct {
	Debug Logger
	Info  Logger
	Warn  Logger
	Error Logger
}

// Debugf logs at debug level if enabled.
func (l Loggers) Debugf(format string, args ...interface{}) { logf(l.Debug, format, args...) }

// Infof logs at info level if enabled.
func (l Loggers) Infof(format string, args ...interface{}) { logf(l.Info, format, args...) }

// Warnf logs at warn level if enabled.
func (l Loggers) Warnf(format string, args ...interface{}) { logf(l.Warn, format, args...) }

// Errorf logs at error level if enabled.
func (l Loggers) Errorf(format string, args ...interface{}) { logf(l.Error, format, args...) }

func logf(dest Logger, format string, args ...interface{}) {
	if dest == nil {
		return
	}
	dest.Printf(format, args...)
}

// IsDebugEnabled reports whether debug-level messages have a destination.
func (l Loggers) IsDebugEnabled() bool { return l.Debug != nil }

// stdLogger adapts *log.Logger (with a level prefix) to the Logger
// interface.
type stdLogger struct {
	prefix string
	base   *log.Logger
}

func (s stdLogger) Println(values ...interface{}) {
	s.base.Println(append([]interface{}{s.prefix}, values...)...)
}

func (s stdLogger) Printf(format string, values ...interface{}) {
	s.base.Printf(s.prefix+format, values...)
}

// NewDefaultLoggers returns Loggers that write to os.Stderr via the stdlib
// log package, each line tagged with "[flagcore] LEVEL ". Levels below
// minLevel are disabled (nil), so callers can cheaply silence verbose
// levels without per-call checks.
func NewDefaultLoggers(minLevel Level) Loggers {
	base := log.New(os.Stderr, "", log.LstdFlags)
	mk := func(lvl Level) Logger {
		if lvl < minLevel {
			return nil
		}
		return stdLogger{prefix: fmt.Sprintf("[flagcore] %s ", lvl), base: base}
	}
	return Loggers{
		Debug: mk(Debug),
		Info:  mk(Info),
		Warn:  mk(Warn),
		Error: mk(Error),
	}
}

// NewDisabledLoggers returns Loggers with every level silenced, for tests
// that don't want log noise.
func NewDisabledLoggers() Loggers {
	return Loggers{}
}
