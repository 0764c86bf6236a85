// Package klog is the kernel's leveled logger.
package klog

import (
	"fmt"
	"strings"

	"kestrel/hal"
)

type Level uint8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

var levelNames = [...]string{"trace", "debug", "info", "warn", "error", "off"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

func (l Level) prefix() string {
	switch l {
	case LevelTrace:
		return "[TRACE] "
	case LevelDebug:
		return "[DEBUG] "
	case LevelInfo:
		return "[ INFO] "
	case LevelWarn:
		return "[ WARN] "
	default:
		return "[ERROR] "
	}
}

// ParseLevel maps a level name ("info", "WARN", ...) to a Level.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range levelNames {
		if s == name {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("klog: unknown level %q", s)
}

// Logger writes leveled lines to a hal.Logger. A nil Logger or sink discards.
type Logger struct {
	out   hal.Logger
	level Level
}

func New(out hal.Logger, level Level) *Logger {
	return &Logger{out: out, level: level}
}

func (l *Logger) Enabled(level Level) bool {
	return l != nil && l.out != nil && level >= l.level && level < LevelOff
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	l.out.WriteLineString(level.prefix() + fmt.Sprintf(format, args...))
}

func (l *Logger) Tracef(format string, args ...any) { l.logf(LevelTrace, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }
