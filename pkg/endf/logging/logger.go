// Package logging provides the leveled loggers used by the recipe
// interpreter, the engine and the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Level orders log messages by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel converts a level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", s)
}

// Logger receives interpreter diagnostics.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// writerLogger writes "[LEVEL] message" lines to an io.Writer
type writerLogger struct {
	mu    sync.Mutex
	w     io.Writer
	level Level
}

// WriterLogger returns a logger that writes messages at or above level to w.
func WriterLogger(w io.Writer, level Level) Logger {
	return &writerLogger{w: w, level: level}
}

// StderrLogger returns a logger writing warnings and errors to stderr.
func StderrLogger() Logger {
	return WriterLogger(os.Stderr, LevelWarn)
}

func (l *writerLogger) logf(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "["+level.String()+"] "+format+"\n", args...)
}

func (l *writerLogger) Debug(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *writerLogger) Info(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *writerLogger) Warn(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *writerLogger) Error(format string, args ...any) { l.logf(LevelError, format, args...) }

// colorLogger colours the level prefix for terminals
type colorLogger struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	colors map[Level]*color.Color
}

// ColorLogger returns a WriterLogger variant with coloured level prefixes.
func ColorLogger(w io.Writer, level Level) Logger {
	return &colorLogger{
		w:     w,
		level: level,
		colors: map[Level]*color.Color{
			LevelDebug: color.New(color.FgHiBlack),
			LevelInfo:  color.New(color.FgCyan),
			LevelWarn:  color.New(color.FgYellow),
			LevelError: color.New(color.FgRed, color.Bold),
		},
	}
}

func (l *colorLogger) logf(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	prefix := l.colors[level].Sprint("[" + level.String() + "]")
	fmt.Fprintf(l.w, prefix+" "+format+"\n", args...)
}

func (l *colorLogger) Debug(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *colorLogger) Info(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *colorLogger) Warn(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *colorLogger) Error(format string, args ...any) { l.logf(LevelError, format, args...) }

// BufferedLogger captures log output for later retrieval
type BufferedLogger struct {
	mu    sync.Mutex
	level Level
	lines []string
}

// NewBufferedLogger creates a buffered logger that keeps every message.
func NewBufferedLogger() *BufferedLogger {
	return &BufferedLogger{lines: make([]string, 0), level: LevelDebug}
}

func (l *BufferedLogger) logf(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, "["+level.String()+"] "+fmt.Sprintf(format, args...))
}

func (l *BufferedLogger) Debug(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *BufferedLogger) Info(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *BufferedLogger) Warn(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *BufferedLogger) Error(format string, args ...any) { l.logf(LevelError, format, args...) }

// SetLevel drops messages below level from now on.
func (l *BufferedLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// String returns all captured output as a single string
func (l *BufferedLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := strings.Join(l.lines, "\n")
	if len(l.lines) > 0 {
		result += "\n"
	}
	return result
}

// Lines returns all captured log lines
func (l *BufferedLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]string, len(l.lines))
	copy(result, l.lines)
	return result
}

// Count returns the number of captured lines at the given level.
func (l *BufferedLogger) Count(level Level) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	prefix := "[" + level.String() + "]"
	n := 0
	for _, line := range l.lines {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

// Reset clears all captured output
func (l *BufferedLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = l.lines[:0]
}

// nullLogger discards all output
type nullLogger struct{}

func (nullLogger) Debug(string, ...any) {}
func (nullLogger) Info(string, ...any)  {}
func (nullLogger) Warn(string, ...any)  {}
func (nullLogger) Error(string, ...any) {}

// NullLogger returns a logger that discards all output
func NullLogger() Logger {
	return nullLogger{}
}

// OrNull returns l, or a NullLogger when l is nil.
func OrNull(l Logger) Logger {
	if l == nil {
		return NullLogger()
	}
	return l
}
