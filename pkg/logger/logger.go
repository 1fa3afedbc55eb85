package logger

import (
	"fmt"
	"hash/fnv"
	"log"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	ErrorLevel
)

var levelNames = map[string]Level{
	"debug":  DebugLevel,
	"info":   InfoLevel,
	"notice": NoticeLevel,
	"error":  ErrorLevel,
}

// ParseLevel converts a level name to a Level
func ParseLevel(s string) (Level, error) {
	level, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return InfoLevel, fmt.Errorf("invalid log level %q, must be one of debug, info, notice, error", s)
	}
	return level, nil
}

// runColors is the palette run prefixes are picked from, so interleaved runs stay readable
var runColors = []color.Attribute{
	color.FgHiGreen,
	color.FgYellow,
	color.FgMagenta,
	color.FgHiBlue,
	color.FgCyan,
	color.FgBlue,
	color.FgGreen,
}

var levelColors = map[Level]color.Attribute{
	DebugLevel:  color.FgWhite,
	InfoLevel:   color.FgHiWhite,
	NoticeLevel: color.FgHiYellow,
	ErrorLevel:  color.FgHiRed,
}

// Logger is a simple interface for logging messages.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})
	InfoWithRun(runID string, format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})
	ErrorWithRun(runID string, format string, args ...interface{})

	// Debug logs a debug message.
	Debug(format string, args ...interface{})
	DebugWithRun(runID string, format string, args ...interface{})

	// Notice logs a notice message.
	Notice(format string, args ...interface{})
	NoticeWithRun(runID string, format string, args ...interface{})
}

// EmptyLogger is a simple implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})                    {}
func (l *EmptyLogger) InfoWithRun(_ string, _ string, _ ...interface{})   {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})                   {}
func (l *EmptyLogger) ErrorWithRun(_ string, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})                   {}
func (l *EmptyLogger) DebugWithRun(_ string, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{})                  {}
func (l *EmptyLogger) NoticeWithRun(_ string, _ string, _ ...interface{}) {}

// StdLogger is a standard implementation of the Logger interface that logs messages to the console.
type StdLogger struct {
	enableColoring bool
	level          Level
	mu             sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
	}
}

// formatMessage formats the log message with the log level, run prefix, and coloring if enabled.
func (l *StdLogger) formatMessage(level Level, runID string, format string) string {
	var levelStr string
	switch level {
	case DebugLevel:
		levelStr = "[DEBUG]  "
	case InfoLevel:
		levelStr = "[INFO]   "
	case NoticeLevel:
		levelStr = "[NOTICE] "
	case ErrorLevel:
		levelStr = "[ERROR]  "
	}

	runPrefix := ""
	if runID != "" {
		runPrefix = "[" + runID + "] "
	}

	if l.enableColoring {
		levelStr = color.New(levelColors[level]).Sprint(levelStr)
		if runPrefix != "" {
			runPrefix = color.New(runColor(runID)).Sprint(runPrefix)
		}
	}

	return levelStr + runPrefix + format
}

func runColor(runID string) color.Attribute {
	h := fnv.New32a()
	_, _ = h.Write([]byte(runID))
	return runColors[h.Sum32()%uint32(len(runColors))]
}

func (l *StdLogger) logf(level Level, runID string, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= level {
		log.Printf(l.formatMessage(level, runID, format), args...)
	}
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.logf(InfoLevel, "", format, args...)
}

func (l *StdLogger) InfoWithRun(runID string, format string, args ...interface{}) {
	l.logf(InfoLevel, runID, format, args...)
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.logf(ErrorLevel, "", format, args...)
}

func (l *StdLogger) ErrorWithRun(runID string, format string, args ...interface{}) {
	l.logf(ErrorLevel, runID, format, args...)
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.logf(DebugLevel, "", format, args...)
}

func (l *StdLogger) DebugWithRun(runID string, format string, args ...interface{}) {
	l.logf(DebugLevel, runID, format, args...)
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.logf(NoticeLevel, "", format, args...)
}

func (l *StdLogger) NoticeWithRun(runID string, format string, args ...interface{}) {
	l.logf(NoticeLevel, runID, format, args...)
}
