// internal/utils/logger.go

package utils

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Logger defines the interface for logging throughout the application.
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...interface{})
	Info(msg string)
	Infof(format string, args ...interface{})
	Warn(msg string)
	Warnf(format string, args ...interface{})
	Error(msg string)
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// SimpleLogger is a leveled text logger writing to a single destination.
type SimpleLogger struct {
	level  LogLevel
	out    io.Writer
	fields map[string]interface{}
	mu     sync.Mutex
}

// NewLogger creates a logger at Info level writing to stderr.
func NewLogger() Logger {
	return NewLoggerWithLevel(InfoLevel)
}

// NewLoggerWithLevel creates a logger with the specified minimum level.
func NewLoggerWithLevel(level LogLevel) Logger {
	return &SimpleLogger{
		level:  level,
		out:    os.Stderr,
		fields: make(map[string]interface{}),
	}
}

// NewLoggerWithOutput creates a logger writing to the given destination,
// e.g. a run log file alongside the console.
func NewLoggerWithOutput(level LogLevel, out io.Writer) Logger {
	return &SimpleLogger{
		level:  level,
		out:    out,
		fields: make(map[string]interface{}),
	}
}

func (l *SimpleLogger) Debug(msg string)                          { l.log(DebugLevel, msg) }
func (l *SimpleLogger) Debugf(format string, args ...interface{}) { l.log(DebugLevel, fmt.Sprintf(format, args...)) }
func (l *SimpleLogger) Info(msg string)                           { l.log(InfoLevel, msg) }
func (l *SimpleLogger) Infof(format string, args ...interface{})  { l.log(InfoLevel, fmt.Sprintf(format, args...)) }
func (l *SimpleLogger) Warn(msg string)                           { l.log(WarnLevel, msg) }
func (l *SimpleLogger) Warnf(format string, args ...interface{})  { l.log(WarnLevel, fmt.Sprintf(format, args...)) }
func (l *SimpleLogger) Error(msg string)                          { l.log(ErrorLevel, msg) }
func (l *SimpleLogger) Errorf(format string, args ...interface{}) { l.log(ErrorLevel, fmt.Sprintf(format, args...)) }

// WithField returns a logger that includes the given field on every message.
func (l *SimpleLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a logger that includes the given fields on every message.
func (l *SimpleLogger) WithFields(fields map[string]interface{}) Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &SimpleLogger{
		level:  l.level,
		out:    l.out,
		fields: newFields,
	}
}

func (l *SimpleLogger) log(level LogLevel, msg string) {
	if level < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	output := fmt.Sprintf("[%s] [%s] %s", timestamp, levelNames[level], msg)
	if len(l.fields) > 0 {
		output += " fields=" + formatFields(l.fields)
	}

	l.mu.Lock()
	fmt.Fprintln(l.out, output)
	l.mu.Unlock()
}

// formatFields renders the fields map in a stable key order.
func formatFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
