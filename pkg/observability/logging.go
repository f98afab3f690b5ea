package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case INFO:
		return "info"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLogLevel parses a log level string, defaulting to INFO
func ParseLogLevel(level string) LogLevel {
	switch level {
	case "DEBUG", "debug":
		return DEBUG
	case "WARN", "warn", "WARNING", "warning":
		return WARN
	case "ERROR", "error":
		return ERROR
	default:
		return INFO
	}
}

// Fields attaches structured context to a log line
type Fields = map[string]interface{}

// Logger emits one JSON object per line, the same encoding the API
// surface speaks, so server logs and responses read alike. Keys are
// serialized in sorted order: identical events produce identical lines.
type Logger struct {
	mu     *sync.Mutex // shared by all loggers derived from one root
	level  LogLevel
	out    io.Writer
	fields Fields
}

// NewLogger creates a new logger writing to output
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	return &Logger{
		mu:    &sync.Mutex{},
		level: level,
		out:   output,
	}
}

// NewDefaultLogger creates an INFO logger on stdout
func NewDefaultLogger() *Logger {
	return NewLogger(INFO, os.Stdout)
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

// WithFields returns a derived logger whose lines carry the given fields.
// The derived logger shares the parent's writer and lock.
func (l *Logger) WithFields(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	return &Logger{
		mu:     l.mu,
		level:  l.level,
		out:    l.out,
		fields: merged,
	}
}

// WithField returns a derived logger with one additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(Fields{key: value})
}

// ForNamespace returns a derived logger tagged with the namespace every
// index operation runs under
func (l *Logger) ForNamespace(namespace string) *Logger {
	return l.WithField("namespace", namespace)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Fields) {
	l.emit(DEBUG, msg, fields)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Fields) {
	l.emit(INFO, msg, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Fields) {
	l.emit(WARN, msg, fields)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Fields) {
	l.emit(ERROR, msg, fields)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.emit(DEBUG, fmt.Sprintf(format, args...), nil)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.emit(INFO, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.emit(WARN, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.emit(ERROR, fmt.Sprintf(format, args...), nil)
}

// emit assembles one log entry and writes it as a single JSON line
func (l *Logger) emit(level LogLevel, msg string, extra []Fields) {
	if level < l.level {
		return
	}

	entry := make(Fields, len(l.fields)+4)
	for k, v := range l.fields {
		entry[k] = normalize(v)
	}
	for _, fields := range extra {
		for k, v := range fields {
			entry[k] = normalize(v)
		}
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg

	line, err := json.Marshal(entry)
	if err != nil {
		// A field value json can't encode; keep the event, drop the fields.
		line = []byte(fmt.Sprintf(`{"level":%q,"msg":%q}`, level.String(), msg))
	}
	line = append(line, '\n')

	l.mu.Lock()
	l.out.Write(line)
	l.mu.Unlock()
}

// normalize rewrites field values that have no useful JSON encoding:
// durations become their string form, errors their message.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Duration:
		return t.String()
	case error:
		return t.Error()
	default:
		return v
	}
}

// TimeOperation runs fn and logs a single completion line carrying the
// operation name, its duration and, on failure, the error
func (l *Logger) TimeOperation(operation string, fn func() error) error {
	start := time.Now()
	err := fn()

	fields := Fields{
		"operation":   operation,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("operation failed", fields)
	} else {
		l.Info("operation completed", fields)
	}

	return err
}

// Global logger instance
var globalLogger = NewDefaultLogger()

// SetGlobalLogger sets the global logger
func SetGlobalLogger(logger *Logger) {
	globalLogger = logger
}

// GetGlobalLogger returns the global logger
func GetGlobalLogger() *Logger {
	return globalLogger
}

// Info logs an info message using the global logger
func Info(msg string, fields ...Fields) {
	globalLogger.Info(msg, fields...)
}

// Error logs an error message using the global logger
func Error(msg string, fields ...Fields) {
	globalLogger.Error(msg, fields...)
}

// Infof logs a formatted info message using the global logger
func Infof(format string, args ...interface{}) {
	globalLogger.Infof(format, args...)
}

// Errorf logs a formatted error message using the global logger
func Errorf(format string, args ...interface{}) {
	globalLogger.Errorf(format, args...)
}
