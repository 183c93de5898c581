package core

import (
	"context"
	"sync"
)

// requestLoggerKey is the context key for storing a per-request logger.
type requestLoggerKey struct{}

// ContextWithRequestLogger returns a new context carrying the request logger.
func ContextWithRequestLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, requestLoggerKey{}, logger)
}

// LoggerFromContext extracts the request logger from the context, falling
// back to the global logger.
func LoggerFromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(requestLoggerKey{}).(*Logger); ok && l != nil {
			return l
		}
	}
	return GetLogger()
}

// LogEntry is a single captured log line.
type LogEntry struct {
	Level   string                 `json:"level"`
	Message string                 `json:"msg"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
}

// LogWriter abstracts an extra destination for log entries.
type LogWriter interface {
	Write(level, msg string, attrs map[string]interface{})
}

// NewTeeLogger creates a Logger that sends every entry to both the base
// logger's handler and writer. Child loggers created via With() inherit this.
func NewTeeLogger(baseLogger *Logger, writer LogWriter) *Logger {
	handler := func(level string, msg string, attrs map[string]interface{}) {
		if baseLogger.handlerFunc != nil {
			baseLogger.handlerFunc(level, msg, attrs)
		}
		writer.Write(level, msg, attrs)
	}
	l := NewLogger(handler)
	for k, v := range baseLogger.attrs {
		l.attrs[k] = v
	}
	return l
}

// MemoryLogWriter keeps entries in memory. Safe for concurrent use.
type MemoryLogWriter struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (w *MemoryLogWriter) Write(level, msg string, attrs map[string]interface{}) {
	copied := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, LogEntry{Level: level, Message: msg, Attrs: copied})
}

// Entries returns a snapshot of everything written so far.
func (w *MemoryLogWriter) Entries() []LogEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]LogEntry(nil), w.entries...)
}
