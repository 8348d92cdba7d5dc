package logger

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockLogger records log entries in memory for assertions in tests.
type MockLogger struct {
	sink   *mockSink
	fields []Field
}

type mockSink struct {
	mu      sync.Mutex
	entries []MockEntry
	level   Level
}

// MockEntry stores a single log emission.
type MockEntry struct {
	Level   Level
	Message string
	Fields  []Field
}

// Field returns the value recorded under key and whether it was present.
func (e MockEntry) Field(key string) (interface{}, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// NewMockLogger creates a MockLogger with the lowest log level.
func NewMockLogger() *MockLogger {
	return &MockLogger{sink: &mockSink{level: LevelDebug}}
}

// Debug satisfies the Logger interface.
func (m *MockLogger) Debug(format string, args ...interface{}) {
	m.record(LevelDebug, fmt.Sprintf(format, args...), nil)
}

// Info satisfies the Logger interface.
func (m *MockLogger) Info(format string, args ...interface{}) {
	m.record(LevelInfo, fmt.Sprintf(format, args...), nil)
}

// Warn satisfies the Logger interface.
func (m *MockLogger) Warn(format string, args ...interface{}) {
	m.record(LevelWarn, fmt.Sprintf(format, args...), nil)
}

// Error satisfies the Logger interface.
func (m *MockLogger) Error(format string, args ...interface{}) {
	m.record(LevelError, fmt.Sprintf(format, args...), nil)
}

// DebugContext satisfies the Logger interface.
func (m *MockLogger) DebugContext(ctx context.Context, msg string, fields ...Field) {
	m.record(LevelDebug, msg, fields)
}

// InfoContext satisfies the Logger interface.
func (m *MockLogger) InfoContext(ctx context.Context, msg string, fields ...Field) {
	m.record(LevelInfo, msg, fields)
}

// WarnContext satisfies the Logger interface.
func (m *MockLogger) WarnContext(ctx context.Context, msg string, fields ...Field) {
	m.record(LevelWarn, msg, fields)
}

// ErrorContext satisfies the Logger interface.
func (m *MockLogger) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	m.record(LevelError, msg, fields)
}

// With returns a child recording into the same entry list with extra fields.
func (m *MockLogger) With(fields ...Field) Logger {
	return &MockLogger{
		sink:   m.sink,
		fields: append(append([]Field{}, m.fields...), fields...),
	}
}

// SetLevel adjusts the minimum log level stored.
func (m *MockLogger) SetLevel(level Level) {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	m.sink.level = level
}

// GetLevel returns the minimum level stored.
func (m *MockLogger) GetLevel() Level {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	return m.sink.level
}

func (m *MockLogger) record(level Level, msg string, fields []Field) {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()

	if level < m.sink.level {
		return
	}

	all := append([]Field{}, m.fields...)
	all = append(all, fields...)
	m.sink.entries = append(m.sink.entries, MockEntry{
		Level:   level,
		Message: msg,
		Fields:  all,
	})
}

// GetEntries returns a copy of all stored entries.
func (m *MockLogger) GetEntries() []MockEntry {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	return append([]MockEntry(nil), m.sink.entries...)
}

// HasEntry reports whether an entry with the provided level contains the substring.
func (m *MockLogger) HasEntry(level Level, substring string) bool {
	for _, entry := range m.GetEntries() {
		if entry.Level == level && strings.Contains(entry.Message, substring) {
			return true
		}
	}
	return false
}

// CountEntries counts entries recorded with the supplied level.
func (m *MockLogger) CountEntries(level Level) int {
	count := 0
	for _, entry := range m.GetEntries() {
		if entry.Level == level {
			count++
		}
	}
	return count
}

// Reset clears all stored entries.
func (m *MockLogger) Reset() {
	m.sink.mu.Lock()
	defer m.sink.mu.Unlock()
	m.sink.entries = nil
}
