package logging

import (
	"fmt"
	"sync"
)

// MockLogger captures log entries for verification in tests. Loggers
// derived through WithError/WithField share the parent's entry list.
type MockLogger struct {
	mu            *sync.Mutex
	entries       *[]LogEntry
	pendingError  error
	pendingFields []Field
}

// LogEntry represents a single log entry captured by MockLogger.
type LogEntry struct {
	Level   string
	Message string
	Fields  []Field
	Error   error
}

// NewMockLogger returns an empty MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{
		mu:      &sync.Mutex{},
		entries: &[]LogEntry{},
	}
}

func (m *MockLogger) record(level, msg string, fields []Field) {
	if m.entries == nil {
		m.mu = &sync.Mutex{}
		m.entries = &[]LogEntry{}
	}
	all := make([]Field, 0, len(m.pendingFields)+len(fields))
	all = append(all, m.pendingFields...)
	all = append(all, fields...)

	m.mu.Lock()
	*m.entries = append(*m.entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  all,
		Error:   m.pendingError,
	})
	m.mu.Unlock()
}

func (m *MockLogger) Debug(msg string, fields ...Field) { m.record("DEBUG", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...Field)  { m.record("INFO", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...Field)  { m.record("WARN", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...Field) { m.record("ERROR", msg, fields) }

// Fatal records a fatal entry. The mock never exits.
func (m *MockLogger) Fatal(msg string, fields ...Field) { m.record("FATAL", msg, fields) }

// Fatalf records a formatted fatal entry. The mock never exits.
func (m *MockLogger) Fatalf(msg string, args ...interface{}) {
	m.record("FATAL", fmt.Sprintf(msg, args...), nil)
}

// WithError returns a logger sharing this logger's entries with err attached.
func (m *MockLogger) WithError(err error) Logger {
	child := m.derive()
	child.pendingError = err
	return child
}

// WithField returns a new logger with a single field attached.
func (m *MockLogger) WithField(key string, value interface{}) Logger {
	return m.WithFields(Field{Key: key, Value: value})
}

// WithFields returns a new logger with multiple fields attached.
func (m *MockLogger) WithFields(fields ...Field) Logger {
	child := m.derive()
	child.pendingFields = append(child.pendingFields, fields...)
	return child
}

func (m *MockLogger) derive() *MockLogger {
	if m.entries == nil {
		m.mu = &sync.Mutex{}
		m.entries = &[]LogEntry{}
	}
	return &MockLogger{
		mu:            m.mu,
		entries:       m.entries,
		pendingError:  m.pendingError,
		pendingFields: append([]Field(nil), m.pendingFields...),
	}
}

// GetEntries returns all captured log entries.
func (m *MockLogger) GetEntries() []LogEntry {
	if m.entries == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogEntry(nil), *m.entries...)
}

// GetEntriesByLevel returns all log entries of a specific level.
func (m *MockLogger) GetEntriesByLevel(level string) []LogEntry {
	var entries []LogEntry
	for _, entry := range m.GetEntries() {
		if entry.Level == level {
			entries = append(entries, entry)
		}
	}
	return entries
}

// HasEntry checks if a log entry with the given level and message exists.
func (m *MockLogger) HasEntry(level, message string) bool {
	for _, entry := range m.GetEntries() {
		if entry.Level == level && entry.Message == message {
			return true
		}
	}
	return false
}
