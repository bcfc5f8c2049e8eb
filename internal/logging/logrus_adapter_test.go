package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedAdapter(level logrus.Level) (Logger, *bytes.Buffer) {
	logrusLogger := logrus.New()
	var buf bytes.Buffer
	logrusLogger.SetOutput(&buf)
	logrusLogger.SetLevel(level)
	logrusLogger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return NewLogrusAdapterFromLogger(logrusLogger), &buf
}

func TestNewLogrusAdapter(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		format      string
		expectLevel logrus.Level
	}{
		{"debug level with text format", "debug", "text", logrus.DebugLevel},
		{"info level with json format", "info", "json", logrus.InfoLevel},
		{"error level with json format", "error", "json", logrus.ErrorLevel},
		{"invalid level defaults to info", "invalid", "text", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogrusAdapterWithOutput(tt.level, tt.format, &buf)
			require.NotNil(t, logger)

			adapter, ok := logger.(*LogrusAdapter)
			require.True(t, ok, "logger should be a LogrusAdapter")
			assert.Equal(t, tt.expectLevel, adapter.logger.Level)

			if tt.format == "json" {
				_, ok := adapter.logger.Formatter.(*logrus.JSONFormatter)
				assert.True(t, ok, "formatter should be JSONFormatter")
			} else {
				_, ok := adapter.logger.Formatter.(*logrus.TextFormatter)
				assert.True(t, ok, "formatter should be TextFormatter")
			}
		})
	}
}

func TestNewLogrusAdapterWithOutput_WritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogrusAdapterWithOutput("info", "json", &buf)

	logger.Info("model loaded", Field{Key: FieldFingerprint, Value: "abc"})

	assert.Contains(t, buf.String(), `"msg":"model loaded"`)
	assert.Contains(t, buf.String(), `"fingerprint":"abc"`)
}

func TestLogrusAdapter_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogrusAdapterWithOutput("info", "text", &buf)
	adapter := logger.(*LogrusAdapter)

	adapter.SetLevel("error")
	logger.Info("hidden")
	assert.Empty(t, buf.String())

	adapter.SetLevel("not-a-level")
	assert.Equal(t, logrus.ErrorLevel, adapter.logger.Level)
}

func TestNewLogrusAdapterFromLogger(t *testing.T) {
	t.Run("with existing logger", func(t *testing.T) {
		existingLogger := logrus.New()
		logger := NewLogrusAdapterFromLogger(existingLogger)

		adapter, ok := logger.(*LogrusAdapter)
		require.True(t, ok)
		assert.Equal(t, existingLogger, adapter.logger)
	})

	t.Run("with nil logger creates new one", func(t *testing.T) {
		logger := NewLogrusAdapterFromLogger(nil)

		adapter, ok := logger.(*LogrusAdapter)
		require.True(t, ok)
		assert.NotNil(t, adapter.logger)
	})
}

func TestLogrusAdapter_LoggingMethods(t *testing.T) {
	tests := []struct {
		name    string
		logFunc func(Logger, string, ...Field)
		message string
	}{
		{"Debug", func(l Logger, msg string, f ...Field) { l.Debug(msg, f...) }, "debug message"},
		{"Info", func(l Logger, msg string, f ...Field) { l.Info(msg, f...) }, "info message"},
		{"Warn", func(l Logger, msg string, f ...Field) { l.Warn(msg, f...) }, "warn message"},
		{"Error", func(l Logger, msg string, f ...Field) { l.Error(msg, f...) }, "error message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferedAdapter(logrus.DebugLevel)

			tt.logFunc(logger, tt.message, Field{Key: FieldTransactionID, Value: "T1"})

			assert.Contains(t, buf.String(), tt.message)
			assert.Contains(t, buf.String(), "transaction_id=T1")
		})
	}
}

func TestLogrusAdapter_ChainedCalls(t *testing.T) {
	logger, buf := newBufferedAdapter(logrus.InfoLevel)

	logger.
		WithField(FieldTransactionID, "T9").
		WithFields(Field{Key: FieldCategory, Value: "Rent"}).
		WithError(errors.New("update rejected")).
		Error("apply failed")

	output := buf.String()
	assert.Contains(t, output, "apply failed")
	assert.Contains(t, output, "T9")
	assert.Contains(t, output, "Rent")
	assert.Contains(t, output, "update rejected")
}

func TestConvertFields(t *testing.T) {
	logrusFields := convertFields([]Field{
		{Key: "key1", Value: "value1"},
		{Key: "key2", Value: 42},
	})

	assert.Len(t, logrusFields, 2)
	assert.Equal(t, "value1", logrusFields["key1"])
	assert.Equal(t, 42, logrusFields["key2"])
	assert.Len(t, convertFields(nil), 0)
}

func TestGetLogger_DefaultAndOverride(t *testing.T) {
	assert.NotNil(t, GetLogger())

	mock := NewMockLogger()
	original := GetLogger()
	SetDefaultLogger(mock)
	defer SetDefaultLogger(original)

	assert.Same(t, mock, GetLogger())
	SetDefaultLogger(nil)
	assert.Same(t, mock, GetLogger())
}

func TestMockLogger_DerivedLoggersShareEntries(t *testing.T) {
	mock := NewMockLogger()

	mock.WithField(FieldTransactionID, "T1").Warn("skipped")
	mock.WithError(errors.New("boom")).Error("failed")
	mock.Info("done")

	require.Len(t, mock.GetEntries(), 3)
	warn := mock.GetEntriesByLevel("WARN")
	require.Len(t, warn, 1)
	assert.Equal(t, FieldTransactionID, warn[0].Fields[0].Key)
	assert.EqualError(t, mock.GetEntriesByLevel("ERROR")[0].Error, "boom")
	assert.True(t, mock.HasEntry("INFO", "done"))
}

func TestLogrusAdapter_ImplementsInterface(t *testing.T) {
	var _ Logger = (*LogrusAdapter)(nil)
	var _ Logger = (*MockLogger)(nil)
}
