package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newBufferLogger(level zerolog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewWithWriter(&buf, level), &buf
}

func TestNew_Environments(t *testing.T) {
	tests := []struct {
		env   string
		level string
		want  zerolog.Level
	}{
		{"development", "", zerolog.DebugLevel},
		{"production", "", zerolog.InfoLevel},
		{"production", "warn", zerolog.WarnLevel},
		{"development", "ERROR", zerolog.ErrorLevel},
		{"production", "not-a-level", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			logger := New(tt.env, tt.level)
			if logger == nil {
				t.Fatal("Expected logger to be created")
			}
			if got := logger.Zerolog().GetLevel(); got != tt.want {
				t.Errorf("Expected level %s, got %s", tt.want, got)
			}
		})
	}
}

func TestDebug(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.DebugLevel)

	logger.Debug("debug message", map[string]interface{}{
		"key1": "value1",
		"key2": 42,
	})

	output := buf.String()
	if !strings.Contains(output, "debug message") {
		t.Error("Expected log output to contain message")
	}
	if !strings.Contains(output, "value1") {
		t.Error("Expected log output to contain field value")
	}
}

func TestInfo(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.DebugLevel)

	logger.Info("regions loaded", map[string]interface{}{
		"regions":   17,
		"companies": 412,
	})

	output := buf.String()
	if !strings.Contains(output, "regions loaded") {
		t.Error("Expected log output to contain message")
	}
	if !strings.Contains(output, "412") {
		t.Error("Expected log output to contain companies field")
	}
}

func TestWarn(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.DebugLevel)

	logger.Warn("geometry fetch failed", map[string]interface{}{
		"location": "L-42",
	})

	output := buf.String()
	if !strings.Contains(output, "geometry fetch failed") {
		t.Error("Expected log output to contain message")
	}
	if !strings.Contains(output, "L-42") {
		t.Error("Expected log output to contain location field")
	}
}

func TestError(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.DebugLevel)

	testErr := errors.New("connection refused")
	logger.Error("feed unavailable", testErr, map[string]interface{}{
		"context": "loader",
	})

	output := buf.String()
	if !strings.Contains(output, "feed unavailable") {
		t.Error("Expected log output to contain message")
	}
	if !strings.Contains(output, "connection refused") {
		t.Error("Expected log output to contain error message")
	}
	if !strings.Contains(output, "loader") {
		t.Error("Expected log output to contain context field")
	}
}

func TestWith(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.DebugLevel)

	childLogger := logger.With(map[string]interface{}{
		"service": "subsoil",
		"version": "1.0",
	})
	childLogger.Info("test message", nil)

	output := buf.String()
	if !strings.Contains(output, "subsoil") {
		t.Error("Expected log output to contain service field from context")
	}
	if !strings.Contains(output, "1.0") {
		t.Error("Expected log output to contain version field from context")
	}
}

func TestWithRequestID(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.DebugLevel)

	requestID := "req-12345"
	logger.WithRequestID(requestID).Info("request received", nil)

	output := buf.String()
	if !strings.Contains(output, requestID) {
		t.Error("Expected log output to contain request ID")
	}
	if !strings.Contains(output, "request_id") {
		t.Error("Expected log output to have request_id field")
	}
}

func TestComponent(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.DebugLevel)

	logger.Component("resolver").Info("match", nil)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected valid JSON output, got error: %v", err)
	}
	if entry["component"] != "resolver" {
		t.Errorf("Expected component field, got %v", entry["component"])
	}
}

func TestLogLevels_Production(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.InfoLevel)

	logger.Debug("debug message", nil)
	debugOutput := buf.String()

	buf.Reset()

	logger.Info("info message", nil)
	infoOutput := buf.String()

	if strings.Contains(debugOutput, "debug message") {
		t.Error("Debug message should not appear in production logging")
	}
	if !strings.Contains(infoOutput, "info message") {
		t.Error("Info message should appear in production logging")
	}
}

func TestJSONOutput(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.DebugLevel)

	logger.Info("test json", map[string]interface{}{
		"key": "value",
	})

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Errorf("Expected valid JSON output, got error: %v", err)
	}
	if logEntry["message"] != "test json" {
		t.Error("Expected JSON to contain message field")
	}
}

func TestNilFields(t *testing.T) {
	logger, buf := newBufferLogger(zerolog.DebugLevel)

	logger.Info("message with nil fields", nil)

	if !strings.Contains(buf.String(), "message with nil fields") {
		t.Error("Expected message to be logged even with nil fields")
	}
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.Info("discarded", map[string]interface{}{"k": "v"})
	logger.Component("x").Warn("discarded", nil)
}
