package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line: %s", line)
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WarnLevel, &buf)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept", map[string]interface{}{"step": 0.1})
	logger.Error("kept too")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "kept", entries[0]["message"])
	assert.Equal(t, 0.1, entries[0]["step"])
	assert.Contains(t, entries[0]["caller"], "logging/logger_test.go")
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(DebugLevel, &buf)
	child := base.WithField("component", "grid").WithFields(map[string]interface{}{"points": 2})

	child.Info("search done")
	base.Info("plain")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "grid", entries[0]["component"])
	assert.Equal(t, float64(2), entries[0]["points"])
	assert.NotContains(t, entries[1], "component")
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithFormat(InfoLevel, ConsoleFormat, &buf)

	logger.Info("integral", map[string]interface{}{"value": 24.37, "method": "romberg"})

	line := buf.String()
	assert.Contains(t, line, " INFO integral")
	assert.Contains(t, line, "method=romberg")
	assert.Contains(t, line, "value=24.37")
}

func TestFatalCallsExit(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)
	code := -1
	logger.exit = func(c int) { code = c }

	logger.Fatal("cannot start")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "cannot start")
}

func TestNewLoggerConfig(t *testing.T) {
	logger, err := NewLogger(&Config{Level: "debug", Format: "text", Output: "discard"})
	require.NoError(t, err)
	assert.Equal(t, DebugLevel, logger.Level())
	assert.Equal(t, ConsoleFormat, logger.format)

	logger, err = NewLogger(nil)
	require.NoError(t, err)
	assert.Equal(t, InfoLevel, logger.Level())

	assert.Equal(t, WarnLevel, parseLevel("warning"))
	assert.Equal(t, InfoLevel, parseLevel("verbose"))
}

func TestZapLogger(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(InfoLevel, &buf)).Named("sqp").With(zap.String("problem", "investor"))

	zl.Debug("dropped")
	zl.Info("iteration", zap.Int("iter", 3), zap.Float64("merit", -9.7), zap.Bool("feasible", true))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "iteration", entry["message"])
	assert.Equal(t, "investor", entry["problem"])
	assert.Equal(t, float64(3), entry["iter"])
	assert.Equal(t, -9.7, entry["merit"])
	assert.Equal(t, true, entry["feasible"])
	assert.Equal(t, "sqp", entry["logger"])
	assert.Contains(t, entry["caller"], "logging/logger_test.go")
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctxLogger := &CtxLogger{New(InfoLevel, &buf)}
	ctx := ctxLogger.WithContext(context.Background())

	assert.Same(t, ctxLogger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

type recordingObserver struct {
	method string
	status int
}

func (r *recordingObserver) ObserveRequest(method string, status int, _ time.Duration) {
	r.method = method
	r.status = status
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	obs := &recordingObserver{}
	handler := Middleware(New(InfoLevel, &buf), obs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/integrate", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, http.MethodPost, obs.method)
	assert.Equal(t, http.StatusTeapot, obs.status)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "inside handler", entries[0]["message"])
	assert.Equal(t, "/api/v1/integrate", entries[0]["path"])
	assert.Equal(t, "Request completed", entries[1]["message"])
	assert.Equal(t, float64(http.StatusTeapot), entries[1]["status"])
}
