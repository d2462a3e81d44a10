package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)

	logger.WithField("rank", 2).Info("worker finished", map[string]interface{}{
		"best_value": -1.0,
	})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "worker finished", entries[0]["message"])
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, float64(2), entries[0]["rank"])
	assert.Equal(t, -1.0, entries[0]["best_value"])
	assert.Contains(t, entries[0], "timestamp")
	assert.Contains(t, entries[0], "caller")
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WarnLevel, &buf)

	logger.Debug("step")
	logger.Info("run started")
	logger.Warn("slow worker")
	logger.Error("run failed")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "slow worker", entries[0]["message"])
	assert.Equal(t, "run failed", entries[1]["message"])
}

func TestWithFieldsDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := New(InfoLevel, &buf)

	base.WithFields(map[string]interface{}{"benchmark": "rastrigin"}).Info("child")
	base.WithError(errors.New("allocation failed")).Info("failed")
	base.Info("parent")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 3)
	assert.Equal(t, "rastrigin", entries[0]["benchmark"])
	assert.Equal(t, "allocation failed", entries[1]["error"])
	assert.NotContains(t, entries[2], "benchmark")
	assert.NotContains(t, entries[2], "error")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
}

func TestNewLoggerConsole(t *testing.T) {
	logger, err := NewLogger(&Config{Level: "debug", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, DebugLevel, logger.Level())

	_, err = NewLogger(&Config{Output: "/nonexistent-dir/log.txt"})
	assert.Error(t, err)
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctxLogger := &CtxLogger{New(InfoLevel, &buf)}

	ctx := ctxLogger.WithContext(context.Background())
	assert.Same(t, ctxLogger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Middleware(logger))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		assert.NotNil(t, FromContext(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "Request completed", entries[0]["message"])
	assert.Equal(t, float64(http.StatusTeapot), entries[0]["status"])
	assert.Equal(t, "/healthz", entries[0]["path"])
	assert.NotEmpty(t, entries[0]["request_id"])
}
