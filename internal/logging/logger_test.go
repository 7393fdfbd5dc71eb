package logging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return New(zap.New(core)), logs
}

func TestLoggerFields(t *testing.T) {
	logger, logs := observed(zapcore.DebugLevel)

	logger.WithField("job_id", "abc").WithError(errors.New("boom")).Info("Job failed", map[string]interface{}{
		"trials": 3,
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "Job failed", entries[0].Message)
	assert.Equal(t, "abc", ctx["job_id"])
	assert.Equal(t, "boom", ctx["error"])
	assert.EqualValues(t, 3, ctx["trials"])
}

func TestLoggerLevels(t *testing.T) {
	logger, logs := observed(zapcore.WarnLevel)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("shown")

	assert.Equal(t, 2, logs.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(nil)
	require.NoError(t, err)
	assert.NotNil(t, logger.Zap())

	path := filepath.Join(t.TempDir(), "app.log")
	logger, err = NewLogger(&Config{Level: "debug", Format: "console", Output: path})
	require.NoError(t, err)
	assert.True(t, logger.Zap().Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger(&Config{Format: "xml"})
	assert.Error(t, err)
}

func TestContextLogger(t *testing.T) {
	logger, logs := observed(zapcore.InfoLevel)
	ctx := (&CtxLogger{logger}).WithContext(context.Background())

	FromContext(ctx).Info("from context")
	assert.Equal(t, 1, logs.Len())

	// Missing loggers fall back to a no-op logger.
	FromContext(context.Background()).Info("dropped")
	assert.Equal(t, 1, logs.Len())
}

func TestMiddleware(t *testing.T) {
	logger, logs := observed(zapcore.InfoLevel)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Middleware(logger))
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("handler")
		http.NotFound(w, r)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	completed := logs.FilterMessage("Request completed").All()
	require.Len(t, completed, 1)
	fields := completed[0].ContextMap()
	assert.EqualValues(t, http.StatusNotFound, fields["status"])
	assert.Equal(t, "/missing", fields["path"])
	assert.NotEmpty(t, fields["request_id"])
	assert.Equal(t, 1, logs.FilterMessage("handler").Len())
}
