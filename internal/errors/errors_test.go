package errors

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/copyleftdev/promptsearch/internal/logging"
	"github.com/copyleftdev/promptsearch/internal/optimization"
)

func TestErrorString(t *testing.T) {
	err := New(CodeNotFound, "job not found").WithOperation("status").WithComponent("server")
	assert.Equal(t, "job not found: operation=status, component=server", err.Error())
	assert.NotEmpty(t, err.StackTrace())
}

func TestWrapKeepsChain(t *testing.T) {
	base := stderrors.New("disk full")
	err := Wrap(base, "save result")
	require.NotNil(t, err)
	assert.True(t, Is(err, base))
	assert.Equal(t, CodeInternal, err.Code)
	assert.Nil(t, Wrap(nil, "noop"))

	inner := New(CodeConflict, "already finished")
	outer := Wrap(inner, "cancel")
	assert.Equal(t, CodeConflict, outer.Code)
	assert.True(t, Is(outer, inner))
}

func TestCodeOfOptimizationErrors(t *testing.T) {
	_, err := optimization.NewSearchSpace(nil, []string{"a"}, nil)
	require.Error(t, err)
	assert.Equal(t, CodeInvalidParams, CodeOf(err))
	assert.Equal(t, CodeInvalidParams, Wrap(err, "start").Code)

	assert.Equal(t, CodeInternal, CodeOf(stderrors.New("x")))
}

func TestCodeMapping(t *testing.T) {
	tests := []struct {
		code   Code
		status int
		rpc    int
	}{
		{CodeInternal, http.StatusInternalServerError, -32000},
		{CodeParse, http.StatusBadRequest, -32700},
		{CodeInvalidRequest, http.StatusBadRequest, -32600},
		{CodeMethodNotFound, http.StatusNotFound, -32601},
		{CodeInvalidParams, http.StatusBadRequest, -32602},
		{CodeNotFound, http.StatusNotFound, -32001},
		{CodeConflict, http.StatusConflict, -32002},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.code.HTTPStatus())
		assert.Equal(t, tt.rpc, tt.code.RPCCode())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := logging.New(zap.New(core))

	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
	entries := logs.FilterMessage("Recovered from panic").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/boom", entries[0].ContextMap()["path"])
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, New(CodeNotFound, "job not found"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"job not found"}`, rec.Body.String())
}
