package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	require.NoError(t, Init("debug"))
	assert.Error(t, Init("loud"))
}

func TestWithLoggingHTTPMiddleware(t *testing.T) {
	require.NoError(t, Init("debug"))

	var seenID string
	handler := WithLoggingHTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	t.Run("generated id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.NotEmpty(t, seenID)
		assert.Equal(t, seenID, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagated id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seenID)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})
}
