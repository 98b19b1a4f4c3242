package gzippedhttp

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func echoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		w.Write(body)
	})
}

func TestUngzipRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/ecg", bytes.NewReader(gzipBytes(t, `{"id":"a"}`)))
	req.Header.Set("Content-Encoding", "gzip")
	rec := httptest.NewRecorder()

	UngzipRequest(echoHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, `{"id":"a"}`, rec.Body.String())
}

func TestUngzipRequestMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/ecg", bytes.NewReader([]byte("plain text")))
	req.Header.Set("Content-Encoding", "gzip")
	rec := httptest.NewRecorder()

	UngzipRequest(echoHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, MalformedBodyResponse, rec.Body.String())
}

func TestUngzipRequestPassThrough(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/ecg", bytes.NewReader([]byte("raw")))
	rec := httptest.NewRecorder()

	UngzipRequest(echoHandler()).ServeHTTP(rec, req)

	assert.Equal(t, "raw", rec.Body.String())
}

func TestGzipResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/ecg", bytes.NewReader([]byte(`{"id":"a"}`)))
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rec := httptest.NewRecorder()

	GzipResponse(echoHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a"}`, string(body))
}

func TestGzipResponseNotAccepted(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/ecg", bytes.NewReader([]byte("x")))
	rec := httptest.NewRecorder()

	GzipResponse(echoHandler()).ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "x", rec.Body.String())
}
