// Package gzippedhttp transparently decompresses gzip request bodies and
// compresses responses for clients that accept gzip.
package gzippedhttp

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MalformedBodyResponse is written when a request claims gzip encoding but its body is not gzip.
const MalformedBodyResponse = `{"error":"Malformed input."}`

type compressedReader struct {
	body io.ReadCloser
	zr   *gzip.Reader
}

func newCompressedReader(body io.ReadCloser) (*compressedReader, error) {
	zr, err := gzip.NewReader(body)
	if err != nil {
		return nil, err
	}

	return &compressedReader{body: body, zr: zr}, nil
}

func (c *compressedReader) Read(p []byte) (int, error) {
	return c.zr.Read(p)
}

func (c *compressedReader) Close() error {
	if err := c.zr.Close(); err != nil {
		c.body.Close()
		return err
	}
	return c.body.Close()
}

// compressedResponseWriter gzips everything written through it. The header is
// set on the first WriteHeader or Write, whichever comes first.
type compressedResponseWriter struct {
	w           http.ResponseWriter
	zw          *gzip.Writer
	wroteHeader bool
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

func newCompressedResponseWriter(w http.ResponseWriter) *compressedResponseWriter {
	zw := gzipWriterPool.Get().(*gzip.Writer)
	zw.Reset(w)
	return &compressedResponseWriter{w: w, zw: zw}
}

func (c *compressedResponseWriter) Header() http.Header {
	return c.w.Header()
}

func (c *compressedResponseWriter) WriteHeader(statusCode int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	c.w.Header().Set("Content-Encoding", "gzip")
	c.w.Header().Add("Vary", "Accept-Encoding")
	c.w.Header().Del("Content-Length")
	c.w.WriteHeader(statusCode)
}

func (c *compressedResponseWriter) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	return c.zw.Write(p)
}

func (c *compressedResponseWriter) Close() error {
	defer gzipWriterPool.Put(c.zw)
	if !c.wroteHeader {
		// Nothing was written; leave the response untouched.
		c.zw.Reset(io.Discard)
		return nil
	}
	return c.zw.Close()
}

// GzipResponse compresses the response when the request's Accept-Encoding allows gzip.
func GzipResponse(h http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		if !strings.Contains(request.Header.Get("Accept-Encoding"), "gzip") {
			h.ServeHTTP(response, request)
			return
		}

		compressed := newCompressedResponseWriter(response)
		defer compressed.Close()

		h.ServeHTTP(compressed, request)
	})
}

// UngzipRequest replaces a gzip-encoded request body with a decompressing
// reader. A body that is not valid gzip is answered with 400.
func UngzipRequest(h http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		if !strings.Contains(request.Header.Get("Content-Encoding"), "gzip") {
			h.ServeHTTP(response, request)
			return
		}

		body, err := newCompressedReader(request.Body)
		if err != nil {
			response.Header().Set("Content-Type", "application/json")
			response.WriteHeader(http.StatusBadRequest)
			io.WriteString(response, MalformedBodyResponse)
			return
		}
		defer body.Close()

		request.Body = body
		request.Header.Del("Content-Encoding")
		request.ContentLength = -1

		h.ServeHTTP(response, request)
	})
}
