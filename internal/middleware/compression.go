package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // Minimum response size to compress (bytes)
	CompressionLevel int      // Gzip compression level (1-9, 9 is best compression)
	ContentTypes     []string // Content types to compress
	ExcludedPaths    []string // Path prefixes that are never compressed
}

// DefaultCompressionConfig returns the default compression configuration.
// /metrics is excluded because the Prometheus handler negotiates its own
// encoding.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
			"text/css",
			"application/javascript",
		},
		ExcludedPaths: []string{"/metrics"},
	}
}

// CompressionMiddleware gzips responses for clients that accept it
type CompressionMiddleware struct {
	config CompressionConfig
	pool   sync.Pool
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	level := config.CompressionLevel
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}

	return &CompressionMiddleware{
		config: config,
		pool: sync.Pool{
			New: func() interface{} {
				gz, _ := gzip.NewWriterLevel(io.Discard, level)
				return gz
			},
		},
	}
}

// Handler returns the gin middleware. Responses smaller than MinSize are
// sent as-is.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cm.clientAcceptsGzip(c.Request) || cm.excluded(c.Request.URL.Path) {
			c.Next()
			return
		}

		original := c.Writer
		gw := &gzipWriter{ResponseWriter: original, cm: cm}
		c.Writer = gw

		defer func() {
			gw.finish()
			c.Writer = original
		}()

		c.Next()
	}
}

func (cm *CompressionMiddleware) clientAcceptsGzip(r *http.Request) bool {
	if r.Method == http.MethodHead {
		return false
	}
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

func (cm *CompressionMiddleware) excluded(path string) bool {
	for _, prefix := range cm.config.ExcludedPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	for _, ct := range cm.config.ContentTypes {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

type writerState int

const (
	stateBuffering writerState = iota
	stateCompressing
	statePassthrough
)

// gzipWriter buffers the response until MinSize is reached, then decides
// whether to compress it
type gzipWriter struct {
	gin.ResponseWriter
	cm    *CompressionMiddleware
	state writerState
	buf   bytes.Buffer
	gz    *gzip.Writer
	size  int
}

func (w *gzipWriter) Write(data []byte) (int, error) {
	switch w.state {
	case stateCompressing:
		w.size += len(data)
		return w.gz.Write(data)
	case statePassthrough:
		return w.ResponseWriter.Write(data)
	}

	w.buf.Write(data)
	if w.buf.Len() >= w.cm.config.MinSize {
		if err := w.decide(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (w *gzipWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Written reports buffered output as written so error handlers do not write
// a second body
func (w *gzipWriter) Written() bool {
	return w.buf.Len() > 0 || w.state != stateBuffering || w.ResponseWriter.Written()
}

// Size counts uncompressed bytes
func (w *gzipWriter) Size() int {
	switch w.state {
	case stateBuffering:
		return w.buf.Len()
	case stateCompressing:
		return w.size
	default:
		return w.ResponseWriter.Size()
	}
}

// decide picks compression or passthrough and flushes the buffer
func (w *gzipWriter) decide() error {
	header := w.Header()
	if w.ResponseWriter.Written() || header.Get("Content-Encoding") != "" ||
		!w.cm.shouldCompress(header.Get("Content-Type")) {
		return w.passthrough()
	}

	header.Set("Content-Encoding", "gzip")
	header.Add("Vary", "Accept-Encoding")
	header.Del("Content-Length")

	w.gz = w.cm.pool.Get().(*gzip.Writer)
	w.gz.Reset(w.ResponseWriter)
	w.state = stateCompressing
	w.size = w.buf.Len()

	_, err := w.gz.Write(w.buf.Bytes())
	w.buf.Reset()
	return err
}

func (w *gzipWriter) passthrough() error {
	w.state = statePassthrough
	if w.buf.Len() == 0 {
		return nil
	}
	if w.Header().Get("Content-Length") == "" && !w.ResponseWriter.Written() {
		w.Header().Set("Content-Length", strconv.Itoa(w.buf.Len()))
	}
	_, err := w.ResponseWriter.Write(w.buf.Bytes())
	w.buf.Reset()
	return err
}

// Flush commits to a decision so streamed output is not held back
func (w *gzipWriter) Flush() {
	if w.state == stateBuffering {
		_ = w.decide()
	}
	if w.gz != nil {
		_ = w.gz.Flush()
	}
	w.ResponseWriter.Flush()
}

// finish writes out a short buffered body or closes the gzip stream
func (w *gzipWriter) finish() {
	switch w.state {
	case stateBuffering:
		_ = w.passthrough()
	case stateCompressing:
		_ = w.gz.Close()
		w.gz.Reset(io.Discard)
		w.cm.pool.Put(w.gz)
		w.gz = nil
	}
}
