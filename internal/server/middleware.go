package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// requestLogger logs one line per request and counts it by route.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.metrics.requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		event := s.logger.Debug()
		switch {
		case status >= http.StatusInternalServerError:
			event = s.logger.Error()
		case len(c.Errors) > 0:
			event = s.logger.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", GetRealIP(c)).
			Msg("request")
	}
}

// brotliWriter compresses everything written through the gin writer.
type brotliWriter struct {
	gin.ResponseWriter
	w *brotli.Writer
}

func (b *brotliWriter) Write(p []byte) (int, error) {
	return b.w.Write(p)
}

func (b *brotliWriter) WriteString(s string) (int, error) {
	return b.w.Write([]byte(s))
}

func (b *brotliWriter) WriteHeader(code int) {
	b.Header().Del("Content-Length")
	b.ResponseWriter.WriteHeader(code)
}

// compress brotli-encodes responses for clients that accept it.
func compress() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !acceptsBrotli(c.GetHeader("Accept-Encoding")) || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		c.Header("Content-Encoding", "br")
		c.Writer.Header().Add("Vary", "Accept-Encoding")

		bw := &brotliWriter{
			ResponseWriter: c.Writer,
			w:              brotli.NewWriterLevel(c.Writer, brotli.DefaultCompression),
		}
		c.Writer = bw
		defer bw.w.Close()

		c.Next()
	}
}

func acceptsBrotli(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "br") {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}
