package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/mnehpets/httprpc/endpoint"
)

// GzipProcessor compresses response bodies for clients that accept gzip.
//
// The compressor is created on the first write, so a request that fails
// before its renderer writes anything gets a plain error response. Streamed
// bodies are flushed through the compressor when the renderer flushes.
type GzipProcessor struct {
	// Level is a compress/flate level. Zero means gzip.DefaultCompression.
	Level int
}

// NewGzipProcessor creates a GzipProcessor with the default level.
func NewGzipProcessor() *GzipProcessor {
	return &GzipProcessor{}
}

func (p *GzipProcessor) Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
	w.Header().Add("Vary", "Accept-Encoding")
	if !acceptsGzip(r.Header.Get("Accept-Encoding")) || r.Method == http.MethodHead {
		return next(w, r)
	}
	level := p.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	gw := &gzipWriter{ResponseWriter: w, level: level}
	err := next(gw, r)
	// The body has been written by now, so a failed trailer cannot become
	// an error response.
	if cerr := gw.close(); cerr != nil {
		slog.WarnContext(r.Context(), "gzip close failed", "path", r.URL.Path, "err", cerr)
	}
	return err
}

// acceptsGzip reports whether an Accept-Encoding header admits gzip.
func acceptsGzip(header string) bool {
	for part := range strings.SplitSeq(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding != "gzip" && coding != "*" {
			continue
		}
		if _, qv, ok := strings.Cut(params, "q="); ok {
			if q, err := strconv.ParseFloat(strings.TrimSpace(qv), 64); err == nil && q == 0 {
				continue
			}
		}
		return true
	}
	return false
}

type gzipWriter struct {
	http.ResponseWriter
	level       int
	gz          *gzip.Writer
	wroteHeader bool
}

func (g *gzipWriter) WriteHeader(status int) {
	if g.wroteHeader {
		return
	}
	g.wroteHeader = true
	h := g.Header()
	if status != http.StatusNoContent && status != http.StatusNotModified && h.Get("Content-Encoding") == "" {
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")
		gz, err := gzip.NewWriterLevel(g.ResponseWriter, g.level)
		if err != nil {
			gz = gzip.NewWriter(g.ResponseWriter)
		}
		g.gz = gz
	}
	g.ResponseWriter.WriteHeader(status)
}

func (g *gzipWriter) Write(b []byte) (int, error) {
	if !g.wroteHeader {
		g.WriteHeader(http.StatusOK)
	}
	if g.gz == nil {
		return g.ResponseWriter.Write(b)
	}
	return g.gz.Write(b)
}

// Flush pushes compressed bytes written so far to the client.
func (g *gzipWriter) Flush() {
	if g.gz != nil {
		_ = g.gz.Flush()
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (g *gzipWriter) Unwrap() http.ResponseWriter { return g.ResponseWriter }

func (g *gzipWriter) close() error {
	if g.gz == nil {
		return nil
	}
	return g.gz.Close()
}

var _ endpoint.Processor = (*GzipProcessor)(nil)
