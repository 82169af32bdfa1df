package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mnehpets/httprpc/endpoint"
	"github.com/mnehpets/httprpc/service"
)

// RequestIDHeader carries the request ID on requests and responses.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds a client-supplied request ID.
const maxRequestIDLen = 128

type requestIDKey struct{}

// RequestIDFromContext returns the ID attached by RequestLogProcessor.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestLogProcessor assigns every request an ID and logs one line per
// request once the response is complete.
//
// The ID is taken from the X-Request-ID request header when present and
// generated otherwise. It is echoed in the response header. Calls made
// through service.Endpoint report their method name and failure, which are
// included in the log line.
type RequestLogProcessor struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewRequestLogProcessor creates a RequestLogProcessor writing to logger.
func NewRequestLogProcessor(logger *slog.Logger) *RequestLogProcessor {
	return &RequestLogProcessor{Logger: logger}
}

func (p *RequestLogProcessor) Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	id := r.Header.Get(RequestIDHeader)
	if id == "" || len(id) > maxRequestIDLen {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)

	var call *service.Completion
	ctx := context.WithValue(r.Context(), requestIDKey{}, id)
	ctx = service.WithCompletion(ctx, func(c service.Completion) {
		call = &c
	})

	sw := &statusWriter{ResponseWriter: w}
	err := next(sw, r.WithContext(ctx))

	status := sw.status
	if err != nil && !sw.wroteHeader {
		// The handler writes the error response after the chain returns.
		status = endpoint.StatusOf(err)
	}
	if status == 0 {
		status = http.StatusOK
	}

	attrs := []slog.Attr{
		slog.String("id", id),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Int64("bytes", sw.bytes),
		slog.Duration("duration", time.Since(start)),
	}
	level := slog.LevelInfo
	if call != nil {
		attrs = append(attrs, slog.String("call", call.Method))
		if call.Err != nil {
			attrs = append(attrs, slog.String("call_err", call.Err.Error()))
			level = slog.LevelWarn
		}
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	logger.LogAttrs(ctx, level, "request", attrs...)
	return err
}

// statusWriter records the status and body size written through it.
type statusWriter struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (s *statusWriter) WriteHeader(status int) {
	if !s.wroteHeader {
		s.wroteHeader = true
		s.status = status
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.WriteHeader(http.StatusOK)
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += int64(n)
	return n, err
}

func (s *statusWriter) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusWriter) Unwrap() http.ResponseWriter { return s.ResponseWriter }

var _ endpoint.Processor = (*RequestLogProcessor)(nil)
