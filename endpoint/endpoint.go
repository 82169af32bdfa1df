// Package endpoint provides the HTTP handler pipeline that calls sit on.
//
// A request passes through three phases:
//
//  1. Decode: the EndpointHandler decodes the query string and form body
//     into param.Values.
//  2. Endpoint: the EndpointFunc receives the decoded values and the
//     request, runs the call, and returns a Renderer. It does not write to
//     the response directly.
//  3. Render: the returned Renderer writes the status code, headers and
//     body to the http.ResponseWriter.
//
// Processors can be chained as middleware to intercept requests before they
// reach the EndpointFunc.
//
// Supported Renderers:
//   - ValueRenderer: streams an adapted value through a codec encoder.
//   - StringRenderer: writes a plain string.
//   - NoContentRenderer: writes a status code with no body.
package endpoint

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mnehpets/httprpc/param"
)

// EndpointError is a client-visible error that maps directly to an HTTP status code.
//
// The handler wrapper uses this to translate returned Go errors into HTTP
// responses. Any other error becomes a 500.
type EndpointError struct {
	Status int
	// Message is a short, human-readable description suitable for an HTTP error body.
	Message string
	Cause   error
}

func (e *EndpointError) Error() string {
	if e == nil {
		return "endpoint: error: <nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
		if msg == "" {
			msg = "unknown error"
		}
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *EndpointError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Error creates a new EndpointError. An err that already carries an
// EndpointError is returned unchanged.
func Error(status int, message string, err error) error {
	var ee *EndpointError
	if errors.As(err, &ee) {
		return err
	}
	return &EndpointError{Status: status, Message: message, Cause: err}
}

// Renderers are values that write a response into an http.ResponseWriter.
//
// Protocol:
//   - Renderers MUST call w.WriteHeader() to write the HTTP response status
//     and headers.
//   - Renderers may optionally write the Content-Type header before
//     calling w.WriteHeader().
//   - A Renderer that also implements io.Closer is closed after Render
//     returns, whether or not Render was reached.
//
// Error handling:
//   - If Render returns a non-nil error before writing the header, the
//     handler writes an error response instead. Once the body has begun a
//     renderer cannot change the status and should not return an error.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// RendererFunc adapts a function to a Renderer.
type RendererFunc func(w http.ResponseWriter, r *http.Request) error

func (f RendererFunc) Render(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// Processor is middleware-style logic that runs before the Renderer.
//
// Protocol:
//   - Processors MUST call next(...), unless they intend to
//     short-circuit the request.
//   - Processors MUST NOT call w.WriteHeader(...).
//   - Processors MUST NOT write to the response body.
//   - Processors may wrap w, for example to compress the body.
//
// Error handling:
//   - If any processor returns a non-nil error, the chain stops immediately
//     and that error is returned to the caller.
type Processor interface {
	Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error
}

// ProcessorFunc adapts a function to a Processor.
type ProcessorFunc func(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error

func (f ProcessorFunc) Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
	return f(w, r, next)
}

// EndpointFunc is the wrapped handler function type.
//
// It receives the response writer, the incoming request and the decoded
// request parameters, and returns a Renderer responsible for writing the
// response, or an error.
//
// EndpointFunc should run the call without writing the response body. The
// status, Content-Type header and body are delegated to the returned
// Renderer.
type EndpointFunc func(w http.ResponseWriter, r *http.Request, params param.Values) (Renderer, error)

// EndpointHandler is the standard http.Handler wrapper for an EndpointFunc.
//
// It runs zero or more processors, decodes the request parameters, calls
// Endpoint and invokes the returned Renderer to write the response.
type EndpointHandler struct {
	Endpoint   EndpointFunc
	Processors []Processor
}

// Handler constructs an EndpointHandler.
func Handler(fn EndpointFunc, processors ...Processor) *EndpointHandler {
	return &EndpointHandler{
		Endpoint:   fn,
		Processors: processors,
	}
}

// HandleFunc adapts an EndpointFunc into an http.HandlerFunc.
func HandleFunc(fn EndpointFunc, processors ...Processor) http.HandlerFunc {
	return Handler(fn, processors...).ServeHTTP
}

// ServeHTTP implements http.Handler.
func (h *EndpointHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Endpoint == nil {
		http.Error(w, "endpoint: nil EndpointFunc", http.StatusInternalServerError)
		return
	}

	// Create a function to recursively call each processor in order, followed by the EndpointFunc.
	var run func(i int, w2 http.ResponseWriter, r2 *http.Request) error
	run = func(i int, w2 http.ResponseWriter, r2 *http.Request) error {
		if i < 0 || i > len(h.Processors) {
			// Sanity check failure.
			return errors.New("endpoint: invalid processor index")
		} else if i < len(h.Processors) {
			if h.Processors[i] == nil {
				return errors.New("endpoint: nil processor")
			}
			// Call the i'th processor followed by the next recursion of the "loop".
			return h.Processors[i].Process(w2, r2, func(w3 http.ResponseWriter, r3 *http.Request) error {
				return run(i+1, w3, r3)
			})
		}

		// All processors have been called; now decode parameters, call
		// the EndpointFunc and render the response.
		params, err := param.FromRequest(r2)
		if err != nil {
			return err
		}
		renderer, err := h.Endpoint(w2, r2, params)
		if c, ok := renderer.(io.Closer); ok {
			defer c.Close()
		}
		if err != nil {
			return err
		}
		if renderer == nil {
			return errors.New("endpoint: nil renderer")
		}
		return renderer.Render(w2, r2)
	}

	// Start the processor chain.
	err := run(0, w, r)

	if err != nil {
		status := StatusOf(err)
		message := ""

		var ee *EndpointError
		if errors.As(err, &ee) && ee != nil {
			if ee.Message == "" {
				message = http.StatusText(status)
			} else {
				message = ee.Message
			}
		} else {
			message = err.Error()
		}
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "endpoint failed", "path", r.URL.Path, "status", status, "err", err)
		}
		http.Error(w, message, status)
	}
}

// StatusOf returns the HTTP status the handler writes for err: the status
// of an EndpointError in its chain, or 500.
func StatusOf(err error) int {
	var ee *EndpointError
	if errors.As(err, &ee) && ee != nil && ee.Status >= 100 {
		return ee.Status
	}
	return http.StatusInternalServerError
}
