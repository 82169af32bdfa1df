package endpoint

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mnehpets/httprpc/codec"
	"github.com/mnehpets/httprpc/rpcerr"
	"github.com/mnehpets/httprpc/value"
)

// Encoder streams an adapted value to w.
type Encoder interface {
	Encode(w io.Writer, v value.Value) error
}

// Checker is implemented by encoders that can only write some values.
// Check runs before the response header is written.
type Checker interface {
	Check(v value.Value) error
}

// ValueRenderer adapts Value and streams it through Encoder.
//
// The status and headers are written before the first byte of the body, so
// a failure while streaming cannot change them. Such failures are logged
// and reported to Done, and Render returns nil. A failure to close a
// streamed resource is logged as a warning.
//
// ValueRenderer is an io.Closer: if it is closed without having rendered,
// it closes Value when Value is an io.Closer.
type ValueRenderer struct {
	Status      int
	ContentType string
	Value       any
	// Encoder defaults to compact JSON.
	Encoder Encoder
	// Done, when set, is called once with the outcome of the stream.
	Done func(err error)

	adapted bool
}

func (vr *ValueRenderer) Render(w http.ResponseWriter, r *http.Request) error {
	v, err := value.Adapt(vr.Value)
	if err != nil {
		vr.done(err)
		return err
	}
	vr.adapted = true

	enc := vr.Encoder
	if enc == nil {
		enc = codec.NewJSONEncoder()
	}
	if c, ok := enc.(Checker); ok {
		if err := c.Check(v); err != nil {
			closeValue(v)
			err = Error(http.StatusNotAcceptable, "result cannot be written in the requested format", err)
			vr.done(err)
			return err
		}
	}

	contentType := vr.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	status := vr.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	err = enc.Encode(w, v)
	switch {
	case err == nil:
	case errors.Is(err, rpcerr.ErrResource):
		slog.WarnContext(r.Context(), "closing streamed value failed", "path", r.URL.Path, "err", err)
	default:
		slog.ErrorContext(r.Context(), "streaming response failed", "path", r.URL.Path, "err", err)
	}
	vr.done(err)
	return nil
}

func (vr *ValueRenderer) done(err error) {
	if vr.Done != nil {
		vr.Done(err)
		vr.Done = nil
	}
}

// Close releases Value if it was never adapted for rendering.
func (vr *ValueRenderer) Close() error {
	if vr.adapted {
		return nil
	}
	vr.adapted = true
	if c, ok := vr.Value.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func closeValue(v value.Value) {
	switch x := v.(type) {
	case *value.Sequence:
		x.Close()
	case *value.Mapping:
		x.Close()
	}
}
