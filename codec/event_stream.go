package codec

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	"github.com/mnehpets/httprpc/rpcerr"
	"github.com/mnehpets/httprpc/value"
)

// EventStreamEncoder writes a Sequence as server-sent events, one event per
// element, each carrying the element as JSON. Any other value is written
// as a single event. The sink is flushed after every event when it has a
// Flush method, as an http.ResponseWriter does.
type EventStreamEncoder struct {
	// JSON encodes event data. Nil means compact JSON.
	JSON *JSONEncoder
}

// NewEventStreamEncoder returns an encoder writing compact JSON events.
func NewEventStreamEncoder() *EventStreamEncoder {
	return &EventStreamEncoder{JSON: NewJSONEncoder()}
}

type flusher interface {
	Flush()
}

// Encode writes v to w as an event stream.
func (e *EventStreamEncoder) Encode(w io.Writer, v value.Value) (err error) {
	var log closeLog
	defer func() { err = log.result(err) }()

	s, ok := v.(*value.Sequence)
	if !ok {
		return e.event(w, 1, v, &log)
	}
	defer log.release(s.Close)

	for id := 1; ; id++ {
		item, ok, err := s.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := e.event(w, id, item, &log); err != nil {
			return err
		}
	}
}

func (e *EventStreamEncoder) event(w io.Writer, id int, v value.Value, log *closeLog) error {
	enc := e.JSON
	if enc == nil {
		enc = NewJSONEncoder()
	}
	var data bytes.Buffer
	if err := enc.Encode(&data, v); err != nil {
		if !errors.Is(err, rpcerr.ErrResource) {
			return err
		}
		log.errs = append(log.errs, err)
	}

	var b bytes.Buffer
	b.WriteString("id: ")
	b.WriteString(strconv.Itoa(id))
	b.WriteString("\ndata: ")
	b.Write(bytes.ReplaceAll(data.Bytes(), []byte("\n"), []byte("\ndata: ")))
	b.WriteString("\n\n")
	if _, err := w.Write(b.Bytes()); err != nil {
		return err
	}
	if f, ok := w.(flusher); ok {
		f.Flush()
	}
	return nil
}
