package codec

import (
	"bufio"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/mnehpets/httprpc/value"
)

// CBOREncoder writes adapted values as CBOR (RFC 8949). Sequences and
// Mappings are written as indefinite-length arrays and maps so that
// cursors stream without a known length.
type CBOREncoder struct{}

// NewCBOREncoder returns an encoder.
func NewCBOREncoder() *CBOREncoder {
	return &CBOREncoder{}
}

// Encode writes v to w.
func (e *CBOREncoder) Encode(w io.Writer, v value.Value) error {
	bw := bufio.NewWriter(w)
	cw := &cborWriter{enc: cbor.NewEncoder(bw)}
	err := cw.write(v)
	if ferr := bw.Flush(); err == nil {
		err = ferr
	}
	return cw.log.result(err)
}

type cborWriter struct {
	enc *cbor.Encoder
	log closeLog
}

func (cw *cborWriter) write(v value.Value) error {
	switch x := v.(type) {
	case nil:
		return cw.enc.Encode(nil)
	case value.Scalar:
		return cw.enc.Encode(x.Interface())
	case *value.Sequence:
		return cw.writeSequence(x)
	case *value.Mapping:
		return cw.writeMapping(x)
	}
	return fmt.Errorf("codec: unknown value type %T", v)
}

func (cw *cborWriter) writeSequence(s *value.Sequence) error {
	defer cw.log.release(s.Close)

	if err := cw.enc.StartIndefiniteArray(); err != nil {
		return err
	}
	for {
		v, ok, err := s.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := cw.write(v); err != nil {
			return err
		}
	}
	return cw.enc.EndIndefinite()
}

func (cw *cborWriter) writeMapping(m *value.Mapping) error {
	defer cw.log.release(m.Close)

	if err := cw.enc.StartIndefiniteMap(); err != nil {
		return err
	}
	for {
		e, ok, err := m.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := cw.enc.Encode(e.Key); err != nil {
			cw.log.discard(e.Value)
			return err
		}
		if err := cw.write(e.Value); err != nil {
			return err
		}
	}
	return cw.enc.EndIndefinite()
}
