package codec

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/mnehpets/httprpc/value"
)

// CSVEncoder writes a Sequence of Mappings as delimited text. The first
// record's keys become the header; later records are written in header
// order, with an empty field for a missing key and extra keys dropped.
// Nested collections are written as compact JSON.
type CSVEncoder struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
}

// NewCSVEncoder returns a comma-delimited encoder.
func NewCSVEncoder() *CSVEncoder {
	return &CSVEncoder{Delimiter: ','}
}

// Encode writes v, which must be a Sequence, to w.
func (e *CSVEncoder) Encode(w io.Writer, v value.Value) error {
	cw := csv.NewWriter(w)
	if e.Delimiter != 0 {
		cw.Comma = e.Delimiter
	}
	enc := &csvWriter{w: cw}
	err := enc.write(v)
	cw.Flush()
	if err == nil {
		err = cw.Error()
	}
	return enc.log.result(err)
}

type csvWriter struct {
	w      *csv.Writer
	header []string
	log    closeLog
}

func (cw *csvWriter) write(v value.Value) error {
	s, ok := v.(*value.Sequence)
	if !ok {
		cw.log.discard(v)
		return fmt.Errorf("codec: csv needs a sequence of records, got %T", v)
	}
	defer cw.log.release(s.Close)

	for {
		item, ok, err := s.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		m, ok := item.(*value.Mapping)
		if !ok {
			cw.log.discard(item)
			return fmt.Errorf("codec: csv record must be a mapping, got %T", item)
		}
		if err := cw.record(m); err != nil {
			return err
		}
	}
}

func (cw *csvWriter) record(m *value.Mapping) error {
	defer cw.log.release(m.Close)

	var keys []string
	fields := map[string]string{}
	for {
		e, ok, err := m.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		text, err := cw.field(e.Value)
		if err != nil {
			return fmt.Errorf("field %q: %w", e.Key, err)
		}
		keys = append(keys, e.Key)
		fields[e.Key] = text
	}
	if cw.header == nil {
		cw.header = keys
		if err := cw.w.Write(keys); err != nil {
			return err
		}
	}
	row := make([]string, len(cw.header))
	for i, k := range cw.header {
		row[i] = fields[k]
	}
	return cw.w.Write(row)
}

func (cw *csvWriter) field(v value.Value) (string, error) {
	s, ok := v.(value.Scalar)
	if !ok {
		var buf bytes.Buffer
		if err := NewJSONEncoder().Encode(&buf, v); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
	switch x := s.Interface().(type) {
	case nil:
		return "", nil
	case bool:
		return strconv.FormatBool(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		b, err := appendFloat(nil, x)
		return string(b), err
	case string:
		return x, nil
	}
	return "", fmt.Errorf("codec: unknown scalar %T", s.Interface())
}

// Check reports whether v has the shape the encoder writes. Only the
// outer Sequence can be checked without reading it.
func (e *CSVEncoder) Check(v value.Value) error {
	if _, ok := v.(*value.Sequence); !ok {
		return fmt.Errorf("codec: csv needs a sequence of records, got %T", v)
	}
	return nil
}
