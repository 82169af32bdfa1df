package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/mnehpets/httprpc/value"
)

const hexDigits = "0123456789abcdef"

// JSONEncoder writes adapted values as JSON.
type JSONEncoder struct {
	// Indent pretty prints with two-space indentation.
	Indent bool
	// EscapeNonASCII writes every non-ASCII character as \uXXXX instead of
	// passing it through as UTF-8.
	EscapeNonASCII bool
}

// NewJSONEncoder returns a compact encoder.
func NewJSONEncoder() *JSONEncoder {
	return &JSONEncoder{}
}

// Encode writes v to w. Output is buffered and flushed before Encode
// returns.
func (e *JSONEncoder) Encode(w io.Writer, v value.Value) error {
	jw := &jsonWriter{enc: e, w: bufio.NewWriter(w)}
	err := jw.write(v)
	if ferr := jw.w.Flush(); err == nil {
		err = ferr
	}
	return jw.log.result(err)
}

type jsonWriter struct {
	enc   *JSONEncoder
	w     *bufio.Writer
	depth int
	log   closeLog
}

func (jw *jsonWriter) write(v value.Value) error {
	switch x := v.(type) {
	case nil:
		_, err := jw.w.WriteString("null")
		return err
	case value.Scalar:
		return jw.writeScalar(x)
	case *value.Sequence:
		return jw.writeSequence(x)
	case *value.Mapping:
		return jw.writeMapping(x)
	}
	return fmt.Errorf("codec: unknown value type %T", v)
}

func (jw *jsonWriter) writeSequence(s *value.Sequence) error {
	defer jw.log.release(s.Close)

	if err := jw.w.WriteByte('['); err != nil {
		return err
	}
	jw.depth++
	n := 0
	for {
		v, ok, err := s.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if n > 0 {
			if err := jw.w.WriteByte(','); err != nil {
				jw.log.discard(v)
				return err
			}
		}
		jw.newline()
		if err := jw.write(v); err != nil {
			return err
		}
		n++
	}
	jw.depth--
	if n > 0 {
		jw.newline()
	}
	return jw.w.WriteByte(']')
}

func (jw *jsonWriter) writeMapping(m *value.Mapping) error {
	defer jw.log.release(m.Close)

	if err := jw.w.WriteByte('{'); err != nil {
		return err
	}
	jw.depth++
	n := 0
	for {
		e, ok, err := m.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if n > 0 {
			if err := jw.w.WriteByte(','); err != nil {
				jw.log.discard(e.Value)
				return err
			}
		}
		jw.newline()
		if err := jw.writeString(e.Key); err != nil {
			jw.log.discard(e.Value)
			return err
		}
		if err := jw.w.WriteByte(':'); err != nil {
			jw.log.discard(e.Value)
			return err
		}
		if jw.enc.Indent {
			jw.w.WriteByte(' ')
		}
		if err := jw.write(e.Value); err != nil {
			return err
		}
		n++
	}
	jw.depth--
	if n > 0 {
		jw.newline()
	}
	return jw.w.WriteByte('}')
}

func (jw *jsonWriter) newline() {
	if !jw.enc.Indent {
		return
	}
	jw.w.WriteByte('\n')
	for i := 0; i < jw.depth; i++ {
		jw.w.WriteString("  ")
	}
}

func (jw *jsonWriter) writeScalar(s value.Scalar) error {
	switch x := s.Interface().(type) {
	case nil:
		_, err := jw.w.WriteString("null")
		return err
	case bool:
		_, err := jw.w.WriteString(strconv.FormatBool(x))
		return err
	case int64:
		_, err := jw.w.WriteString(strconv.FormatInt(x, 10))
		return err
	case uint64:
		_, err := jw.w.WriteString(strconv.FormatUint(x, 10))
		return err
	case float64:
		b, err := appendFloat(nil, x)
		if err != nil {
			return err
		}
		_, err = jw.w.Write(b)
		return err
	case string:
		return jw.writeString(x)
	}
	return fmt.Errorf("codec: unknown scalar %T", s.Interface())
}

var errNonFinite = errors.New("codec: NaN and infinite numbers have no JSON form")

// appendFloat formats f in canonical decimal form: integral values carry no
// decimal point, very large and very small magnitudes use an exponent.
func appendFloat(b []byte, f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errNonFinite
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		b = strconv.AppendFloat(b, f, 'e', -1, 64)
		// Clean up e-09 to e-9.
		n := len(b)
		if n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
		return b, nil
	}
	return strconv.AppendFloat(b, f, 'f', -1, 64), nil
}

func (jw *jsonWriter) writeString(s string) error {
	w := jw.w
	w.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			w.WriteString(`\ufffd`)
			i++
			continue
		}
		i += size
		switch r {
		case '"':
			w.WriteString(`\"`)
		case '\\':
			w.WriteString(`\\`)
		case '\b':
			w.WriteString(`\b`)
		case '\f':
			w.WriteString(`\f`)
		case '\n':
			w.WriteString(`\n`)
		case '\r':
			w.WriteString(`\r`)
		case '\t':
			w.WriteString(`\t`)
		default:
			switch {
			case r < 0x20:
				writeUnicodeEscape(w, r)
			case r >= utf8.RuneSelf && jw.enc.EscapeNonASCII:
				if r1, r2 := utf16.EncodeRune(r); r1 != utf8.RuneError {
					writeUnicodeEscape(w, r1)
					writeUnicodeEscape(w, r2)
				} else {
					writeUnicodeEscape(w, r)
				}
			default:
				w.WriteRune(r)
			}
		}
	}
	return w.WriteByte('"')
}

func writeUnicodeEscape(w *bufio.Writer, r rune) {
	w.WriteString(`\u`)
	w.WriteByte(hexDigits[(r>>12)&0xf])
	w.WriteByte(hexDigits[(r>>8)&0xf])
	w.WriteByte(hexDigits[(r>>4)&0xf])
	w.WriteByte(hexDigits[r&0xf])
}
