package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/mnehpets/httprpc/rpcerr"
)

// JSONDecoder reads a single JSON value into nil, bool, int64, float64,
// string, []any and map[string]any.
//
// The decoder is lenient in ways a strict parser is not. Commas between
// elements are optional and repeated commas are skipped. A mismatched
// closing bracket, or the end of input, ends the innermost open array or
// object with what has been read so far. Content after the top-level value
// is ignored. Integer literals that do not fit int64 decode as float64.
type JSONDecoder struct{}

// NewJSONDecoder returns a decoder.
func NewJSONDecoder() *JSONDecoder {
	return &JSONDecoder{}
}

// Decode reads one value from r.
func (d *JSONDecoder) Decode(r io.Reader) (any, error) {
	rs, ok := r.(io.RuneScanner)
	if !ok {
		rs = bufio.NewReader(r)
	}
	jr := &jsonReader{r: rs}
	jr.skipSpace()
	if jr.err != nil {
		return nil, jr.fail("unexpected end of input")
	}
	return jr.value()
}

// DecodeJSONString is a convenience for decoding s.
func DecodeJSONString(s string) (any, error) {
	return NewJSONDecoder().Decode(strings.NewReader(s))
}

type jsonReader struct {
	r   io.RuneScanner
	off int
	// err is the read error that ended input, io.EOF at the end.
	err error
}

func (jr *jsonReader) read() (rune, bool) {
	if jr.err != nil {
		return 0, false
	}
	c, _, err := jr.r.ReadRune()
	if err != nil {
		jr.err = err
		return 0, false
	}
	jr.off++
	return c, true
}

func (jr *jsonReader) unread() {
	if jr.r.UnreadRune() == nil {
		jr.off--
	}
}

// peek returns the next rune without consuming it.
func (jr *jsonReader) peek() (rune, bool) {
	c, ok := jr.read()
	if ok {
		jr.unread()
	}
	return c, ok
}

func (jr *jsonReader) skipSpace() {
	for {
		c, ok := jr.read()
		if !ok {
			return
		}
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			jr.unread()
			return
		}
	}
}

// skipSeparators skips whitespace and any number of commas.
func (jr *jsonReader) skipSeparators() {
	for {
		jr.skipSpace()
		c, ok := jr.peek()
		if !ok || c != ',' {
			return
		}
		jr.read()
	}
}

func (jr *jsonReader) fail(format string, args ...any) error {
	cause := fmt.Errorf(format, args...)
	if jr.err != nil && jr.err != io.EOF {
		cause = jr.err
	}
	return rpcerr.Decode(cause, "json: offset %d", jr.off)
}

// ioErr reports a read failure other than the end of input.
func (jr *jsonReader) ioErr() error {
	if jr.err != nil && jr.err != io.EOF {
		return jr.fail("read")
	}
	return nil
}

func (jr *jsonReader) value() (any, error) {
	c, ok := jr.peek()
	if !ok {
		return nil, jr.fail("unexpected end of input")
	}
	switch {
	case c == '[':
		jr.read()
		return jr.array()
	case c == '{':
		jr.read()
		return jr.object()
	case c == '"':
		jr.read()
		return jr.str()
	case c == '-' || (c >= '0' && c <= '9'):
		return jr.number()
	case c == 't':
		return jr.literal("true", true)
	case c == 'f':
		return jr.literal("false", false)
	case c == 'n':
		return jr.literal("null", nil)
	}
	return nil, jr.fail("unexpected character %q", c)
}

func (jr *jsonReader) array() (any, error) {
	list := []any{}
	for {
		jr.skipSeparators()
		c, ok := jr.peek()
		if !ok {
			return list, jr.ioErr()
		}
		if c == ']' || c == '}' {
			jr.read()
			return list, nil
		}
		v, err := jr.value()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
}

func (jr *jsonReader) object() (any, error) {
	obj := map[string]any{}
	for {
		jr.skipSeparators()
		c, ok := jr.peek()
		if !ok {
			return obj, jr.ioErr()
		}
		if c == '}' || c == ']' {
			jr.read()
			return obj, nil
		}
		if c != '"' {
			return nil, jr.fail("expected object key, found %q", c)
		}
		jr.read()
		key, err := jr.str()
		if err != nil {
			return nil, err
		}
		jr.skipSpace()
		if c, ok := jr.read(); !ok || c != ':' {
			return nil, jr.fail("expected ':' after key %q", key)
		}
		jr.skipSpace()
		v, err := jr.value()
		if err != nil {
			return nil, err
		}
		obj[key.(string)] = v
	}
}

func (jr *jsonReader) str() (any, error) {
	var b strings.Builder
	for {
		c, ok := jr.read()
		if !ok {
			return nil, jr.fail("unterminated string")
		}
		switch c {
		case '"':
			return b.String(), nil
		case '\\':
			if err := jr.escape(&b); err != nil {
				return nil, err
			}
		default:
			b.WriteRune(c)
		}
	}
}

// escape decodes the escape after a backslash into b. An unpaired
// surrogate decodes as U+FFFD and whatever follows it is decoded normally.
func (jr *jsonReader) escape(b *strings.Builder) error {
	c, ok := jr.read()
	if !ok {
		return jr.fail("unterminated escape")
	}
	switch c {
	case '"', '\\', '/':
		b.WriteRune(c)
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'u':
		r, err := jr.hex4()
		if err != nil {
			return err
		}
		return jr.surrogate(b, r)
	default:
		return jr.fail("invalid escape %q", c)
	}
	return nil
}

func (jr *jsonReader) surrogate(b *strings.Builder, r rune) error {
	for {
		if !utf16.IsSurrogate(r) {
			b.WriteRune(r)
			return nil
		}
		if r >= 0xdc00 {
			b.WriteRune(utf8.RuneError)
			return nil
		}
		// A high surrogate may be followed by its low half.
		if c, ok := jr.peek(); !ok || c != '\\' {
			b.WriteRune(utf8.RuneError)
			return nil
		}
		jr.read()
		if c, ok := jr.peek(); !ok || c != 'u' {
			b.WriteRune(utf8.RuneError)
			return jr.escape(b)
		}
		jr.read()
		r2, err := jr.hex4()
		if err != nil {
			return err
		}
		if r2 >= 0xdc00 && r2 <= 0xdfff {
			b.WriteRune(utf16.DecodeRune(r, r2))
			return nil
		}
		b.WriteRune(utf8.RuneError)
		r = r2
	}
}

func (jr *jsonReader) hex4() (rune, error) {
	var r rune
	for i := 0; i < 4; i++ {
		c, ok := jr.read()
		if !ok {
			return 0, jr.fail("short unicode escape")
		}
		var d rune
		switch {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'a' && c <= 'f':
			d = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			d = c - 'A' + 10
		default:
			return 0, jr.fail("invalid hex digit %q", c)
		}
		r = r<<4 | d
	}
	return r, nil
}

func (jr *jsonReader) number() (any, error) {
	var b strings.Builder
	fractional := false
	for {
		c, ok := jr.read()
		if !ok {
			break
		}
		if c == '.' || c == 'e' || c == 'E' {
			fractional = true
		} else if !(c == '-' || c == '+' || (c >= '0' && c <= '9')) {
			jr.unread()
			break
		}
		b.WriteRune(c)
	}
	text := b.String()
	if !fractional {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, nil
		} else if !errors.Is(err, strconv.ErrRange) {
			return nil, jr.fail("invalid number %q", text)
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, jr.fail("invalid number %q", text)
	}
	return f, nil
}

func (jr *jsonReader) literal(word string, v any) (any, error) {
	for _, want := range word {
		c, ok := jr.read()
		if !ok || c != want {
			return nil, jr.fail("invalid literal, expected %q", word)
		}
	}
	return v, nil
}
