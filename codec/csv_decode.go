package codec

import (
	"bufio"
	"io"
	"iter"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/mnehpets/httprpc/rpcerr"
	"github.com/mnehpets/httprpc/value"
)

// CSVDecoder reads delimited text whose first record names the columns.
//
// Fields may be wrapped in double quotes. Inside quotes the delimiter and
// line breaks are literal and a doubled quote stands for one quote. CR, LF
// and CRLF each end a record. A blank record ends the data.
type CSVDecoder struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
	// Charset decodes the byte stream. Nil means UTF-8.
	Charset encoding.Encoding
}

// NewCSVDecoder returns a comma-delimited UTF-8 decoder.
func NewCSVDecoder() *CSVDecoder {
	return &CSVDecoder{Delimiter: ','}
}

// Decode reads the header record from r and returns a cursor over the
// remaining records. If r is an io.Closer, closing the cursor closes r.
func (d *CSVDecoder) Decode(r io.Reader) (*CSVCursor, error) {
	delim := d.Delimiter
	if delim == 0 {
		delim = ','
	}
	src := r
	if d.Charset != nil {
		src = d.Charset.NewDecoder().Reader(r)
	}
	c := &CSVCursor{r: bufio.NewReader(src), delim: delim}
	if cl, ok := r.(io.Closer); ok {
		c.closer = cl
	}
	keys, err := c.readRecord()
	if err != nil {
		c.Close()
		return nil, err
	}
	c.keys = keys
	c.slot, c.dups = slots(keys)
	if len(keys) == 0 {
		c.done = true
	}
	return c, nil
}

// CSVCursor is a forward-only cursor over decoded records.
type CSVCursor struct {
	r      *bufio.Reader
	delim  rune
	keys   []string
	slot   []int // column index to its position among distinct keys
	dups   bool
	closer io.Closer
	done   bool
	closed bool
	line   int
}

// Keys returns the header names.
func (c *CSVCursor) Keys() []string {
	return c.keys
}

// Next reads the next record. It reports false once a blank record or the
// end of input is reached, or after Close.
func (c *CSVCursor) Next() (Record, bool, error) {
	if c.done || c.closed {
		return Record{}, false, nil
	}
	fields, err := c.readRecord()
	if err != nil {
		c.done = true
		return Record{}, false, err
	}
	if len(fields) == 0 {
		c.done = true
		return Record{}, false, nil
	}
	n := min(len(fields), len(c.keys))
	if !c.dups {
		return Record{keys: c.keys[:n], values: fields[:n]}, true, nil
	}
	return c.collapse(fields[:n]), true, nil
}

// slots maps each header column to the position of its name's first
// occurrence.
func slots(keys []string) ([]int, bool) {
	seen := make(map[string]int, len(keys))
	slot := make([]int, len(keys))
	dups := false
	for i, k := range keys {
		if j, ok := seen[k]; ok {
			slot[i] = j
			dups = true
			continue
		}
		seen[k] = len(seen)
		slot[i] = seen[k]
	}
	return slot, dups
}

// collapse merges columns sharing a header name. The later column's value
// wins and the name keeps its first position.
func (c *CSVCursor) collapse(fields []string) Record {
	var rec Record
	for i, f := range fields {
		if j := c.slot[i]; j < len(rec.keys) {
			rec.values[j] = f
			continue
		}
		rec.keys = append(rec.keys, c.keys[i])
		rec.values = append(rec.values, f)
	}
	return rec
}

// Close ends the cursor and closes the underlying reader, once.
func (c *CSVCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// AdaptValue yields the records as a Sequence of Mappings. The Sequence is
// closeable when the underlying reader is.
func (c *CSVCursor) AdaptValue() (value.Value, error) {
	s := value.NewSequence(func() (value.Value, bool, error) {
		rec, ok, err := c.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		return value.Entries(rec.entries()...), true, nil
	})
	if c.closer != nil {
		s = s.WithCloser(c.Close)
	}
	return s, nil
}

// All iterates over the remaining records, stopping at the first error.
func (c *CSVCursor) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, ok, err := c.Next()
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !ok || !yield(rec, nil) {
				return
			}
		}
	}
}

// Record is one decoded row, keyed by header name in column order.
type Record struct {
	keys   []string
	values []string
}

// Len is the number of fields in the record.
func (r Record) Len() int { return len(r.keys) }

// Get returns the field named key.
func (r Record) Get(key string) (string, bool) {
	for i, k := range r.keys {
		if k == key {
			return r.values[i], true
		}
	}
	return "", false
}

// Map copies the record into a map.
func (r Record) Map() map[string]string {
	m := make(map[string]string, len(r.keys))
	for i, k := range r.keys {
		m[k] = r.values[i]
	}
	return m
}

func (r Record) entries() []value.Entry {
	es := make([]value.Entry, len(r.keys))
	for i, k := range r.keys {
		es[i] = value.Entry{Key: k, Value: value.String(r.values[i])}
	}
	return es
}

func (c *CSVCursor) readRune() (rune, bool, error) {
	ch, _, err := c.r.ReadRune()
	if err == io.EOF {
		return 0, true, nil
	}
	if err != nil {
		return 0, true, err
	}
	return ch, false, nil
}

// readRecord reads the fields of one record. An empty result means a blank
// record or the end of input.
func (c *CSVCursor) readRecord() ([]string, error) {
	c.line++
	var fields []string
	ch, eof, err := c.readRune()
	if err != nil {
		return nil, err
	}
	for !eof && ch != '\r' && ch != '\n' {
		var b strings.Builder
		quoted := false
		if ch == '"' {
			quoted = true
			if ch, eof, err = c.readRune(); err != nil {
				return nil, err
			}
		}
		for !eof {
			if quoted {
				if ch == '"' {
					if ch, eof, err = c.readRune(); err != nil {
						return nil, err
					}
					if !eof && ch == '"' {
						b.WriteRune('"')
						if ch, eof, err = c.readRune(); err != nil {
							return nil, err
						}
						continue
					}
					quoted = false
					continue
				}
			} else if ch == c.delim || ch == '\r' || ch == '\n' {
				break
			}
			b.WriteRune(ch)
			if ch, eof, err = c.readRune(); err != nil {
				return nil, err
			}
		}
		if quoted {
			return nil, rpcerr.Decode(nil, "csv: line %d: unterminated quoted field", c.line)
		}
		fields = append(fields, b.String())
		if !eof && ch == c.delim {
			if ch, eof, err = c.readRune(); err != nil {
				return nil, err
			}
			if eof || ch == '\r' || ch == '\n' {
				fields = append(fields, "")
			}
		}
	}
	if !eof && ch == '\r' {
		next, eof, err := c.readRune()
		if err != nil {
			return nil, err
		}
		if !eof && next != '\n' {
			c.r.UnreadRune()
		}
	}
	return fields, nil
}
