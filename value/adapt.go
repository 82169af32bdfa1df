package value

import (
	"database/sql"
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// Fielder is implemented by types that expose named fields for
// serialization. Field values are adapted lazily, as the consumer reaches
// them, so nested graphs are walked on demand.
type Fielder interface {
	Fields() iter.Seq2[string, any]
}

// Adaptable is implemented by types that build their own adapted form.
type Adaptable interface {
	AdaptValue() (Value, error)
}

// Adapt wraps v in the adapted tree.
//
//   - nil, booleans, numbers and strings become Scalars.
//   - time.Time becomes milliseconds since the Unix epoch.
//   - encoding.TextMarshaler becomes a string; []byte becomes base64 text.
//   - Fielder and maps with string keys become Mappings; map keys are sorted.
//   - Slices, arrays, iter.Seq[any] and *sql.Rows become Sequences.
//
// A source that also implements io.Closer yields a closeable Sequence or
// Mapping whose Close closes the source.
func Adapt(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case Adaptable:
		return x.AdaptValue()
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case int32:
		return Int(int64(x)), nil
	case float64:
		return Float(x), nil
	case json.Number:
		return adaptNumber(x)
	case time.Time:
		return Int(x.UnixMilli()), nil
	case []byte:
		return String(base64.StdEncoding.EncodeToString(x)), nil
	case *sql.Rows:
		return FromRows(x)
	case Fielder:
		return withMappingCloser(fromFielder(x), v), nil
	case iter.Seq[any]:
		return FromSeq(x), nil
	case iter.Seq2[string, any]:
		return FromSeq2(x), nil
	case encoding.TextMarshaler:
		b, err := x.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("value: marshal text %T: %w", v, err)
		}
		return String(string(b)), nil
	}
	return adaptReflect(v)
}

func adaptNumber(n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil {
		return Int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("value: number %q: %w", n, err)
	}
	return Float(f), nil
}

func adaptReflect(v any) (Value, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return Adapt(rv.Elem().Interface())
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint(rv.Uint()), nil
	case reflect.Float32:
		// Round-trip through the shortest float32 text so 0.1f stays 0.1.
		f, _ := strconv.ParseFloat(strconv.FormatFloat(rv.Float(), 'g', -1, 32), 64)
		return Float(f), nil
	case reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Slice:
		if rv.IsNil() {
			return Null(), nil
		}
		return withSequenceCloser(fromIndexed(rv), v), nil
	case reflect.Array:
		return withSequenceCloser(fromIndexed(rv), v), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("value: unsupported map key type %s", rv.Type().Key())
		}
		if rv.IsNil() {
			return Null(), nil
		}
		return withMappingCloser(fromMap(rv), v), nil
	}
	return nil, fmt.Errorf("value: unsupported type %T", v)
}

func withSequenceCloser(s *Sequence, src any) *Sequence {
	if c, ok := src.(io.Closer); ok {
		s.WithCloser(c.Close)
	}
	return s
}

func withMappingCloser(m *Mapping, src any) *Mapping {
	if c, ok := src.(io.Closer); ok {
		m.WithCloser(c.Close)
	}
	return m
}

func fromIndexed(rv reflect.Value) *Sequence {
	i := 0
	return NewSequence(func() (Value, bool, error) {
		if i >= rv.Len() {
			return nil, false, nil
		}
		elem := rv.Index(i)
		i++
		v, err := Adapt(elem.Interface())
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	})
}

func fromMap(rv reflect.Value) *Mapping {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	i := 0
	return NewMapping(func() (Entry, bool, error) {
		if i >= len(keys) {
			return Entry{}, false, nil
		}
		k := keys[i]
		i++
		v, err := Adapt(rv.MapIndex(k).Interface())
		if err != nil {
			return Entry{}, false, fmt.Errorf("key %q: %w", k.String(), err)
		}
		return Entry{Key: k.String(), Value: v}, true, nil
	})
}

func fromFielder(f Fielder) *Mapping {
	next, stop := iter.Pull2(f.Fields())
	m := NewMapping(func() (Entry, bool, error) {
		k, raw, ok := next()
		if !ok {
			return Entry{}, false, nil
		}
		v, err := Adapt(raw)
		if err != nil {
			return Entry{}, false, fmt.Errorf("field %q: %w", k, err)
		}
		return Entry{Key: k, Value: v}, true, nil
	})
	return m.WithCloser(func() error {
		stop()
		return nil
	})
}

// FromSeq adapts an iterator. The Sequence is closeable: closing it stops
// the iterator, even part way through.
func FromSeq[T any](seq iter.Seq[T]) *Sequence {
	next, stop := iter.Pull(seq)
	s := NewSequence(func() (Value, bool, error) {
		raw, ok := next()
		if !ok {
			return nil, false, nil
		}
		v, err := Adapt(raw)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	})
	return s.WithCloser(func() error {
		stop()
		return nil
	})
}

// FromSeq2 adapts a key/value iterator into a closeable Mapping.
func FromSeq2[T any](seq iter.Seq2[string, T]) *Mapping {
	next, stop := iter.Pull2(seq)
	m := NewMapping(func() (Entry, bool, error) {
		k, raw, ok := next()
		if !ok {
			return Entry{}, false, nil
		}
		v, err := Adapt(raw)
		if err != nil {
			return Entry{}, false, fmt.Errorf("key %q: %w", k, err)
		}
		return Entry{Key: k, Value: v}, true, nil
	})
	return m.WithCloser(func() error {
		stop()
		return nil
	})
}
