package value

import "fmt"

// Entry is a key and its value.
type Entry struct {
	Key   string
	Value Value
}

// EntryFunc produces the next entry of a Mapping. It returns ok=false at
// the end of the source.
type EntryFunc func() (e Entry, ok bool, err error)

// Mapping is a single-pass source of entries with unique string keys. It
// is not safe for concurrent use.
type Mapping struct {
	pull      EntryFunc
	closer    func() error
	seen      map[string]struct{}
	exhausted bool
	closed    bool
}

func (*Mapping) isValue() {}

// NewMapping creates a Mapping reading from pull.
func NewMapping(pull EntryFunc) *Mapping {
	return &Mapping{pull: pull, seen: make(map[string]struct{})}
}

// Entries creates a Mapping over a fixed list of entries.
func Entries(es ...Entry) *Mapping {
	i := 0
	return NewMapping(func() (Entry, bool, error) {
		if i >= len(es) {
			return Entry{}, false, nil
		}
		e := es[i]
		i++
		return e, true, nil
	})
}

// WithCloser marks m closeable; fn releases the underlying resource.
func (m *Mapping) WithCloser(fn func() error) *Mapping {
	if fn == nil {
		return m
	}
	prev := m.closer
	if prev == nil {
		m.closer = fn
		return m
	}
	m.closer = func() error {
		err := fn()
		if perr := prev(); err == nil {
			err = perr
		}
		return err
	}
	return m
}

// Closeable reports whether m is backed by a resource that must be closed.
func (m *Mapping) Closeable() bool { return m.closer != nil }

// Next consumes and returns the next entry. A key that repeats an earlier
// one is an error.
func (m *Mapping) Next() (Entry, bool, error) {
	if m.exhausted || m.closed {
		return Entry{}, false, nil
	}
	e, ok, err := m.pull()
	if err != nil || !ok {
		m.exhausted = true
		return Entry{}, false, err
	}
	if _, dup := m.seen[e.Key]; dup {
		m.exhausted = true
		return Entry{}, false, fmt.Errorf("value: duplicate key %q", e.Key)
	}
	m.seen[e.Key] = struct{}{}
	return e, true, nil
}

// Close releases the underlying resource. Only the first call has an effect.
func (m *Mapping) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.exhausted = true
	if m.closer == nil {
		return nil
	}
	return m.closer()
}
