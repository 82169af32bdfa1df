package value

// cursorState is the lookahead state of a Sequence.
type cursorState int

const (
	// unstarted: nothing has been pulled ahead of the consumer.
	unstarted cursorState = iota
	// peeked: head holds the next element.
	peeked
	// exhausted: the source reported its end (or failed) and is never pulled again.
	exhausted
)

// PullFunc produces the next element of a Sequence. It returns ok=false at
// the end of the source.
type PullFunc func() (v Value, ok bool, err error)

// Sequence is a single-pass source of Values. It is not safe for
// concurrent use.
type Sequence struct {
	pull   PullFunc
	closer func() error
	state  cursorState
	head   Value
	closed bool
}

func (*Sequence) isValue() {}

// NewSequence creates a Sequence reading from pull.
func NewSequence(pull PullFunc) *Sequence {
	return &Sequence{pull: pull}
}

// Values creates a Sequence over a fixed list.
func Values(vs ...Value) *Sequence {
	i := 0
	return NewSequence(func() (Value, bool, error) {
		if i >= len(vs) {
			return nil, false, nil
		}
		v := vs[i]
		i++
		return v, true, nil
	})
}

// WithCloser marks s closeable; fn releases the underlying resource.
// Closers attached later run before earlier ones.
func (s *Sequence) WithCloser(fn func() error) *Sequence {
	if fn == nil {
		return s
	}
	prev := s.closer
	if prev == nil {
		s.closer = fn
		return s
	}
	s.closer = func() error {
		err := fn()
		if perr := prev(); err == nil {
			err = perr
		}
		return err
	}
	return s
}

// Closeable reports whether s is backed by a resource that must be closed.
func (s *Sequence) Closeable() bool { return s.closer != nil }

// Peek returns the next element without consuming it.
func (s *Sequence) Peek() (Value, bool, error) {
	switch s.state {
	case peeked:
		return s.head, true, nil
	case exhausted:
		return nil, false, nil
	}
	if s.closed {
		s.state = exhausted
		return nil, false, nil
	}
	v, ok, err := s.pull()
	if err != nil {
		s.state = exhausted
		return nil, false, err
	}
	if !ok {
		s.state = exhausted
		return nil, false, nil
	}
	s.state, s.head = peeked, v
	return v, true, nil
}

// Next consumes and returns the next element.
func (s *Sequence) Next() (Value, bool, error) {
	v, ok, err := s.Peek()
	if ok {
		s.state, s.head = unstarted, nil
	}
	return v, ok, err
}

// Close releases the underlying resource. Only the first call has an
// effect; a Sequence without a closer closes trivially.
func (s *Sequence) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.state, s.head = exhausted, nil
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
