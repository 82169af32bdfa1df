// Package value adapts arbitrary Go return values into a uniform, lazy tree
// that a streaming encoder can walk in a single pass.
//
// A Value is one of:
//
//   - Scalar: null, boolean, number or string.
//   - *Sequence: an ordered, forward-only, possibly infinite source of Values.
//   - *Mapping: an ordered source of (key, Value) entries with unique keys.
//
// Sequences and Mappings may carry a closer. Whoever consumes them (normally
// the codec package) must call Close exactly once, either after the last
// element or as soon as consumption fails. Close is idempotent so a second
// call is harmless, but only the first one reaches the underlying resource.
//
// Adaptation is lazy: no element is read from a cursor, iterator or slice
// until the consumer asks for it. Cyclic graphs are not detected.
package value

// Value is a node of an adapted tree: a Scalar, *Sequence or *Mapping.
type Value interface {
	isValue()
}

// Scalar is a null, boolean, number or string leaf.
type Scalar struct {
	v any // nil, bool, int64, uint64, float64 or string
}

func (Scalar) isValue() {}

// Null returns the null scalar.
func Null() Scalar { return Scalar{} }

// Bool returns a boolean scalar.
func Bool(b bool) Scalar { return Scalar{v: b} }

// Int returns an integral number scalar.
func Int(i int64) Scalar { return Scalar{v: i} }

// Uint returns an unsigned integral number scalar.
func Uint(u uint64) Scalar { return Scalar{v: u} }

// Float returns a floating point number scalar.
func Float(f float64) Scalar { return Scalar{v: f} }

// String returns a string scalar.
func String(s string) Scalar { return Scalar{v: s} }

// IsNull reports whether s is the null scalar.
func (s Scalar) IsNull() bool { return s.v == nil }

// Interface returns the Go value held by s: nil, bool, int64, uint64,
// float64 or string.
func (s Scalar) Interface() any { return s.v }
