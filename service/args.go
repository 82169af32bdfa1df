package service

// Args holds the coerced arguments of one call, keyed by parameter name.
// Accessors return the zero value for a null or undeclared argument.
type Args struct {
	values map[string]any
}

// NewArgs builds Args from already coerced values. It is meant for tests
// and for callers invoking a Method directly.
func NewArgs(values map[string]any) Args {
	return Args{values: values}
}

// Value returns the raw coerced argument.
func (a Args) Value(name string) any { return a.values[name] }

// IsNull reports whether the argument is null or undeclared.
func (a Args) IsNull(name string) bool { return a.values[name] == nil }

func (a Args) String(name string) string {
	s, _ := a.values[name].(string)
	return s
}

func (a Args) Int(name string) int64 {
	i, _ := a.values[name].(int64)
	return i
}

func (a Args) Float(name string) float64 {
	f, _ := a.values[name].(float64)
	return f
}

func (a Args) Bool(name string) bool {
	b, _ := a.values[name].(bool)
	return b
}

// List returns a list argument; it is empty rather than nil when the
// request omitted it.
func (a Args) List(name string) []any {
	l, _ := a.values[name].([]any)
	return l
}

// Map returns a map argument.
func (a Args) Map(name string) map[string]any {
	m, _ := a.values[name].(map[string]any)
	return m
}
