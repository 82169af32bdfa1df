// Package param classifies loosely-typed request parameters by shape.
//
// Raw (name, text) pairs from a query string or form body are grouped by
// name and turned into one of three shapes:
//
//   - Text: a single occurrence whose value has no colon.
//   - List: two or more occurrences, none of them colon-delimited, in
//     submission order.
//   - Map: every occurrence has the form key:value. A repeated key
//     overwrites the earlier one.
//
// The decoder does not know the target type of a parameter; coercion to a
// method's declared parameter shape is done by the service package.
package param

import (
	"fmt"
	"strings"

	"github.com/mnehpets/httprpc/rpcerr"
)

// Shape is the structural classification of a decoded parameter.
type Shape int

const (
	Text Shape = iota + 1
	List
	Map
)

func (s Shape) String() string {
	switch s {
	case Text:
		return "text"
	case List:
		return "list"
	case Map:
		return "map"
	}
	return "unknown"
}

// Pair is one name=value occurrence. Present is false for a bare name with
// no value at all, which contributes nothing to the decoded result.
type Pair struct {
	Name    string
	Text    string
	Present bool
}

// Value is a decoded parameter. The zero Value is invalid.
type Value struct {
	shape Shape
	text  string
	list  []string
	keys  []string
	m     map[string]string
}

// Shape reports the classification of v.
func (v Value) Shape() Shape { return v.shape }

// Text returns the text of a Text-shaped value.
func (v Value) Text() string { return v.text }

// List returns the elements of a List-shaped value.
func (v Value) List() []string { return v.list }

// Map returns the entries of a Map-shaped value.
func (v Value) Map() map[string]string { return v.m }

// Keys returns the keys of a Map-shaped value in first-seen order.
func (v Value) Keys() []string { return v.keys }

func (v Value) String() string {
	switch v.shape {
	case Text:
		return v.text
	case List:
		return fmt.Sprint(v.list)
	case Map:
		parts := make([]string, 0, len(v.keys))
		for _, k := range v.keys {
			parts = append(parts, k+":"+v.m[k])
		}
		return "{" + strings.Join(parts, " ") + "}"
	}
	return "<invalid>"
}

// TextValue creates a Text-shaped value.
func TextValue(s string) Value { return Value{shape: Text, text: s} }

// ListValue creates a List-shaped value.
func ListValue(items ...string) Value { return Value{shape: List, list: items} }

// Values maps parameter names to decoded values. Names that never occurred
// have no entry.
type Values map[string]Value

// Lookup returns the value for name.
func (vs Values) Lookup(name string) (Value, bool) {
	v, ok := vs[name]
	return v, ok
}

// Decode groups pairs by name and classifies each group.
func Decode(pairs []Pair) (Values, error) {
	order := make([]string, 0, len(pairs))
	grouped := make(map[string][]string)
	for _, p := range pairs {
		if !p.Present {
			continue
		}
		if _, seen := grouped[p.Name]; !seen {
			order = append(order, p.Name)
		}
		grouped[p.Name] = append(grouped[p.Name], p.Text)
	}

	out := make(Values, len(order))
	for _, name := range order {
		v, err := classify(name, grouped[name])
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func classify(name string, texts []string) (Value, error) {
	keyed := 0
	for _, t := range texts {
		if strings.Contains(t, ":") {
			keyed++
		}
	}

	switch {
	case keyed == len(texts):
		v := Value{shape: Map, m: make(map[string]string, len(texts))}
		for _, t := range texts {
			k, val, _ := strings.Cut(t, ":")
			if _, dup := v.m[k]; !dup {
				v.keys = append(v.keys, k)
			}
			v.m[k] = val
		}
		return v, nil
	case keyed > 0:
		return Value{}, rpcerr.Decode(nil, "param %q: mixes key:value and plain values", name)
	case len(texts) == 1:
		return TextValue(texts[0]), nil
	default:
		return ListValue(texts...), nil
	}
}
