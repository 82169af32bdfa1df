package service

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/mnehpets/httprpc/param"
	"github.com/mnehpets/httprpc/rpcerr"
)

// coerce converts the decoded value of the parameter name to shape s. ok
// is false when the request omitted the parameter.
//
// Results are nil, string, int64, float64, bool, []any or map[string]any.
func coerce(name string, s Shape, v param.Value, ok bool) (any, error) {
	switch s.kind {
	case KindList:
		if !ok {
			return []any{}, nil
		}
		var texts []string
		switch v.Shape() {
		case param.Text:
			texts = []string{v.Text()}
		case param.List:
			texts = v.List()
		default:
			return nil, rpcerr.Coercion(nil, "parameter %q: %s value for %s", name, v.Shape(), s)
		}
		out := make([]any, len(texts))
		for i, text := range texts {
			x, err := coerceText(name, s.elemShape(), text)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil

	case KindMap:
		if !ok {
			return map[string]any{}, nil
		}
		if v.Shape() != param.Map {
			return nil, rpcerr.Coercion(nil, "parameter %q: %s value for %s", name, v.Shape(), s)
		}
		m := v.Map()
		out := make(map[string]any, len(m))
		for k, text := range m {
			x, err := coerceText(name+"."+k, s.elemShape(), text)
			if err != nil {
				return nil, err
			}
			out[k] = x
		}
		return out, nil
	}

	if !s.kind.scalar() {
		return nil, rpcerr.Coercion(nil, "parameter %q: %s is not a parameter shape", name, s)
	}
	if !ok {
		if s.required {
			return nil, rpcerr.Coercion(nil, "parameter %q: required %s is missing", name, s.kind)
		}
		return nil, nil
	}
	if v.Shape() != param.Text {
		return nil, rpcerr.Coercion(nil, "parameter %q: %s value for %s", name, v.Shape(), s)
	}
	return coerceText(name, s, v.Text())
}

func coerceText(name string, s Shape, text string) (any, error) {
	switch s.kind {
	case KindString:
		return text, nil

	case KindInt:
		bits := s.bits
		if bits == 0 {
			bits = 64
		}
		i, err := strconv.ParseInt(text, 10, bits)
		if errors.Is(err, strconv.ErrRange) {
			return nil, rpcerr.Coercion(err, "parameter %q: %q is out of range for int%d", name, text, bits)
		}
		if err != nil {
			return nil, rpcerr.Coercion(err, "parameter %q: %q is not an integer", name, text)
		}
		return i, nil

	case KindFloat:
		bits := s.bits
		if bits == 0 {
			bits = 64
		}
		// ParseFloat also accepts hex mantissas, underscores and named
		// infinities, none of which are decimal syntax.
		if strings.ContainsAny(text, "xXpP_iInN") {
			return nil, rpcerr.Coercion(nil, "parameter %q: %q is not a decimal number", name, text)
		}
		f, err := strconv.ParseFloat(text, bits)
		if errors.Is(err, strconv.ErrRange) && math.IsInf(f, 0) {
			return nil, rpcerr.Coercion(err, "parameter %q: %q is out of range", name, text)
		}
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, rpcerr.Coercion(err, "parameter %q: %q is not a number", name, text)
		}
		return f, nil

	case KindBool:
		switch text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, rpcerr.Coercion(nil, "parameter %q: %q is not true or false", name, text)
	}
	return nil, rpcerr.Coercion(nil, "parameter %q: cannot coerce text to %s", name, s)
}
