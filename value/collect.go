package value

import "errors"

// Collect drains v into plain Go values: nil, bool, int64, uint64, float64,
// string, []any and map[string]any. Every Sequence and Mapping reached is
// closed. Collect materializes the whole tree and is meant for small
// values such as a single record.
func Collect(v Value) (out any, err error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case Scalar:
		return x.Interface(), nil
	case *Sequence:
		defer func() {
			err = errors.Join(err, x.Close())
		}()
		list := []any{}
		for {
			elem, ok, err := x.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				return list, nil
			}
			c, err := Collect(elem)
			if err != nil {
				return nil, err
			}
			list = append(list, c)
		}
	case *Mapping:
		defer func() {
			err = errors.Join(err, x.Close())
		}()
		m := map[string]any{}
		for {
			e, ok, err := x.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				return m, nil
			}
			c, err := Collect(e.Value)
			if err != nil {
				return nil, err
			}
			m[e.Key] = c
		}
	}
	return nil, errors.New("value: unknown value type")
}
