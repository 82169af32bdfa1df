package service

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/mnehpets/httprpc/rpcerr"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Register adds the exported methods of receiver. The namespace prefixes
// method names ("catalog" + "Items" -> "catalog.Items"); use "" for no
// prefix.
//
// A method is registered when its signature is one of
//
//	func(ctx context.Context, params P) (R, error)
//	func(ctx context.Context, params P) error
//
// where P is a struct. Other exported methods are skipped. Each exported
// field of P is a parameter, named by its `param` tag or else by the
// lowerCamel form of the field name:
//
//	type ItemsParams struct {
//	    _        struct{} `method:"items"` // overrides the method name
//	    Category string                    // "category"
//	    Limit    *int     `param:"max"`   // optional int
//	    Tags     []string                  // list of strings
//	    Skip     string   `param:"-"`     // not a parameter
//	}
//
// Field types map to shapes: string, integer, float and bool kinds become
// scalars, slices of those become lists, and maps with string keys become
// maps. Non-pointer integer, float and bool fields are required; pointer
// and string fields may be null. The tag options "required" and "optional"
// override the default.
//
// The descriptor for each method is built here, once; calls only assign
// coerced values and invoke. An invalid parameter type or a name collision
// fails the whole registration and leaves s unchanged.
func (s *Service) Register(namespace string, receiver any) error {
	val := reflect.ValueOf(receiver)
	typ := val.Type()

	var ms []Method
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		if !method.IsExported() {
			continue
		}
		m, err := parseMethod(val, method)
		if err != nil {
			return err
		}
		if m == nil {
			continue
		}
		if namespace != "" {
			m.Name = namespace + "." + m.Name
		}
		ms = append(ms, *m)
	}
	return s.addAll(ms)
}

type fieldBinding struct {
	index int
	name  string
}

// parseMethod builds a descriptor from a method's signature. It returns
// nil for methods whose signature does not qualify.
func parseMethod(receiver reflect.Value, method reflect.Method) (*Method, error) {
	ft := method.Func.Type()

	if ft.NumIn() != 3 || ft.In(1) != contextType {
		return nil, nil
	}
	returns := Any
	switch {
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	case ft.NumOut() == 1 && ft.Out(0) == errorType:
		returns = Void
	default:
		return nil, nil
	}
	paramType := ft.In(2)
	if paramType.Kind() != reflect.Struct {
		return nil, nil
	}

	m := &Method{Name: method.Name, Returns: returns}
	var bindings []fieldBinding
	for i := 0; i < paramType.NumField(); i++ {
		field := paramType.Field(i)
		if field.Name == "_" {
			if tag := field.Tag.Get("method"); tag != "" {
				m.Name = tag
			}
			continue
		}
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("param")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = strcase.ToLowerCamel(field.Name)
		}
		shape, err := fieldShape(field.Type)
		if err != nil {
			return nil, rpcerr.Resolution("method %s: field %s: %v", method.Name, field.Name, err)
		}
		for _, opt := range strings.Split(opts, ",") {
			switch opt {
			case "required":
				shape.required = true
			case "optional":
				shape.required = false
			}
		}
		m.Params = append(m.Params, Param{Name: name, Shape: shape})
		bindings = append(bindings, fieldBinding{index: i, name: name})
	}

	fn := method.Func
	m.Invoke = func(ctx context.Context, args Args) (any, error) {
		p := reflect.New(paramType).Elem()
		for _, b := range bindings {
			setField(p.Field(b.index), args.values[b.name])
		}
		out := fn.Call([]reflect.Value{receiver, reflect.ValueOf(ctx), p})
		errv := out[len(out)-1]
		if !errv.IsNil() {
			return nil, errv.Interface().(error)
		}
		if len(out) == 1 {
			return nil, nil
		}
		return out[0].Interface(), nil
	}
	return m, nil
}

func scalarShape(t reflect.Type) (Shape, bool) {
	switch t.Kind() {
	case reflect.String:
		return String, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Shape{kind: KindInt, bits: t.Bits()}, true
	case reflect.Float32, reflect.Float64:
		return Shape{kind: KindFloat, bits: t.Bits()}, true
	case reflect.Bool:
		return Bool, true
	}
	return Shape{}, false
}

func fieldShape(t reflect.Type) (Shape, error) {
	if t.Kind() == reflect.Pointer {
		s, ok := scalarShape(t.Elem())
		if !ok {
			return Shape{}, fmt.Errorf("unsupported parameter type %s", t)
		}
		return s, nil
	}
	if s, ok := scalarShape(t); ok {
		s.required = s.kind != KindString
		return s, nil
	}
	switch t.Kind() {
	case reflect.Slice:
		if elem, ok := scalarShape(t.Elem()); ok {
			return List(elem), nil
		}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			break
		}
		if elem, ok := scalarShape(t.Elem()); ok {
			return Map(elem), nil
		}
	}
	return Shape{}, fmt.Errorf("unsupported parameter type %s", t)
}

// setField assigns a coerced value to a parameter field. A nil value
// leaves the field at its zero value.
func setField(f reflect.Value, x any) {
	if x == nil {
		return
	}
	switch f.Kind() {
	case reflect.Pointer:
		p := reflect.New(f.Type().Elem())
		setField(p.Elem(), x)
		f.Set(p)
	case reflect.String:
		f.SetString(x.(string))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f.SetInt(x.(int64))
	case reflect.Float32, reflect.Float64:
		f.SetFloat(x.(float64))
	case reflect.Bool:
		f.SetBool(x.(bool))
	case reflect.Slice:
		xs := x.([]any)
		s := reflect.MakeSlice(f.Type(), len(xs), len(xs))
		for i, elem := range xs {
			setField(s.Index(i), elem)
		}
		f.Set(s)
	case reflect.Map:
		m := x.(map[string]any)
		mv := reflect.MakeMapWithSize(f.Type(), len(m))
		for k, v := range m {
			elem := reflect.New(f.Type().Elem()).Elem()
			setField(elem, v)
			mv.SetMapIndex(reflect.ValueOf(k).Convert(f.Type().Key()), elem)
		}
		f.Set(mv)
	}
}
