package service

import "fmt"

// Kind is the category of a declared parameter or return shape.
type Kind int

const (
	KindVoid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindAny:
		return "any"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) scalar() bool {
	return k == KindString || k == KindInt || k == KindFloat || k == KindBool
}

// Shape declares what a parameter accepts or a method returns.
//
// Parameter shapes are scalars, or lists and maps of a scalar element. A
// required scalar cannot hold null, so leaving it out of a request is a
// coercion error. Collections are never null: an absent collection is
// empty.
type Shape struct {
	kind     Kind
	elem     Kind
	required bool
	// bits narrows Int and Float to a Go field size; zero means 64.
	bits int
}

// Predeclared shapes.
var (
	Void   = Shape{kind: KindVoid}
	Any    = Shape{kind: KindAny}
	String = Shape{kind: KindString}
	Int    = Shape{kind: KindInt}
	Float  = Shape{kind: KindFloat}
	Bool   = Shape{kind: KindBool}
)

// List returns the shape of a list of elem, which must be a scalar shape.
func List(elem Shape) Shape {
	if !elem.kind.scalar() {
		panic("service: list element must be a scalar shape, got " + elem.String())
	}
	return Shape{kind: KindList, elem: elem.kind, bits: elem.bits}
}

// Map returns the shape of a string-keyed map of elem, which must be a
// scalar shape.
func Map(elem Shape) Shape {
	if !elem.kind.scalar() {
		panic("service: map element must be a scalar shape, got " + elem.String())
	}
	return Shape{kind: KindMap, elem: elem.kind, bits: elem.bits}
}

// Required returns a copy of s that cannot hold null.
func (s Shape) Required() Shape {
	s.required = true
	return s
}

func (s Shape) Kind() Kind       { return s.kind }
func (s Shape) Elem() Kind       { return s.elem }
func (s Shape) IsRequired() bool { return s.required }

func (s Shape) String() string {
	var str string
	switch s.kind {
	case KindList, KindMap:
		str = fmt.Sprintf("%s<%s>", s.kind, s.elem)
	default:
		str = s.kind.String()
	}
	if s.required {
		str = "required " + str
	}
	return str
}

func (s Shape) elemShape() Shape {
	return Shape{kind: s.elem, bits: s.bits}
}
