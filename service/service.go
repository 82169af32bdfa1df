package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/mnehpets/httprpc/param"
	"github.com/mnehpets/httprpc/rpcerr"
)

// Param declares one method parameter.
type Param struct {
	Name  string
	Shape Shape
}

// Method describes a callable method: its name, its ordered parameters and
// the function that runs it with coerced arguments.
type Method struct {
	Name    string
	Params  []Param
	Returns Shape
	Invoke  func(ctx context.Context, args Args) (any, error)
}

// Bind coerces decoded request values to the declared parameters. Values
// the method does not declare are ignored.
func (m *Method) Bind(values param.Values) (Args, error) {
	args := make(map[string]any, len(m.Params))
	for _, p := range m.Params {
		v, ok := values.Lookup(p.Name)
		x, err := coerce(p.Name, p.Shape, v, ok)
		if err != nil {
			return Args{}, err
		}
		args[p.Name] = x
	}
	return Args{values: args}, nil
}

// Call binds values and invokes the method. Failures of the method body,
// including panics, are returned as rpcerr invocation errors that wrap the
// original cause.
func (m *Method) Call(ctx context.Context, values param.Values) (any, error) {
	args, err := m.Bind(values)
	if err != nil {
		return nil, err
	}
	return m.invoke(ctx, args)
}

func (m *Method) invoke(ctx context.Context, args Args) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "method panic", "method", m.Name, "panic", r, "stack", string(debug.Stack()))
			result, err = nil, rpcerr.Invocation(m.Name, fmt.Errorf("panic: %v", r))
		}
	}()
	result, err = m.Invoke(ctx, args)
	if err != nil {
		m.discard(ctx, result)
		return nil, rpcerr.Invocation(m.Name, err)
	}
	if m.Returns.kind == KindVoid {
		m.discard(ctx, result)
		return nil, nil
	}
	return result, nil
}

// discard releases a result that is not returned to the caller.
func (m *Method) discard(ctx context.Context, result any) {
	c, ok := result.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		slog.WarnContext(ctx, "discarded result close failed", "method", m.Name, "err", err)
	}
}

// Service is a registry of methods, built once at startup and read by
// every request.
type Service struct {
	mu      sync.RWMutex
	methods map[string]*Method
}

// New creates an empty service.
func New() *Service {
	return &Service{methods: make(map[string]*Method)}
}

// Add registers m. Registering a name twice is a resolution error; method
// names are case-sensitive and cannot be overloaded.
func (s *Service) Add(m Method) error {
	return s.addAll([]Method{m})
}

// addAll registers ms together: if any method is invalid or collides, none
// are added.
func (s *Service) addAll(ms []Method) error {
	for i := range ms {
		if err := ms[i].validate(); err != nil {
			return err
		}
		ms[i].Params = append([]Param(nil), ms[i].Params...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make(map[string]bool, len(ms))
	for _, m := range ms {
		if _, exists := s.methods[m.Name]; exists || batch[m.Name] {
			return rpcerr.Resolution("method name collision: %s", m.Name)
		}
		batch[m.Name] = true
	}
	for _, m := range ms {
		s.methods[m.Name] = &m
	}
	return nil
}

func (m *Method) validate() error {
	if m.Name == "" {
		return rpcerr.Resolution("method has no name")
	}
	if m.Invoke == nil {
		return rpcerr.Resolution("method %s has no Invoke function", m.Name)
	}
	seen := make(map[string]bool, len(m.Params))
	for _, p := range m.Params {
		if p.Name == "" {
			return rpcerr.Resolution("method %s: parameter has no name", m.Name)
		}
		if seen[p.Name] {
			return rpcerr.Resolution("method %s: duplicate parameter %q", m.Name, p.Name)
		}
		if k := p.Shape.kind; !k.scalar() && k != KindList && k != KindMap {
			return rpcerr.Resolution("method %s: parameter %q has shape %s", m.Name, p.Name, p.Shape)
		}
		seen[p.Name] = true
	}
	return nil
}

// Lookup returns the method registered under name.
func (s *Service) Lookup(name string) (*Method, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.methods[name]
	return m, ok
}

// Methods returns the registered methods sorted by name.
func (s *Service) Methods() []*Method {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Method, 0, len(s.methods))
	for _, m := range s.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call resolves name and calls the method with values.
func (s *Service) Call(ctx context.Context, name string, values param.Values) (any, error) {
	m, ok := s.Lookup(name)
	if !ok {
		return nil, rpcerr.Resolution("method not found: %s", name)
	}
	return m.Call(ctx, values)
}
