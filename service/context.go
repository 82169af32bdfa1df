package service

import (
	"context"
	"time"
)

// Completion reports how one call ended, after its result has been fully
// written or the call has failed.
type Completion struct {
	Method   string
	Err      error
	Duration time.Duration
}

type completionKey struct{}

// WithCompletion returns a context whose call reports to fn when it
// completes. The callback is scoped to calls made with the returned
// context; there is no process-wide hook. A callback already carried by
// ctx fires first.
func WithCompletion(ctx context.Context, fn func(Completion)) context.Context {
	if prev, ok := ctx.Value(completionKey{}).(func(Completion)); ok && prev != nil {
		inner := fn
		fn = func(c Completion) {
			prev(c)
			inner(c)
		}
	}
	return context.WithValue(ctx, completionKey{}, fn)
}

// Complete fires the completion callback carried by ctx, if any.
func Complete(ctx context.Context, c Completion) {
	if fn, ok := ctx.Value(completionKey{}).(func(Completion)); ok && fn != nil {
		fn(c)
	}
}

// Principal identifies the authenticated caller.
type Principal struct {
	Subject string   `cbor:"sub"`
	Roles   []string `cbor:"roles,omitempty"`
}

// HasRole reports whether p carries role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type principalKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller attached by an authentication
// processor.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
