// Package principal carries the authenticated caller through a context.
//
// It is the context-scoped counterpart of a thread-bound security holder:
// the scheduler only reads it, to attribute who registered or removed a
// trigger.
package principal

import (
	"context"
	"strings"
)

// System is the name attributed to work with no principal in context.
const System = "system"

// Principal identifies an authenticated caller.
type Principal struct {
	Name string
}

type ctxKey struct{}

// WithPrincipal returns a copy of ctx carrying p. An empty name clears it.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if strings.TrimSpace(p.Name) == "" {
		return context.WithValue(ctx, ctxKey{}, (*Principal)(nil))
	}
	cp := Principal{Name: strings.TrimSpace(p.Name)}
	return context.WithValue(ctx, ctxKey{}, &cp)
}

// Current returns the principal in ctx, if any.
func Current(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, _ := ctx.Value(ctxKey{}).(*Principal)
	if p == nil {
		return Principal{}, false
	}
	return *p, true
}

// Name returns the current principal's name, or System.
func Name(ctx context.Context) string {
	if p, ok := Current(ctx); ok {
		return p.Name
	}
	return System
}
