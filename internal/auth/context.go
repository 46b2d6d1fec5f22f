// ABOUTME: Request context helpers for the authenticated caller identity
// ABOUTME: The HTTP middleware stores the caller; handlers read it back

package auth

import (
	"context"

	"github.com/2389/coven-acl/internal/identity"
)

// callerContextKey is the key type for storing the caller in context.Context.
type callerContextKey struct{}

// WithCaller returns a new context carrying the authenticated caller.
func WithCaller(ctx context.Context, caller identity.Identity) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (identity.Identity, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(identity.Identity)
	if !ok || caller.IsNull() {
		return identity.Null, false
	}
	return caller, true
}

// MustCallerFromContext returns the caller, panicking if the request was not
// authenticated. Only use behind Middleware.
func MustCallerFromContext(ctx context.Context) identity.Identity {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		panic("auth: caller not found in context")
	}
	return caller
}
