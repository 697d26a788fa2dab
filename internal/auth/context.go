// internal/auth/context.go
//
// Principal-in-context helpers.
//
// The authentication protocol itself lives outside this service; all the
// core consumes is "an authenticated principal with an identity".  The
// middleware resolves the session cookie once per request and stores a
// Principal here; handlers read it back with From.
//
// Usage
// -----
//     ctx = auth.WithPrincipal(ctx, auth.Principal{ID: 123})
//     p, ok := auth.From(ctx)   // {123 false}, true

package auth

import "context"

// Principal identifies the authenticated caller.  Admin unlocks the
// administrative registry view and delete-any-site.
type Principal struct {
	ID    int64
	Admin bool
}

// principalKey is unexported to avoid context-key collisions.
type principalKey struct{}

// WithPrincipal returns a new context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// From extracts the Principal from ctx.  ok == false for anonymous
// requests.
func From(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
