// internal/auth/middleware.go
//
// Resolves the session cookie into a context Principal once per
// request.  Anonymous requests pass through untouched; route handlers
// that need identity call RequirePrincipal or check auth.From
// themselves.

package auth

import (
	"net/http"

	"github.com/yanizio/hoster/internal/session"
)

// Middleware attaches the verified session principal to the request
// context.
func Middleware(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, admin, ok := store.Current(r); ok {
				r = r.WithContext(WithPrincipal(r.Context(), Principal{ID: id, Admin: admin}))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePrincipal rejects anonymous requests with 401 before the
// wrapped handler runs.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := From(r.Context()); !ok {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
