package transport

import (
	"context"
	"net/http"
	"strings"
)

// UsernameHeader carries the display name set by the external auth layer.
const UsernameHeader = "X-Username"

type usernameKey struct{}

// UsernameFromContext returns the username from context, if present.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey{}).(string)
	return username, ok
}

// UsernameMiddleware stores the X-Username header in context. Authentication
// happens upstream; the header is trusted as-is.
func UsernameMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.Header.Get(UsernameHeader))
		if username != "" {
			ctx := context.WithValue(r.Context(), usernameKey{}, username)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		next.ServeHTTP(w, r)
	})
}
