package mcp

import (
	"context"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type contextKey int

const usernameKey contextKey = iota

// getUsername extracts the display name from context.
func getUsername(ctx context.Context) string {
	v, _ := ctx.Value(usernameKey).(string)
	return v
}

// usernameMiddleware extracts the display name from the X-Username header
// (HTTP) or _meta.username (stdio).
func usernameMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			var username string

			extra := req.GetExtra()
			if extra != nil && extra.Header != nil {
				username = strings.TrimSpace(extra.Header.Get("X-Username"))
			}

			// Some notifications have nil params; GetMeta panics on a nil
			// underlying value.
			if username == "" {
				if params := req.GetParams(); params != nil {
					func() {
						defer func() { recover() }()
						if meta := params.GetMeta(); meta != nil {
							if name, ok := meta["username"].(string); ok {
								username = name
							}
						}
					}()
				}
			}

			if username != "" {
				ctx = context.WithValue(ctx, usernameKey, username)
			}

			return next(ctx, method, req)
		}
	}
}
