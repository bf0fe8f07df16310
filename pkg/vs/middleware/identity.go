package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const (
	// UserKey is the context key for the acting user identifier.
	UserKey = contextKey("user")

	// RoleKey is the context key for the acting user's role.
	RoleKey = contextKey("role")

	// UserHeader carries the verified user identifier set by the upstream
	// authentication layer.
	UserHeader = "X-Verso-User"

	// RoleHeader carries the verified role set by the upstream
	// authentication layer.
	RoleHeader = "X-Verso-Role"
)

// Identity lifts the verified identity headers into the request context.
// Authentication itself happens upstream; this service trusts the headers
// it receives from that layer and only needs them for role gating and audit
// logging. Requests without the headers proceed anonymously.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if user := r.Header.Get(UserHeader); user != "" {
				ctx = context.WithValue(ctx, UserKey, user)
			}
			if role := r.Header.Get(RoleHeader); role != "" {
				ctx = context.WithValue(ctx, RoleKey, role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose verified role does not match any of the
// allowed roles. Use on routes that mutate content.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetRole(r.Context())
			if role == "" {
				forbidden(w, "Missing verified identity")
				return
			}
			if _, ok := allowed[role]; !ok {
				forbidden(w, "Insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUser extracts the acting user identifier from the context.
func GetUser(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if user, ok := ctx.Value(UserKey).(string); ok {
		return user
	}
	return ""
}

// GetRole extracts the acting user's role from the context.
func GetRole(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if role, ok := ctx.Value(RoleKey).(string); ok {
		return role
	}
	return ""
}

func forbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "forbidden",
			"message": message,
		},
	})
}

// DefaultStack applies the default middleware stack to a router.
func DefaultStack(r chi.Router) {
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(Identity())
}
