package auth

import (
	"net/http"

	"github.com/mind-engage/mindengage-learn/internal/rbac"
)

// RequireKnownRole rejects tokens whose role the gateway has no permissions
// for. Runs after JWTMiddleware.
func RequireKnownRole(c *rbac.Checker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := rbac.RoleFromContext(r.Context())
			if role == "" || !c.Known(role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
