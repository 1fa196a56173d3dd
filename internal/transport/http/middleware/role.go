package middleware

import (
	"net/http"
	"slices"

	"github.com/abytech-hub/notification-core/internal/domain"
)

// RequireRecipientType lets a request through only when the caller's token
// carries one of the allowed recipient types. It must run after Auth.
func RequireRecipientType(allowed ...domain.RecipientType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			switch {
			case !ok:
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			case !slices.Contains(allowed, claims.UserType):
				writeJSONError(w, http.StatusForbidden, "forbidden")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
