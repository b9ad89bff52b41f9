package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/P-U-C/b1e55ed/pkg/identity"
)

type claimsKey struct{}

// Authenticate validates the request's Bearer token via tokens and injects
// the resulting claims into the request context. health is exempt so a
// load balancer doesn't need a credential to poll liveness.
func Authenticate(tokens *identity.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				writeJSONError(w, http.StatusUnauthorized, "Unauthenticated", ErrUnauthenticated.Error())
				return
			}

			claims, err := tokens.ValidateToken(parts[1])
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "Unauthenticated", ErrUnauthenticated.Error())
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts the claims Authenticate injected. The second
// return is false if called on a request that never passed through
// Authenticate (a bug in route wiring, not a runtime condition to recover
// from gracefully).
func ClaimsFromContext(ctx context.Context) (*identity.IdentityClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*identity.IdentityClaims)
	return claims, ok
}
