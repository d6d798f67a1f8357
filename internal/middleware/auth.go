package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/reservations/internal/auth"
)

// RequireAdmin lets the request through only with a live admin session and
// populates AuthContext. Failures get a JSON 401.
func RequireAdmin(authn *auth.Authenticator, codec *auth.CookieCodec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := authn.RequireAdmin(r.Context(), codec.TokenFromRequest(r))
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				SessionToken: sess.Token,
				IsAdmin:      sess.IsAdmin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Passthrough is the guard used when authentication is disabled.
func Passthrough(next http.Handler) http.Handler {
	return next
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
