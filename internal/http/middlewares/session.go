package middlewares

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/idmirror/internal/http/errors"
)

// WithSession valida el Bearer JWT de sesión (HS256) y deja el provider id
// (claim sub) en el contexto. Las rutas autenticadas (change-password) van
// detrás de este middleware; las públicas no lo usan.
func WithSession(secret []byte, issuer string) Middleware {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				errors.WriteError(w, r, errors.ErrTokenMissing)
				return
			}
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok {
				errors.WriteError(w, r, errors.ErrTokenInvalid.WithDetail("expected Bearer scheme"))
				return
			}

			claims := jwt.RegisteredClaims{}
			if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (interface{}, error) {
				return secret, nil
			}); err != nil {
				errors.WriteError(w, r, errors.ErrTokenInvalid.WithCause(err))
				return
			}
			if claims.Subject == "" {
				errors.WriteError(w, r, errors.ErrTokenInvalid.WithDetail("missing sub claim"))
				return
			}

			ctx := setProviderID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
