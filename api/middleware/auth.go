// api/middleware/auth.go
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sportsfesthq/sportsfest-backend/api/responses"
	pkgerrors "github.com/sportsfesthq/sportsfest-backend/pkg/errors"
	"github.com/sportsfesthq/sportsfest-backend/pkg/logger"
)

// BearerToken guards admin routes with a shared-secret bearer token.
func BearerToken(token string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeInternal, "admin token not configured"))
				return
			}

			header := r.Header.Get("Authorization")
			presented, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token required"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
