package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/tabletloan-backend/api/responses"
	pkgAuth "github.com/angelmondragon/tabletloan-backend/pkg/auth"
	"github.com/angelmondragon/tabletloan-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the operator.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			operator := claims.Identity()
			if operator == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing operator"))
				return
			}

			ctx := pkgAuth.WithOperator(r.Context(), operator)
			if logg != nil {
				ctx = logg.WithUserID(ctx, operator)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
