package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/digimart-backend/api/responses"
	pkgAuth "github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

// bearerToken extracts the credential from an Authorization header. The scheme is
// matched case-insensitively and a bare token is accepted.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	scheme, rest, _ := strings.Cut(header, " ")
	if strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	return header
}

// Auth verifies the bearer token, stores the actor on the context and tags the
// request logger with who is calling.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			actor := claims.Actor()
			ctx = WithActor(ctx, actor)
			if logg != nil {
				fields := map[string]any{"user_id": actor.UserID.String(), "actor_role": string(actor.Role)}
				if actor.ShopID != nil {
					fields["shop_id"] = actor.ShopID.String()
				}
				ctx = logg.WithFields(ctx, fields)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
