package middleware

import (
	"net/http"
	"strings"

	"github.com/iamnithishraja/klinic-sub000/api/responses"
	pkgAuth "github.com/iamnithishraja/klinic-sub000/pkg/auth"
	"github.com/iamnithishraja/klinic-sub000/pkg/auth/session"
	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

// Auth admits requests carrying a valid access token whose session is still
// live. Websocket upgrades cannot set headers from a browser, so the token is
// also read from the access_token query parameter.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(r, cfg, sessions)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			userID, role, jti := claims.Actor()
			ctx := WithAccessID(WithRole(WithUserID(r.Context(), userID.String()), role), jti)
			if logg != nil {
				ctx = logg.WithActorRole(logg.WithUserID(ctx, userID.String()), string(role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, sessions session.AccessSessionChecker) (*pkgAuth.AccessTokenClaims, error) {
	token := accessToken(r)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if sessions == nil {
		return claims, nil
	}
	live, err := sessions.HasSession(r.Context(), claims.ID)
	switch {
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	case !live:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
	}
	return claims, nil
}

func accessToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	if scheme, rest, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	return raw
}
