package auth

import (
	"net/http"
	"strings"

	"github.com/iamnithishraja/klinic-sub000/api/middleware"
	"github.com/iamnithishraja/klinic-sub000/api/responses"
	"github.com/iamnithishraja/klinic-sub000/api/validators"
	"github.com/iamnithishraja/klinic-sub000/internal/auth"
	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

var errUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")

// action is the body of a JSON auth endpoint after decoding.
type action[T any] func(r *http.Request, body T) (any, error)

// jsonEndpoint decodes T, runs do and writes its result with status.
func jsonEndpoint[T any](logg *logger.Logger, ready bool, status int, do action[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ready {
			responses.WriteError(r.Context(), logg, w, errUnavailable)
			return
		}
		var body T
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := do(r, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if status == http.StatusCreated {
			responses.WriteMessage(w, status, out, "account created")
			return
		}
		responses.WriteSuccessStatus(w, status, out)
	}
}

func Login(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return jsonEndpoint(logg, svc != nil, http.StatusOK, func(r *http.Request, body auth.LoginRequest) (any, error) {
		return svc.Login(r.Context(), body)
	})
}

// Register creates a patient, provider or delivery account and signs it in.
func Register(reg auth.RegisterService, svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return jsonEndpoint(logg, reg != nil && svc != nil, http.StatusCreated, func(r *http.Request, body auth.RegisterRequest) (any, error) {
		if _, err := reg.Register(r.Context(), body); err != nil {
			return nil, err
		}
		return svc.Login(r.Context(), auth.LoginRequest{Email: body.Email, Password: body.Password})
	})
}

// AdminRegister is refused in production.
func AdminRegister(adminRegister auth.AdminRegisterService, svc auth.Service, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	inner := jsonEndpoint(logg, adminRegister != nil && svc != nil, http.StatusCreated, func(r *http.Request, body auth.AdminRegisterRequest) (any, error) {
		if _, err := adminRegister.Register(r.Context(), body); err != nil {
			return nil, err
		}
		return svc.Login(r.Context(), auth.LoginRequest{Email: body.Email, Password: body.Password})
	})
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.App.IsProd() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin register disabled in production"))
			return
		}
		inner(w, r)
	}
}

// Refresh rotates the refresh token. The access token may already be expired;
// only its jti is needed to find the session.
func Refresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return jsonEndpoint(logg, svc != nil, http.StatusOK, func(r *http.Request, body auth.RefreshRequest) (any, error) {
		access := bearerToken(r)
		if access == "" {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing access token")
		}
		return svc.Refresh(r.Context(), access, body)
	})
}

func Logout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, errUnavailable)
			return
		}
		if err := svc.Logout(r.Context(), middleware.AccessIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, nil, "logged out")
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = raw[7:]
	}
	return strings.TrimSpace(raw)
}
