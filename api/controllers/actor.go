package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/api/middleware"
	"github.com/iamnithishraja/klinic-sub000/api/responses"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

// result describes a successful response. 204 writes no body.
type result struct {
	status  int
	message string
}

var (
	okResult      = result{status: http.StatusOK}
	createdResult = result{status: http.StatusCreated}
)

type callerAction func(r *http.Request, userID uuid.UUID) (any, error)

// unavailable returns the error a handler reports when its backing service
// was not wired, or nil when it was.
func unavailable(kind string, missing bool) error {
	if !missing {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInternal, kind+" service unavailable")
}

func public(logg *logger.Logger, down error, out result, do func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if down != nil {
			render(w, r, logg, out, nil, down)
			return
		}
		body, err := do(r)
		render(w, r, logg, out, body, err)
	}
}

// asCaller resolves the authenticated user before running do.
func asCaller(logg *logger.Logger, down error, out result, do callerAction) http.HandlerFunc {
	return public(logg, down, out, func(r *http.Request) (any, error) {
		userID, err := callerID(r)
		if err != nil {
			return nil, err
		}
		return do(r, userID)
	})
}

func render(w http.ResponseWriter, r *http.Request, logg *logger.Logger, out result, body any, err error) {
	switch {
	case err != nil:
		responses.WriteError(r.Context(), logg, w, err)
	case out.status == http.StatusNoContent:
		w.WriteHeader(http.StatusNoContent)
	case out.message != "":
		responses.WriteMessage(w, out.status, body, out.message)
	default:
		responses.WriteSuccessStatus(w, out.status, body)
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return id, nil
}
