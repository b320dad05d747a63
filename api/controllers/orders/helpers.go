package orders

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/api/middleware"
	"github.com/iamnithishraja/klinic-sub000/api/responses"
	"github.com/iamnithishraja/klinic-sub000/api/validators"
	internalorders "github.com/iamnithishraja/klinic-sub000/internal/orders"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

// reply controls how a successful result is rendered. An empty message
// writes the bare success envelope.
type reply struct {
	status  int
	message string
}

var plain = reply{status: http.StatusOK}

func withMessage(message string) reply {
	return reply{status: http.StatusOK, message: message}
}

type call func(r *http.Request, actor internalorders.Actor) (any, error)

// serve runs fn and renders either its result or its error.
func serve(logg *logger.Logger, out reply, fn func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := fn(r)
		switch {
		case err != nil:
			responses.WriteError(r.Context(), logg, w, err)
		case out.message != "":
			responses.WriteMessage(w, out.status, result, out.message)
		default:
			responses.WriteSuccessStatus(w, out.status, result)
		}
	}
}

// endpoint is serve for handlers backed by the orders service that act on
// behalf of the authenticated caller.
func endpoint(svc internalorders.Service, logg *logger.Logger, out reply, fn call) http.HandlerFunc {
	return serve(logg, out, func(r *http.Request) (any, error) {
		if svc == nil {
			return nil, serviceUnavailable()
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			return nil, err
		}
		return fn(r, actor)
	})
}

func actorFromRequest(r *http.Request) (internalorders.Actor, error) {
	userID, role, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return internalorders.Actor{UserID: userID, Role: role}, nil
}

func serviceUnavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable")
}

func orderID(r *http.Request) (uuid.UUID, error) {
	return validators.ParseUUIDParam(r, "orderId")
}

// orderBody parses the order id route param and then the JSON body.
func orderBody[T any](r *http.Request) (uuid.UUID, T, error) {
	var body T
	id, err := orderID(r)
	if err != nil {
		return uuid.Nil, body, err
	}
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return uuid.Nil, body, err
	}
	return id, body, nil
}

func parseRefID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+what+" id")
	}
	return id, nil
}

func fieldError(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{"field": field})
}
