// Package responses renders the JSON envelopes every handler answers with:
// {"success":true,"data":...} or {"success":false,"error":{...}}.
package responses

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

type SuccessEnvelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, SuccessEnvelope{Success: true, Data: data})
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Success: true, Data: data})
}

// WriteMessage adds a short message the app shows as a toast.
func WriteMessage(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, SuccessEnvelope{Success: true, Data: data, Message: message})
}

// clientFacing codes carry a message written for the caller. Anything else
// gets the code's generic public message.
var clientFacing = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:        true,
	pkgerrors.CodeInvalidTransition: true,
	pkgerrors.CodeUnauthorized:      true,
	pkgerrors.CodeForbidden:         true,
	pkgerrors.CodeNotFound:          true,
	pkgerrors.CodeConflict:          true,
	pkgerrors.CodeIdempotency:       true,
	pkgerrors.CodeRateLimit:         true,
}

// WriteError maps err onto its code's HTTP status. Untyped errors become
// INTERNAL_ERROR. With a logger, 5xx are logged as errors and 4xx as warnings.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	code := typed.Code()
	meta := pkgerrors.MetadataFor(code)

	apiErr := APIError{Code: string(code), Message: meta.PublicMessage}
	if clientFacing[code] && typed.Message() != "" {
		apiErr.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		apiErr.Details = typed.Details()
	}

	if logg != nil {
		logFailure(ctx, logg, err, typed, meta.HTTPStatus)
	}
	writeJSON(w, meta.HTTPStatus, ErrorEnvelope{Error: apiErr})
}

func logFailure(ctx context.Context, logg *logger.Logger, err error, typed *pkgerrors.Error, status int) {
	if err == nil {
		err = typed
	}
	fields := pkgerrors.Dump(err).Fields()
	if details, ok := typed.Details().(map[string]any); ok {
		for _, k := range []string{"step", "order_id"} {
			if v, ok := details[k]; ok {
				fields[k] = v
			}
		}
	}
	ctx = logg.WithFields(ctx, fields)
	if status >= http.StatusInternalServerError {
		logg.Error(ctx, "request failed", err)
		return
	}
	logg.Warn(ctx, "request rejected")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Int("status", status).Msg("encode response")
	}
}
