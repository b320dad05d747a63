package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/api/validators"
	"github.com/iamnithishraja/klinic-sub000/internal/delivery"
	"github.com/iamnithishraja/klinic-sub000/internal/laboratories"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

// profileStore is the shape shared by the laboratory and delivery partner
// profile services. Both key the profile on the caller's user id.
type profileStore[In, Out any] interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (Out, error)
	UpsertProfile(ctx context.Context, userID uuid.UUID, input In) (Out, error)
}

func profileGet[In, Out any](svc profileStore[In, Out], kind string, logg *logger.Logger) http.HandlerFunc {
	return asCaller(logg, unavailable(kind, svc == nil), okResult, func(r *http.Request, userID uuid.UUID) (any, error) {
		return svc.GetProfile(r.Context(), userID)
	})
}

func profileUpsert[In, Out any](svc profileStore[In, Out], kind string, logg *logger.Logger) http.HandlerFunc {
	return asCaller(logg, unavailable(kind, svc == nil), okResult, func(r *http.Request, userID uuid.UUID) (any, error) {
		var input In
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			return nil, err
		}
		return svc.UpsertProfile(r.Context(), userID, input)
	})
}

func LabProfileGet(svc laboratories.Service, logg *logger.Logger) http.HandlerFunc {
	return profileGet[laboratories.ProfileInput, *laboratories.ProfileDTO](svc, "laboratory", logg)
}

func LabProfileUpsert(svc laboratories.Service, logg *logger.Logger) http.HandlerFunc {
	return profileUpsert[laboratories.ProfileInput, *laboratories.ProfileDTO](svc, "laboratory", logg)
}

func DeliveryProfileGet(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return profileGet[delivery.ProfileInput, *delivery.ProfileDTO](svc, "delivery", logg)
}

// DeliveryProfileUpsert replaces the placeholder profile created on first
// assignment.
func DeliveryProfileUpsert(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return profileUpsert[delivery.ProfileInput, *delivery.ProfileDTO](svc, "delivery", logg)
}
