package orders

import (
	"net/http"

	"github.com/iamnithishraja/klinic-sub000/api/validators"
	internalorders "github.com/iamnithishraja/klinic-sub000/internal/orders"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

type rejectDeliveryRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type deliveryStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=out_for_delivery delivered"`
}

// DeliveryList lists orders assigned to the calling partner, optionally
// bounded by from/to dates.
func DeliveryList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(svc, logg, plain, func(r *http.Request, actor internalorders.Actor) (any, error) {
		params, status, err := listQuery(r)
		if err != nil {
			return nil, err
		}
		filters := internalorders.DeliveryOrderFilters{Status: status}
		if filters.From, err = validators.ParseQueryTime(r, "from", false); err != nil {
			return nil, err
		}
		if filters.To, err = validators.ParseQueryTime(r, "to", true); err != nil {
			return nil, err
		}
		if filters.From != nil && filters.To != nil && filters.To.Before(*filters.From) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from")
		}
		return svc.ListDeliveryOrders(r.Context(), actor.UserID, filters, params)
	})
}

// Accept takes an assigned delivery.
func Accept(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(svc, logg, withMessage("delivery accepted"), func(r *http.Request, actor internalorders.Actor) (any, error) {
		id, err := orderID(r)
		if err != nil {
			return nil, err
		}
		return svc.AcceptDelivery(r.Context(), id, actor.UserID)
	})
}

// Reject declines an assigned delivery with a reason.
func Reject(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(svc, logg, withMessage("delivery rejected"), func(r *http.Request, actor internalorders.Actor) (any, error) {
		id, body, err := orderBody[rejectDeliveryRequest](r)
		if err != nil {
			return nil, err
		}
		reason := validators.SanitizeReason(body.Reason)
		if reason == "" {
			return nil, fieldError("reason", "reason is required")
		}
		return svc.RejectDelivery(r.Context(), id, actor.UserID, reason)
	})
}

// DeliveryStatus moves an accepted delivery to out_for_delivery or delivered.
func DeliveryStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(svc, logg, plain, func(r *http.Request, actor internalorders.Actor) (any, error) {
		id, body, err := orderBody[deliveryStatusRequest](r)
		if err != nil {
			return nil, err
		}
		return svc.UpdateDeliveryStatus(r.Context(), id, actor.UserID, enums.OrderStatus(body.Status))
	})
}
