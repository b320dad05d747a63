package orders

import (
	"net/http"

	"github.com/iamnithishraja/klinic-sub000/api/validators"
	internalorders "github.com/iamnithishraja/klinic-sub000/internal/orders"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/pagination"
)

type createOrderRequest struct {
	Items          []internalorders.CartLine `json:"items" validate:"omitempty,dive"`
	Prescription   *string                   `json:"prescription,omitempty" validate:"omitempty,max=2048"`
	Notes          *string                   `json:"notes,omitempty" validate:"omitempty,max=2000"`
	NeedAssignment bool                      `json:"need_assignment"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type assignDeliveryRequest struct {
	DeliveryPartnerID string `json:"delivery_partner_id" validate:"required,uuid"`
}

// listQuery reads the paging window and optional status filter every order
// listing accepts.
func listQuery(r *http.Request) (pagination.Params, *enums.OrderStatus, error) {
	params, err := validators.ParsePagination(r)
	if err != nil {
		return pagination.Params{}, nil, err
	}
	status, err := validators.ParseQueryOrderStatus(r, "status")
	return params, status, err
}

// Create splits a prepaid cart into one order per laboratory.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return create(svc, false, logg)
}

// CreateCOD is Create for cash on delivery checkouts.
func CreateCOD(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return create(svc, true, logg)
}

func create(svc internalorders.Service, cod bool, logg *logger.Logger) http.HandlerFunc {
	created := reply{status: http.StatusCreated, message: "orders created"}
	return endpoint(svc, logg, created, func(r *http.Request, actor internalorders.Actor) (any, error) {
		var body createOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.CreateMultiLabOrders(r.Context(), internalorders.CreateOrdersInput{
			OrderedBy:      actor.UserID,
			Lines:          body.Items,
			Prescription:   body.Prescription,
			Notes:          body.Notes,
			COD:            cod,
			NeedAssignment: body.NeedAssignment,
		})
	})
}

// Mine lists the caller's orders as a patient.
func Mine(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(svc, logg, plain, func(r *http.Request, actor internalorders.Actor) (any, error) {
		params, status, err := listQuery(r)
		if err != nil {
			return nil, err
		}
		return svc.ListPatientOrders(r.Context(), actor.UserID, internalorders.PatientOrderFilters{Status: status}, params)
	})
}

// LabList lists a laboratory's orders. scope=unassigned returns the claimable pool.
func LabList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(svc, logg, plain, func(r *http.Request, actor internalorders.Actor) (any, error) {
		params, status, err := listQuery(r)
		if err != nil {
			return nil, err
		}
		scope, ok := internalorders.ParseLabScope(r.URL.Query().Get("scope"))
		if !ok {
			return nil, fieldError("scope", "scope must be assigned, unassigned or all")
		}
		return svc.ListLabOrders(r.Context(), actor.UserID, internalorders.LabOrderFilters{Status: status, Scope: scope}, params)
	})
}

// Detail returns one order if the caller participates in it.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(svc, logg, plain, func(r *http.Request, actor internalorders.Actor) (any, error) {
		id, err := orderID(r)
		if err != nil {
			return nil, err
		}
		return svc.GetOrder(r.Context(), id, actor)
	})
}

// UpdateStatus applies a role-routed status transition.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(svc, logg, plain, func(r *http.Request, actor internalorders.Actor) (any, error) {
		id, body, err := orderBody[updateStatusRequest](r)
		if err != nil {
			return nil, err
		}
		status, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"})
		}
		return svc.UpdateStatus(r.Context(), internalorders.UpdateStatusInput{
			OrderID: id,
			Actor:   actor,
			Status:  status,
			Reason:  validators.SanitizeReason(body.Reason),
		})
	})
}

// Claim assigns an unassigned order to the calling laboratory.
func Claim(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(svc, logg, withMessage("order claimed"), func(r *http.Request, actor internalorders.Actor) (any, error) {
		id, err := orderID(r)
		if err != nil {
			return nil, err
		}
		return svc.ClaimOrder(r.Context(), id, actor.UserID)
	})
}

// AssignDelivery hands an order to a delivery partner. Laboratories may only
// assign their own orders; the service enforces that for non-admin actors.
func AssignDelivery(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(svc, logg, withMessage("delivery partner assigned"), func(r *http.Request, actor internalorders.Actor) (any, error) {
		id, body, err := orderBody[assignDeliveryRequest](r)
		if err != nil {
			return nil, err
		}
		partnerID, err := parseRefID(body.DeliveryPartnerID, "delivery partner")
		if err != nil {
			return nil, err
		}
		return svc.AssignDelivery(r.Context(), internalorders.AssignDeliveryInput{
			OrderID:   id,
			PartnerID: partnerID,
			Actor:     actor,
		})
	})
}

// CancelUnpaid cancels one of the caller's unpaid orders.
func CancelUnpaid(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(svc, logg, withMessage("order cancelled"), func(r *http.Request, actor internalorders.Actor) (any, error) {
		id, err := orderID(r)
		if err != nil {
			return nil, err
		}
		return svc.CancelUnpaid(r.Context(), id, actor.UserID)
	})
}
