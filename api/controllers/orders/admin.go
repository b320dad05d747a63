package orders

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/api/validators"
	internalorders "github.com/iamnithishraja/klinic-sub000/internal/orders"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

type assignLabRequest struct {
	// Either a laboratory user id or a laboratory profile id.
	LaboratoryID string `json:"laboratory_id" validate:"required,uuid"`
}

type paymentOverrideRequest struct {
	IsPaid *bool `json:"is_paid" validate:"required"`
}

// AdminList lists every order, filtered by status and need_assignment.
func AdminList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(svc, logg, plain, func(r *http.Request, _ internalorders.Actor) (any, error) {
		params, status, err := listQuery(r)
		if err != nil {
			return nil, err
		}
		needAssignment, err := validators.ParseQueryBool(r, "need_assignment")
		if err != nil {
			return nil, err
		}
		return svc.ListAdminOrders(r.Context(), internalorders.AdminOrderFilters{
			Status:         status,
			NeedAssignment: needAssignment,
		}, params)
	})
}

// AdminAssignLab forces a laboratory onto an order.
func AdminAssignLab(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(svc, logg, withMessage("laboratory assigned"), func(r *http.Request, actor internalorders.Actor) (any, error) {
		id, body, err := orderBody[assignLabRequest](r)
		if err != nil {
			return nil, err
		}
		labID, err := parseRefID(body.LaboratoryID, "laboratory")
		if err != nil {
			return nil, err
		}
		return svc.AssignLabToOrder(r.Context(), id, labID, actor)
	})
}

// AdminPayment overrides an order's paid flag.
func AdminPayment(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(svc, logg, plain, func(r *http.Request, actor internalorders.Actor) (any, error) {
		id, body, err := orderBody[paymentOverrideRequest](r)
		if err != nil {
			return nil, err
		}
		return svc.SetPaymentStatus(r.Context(), id, *body.IsPaid, actor)
	})
}

// DeadLetterLister reads events the outbox publisher gave up on.
type DeadLetterLister interface {
	ListForAggregate(ctx context.Context, aggregateID uuid.UUID) ([]models.OutboxDLQ, error)
}

type deadLetterDTO struct {
	EventID      uuid.UUID                  `json:"event_id"`
	EventType    enums.OutboxEventType      `json:"event_type"`
	Reason       enums.OutboxDLQErrorReason `json:"reason"`
	ErrorMessage *string                    `json:"error_message,omitempty"`
	Attempts     int                        `json:"attempts"`
	FailedAt     time.Time                  `json:"failed_at"`
}

func toDeadLetterDTO(e models.OutboxDLQ) deadLetterDTO {
	return deadLetterDTO{
		EventID:      e.EventID,
		EventType:    e.EventType,
		Reason:       e.ErrorReason,
		ErrorMessage: e.ErrorMessage,
		Attempts:     e.AttemptCount,
		FailedAt:     e.FailedAt,
	}
}

// AdminDeadLetters lists the dead-lettered events of one order.
func AdminDeadLetters(lister DeadLetterLister, logg *logger.Logger) http.HandlerFunc {
	return serve(logg, plain, func(r *http.Request) (any, error) {
		if lister == nil {
			return nil, serviceUnavailable()
		}
		id, err := orderID(r)
		if err != nil {
			return nil, err
		}
		entries, err := lister.ListForAggregate(r.Context(), id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters")
		}
		out := make([]deadLetterDTO, len(entries))
		for i, e := range entries {
			out[i] = toDeadLetterDTO(e)
		}
		return out, nil
	})
}
