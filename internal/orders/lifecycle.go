package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/db"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox/payloads"
)

// AcceptDelivery moves an assigned order to delivery_accepted.
func (s *service) AcceptDelivery(ctx context.Context, orderID, partnerID uuid.UUID) (*OrderDTO, error) {
	return s.partnerTransition(ctx, orderID, partnerID, enums.OrderStatusDeliveryAccepted, "")
}

// RejectDelivery records why the partner declined and clears assigned_at.
func (s *service) RejectDelivery(ctx context.Context, orderID, partnerID uuid.UUID, reason string) (*OrderDTO, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}
	return s.partnerTransition(ctx, orderID, partnerID, enums.OrderStatusDeliveryRejected, reason)
}

// UpdateDeliveryStatus handles out_for_delivery and delivered.
func (s *service) UpdateDeliveryStatus(ctx context.Context, orderID, partnerID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error) {
	switch status {
	case enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered:
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "delivery status must be %s or %s", enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered)
	}
	return s.partnerTransition(ctx, orderID, partnerID, status, "")
}

// partnerTransition is restricted to the partner the order is assigned to.
// Each target has exactly one predecessor on this path.
func (s *service) partnerTransition(ctx context.Context, orderID, partnerID uuid.UUID, target enums.OrderStatus, reason string) (*OrderDTO, error) {
	if partnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	var from enums.OrderStatus
	switch target {
	case enums.OrderStatusDeliveryAccepted, enums.OrderStatusDeliveryRejected:
		from = enums.OrderStatusAssignedToDelivery
	case enums.OrderStatusOutForDelivery:
		from = enums.OrderStatusDeliveryAccepted
	case enums.OrderStatusDelivered:
		from = enums.OrderStatusOutForDelivery
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "delivery partners cannot set status %s", target)
	}

	order, err := s.apply(ctx, transition{
		orderID: orderID,
		target:  target,
		cond: OrderCondition{
			DeliveryPartnerID: uuidPtr(partnerID),
			Statuses:          []enums.OrderStatus{from},
		},
		updates:     statusUpdates(target, s.now(), reason),
		event:       eventFor(target),
		actor:       Actor{UserID: partnerID, Role: enums.UserRoleDeliveryPartner},
		afterUpdate: s.emitCODPaid(target, Actor{UserID: partnerID, Role: enums.UserRoleDeliveryPartner}),
	})
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

// UpdateStatus routes a generic status change by the caller's role through
// the transition table.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}
	actor := input.Actor
	switch actor.Role {
	case enums.UserRoleDeliveryPartner:
		switch input.Status {
		case enums.OrderStatusDeliveryAccepted:
			return s.AcceptDelivery(ctx, input.OrderID, actor.UserID)
		case enums.OrderStatusDeliveryRejected:
			return s.RejectDelivery(ctx, input.OrderID, actor.UserID, input.Reason)
		default:
			return s.UpdateDeliveryStatus(ctx, input.OrderID, actor.UserID, input.Status)
		}
	case enums.UserRolePatient:
		if input.Status != enums.OrderStatusCancelled {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "patients can only cancel orders")
		}
		return s.CancelUnpaid(ctx, input.OrderID, actor.UserID)
	case enums.UserRoleLaboratory:
		if input.Status != enums.OrderStatusConfirmed && input.Status != enums.OrderStatusCancelled {
			return nil, pkgerrors.Newf(pkgerrors.CodeForbidden, "laboratories cannot set status %s", input.Status)
		}
		return s.tableTransition(ctx, input, OrderCondition{LaboratoryUserID: uuidPtr(actor.UserID)})
	case enums.UserRoleAdmin:
		if input.Status == enums.OrderStatusAssignedToDelivery {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "use assign-delivery to assign a delivery partner")
		}
		if input.Status == enums.OrderStatusDeliveryRejected && strings.TrimSpace(input.Reason) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
		}
		return s.tableTransition(ctx, input, OrderCondition{})
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot change order status")
	}
}

func (s *service) tableTransition(ctx context.Context, input UpdateStatusInput, cond OrderCondition) (*OrderDTO, error) {
	cond.Statuses = enums.OrderStatusPredecessors(input.Status)
	if len(cond.Statuses) == 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "no status can move to %s", input.Status)
	}
	order, err := s.apply(ctx, transition{
		orderID:     input.OrderID,
		target:      input.Status,
		cond:        cond,
		updates:     statusUpdates(input.Status, s.now(), input.Reason),
		event:       eventFor(input.Status),
		actor:       input.Actor,
		afterUpdate: s.emitCODPaid(input.Status, input.Actor),
	})
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

// CancelUnpaid lets a patient cancel their own order while it is unpaid and
// still cancellable.
func (s *service) CancelUnpaid(ctx context.Context, orderID, patientID uuid.UUID) (*OrderDTO, error) {
	if patientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.apply(ctx, transition{
		orderID: orderID,
		target:  enums.OrderStatusCancelled,
		cond: OrderCondition{
			OrderedBy: uuidPtr(patientID),
			IsPaid:    boolPtr(false),
			Statuses:  enums.OrderStatusPredecessors(enums.OrderStatusCancelled),
		},
		updates: statusUpdates(enums.OrderStatusCancelled, s.now(), ""),
		event:   enums.EventOrderCancelled,
		actor:   Actor{UserID: patientID, Role: enums.UserRolePatient},
	})
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

// SetPaymentStatus is the admin override of is_paid. It carries no
// precondition; the latest write wins.
func (s *service) SetPaymentStatus(ctx context.Context, orderID uuid.UUID, isPaid bool, actor Actor) (*OrderDTO, error) {
	updates := map[string]any{"is_paid": isPaid, "paid_at": nil}
	event := enums.EventOrderStatusChanged
	if isPaid {
		updates["paid_at"] = s.now()
		event = enums.EventOrderPaid
	}
	order, err := s.apply(ctx, transition{
		orderID: orderID,
		label:   "payment_override",
		updates: updates,
		event:   event,
		actor:   actor,
	})
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

// MarkOrdersPaidTx flags orders as paid by a captured gateway payment inside
// the caller's transaction.
func (s *service) MarkOrdersPaidTx(ctx context.Context, tx *gorm.DB, orderIDs []uuid.UUID, reference string, actor Actor) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	now := s.now()
	for _, id := range orderIDs {
		cond := OrderCondition{OrderID: id, Statuses: payableStatuses()}
		affected, err := repo.UpdateWhere(ctx, cond, map[string]any{
			"is_paid":           true,
			"paid_at":           now,
			"payment_reference": reference,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: mark order paid")
		}
		if affected == 0 {
			return unpayable(ctx, repo, id)
		}
		order, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: reload order")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor.ref(),
			Data:          payloads.NewOrderEvent(*order, ""),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order_paid")
		}
	}
	return nil
}

// payableStatuses is every status a captured payment may settle.
func payableStatuses() []enums.OrderStatus {
	out := []enums.OrderStatus{}
	for _, status := range enums.OrderStatuses() {
		if status != enums.OrderStatusCancelled {
			out = append(out, status)
		}
	}
	return out
}

func unpayable(ctx context.Context, repo Repository, id uuid.UUID) error {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", id)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: load order")
	}
	return invalidTransition(order, order.Status, fmt.Sprintf("order %s is %s and cannot be paid", id, order.Status))
}

// emitCODPaid records an order_paid event when delivery settles a COD order.
func (s *service) emitCODPaid(target enums.OrderStatus, actor Actor) func(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if target != enums.OrderStatusDelivered {
		return nil
	}
	return func(ctx context.Context, tx *gorm.DB, order *models.Order) error {
		if !order.COD {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor.ref(),
			Data:          payloads.NewOrderEvent(*order, enums.OrderStatusOutForDelivery),
		})
	}
}

// statusUpdates returns the columns written when an order enters target.
func statusUpdates(target enums.OrderStatus, now time.Time, reason string) map[string]any {
	updates := map[string]any{"status": string(target)}
	switch target {
	case enums.OrderStatusConfirmed:
		// Back from delivery_rejected the order is up for reassignment, so
		// the previous partner no longer sees it.
		updates["delivery_partner_id"] = nil
		updates["rejection_reason"] = nil
		updates["assigned_at"] = nil
		updates["accepted_at"] = nil
	case enums.OrderStatusDeliveryAccepted:
		updates["accepted_at"] = now
	case enums.OrderStatusDeliveryRejected:
		updates["rejection_reason"] = strings.TrimSpace(reason)
		updates["assigned_at"] = nil
	case enums.OrderStatusOutForDelivery:
		updates["out_for_delivery_at"] = now
	case enums.OrderStatusDelivered:
		updates["delivered_at"] = now
		updates["is_paid"] = gorm.Expr("CASE WHEN cod THEN ? ELSE is_paid END", true)
		updates["paid_at"] = gorm.Expr("CASE WHEN cod AND paid_at IS NULL THEN ? ELSE paid_at END", now)
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = now
	}
	return updates
}

func eventFor(target enums.OrderStatus) enums.OutboxEventType {
	if target == enums.OrderStatusCancelled {
		return enums.EventOrderCancelled
	}
	return enums.EventOrderStatusChanged
}
