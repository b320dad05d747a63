package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/db"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/metrics"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox/payloads"
)

// transition is one conditional order update: the precondition, the new
// column values and the event recorded when it lands. label overrides target
// in metrics for actions that do not change the status.
type transition struct {
	orderID uuid.UUID
	target  enums.OrderStatus
	label   string
	cond    OrderCondition
	updates map[string]any
	event   enums.OutboxEventType
	actor   Actor
	// afterUpdate runs inside the transaction once the row has changed.
	afterUpdate func(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

// apply runs t as a single conditional UPDATE. When no row matches, the
// current row is read only to explain why: 404, then 403, then 400.
func (s *service) apply(ctx context.Context, t transition) (*models.Order, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id": t.orderID.String(),
		"target":   string(t.target),
		"actor_id": t.actor.UserID.String(),
	})
	t.cond.OrderID = t.orderID

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.UpdateWhere(ctx, t.cond, t.updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: update order")
		}
		if affected == 0 {
			return s.diagnose(ctx, repo, t)
		}

		order, err := repo.FindByID(ctx, t.orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: reload order")
		}
		if t.afterUpdate != nil {
			if err := t.afterUpdate(ctx, tx, order); err != nil {
				return err
			}
		}
		if t.event != "" {
			previous := enums.OrderStatus("")
			if len(t.cond.Statuses) == 1 {
				previous = t.cond.Statuses[0]
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     t.event,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         t.actor.ref(),
				Data:          payloads.NewOrderEvent(*order, previous),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order event")
			}
		}
		updated = order
		return nil
	})
	label := t.label
	if label == "" {
		label = string(t.target)
	}
	s.metrics.ObserveTransition(label, err == nil)
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order")
		}
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInternal {
			s.logg.Error(ctx, "order transition failed", err)
		} else {
			s.logg.Warn(ctx, fmt.Sprintf("order transition rejected: %s", err.Error()))
		}
		return nil, err
	}

	s.notify(ctx, *updated)
	return updated, nil
}

// diagnose explains a conditional update that matched no row.
func (s *service) diagnose(ctx context.Context, repo Repository, t transition) error {
	order, err := repo.FindByID(ctx, t.orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: load order")
	}

	cond := t.cond
	switch {
	case cond.OrderedBy != nil && order.OrderedBy != *cond.OrderedBy:
		return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another patient")
	case cond.LaboratoryUserID != nil && !order.OwnedByLaboratory(*cond.LaboratoryUserID):
		return pkgerrors.New(pkgerrors.CodeForbidden, "order is not assigned to this laboratory")
	case cond.DeliveryPartnerID != nil && !order.AssignedToPartner(*cond.DeliveryPartnerID):
		return pkgerrors.New(pkgerrors.CodeForbidden, "order is not assigned to this delivery partner")
	case cond.LaboratoryUnset && order.HasLaboratory():
		return invalidTransition(order, t.target, "order already has a laboratory")
	case cond.IsPaid != nil && order.IsPaid != *cond.IsPaid:
		if order.IsPaid {
			return invalidTransition(order, t.target, "order is already paid")
		}
		return invalidTransition(order, t.target, "order is not paid")
	}
	return invalidTransition(order, t.target, fmt.Sprintf(
		"cannot move order from %s to %s (expected one of %s)",
		order.Status, t.target, joinStatuses(cond.Statuses),
	))
}

func invalidTransition(order *models.Order, target enums.OrderStatus, message string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, message).WithDetails(map[string]any{
		"order_id":       order.ID,
		"current_status": order.Status,
		"target_status":  target,
	})
}

func (s *service) notify(ctx context.Context, order models.Order) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyOrder(ctx, order); err != nil {
		s.metrics.ObserveStep(StepNotify, metrics.OutcomeFailed)
		s.logg.Warn(ctx, fmt.Sprintf("order tracking notification failed: %v", err))
	}
}

func joinStatuses(statuses []enums.OrderStatus) string {
	if len(statuses) == 0 {
		return "any"
	}
	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, string(status))
	}
	return strings.Join(parts, ", ")
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func boolPtr(v bool) *bool {
	return &v
}
