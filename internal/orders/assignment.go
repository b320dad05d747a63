package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/internal/delivery"
	"github.com/iamnithishraja/klinic-sub000/pkg/db"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/metrics"
)

// ClaimOrder lets a laboratory take an order that has no laboratory yet.
func (s *service) ClaimOrder(ctx context.Context, orderID, labUserID uuid.UUID) (*OrderDTO, error) {
	if labUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.apply(ctx, transition{
		orderID: orderID,
		target:  enums.OrderStatusConfirmed,
		cond: OrderCondition{
			LaboratoryUnset: true,
			Statuses:        openStatuses(),
		},
		updates: map[string]any{
			"laboratory_user_id": labUserID,
			"need_assignment":    false,
		},
		event: enums.EventOrderLabAssigned,
		actor: Actor{UserID: labUserID, Role: enums.UserRoleLaboratory},
	})
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

// AssignLabToOrder is the admin path: labIDOrProfileID may name the
// laboratory user or its profile, and the order is (re)confirmed.
func (s *service) AssignLabToOrder(ctx context.Context, orderID, labIDOrProfileID uuid.UUID, actor Actor) (*OrderDTO, error) {
	labUserID, err := s.labs.ResolveLaboratoryUserID(ctx, nil, labIDOrProfileID)
	if err != nil {
		return nil, err
	}
	from := enums.OrderStatusPredecessors(enums.OrderStatusConfirmed)
	from = append(from, enums.OrderStatusConfirmed)
	updates := statusUpdates(enums.OrderStatusConfirmed, s.now(), "")
	updates["laboratory_user_id"] = labUserID
	updates["need_assignment"] = false
	order, err := s.apply(ctx, transition{
		orderID: orderID,
		target:  enums.OrderStatusConfirmed,
		cond:    OrderCondition{Statuses: from},
		updates: updates,
		event: enums.EventOrderLabAssigned,
		actor: actor,
	})
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

// AssignDelivery hands a pending or confirmed order to a delivery partner.
// Laboratory actors must own the order; admins may assign any order.
func (s *service) AssignDelivery(ctx context.Context, input AssignDeliveryInput) (*AssignDeliveryResult, error) {
	if input.PartnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery_partner_id is required")
	}
	cond := OrderCondition{
		Statuses: enums.OrderStatusPredecessors(enums.OrderStatusAssignedToDelivery),
	}
	switch input.Actor.Role {
	case enums.UserRoleAdmin:
	case enums.UserRoleLaboratory:
		cond.LaboratoryUserID = uuidPtr(input.Actor.UserID)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only laboratories and admins can assign delivery")
	}

	if _, err := s.users.FindByIDAndRole(ctx, nil, input.PartnerID, enums.UserRoleDeliveryPartner); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery partner not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup delivery partner")
	}

	now := s.now()
	var (
		profile *models.DeliveryPartnerProfile
		steps   []StepResult
	)
	order, err := s.apply(ctx, transition{
		orderID: input.OrderID,
		target:  enums.OrderStatusAssignedToDelivery,
		cond:    cond,
		updates: map[string]any{
			"delivery_partner_id": input.PartnerID,
			"assigned_at":         now,
			"status":              string(enums.OrderStatusAssignedToDelivery),
			"rejection_reason":    nil,
		},
		event: enums.EventOrderDeliveryAssigned,
		actor: input.Actor,
		afterUpdate: func(ctx context.Context, tx *gorm.DB, _ *models.Order) error {
			found, created, err := s.deliveries.FindOrCreate(ctx, tx, input.PartnerID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: resolve delivery profile")
			}
			profile = found
			switch {
			case created:
				steps = append(steps, stepDegraded(StepAddress, "delivery partner had no profile; blank profile created"))
			case found.IsBlank():
				steps = append(steps, stepDegraded(StepAddress, "delivery partner profile has no address"))
			default:
				steps = append(steps, stepSuccess(StepAddress))
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	for _, step := range steps {
		s.metrics.ObserveStep(step.Step, step.Outcome)
		if step.Outcome != metrics.OutcomeSuccess {
			s.logg.Warn(s.logg.WithField(ctx, "order_id", order.ID.String()), step.Detail)
		}
	}

	return &AssignDeliveryResult{
		Order:   NewOrderDTO(order),
		Address: delivery.FromModel(profile),
		Steps:   steps,
	}, nil
}

// openStatuses lists every non-terminal status.
func openStatuses() []enums.OrderStatus {
	out := []enums.OrderStatus{}
	for _, status := range enums.OrderStatuses() {
		if !status.IsTerminal() {
			out = append(out, status)
		}
	}
	return out
}
