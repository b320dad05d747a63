package orders

import (
	"context"

	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/pkg/db"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/pagination"
)

// GetOrder returns an order the actor is allowed to see. Laboratories may
// also read orders that still await a laboratory.
func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: load order")
	}
	if !canView(order, actor) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order not visible to caller")
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

func canView(order *models.Order, actor Actor) bool {
	switch actor.Role {
	case enums.UserRoleAdmin:
		return true
	case enums.UserRolePatient:
		return order.OrderedBy == actor.UserID
	case enums.UserRoleLaboratory:
		return !order.HasLaboratory() || order.OwnedByLaboratory(actor.UserID)
	case enums.UserRoleDeliveryPartner:
		return order.AssignedToPartner(actor.UserID)
	default:
		return false
	}
}

func (s *service) ListPatientOrders(ctx context.Context, patientID uuid.UUID, filters PatientOrderFilters, params pagination.Params) (*OrderList, error) {
	return s.list(ctx, orderListQuery{
		Pagination: params,
		OrderedBy:  uuidPtr(patientID),
		Status:     filters.Status,
	})
}

// ListLabOrders pages the orders a laboratory owns, the unclaimed pool, or
// both depending on scope.
func (s *service) ListLabOrders(ctx context.Context, labID uuid.UUID, filters LabOrderFilters, params pagination.Params) (*OrderList, error) {
	query := orderListQuery{Pagination: params, Status: filters.Status}
	switch filters.Scope {
	case LabScopeAssigned:
		query.LaboratoryUserID = uuidPtr(labID)
	case LabScopeUnassigned:
		query.LaboratoryUnset = true
	case LabScopeAll, "":
		query.LaboratoryUserID = uuidPtr(labID)
		query.LaboratoryUnset = true
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid scope %q", filters.Scope)
	}
	return s.list(ctx, query)
}

func (s *service) ListDeliveryOrders(ctx context.Context, partnerID uuid.UUID, filters DeliveryOrderFilters, params pagination.Params) (*OrderList, error) {
	if filters.From != nil && filters.To != nil && filters.To.Before(*filters.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from")
	}
	return s.list(ctx, orderListQuery{
		Pagination:        params,
		DeliveryPartnerID: uuidPtr(partnerID),
		Status:            filters.Status,
		ActiveFrom:        filters.From,
		ActiveTo:          filters.To,
	})
}

func (s *service) ListAdminOrders(ctx context.Context, filters AdminOrderFilters, params pagination.Params) (*OrderList, error) {
	return s.list(ctx, orderListQuery{
		Pagination:     params,
		Status:         filters.Status,
		NeedAssignment: filters.NeedAssignment,
	})
}

func (s *service) list(ctx context.Context, query orderListQuery) (*OrderList, error) {
	if query.Status != nil && !query.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if _, err := pagination.ParseCursor(query.Pagination.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListOrders(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: list orders")
	}
	dtos := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, NewOrderDTO(&rows[i]))
	}
	page := pagination.BuildPage(dtos, query.Pagination.Limit, func(o OrderDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &page, nil
}
