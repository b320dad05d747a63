package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/internal/repo"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	"github.com/iamnithishraja/klinic-sub000/pkg/pagination"
)

// OrderCondition is the precondition half of a conditional update. Every set
// field must hold for the row to change.
type OrderCondition struct {
	OrderID           uuid.UUID
	Statuses          []enums.OrderStatus
	OrderedBy         *uuid.UUID
	LaboratoryUserID  *uuid.UUID
	DeliveryPartnerID *uuid.UUID
	LaboratoryUnset   bool
	IsPaid            *bool
}

type orderListQuery struct {
	Pagination        pagination.Params
	OrderedBy         *uuid.UUID
	LaboratoryUserID  *uuid.UUID
	LaboratoryUnset   bool
	DeliveryPartnerID *uuid.UUID
	Status            *enums.OrderStatus
	NeedAssignment    *bool
	ActiveFrom        *time.Time
	ActiveTo          *time.Time
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Omit("Lines").Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateOrderLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Product").Create(&lines).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	q := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Preload("Lines.Product")
	return repo.First[models.Order](q, "id = ?", id)
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	if len(ids) == 0 {
		return []models.Order{}, nil
	}
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Lines.Product").
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Order, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	ordered := make([]models.Order, 0, len(rows))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered, nil
}

// UpdateWhere applies updates only to the row matching cond and returns the
// number of rows changed (0 or 1).
func (r *repository) UpdateWhere(ctx context.Context, cond OrderCondition, updates map[string]any) (int64, error) {
	qb := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", cond.OrderID)
	if len(cond.Statuses) > 0 {
		qb = qb.Where("status IN ?", statusStrings(cond.Statuses))
	}
	if cond.OrderedBy != nil {
		qb = qb.Where("ordered_by = ?", *cond.OrderedBy)
	}
	if cond.LaboratoryUserID != nil {
		qb = qb.Where("laboratory_user_id = ?", *cond.LaboratoryUserID)
	}
	if cond.LaboratoryUnset {
		qb = qb.Where("laboratory_user_id IS NULL")
	}
	if cond.DeliveryPartnerID != nil {
		qb = qb.Where("delivery_partner_id = ?", *cond.DeliveryPartnerID)
	}
	if cond.IsPaid != nil {
		qb = qb.Where("is_paid = ?", *cond.IsPaid)
	}
	res := qb.Updates(updates)
	return res.RowsAffected, res.Error
}

// ListOrders pages orders newest first.
func (r *repository) ListOrders(ctx context.Context, query orderListQuery) ([]models.Order, error) {
	page, err := pagination.Scope(query.Pagination)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).Model(&models.Order{})
	if query.OrderedBy != nil {
		qb = qb.Where("ordered_by = ?", *query.OrderedBy)
	}
	switch {
	case query.LaboratoryUserID != nil && query.LaboratoryUnset:
		qb = qb.Where("(laboratory_user_id = ? OR laboratory_user_id IS NULL)", *query.LaboratoryUserID)
	case query.LaboratoryUserID != nil:
		qb = qb.Where("laboratory_user_id = ?", *query.LaboratoryUserID)
	case query.LaboratoryUnset:
		qb = qb.Where("laboratory_user_id IS NULL")
	}
	if query.DeliveryPartnerID != nil {
		qb = qb.Where("delivery_partner_id = ?", *query.DeliveryPartnerID)
	}
	if query.Status != nil {
		qb = qb.Where("status = ?", string(*query.Status))
	}
	if query.NeedAssignment != nil {
		qb = qb.Where("need_assignment = ?", *query.NeedAssignment)
	}
	if query.ActiveFrom != nil {
		qb = qb.Where("COALESCE(assigned_at, created_at) >= ?", query.ActiveFrom.UTC())
	}
	if query.ActiveTo != nil {
		qb = qb.Where("COALESCE(assigned_at, created_at) <= ?", query.ActiveTo.UTC())
	}

	var rows []models.Order
	err = qb.
		Preload("Lines").
		Preload("Lines.Product").
		Scopes(page).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindAwaitingAssignmentBefore returns open orders still flagged for
// laboratory assignment that were created before cutoff and have not been
// nudged yet, oldest first.
func (r *repository) FindAwaitingAssignmentBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("need_assignment = ?", true).
		Where("laboratory_user_id IS NULL").
		Where("status NOT IN ?", statusStrings([]enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusCancelled})).
		Where("created_at < ?", cutoff.UTC()).
		Where("NOT EXISTS (SELECT 1 FROM outbox_events oe WHERE oe.aggregate_type = ? AND oe.aggregate_id = orders.id AND oe.event_type = ?)",
			string(enums.AggregateOrder), string(enums.EventOrderAssignmentNudged)).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func statusStrings(statuses []enums.OrderStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}
