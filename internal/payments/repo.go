package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/internal/repo"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
)

// Repository handles payment persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	// TransitionStatus moves the payment to status only while it is in one
	// of from, returning the rows changed.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.PaymentStatus, status enums.PaymentStatus, gatewayPaymentID *string) (int64, error)
	FindOrders(ctx context.Context, ids []uuid.UUID) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	return repo.First[models.Payment](r.db.WithContext(ctx), "gateway_order_id = ?", gatewayOrderID)
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.PaymentStatus, status enums.PaymentStatus, gatewayPaymentID *string) (int64, error) {
	updates := map[string]any{"status": string(status)}
	if gatewayPaymentID != nil {
		updates["gateway_payment_id"] = *gatewayPaymentID
	}
	allowed := make([]string, 0, len(from))
	for _, s := range from {
		allowed = append(allowed, string(s))
	}
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, allowed).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) FindOrders(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	if len(ids) == 0 {
		return rows, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
