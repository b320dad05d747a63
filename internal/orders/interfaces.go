package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox"
)

// Repository defines persistence operations for orders and order lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderLines(ctx context.Context, lines []models.OrderLine) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error)
	UpdateWhere(ctx context.Context, cond OrderCondition, updates map[string]any) (int64, error)
	ListOrders(ctx context.Context, query orderListQuery) ([]models.Order, error)
	FindAwaitingAssignmentBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ProductStore is the slice of the catalog checkout needs, bound to a tx.
type ProductStore interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (int, error)
}

type userLookup interface {
	FindByIDAndRole(ctx context.Context, tx *gorm.DB, id uuid.UUID, role enums.UserRole) (*models.User, error)
}

type laboratoryResolver interface {
	ResolveLaboratoryUserID(ctx context.Context, tx *gorm.DB, labIDOrProfileID uuid.UUID) (uuid.UUID, error)
}

type deliveryProfiles interface {
	FindOrCreate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.DeliveryPartnerProfile, bool, error)
}

// StatusNotifier fans committed order changes out to live trackers.
type StatusNotifier interface {
	NotifyOrder(ctx context.Context, order models.Order) error
}
