package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
)

// Payment mirrors one gateway order covering one or more patient orders.
type Payment struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	GatewayOrderID   string              `gorm:"column:gateway_order_id;not null;uniqueIndex"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id"`
	Amount           decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency         string              `gorm:"column:currency;not null"`
	Status           enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'created'"`
	OrderIDs         []uuid.UUID         `gorm:"column:order_ids;type:jsonb;serializer:json;not null"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error { return ensureID(&p.ID) }
