package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a laboratory listing. OwnerID is the laboratory user.
type Product struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID           uuid.UUID       `gorm:"column:owner_id;type:uuid;not null;index"`
	Name              string          `gorm:"column:name;not null"`
	Description       string          `gorm:"column:description;not null;default:''"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	AvailableQuantity int             `gorm:"column:available_quantity;not null;default:0"`
	ImageURL          *string         `gorm:"column:image_url"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error { return ensureID(&p.ID) }
