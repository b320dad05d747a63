package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeliveryPartnerProfile holds the address a delivery partner operates from.
// A blank profile is created the first time a partner is assigned an order.
type DeliveryPartnerProfile struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Address       string    `gorm:"column:address;not null;default:''"`
	City          string    `gorm:"column:city;not null;default:''"`
	Pincode       string    `gorm:"column:pincode;not null;default:''"`
	VehicleNumber *string   `gorm:"column:vehicle_number"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *DeliveryPartnerProfile) BeforeCreate(*gorm.DB) error { return ensureID(&p.ID) }

// IsBlank reports whether the partner never filled in an address.
func (p *DeliveryPartnerProfile) IsBlank() bool {
	return p == nil || (p.Address == "" && p.City == "")
}
