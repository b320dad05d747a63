package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
)

// Order is one laboratory's share of a patient checkout.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderedBy         uuid.UUID         `gorm:"column:ordered_by;type:uuid;not null;index"`
	LaboratoryUserID  *uuid.UUID        `gorm:"column:laboratory_user_id;type:uuid;index"`
	DeliveryPartnerID *uuid.UUID        `gorm:"column:delivery_partner_id;type:uuid;index"`
	Prescription      *string           `gorm:"column:prescription"`
	Notes             *string           `gorm:"column:notes"`
	TotalPrice        decimal.Decimal   `gorm:"column:total_price;type:numeric(12,2);not null;default:0"`
	IsPaid            bool              `gorm:"column:is_paid;not null;default:false"`
	COD               bool              `gorm:"column:cod;not null;default:false"`
	NeedAssignment    bool              `gorm:"column:need_assignment;not null;default:false"`
	Status            enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	RejectionReason   *string           `gorm:"column:rejection_reason"`
	PaymentReference  *string           `gorm:"column:payment_reference"`
	AssignedAt        *time.Time        `gorm:"column:assigned_at"`
	AcceptedAt        *time.Time        `gorm:"column:accepted_at"`
	OutForDeliveryAt  *time.Time        `gorm:"column:out_for_delivery_at"`
	DeliveredAt       *time.Time        `gorm:"column:delivered_at"`
	CancelledAt       *time.Time        `gorm:"column:cancelled_at"`
	PaidAt            *time.Time        `gorm:"column:paid_at"`
	Lines             []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error { return ensureID(&o.ID) }

// HasLaboratory reports whether a laboratory owns the order.
func (o *Order) HasLaboratory() bool {
	return o.LaboratoryUserID != nil && *o.LaboratoryUserID != uuid.Nil
}

// OwnedByLaboratory reports whether labID is the assigned laboratory.
func (o *Order) OwnedByLaboratory(labID uuid.UUID) bool {
	return o.HasLaboratory() && *o.LaboratoryUserID == labID
}

// AssignedToPartner reports whether partnerID is the assigned delivery partner.
func (o *Order) AssignedToPartner(partnerID uuid.UUID) bool {
	return o.DeliveryPartnerID != nil && *o.DeliveryPartnerID == partnerID
}
