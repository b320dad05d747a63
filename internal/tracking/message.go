package tracking

import (
	"time"

	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
)

// StatusMessage is what trackers of one order receive on every change.
type StatusMessage struct {
	Type              string            `json:"type"`
	OrderID           uuid.UUID         `json:"order_id"`
	Status            enums.OrderStatus `json:"status"`
	IsPaid            bool              `json:"is_paid"`
	LaboratoryUserID  *uuid.UUID        `json:"laboratory_user_id,omitempty"`
	DeliveryPartnerID *uuid.UUID        `json:"delivery_partner_id,omitempty"`
	RejectionReason   *string           `json:"rejection_reason,omitempty"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

const (
	messageTypeSnapshot = "snapshot"
	messageTypeStatus   = "status"
)

// NewStatusMessage snapshots the tracked fields of an order.
func NewStatusMessage(order models.Order) StatusMessage {
	return StatusMessage{
		Type:              messageTypeStatus,
		OrderID:           order.ID,
		Status:            order.Status,
		IsPaid:            order.IsPaid,
		LaboratoryUserID:  order.LaboratoryUserID,
		DeliveryPartnerID: order.DeliveryPartnerID,
		RejectionReason:   order.RejectionReason,
		UpdatedAt:         order.UpdatedAt.UTC(),
	}
}

// Snapshot marks the message as the initial state sent on connect.
func (m StatusMessage) Snapshot() StatusMessage {
	m.Type = messageTypeSnapshot
	return m
}
