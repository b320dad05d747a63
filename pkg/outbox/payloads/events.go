package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
)

// OrderEvent is the shared payload for every order lifecycle event.
type OrderEvent struct {
	OrderID           uuid.UUID         `json:"order_id"`
	OrderedBy         uuid.UUID         `json:"ordered_by"`
	LaboratoryUserID  *uuid.UUID        `json:"laboratory_user_id,omitempty"`
	DeliveryPartnerID *uuid.UUID        `json:"delivery_partner_id,omitempty"`
	Kind              enums.OrderKind   `json:"kind,omitempty"`
	Status            enums.OrderStatus `json:"status"`
	PreviousStatus    enums.OrderStatus `json:"previous_status,omitempty"`
	TotalPrice        decimal.Decimal   `json:"total_price"`
	LineCount         int               `json:"line_count"`
	COD               bool              `json:"cod"`
	IsPaid            bool              `json:"is_paid"`
	NeedAssignment    bool              `json:"need_assignment"`
	PaymentReference  string            `json:"payment_reference,omitempty"`
	Reason            string            `json:"reason,omitempty"`
	ChangedAt         time.Time         `json:"changed_at"`
}

// NewOrderEvent snapshots the order row into an event payload.
func NewOrderEvent(order models.Order, previous enums.OrderStatus) OrderEvent {
	evt := OrderEvent{
		OrderID:           order.ID,
		OrderedBy:         order.OrderedBy,
		LaboratoryUserID:  order.LaboratoryUserID,
		DeliveryPartnerID: order.DeliveryPartnerID,
		Status:            order.Status,
		PreviousStatus:    previous,
		TotalPrice:        order.TotalPrice,
		LineCount:         len(order.Lines),
		COD:               order.COD,
		IsPaid:            order.IsPaid,
		NeedAssignment:    order.NeedAssignment,
		ChangedAt:         order.UpdatedAt.UTC(),
	}
	if order.PaymentReference != nil {
		evt.PaymentReference = *order.PaymentReference
	}
	if order.RejectionReason != nil {
		evt.Reason = *order.RejectionReason
	}
	if evt.ChangedAt.IsZero() || evt.ChangedAt.Year() < 2000 {
		evt.ChangedAt = time.Now().UTC()
	}
	return evt
}

// PaymentCapturedEvent is emitted once a gateway payment is verified.
type PaymentCapturedEvent struct {
	PaymentID        uuid.UUID       `json:"payment_id"`
	UserID           uuid.UUID       `json:"user_id"`
	GatewayOrderID   string          `json:"gateway_order_id"`
	GatewayPaymentID string          `json:"gateway_payment_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	OrderIDs         []uuid.UUID     `json:"order_ids"`
	CapturedAt       time.Time       `json:"captured_at"`
}

// AssignmentNudgeEvent flags an order that has waited too long for a laboratory.
type AssignmentNudgeEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	OrderedBy uuid.UUID `json:"ordered_by"`
	WaitingMs int64     `json:"waiting_ms"`
	CreatedAt time.Time `json:"created_at"`
}
