package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
)

// CreatePaymentOrderRequest is the body of POST /payments/orders.
type CreatePaymentOrderRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids" validate:"required,min=1,dive,required"`
}

// VerifyPaymentRequest carries the fields the checkout widget returns.
type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id" validate:"required"`
	GatewayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature        string `json:"razorpay_signature" validate:"required"`
}

// PaymentOrderDTO is what the client needs to open the checkout widget.
type PaymentOrderDTO struct {
	PaymentID      uuid.UUID       `json:"payment_id"`
	GatewayOrderID string          `json:"razorpay_order_id"`
	KeyID          string          `json:"key_id"`
	Amount         decimal.Decimal `json:"amount"`
	AmountPaise    int64           `json:"amount_paise"`
	Currency       string          `json:"currency"`
	OrderIDs       []uuid.UUID     `json:"order_ids"`
}

// PaymentDTO is the API shape of a payment row.
type PaymentDTO struct {
	ID               uuid.UUID           `json:"id"`
	GatewayOrderID   string              `json:"razorpay_order_id"`
	GatewayPaymentID *string             `json:"razorpay_payment_id,omitempty"`
	Amount           decimal.Decimal     `json:"amount"`
	Currency         string              `json:"currency"`
	Status           enums.PaymentStatus `json:"status"`
	OrderIDs         []uuid.UUID         `json:"order_ids"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func newPaymentDTO(p *models.Payment) *PaymentDTO {
	return &PaymentDTO{
		ID:               p.ID,
		GatewayOrderID:   p.GatewayOrderID,
		GatewayPaymentID: p.GatewayPaymentID,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Status:           p.Status,
		OrderIDs:         p.OrderIDs,
		UpdatedAt:        p.UpdatedAt,
	}
}
