package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iamnithishraja/klinic-sub000/internal/delivery"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox"
	"github.com/iamnithishraja/klinic-sub000/pkg/pagination"
)

// Actor is the authenticated caller of an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) ref() *outbox.ActorRef {
	if a.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: a.UserID, Role: a.Role}
}

// MaxLineQuantity caps one cart line so stock and totals stay within the
// integer columns.
const MaxLineQuantity = 1000

// CartLine is one requested product and quantity.
type CartLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0,max=1000"`
}

// CreateOrdersInput is a patient checkout.
type CreateOrdersInput struct {
	OrderedBy      uuid.UUID
	Lines          []CartLine
	Prescription   *string
	Notes          *string
	COD            bool
	NeedAssignment bool
}

// CreateOrdersResult lists the orders produced by a checkout split along with
// the outcome of each sub-step.
type CreateOrdersResult struct {
	Orders []OrderDTO      `json:"orders"`
	Steps  []StepResult    `json:"steps,omitempty"`
	Kind   enums.OrderKind `json:"kind"`
}

// AssignDeliveryInput names the order, the partner and who is assigning.
type AssignDeliveryInput struct {
	OrderID   uuid.UUID
	PartnerID uuid.UUID
	Actor     Actor
}

// AssignDeliveryResult carries the assigned order plus the partner address.
type AssignDeliveryResult struct {
	Order   OrderDTO             `json:"order"`
	Address *delivery.ProfileDTO `json:"delivery_address,omitempty"`
	Steps   []StepResult         `json:"steps,omitempty"`
}

// UpdateStatusInput drives the role-routed status endpoint.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Status  enums.OrderStatus
	Reason  string
}

// OrderLineDTO is one line of an order.
type OrderLineDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	ImageURL    *string         `json:"image_url,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID                uuid.UUID         `json:"id"`
	OrderedBy         uuid.UUID         `json:"ordered_by"`
	LaboratoryUserID  *uuid.UUID        `json:"laboratory_user_id,omitempty"`
	DeliveryPartnerID *uuid.UUID        `json:"delivery_partner_id,omitempty"`
	Lines             []OrderLineDTO    `json:"lines"`
	Prescription      *string           `json:"prescription,omitempty"`
	Notes             *string           `json:"notes,omitempty"`
	TotalPrice        decimal.Decimal   `json:"total_price"`
	IsPaid            bool              `json:"is_paid"`
	COD               bool              `json:"cod"`
	NeedAssignment    bool              `json:"need_assignment"`
	Status            enums.OrderStatus `json:"status"`
	RejectionReason   *string           `json:"rejection_reason,omitempty"`
	PaymentReference  *string           `json:"payment_reference,omitempty"`
	AssignedAt        *time.Time        `json:"assigned_at,omitempty"`
	AcceptedAt        *time.Time        `json:"accepted_at,omitempty"`
	OutForDeliveryAt  *time.Time        `json:"out_for_delivery_at,omitempty"`
	DeliveredAt       *time.Time        `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time        `json:"cancelled_at,omitempty"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// NewOrderDTO maps an order row (with preloaded lines) to its API shape.
func NewOrderDTO(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                order.ID,
		OrderedBy:         order.OrderedBy,
		LaboratoryUserID:  order.LaboratoryUserID,
		DeliveryPartnerID: order.DeliveryPartnerID,
		Lines:             make([]OrderLineDTO, 0, len(order.Lines)),
		Prescription:      order.Prescription,
		Notes:             order.Notes,
		TotalPrice:        order.TotalPrice,
		IsPaid:            order.IsPaid,
		COD:               order.COD,
		NeedAssignment:    order.NeedAssignment,
		Status:            order.Status,
		RejectionReason:   order.RejectionReason,
		PaymentReference:  order.PaymentReference,
		AssignedAt:        order.AssignedAt,
		AcceptedAt:        order.AcceptedAt,
		OutForDeliveryAt:  order.OutForDeliveryAt,
		DeliveredAt:       order.DeliveredAt,
		CancelledAt:       order.CancelledAt,
		PaidAt:            order.PaidAt,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}
	for _, line := range order.Lines {
		item := OrderLineDTO{
			ID:        line.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal(),
		}
		if line.Product != nil {
			item.ProductName = line.Product.Name
			item.ImageURL = line.Product.ImageURL
		}
		dto.Lines = append(dto.Lines, item)
	}
	return dto
}

// PatientOrderFilters narrows /orders/mine.
type PatientOrderFilters struct {
	Status *enums.OrderStatus
}

// LabScope selects which slice of orders a laboratory sees.
type LabScope string

const (
	LabScopeAssigned   LabScope = "assigned"
	LabScopeUnassigned LabScope = "unassigned"
	LabScopeAll        LabScope = "all"
)

// ParseLabScope defaults an empty value to all.
func ParseLabScope(value string) (LabScope, bool) {
	switch LabScope(value) {
	case "":
		return LabScopeAll, true
	case LabScopeAssigned, LabScopeUnassigned, LabScopeAll:
		return LabScope(value), true
	default:
		return "", false
	}
}

// LabOrderFilters narrows /orders/lab.
type LabOrderFilters struct {
	Status *enums.OrderStatus
	Scope  LabScope
}

// DeliveryOrderFilters narrows /delivery/orders. From and To bound the
// assignment time (creation time for orders never assigned).
type DeliveryOrderFilters struct {
	Status *enums.OrderStatus
	From   *time.Time
	To     *time.Time
}

// AdminOrderFilters narrows /admin/orders.
type AdminOrderFilters struct {
	Status         *enums.OrderStatus
	NeedAssignment *bool
}

// OrderList is one page of orders.
type OrderList = pagination.Page[OrderDTO]
