package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/internal/orders"
	"github.com/iamnithishraja/klinic-sub000/pkg/db"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	pkgerrors "github.com/iamnithishraja/klinic-sub000/pkg/errors"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox/payloads"
	"github.com/iamnithishraja/klinic-sub000/pkg/razorpay"
)

// Gateway is the slice of the Razorpay client the service uses.
type Gateway interface {
	CreateOrder(ctx context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
	KeyID() string
	Currency() string
}

type orderPayer interface {
	MarkOrdersPaidTx(ctx context.Context, tx *gorm.DB, orderIDs []uuid.UUID, reference string, actor orders.Actor) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the payment service.
type ServiceParams struct {
	Repo    Repository
	Gateway Gateway
	Orders  orderPayer
	Tx      txRunner
	Outbox  outbox.Emitter
	Logger  *logger.Logger
}

// Service mirrors gateway payments onto orders.
type Service struct {
	repo    Repository
	gateway Gateway
	orders  orderPayer
	tx      txRunner
	outbox  outbox.Emitter
	logg    *logger.Logger
}

// NewService builds a payment service.
func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Repo == nil:
		return nil, errors.New("repo is required")
	case params.Gateway == nil:
		return nil, errors.New("gateway is required")
	case params.Orders == nil:
		return nil, errors.New("order service is required")
	case params.Tx == nil:
		return nil, errors.New("transaction runner is required")
	case params.Outbox == nil:
		return nil, errors.New("outbox is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{
		repo:    params.Repo,
		gateway: params.Gateway,
		orders:  params.Orders,
		tx:      params.Tx,
		outbox:  params.Outbox,
		logg:    params.Logger,
	}, nil
}

// CreatePaymentOrder opens one gateway order covering the patient's unpaid
// prepaid orders.
func (s *Service) CreatePaymentOrder(ctx context.Context, patientID uuid.UUID, orderIDs []uuid.UUID) (*PaymentOrderDTO, error) {
	if patientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	ids := dedupe(orderIDs)
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_ids is required")
	}

	rows, err := s.repo.FindOrders(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: load orders")
	}
	if len(rows) != len(ids) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "one or more orders not found")
	}

	total := decimal.Zero
	for _, order := range rows {
		switch {
		case order.OrderedBy != patientID:
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another patient")
		case order.IsPaid:
			return nil, pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "order %s is already paid", order.ID)
		case order.COD:
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "order %s is cash on delivery", order.ID)
		case order.Status == enums.OrderStatusCancelled:
			return nil, pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "order %s is cancelled", order.ID)
		}
		total = total.Add(order.TotalPrice)
	}
	if !total.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orders have nothing to pay")
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:  total,
		Receipt: receiptFor(ids[0]),
		Notes:   map[string]string{"patient_id": patientID.String(), "order_count": fmt.Sprint(len(ids))},
	})
	if err != nil {
		s.logg.Error(ctx, "gateway order creation failed", err)
		return nil, err
	}

	payment := &models.Payment{
		UserID:         patientID,
		GatewayOrderID: gwOrder.ID,
		Amount:         total,
		Currency:       s.gateway.Currency(),
		Status:         enums.PaymentStatusCreated,
		OrderIDs:       ids,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: insert payment")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payment_id":       payment.ID.String(),
		"gateway_order_id": gwOrder.ID,
		"order_count":      len(ids),
	}), "payment order created")

	return &PaymentOrderDTO{
		PaymentID:      payment.ID,
		GatewayOrderID: gwOrder.ID,
		KeyID:          s.gateway.KeyID(),
		Amount:         total,
		AmountPaise:    razorpay.ToPaise(total),
		Currency:       payment.Currency,
		OrderIDs:       ids,
	}, nil
}

// VerifyPayment checks the checkout signature and, when it matches, captures
// the payment and marks every linked order paid in one transaction.
func (s *Service) VerifyPayment(ctx context.Context, patientID uuid.UUID, req VerifyPaymentRequest) (*PaymentDTO, error) {
	req.GatewayOrderID = strings.TrimSpace(req.GatewayOrderID)
	req.GatewayPaymentID = strings.TrimSpace(req.GatewayPaymentID)
	if req.GatewayOrderID == "" || req.GatewayPaymentID == "" || strings.TrimSpace(req.Signature) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id, payment id and signature are required")
	}
	ctx = s.logg.WithField(ctx, "gateway_order_id", req.GatewayOrderID)

	payment, err := s.repo.FindByGatewayOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: load payment")
	}
	if payment.UserID != patientID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another patient")
	}
	if payment.Status == enums.PaymentStatusCaptured {
		if payment.GatewayPaymentID != nil && *payment.GatewayPaymentID == req.GatewayPaymentID {
			return newPaymentDTO(payment), nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already captured")
	}

	if !s.gateway.VerifySignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		if _, err := s.repo.TransitionStatus(ctx, payment.ID, []enums.PaymentStatus{enums.PaymentStatusCreated}, enums.PaymentStatusFailed, nil); err != nil {
			s.logg.Error(ctx, "mark payment failed", err)
		}
		s.logg.Warn(ctx, "payment signature mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment signature")
	}

	actor := orders.Actor{UserID: patientID, Role: enums.UserRolePatient}
	paymentID := req.GatewayPaymentID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.TransitionStatus(ctx, payment.ID,
			[]enums.PaymentStatus{enums.PaymentStatusCreated, enums.PaymentStatusFailed},
			enums.PaymentStatusCaptured, &paymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "db: capture payment")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment already captured")
		}
		if err := s.orders.MarkOrdersPaidTx(ctx, tx, payment.OrderIDs, paymentID, actor); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCaptured,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         &outbox.ActorRef{UserID: patientID, Role: enums.UserRolePatient},
			Data: payloads.PaymentCapturedEvent{
				PaymentID:        payment.ID,
				UserID:           patientID,
				GatewayOrderID:   payment.GatewayOrderID,
				GatewayPaymentID: paymentID,
				Amount:           payment.Amount,
				Currency:         payment.Currency,
				OrderIDs:         payment.OrderIDs,
				CapturedAt:       time.Now().UTC(),
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "capture payment")
		}
		s.logg.Error(ctx, "payment capture failed", err)
		return nil, err
	}

	payment.Status = enums.PaymentStatusCaptured
	payment.GatewayPaymentID = &paymentID
	s.logg.Info(s.logg.WithField(ctx, "payment_id", payment.ID.String()), "payment captured")
	return newPaymentDTO(payment), nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// receiptFor keeps the receipt under the gateway's 40 character limit.
func receiptFor(orderID uuid.UUID) string {
	return "klinic_" + strings.ReplaceAll(orderID.String(), "-", "")[:24]
}
