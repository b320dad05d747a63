package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/api/validators"
	"github.com/iamnithishraja/klinic-sub000/internal/payments"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

// PaymentService is the gateway-facing payment flow.
type PaymentService interface {
	CreatePaymentOrder(ctx context.Context, patientID uuid.UUID, orderIDs []uuid.UUID) (*payments.PaymentOrderDTO, error)
	VerifyPayment(ctx context.Context, patientID uuid.UUID, req payments.VerifyPaymentRequest) (*payments.PaymentDTO, error)
}

// PaymentCreateOrder opens a gateway order covering one or more unpaid orders.
func PaymentCreateOrder(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	return asCaller(logg, unavailable("payment", svc == nil), createdResult, func(r *http.Request, patientID uuid.UUID) (any, error) {
		var payload payments.CreatePaymentOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.CreatePaymentOrder(r.Context(), patientID, payload.OrderIDs)
	})
}

// PaymentVerify checks the checkout signature and marks the orders paid.
func PaymentVerify(svc PaymentService, logg *logger.Logger) http.HandlerFunc {
	verified := result{status: http.StatusOK, message: "payment verified"}
	return asCaller(logg, unavailable("payment", svc == nil), verified, func(r *http.Request, patientID uuid.UUID) (any, error) {
		var payload payments.VerifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.VerifyPayment(r.Context(), patientID, payload)
	})
}
