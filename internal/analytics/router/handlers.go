package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iamnithishraja/klinic-sub000/internal/analytics/types"
	"github.com/iamnithishraja/klinic-sub000/internal/analytics/writer"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox/payloads"
)

type rowBuilder struct {
	writer Writer
	logg   *logger.Logger
}

func (b *rowBuilder) insert(ctx context.Context, row types.OrderEventRow) error {
	if err := b.writer.InsertOrderEvent(ctx, row); err != nil {
		return fmt.Errorf("insert %s row: %w", row.EventType, err)
	}
	return nil
}

func (b *rowBuilder) orderEvent(ctx context.Context, env types.Envelope, e *payloads.OrderEvent) error {
	row, err := baseRow(env)
	if err != nil {
		return err
	}
	row.OrderID = text(e.OrderID.String())
	row.OrderedBy = text(e.OrderedBy.String())
	row.LaboratoryUserID = optionalID(e.LaboratoryUserID)
	row.DeliveryPartnerID = optionalID(e.DeliveryPartnerID)
	row.Status = text(string(e.Status))
	row.PreviousStatus = text(string(e.PreviousStatus))
	row.Kind = text(string(e.Kind))
	row.TotalPaise = paise(e.TotalPrice)
	row.COD = ptr(e.COD)
	row.IsPaid = ptr(e.IsPaid)
	return b.insert(ctx, row)
}

// paymentCaptured writes one row per covered order so revenue joins on
// order_id. The amount lands on the first row only.
func (b *rowBuilder) paymentCaptured(ctx context.Context, env types.Envelope, e *payloads.PaymentCapturedEvent) error {
	if len(e.OrderIDs) == 0 {
		b.logg.Warn(b.logg.WithField(ctx, "payment_id", e.PaymentID.String()), "payment captured without orders")
		return nil
	}
	for i, orderID := range e.OrderIDs {
		row, err := baseRow(env)
		if err != nil {
			return err
		}
		row.OrderID = text(orderID.String())
		row.OrderedBy = text(e.UserID.String())
		row.PaymentID = text(e.PaymentID.String())
		row.IsPaid = ptr(true)
		if i == 0 {
			row.TotalPaise = paise(e.Amount)
		} else {
			row.EventID = fmt.Sprintf("%s:%d", env.EventID, i)
		}
		if err := b.insert(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (b *rowBuilder) assignmentNudge(ctx context.Context, env types.Envelope, e *payloads.AssignmentNudgeEvent) error {
	row, err := baseRow(env)
	if err != nil {
		return err
	}
	row.OrderID = text(e.OrderID.String())
	row.OrderedBy = text(e.OrderedBy.String())
	row.WaitingMs = ptr(e.WaitingMs)
	return b.insert(ctx, row)
}

func baseRow(env types.Envelope) (types.OrderEventRow, error) {
	payload, err := writer.EncodeJSON(env.Payload)
	if err != nil {
		return types.OrderEventRow{}, err
	}
	return types.OrderEventRow{
		EventID:       env.EventID,
		EventType:     string(env.EventType),
		AggregateType: string(env.AggregateType),
		AggregateID:   env.AggregateID,
		OccurredAt:    env.OccurredAt.UTC(),
		Payload:       payload,
	}, nil
}

func ptr[T any](v T) *T { return &v }

// text is nil for blank strings so BigQuery stores NULL.
func text(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func optionalID(id *uuid.UUID) *string {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return text(id.String())
}

// paise rounds half away from zero.
func paise(rupees decimal.Decimal) *int64 {
	return ptr(rupees.Shift(2).Round(0).IntPart())
}
