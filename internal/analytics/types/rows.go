package types

import (
	"encoding/json"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
)

// Envelope is a received Pub/Sub message after attribute checks. Payload is
// the event data only; the outbox version wrapper is already stripped.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Payload       json.RawMessage
}

// OrderEventRow mirrors the order_events BigQuery schema. One row per outbox event.
type OrderEventRow struct {
	EventID           string             `bigquery:"event_id"`
	EventType         string             `bigquery:"event_type"`
	AggregateType     string             `bigquery:"aggregate_type"`
	AggregateID       string             `bigquery:"aggregate_id"`
	OccurredAt        time.Time          `bigquery:"occurred_at"`
	OrderID           *string            `bigquery:"order_id"`
	OrderedBy         *string            `bigquery:"ordered_by"`
	LaboratoryUserID  *string            `bigquery:"laboratory_user_id"`
	DeliveryPartnerID *string            `bigquery:"delivery_partner_id"`
	Status            *string            `bigquery:"status"`
	PreviousStatus    *string            `bigquery:"previous_status"`
	Kind              *string            `bigquery:"kind"`
	TotalPaise        *int64             `bigquery:"total_paise"`
	COD               *bool              `bigquery:"cod"`
	IsPaid            *bool              `bigquery:"is_paid"`
	PaymentID         *string            `bigquery:"payment_id"`
	WaitingMs         *int64             `bigquery:"waiting_ms"`
	Payload           cbigquery.NullJSON `bigquery:"payload"`
}

// Save implements bigquery.ValueSaver. The event id doubles as the insert id so
// redelivered messages are deduplicated by the streaming API.
func (r *OrderEventRow) Save() (map[string]cbigquery.Value, string, error) {
	row := map[string]cbigquery.Value{
		"event_id":            r.EventID,
		"event_type":          r.EventType,
		"aggregate_type":      r.AggregateType,
		"aggregate_id":        r.AggregateID,
		"occurred_at":         r.OccurredAt,
		"order_id":            deref(r.OrderID),
		"ordered_by":          deref(r.OrderedBy),
		"laboratory_user_id":  deref(r.LaboratoryUserID),
		"delivery_partner_id": deref(r.DeliveryPartnerID),
		"status":              deref(r.Status),
		"previous_status":     deref(r.PreviousStatus),
		"kind":                deref(r.Kind),
		"total_paise":         deref(r.TotalPaise),
		"cod":                 deref(r.COD),
		"is_paid":             deref(r.IsPaid),
		"payment_id":          deref(r.PaymentID),
		"waiting_ms":          deref(r.WaitingMs),
		"payload":             nil,
	}
	if r.Payload.Valid {
		row["payload"] = r.Payload.JSONVal
	}
	return row, r.EventID, nil
}

func deref[T any](value *T) cbigquery.Value {
	if value == nil {
		return nil
	}
	return *value
}
