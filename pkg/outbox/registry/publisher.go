// Package registry decides where each outbox row is published and how its
// payload decodes.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox/payloads"
)

type decodeFunc func(json.RawMessage) (any, error)

// EventDescriptor is the routing entry for one event type.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        decodeFunc
}

// ResolvedEvent is an outbox row that passed validation, with its payload
// decoded into the registered type.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry is read-only after NewEventRegistry returns.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will never publish; the publisher moves
// it to the DLQ instead of retrying.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func permanent(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

func decodeAs[T any]() decodeFunc {
	return func(raw json.RawMessage) (any, error) {
		v := new(T)
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// NewEventRegistry routes every order-domain event to the orders topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}

	lifecycle := decodeAs[payloads.OrderEvent]()
	for _, t := range []enums.OutboxEventType{
		enums.EventOrderCreated,
		enums.EventOrderLabAssigned,
		enums.EventOrderDeliveryAssigned,
		enums.EventOrderStatusChanged,
		enums.EventOrderPaid,
		enums.EventOrderCancelled,
	} {
		reg.add(t, enums.AggregateOrder, cfg.OrdersTopic, lifecycle)
	}
	reg.add(enums.EventOrderAssignmentNudged, enums.AggregateOrder, cfg.OrdersTopic, decodeAs[payloads.AssignmentNudgeEvent]())
	reg.add(enums.EventPaymentCaptured, enums.AggregatePayment, cfg.OrdersTopic, decodeAs[payloads.PaymentCapturedEvent]())
	return reg, nil
}

func (r *EventRegistry) add(t enums.OutboxEventType, agg enums.OutboxAggregateType, topic string, decode decodeFunc) {
	r.entries[t] = EventDescriptor{EventType: t, AggregateType: agg, Topic: topic, decode: decode}
}

func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve checks the row against its descriptor and decodes the envelope.
// Every failure here is permanent.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, permanent("event %s belongs to %s aggregates, row says %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanent("event %s has no aggregate id", event.ID)
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanent("event %s carries no data", event.EventType)
	}
	payload, err := desc.decode(env.Data)
	if err != nil {
		return nil, permanent("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
