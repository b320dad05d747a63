// Package router turns order-domain events into BigQuery rows, one handler per
// event type.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iamnithishraja/klinic-sub000/internal/analytics/types"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

type Writer interface {
	InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error
}

// Handler receives the envelope and its payload decoded into the type
// registered for the event.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

// typedHandler checks the payload type once so the row builders can take it
// directly.
type typedHandler[T any] func(ctx context.Context, envelope types.Envelope, event *T) error

func (h typedHandler[T]) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*T)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", payload, envelope.EventType)
	}
	return h(ctx, envelope, event)
}

type route struct {
	decode  func() any
	handler Handler
}

func routeFor[T any](h typedHandler[T]) route {
	return route{decode: func() any { return new(T) }, handler: h}
}

type Router struct {
	routes map[enums.OutboxEventType]route
}

// NewRouter installs the row builders for every order-domain event. overrides
// replace the handler of an already routed event; unknown events are ignored.
func NewRouter(w Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	switch {
	case w == nil:
		return nil, errors.New("writer is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	rows := &rowBuilder{writer: w, logg: logg}

	lifecycle := routeFor[payloads.OrderEvent](rows.orderEvent)
	routes := map[enums.OutboxEventType]route{
		enums.EventOrderAssignmentNudged: routeFor[payloads.AssignmentNudgeEvent](rows.assignmentNudge),
		enums.EventPaymentCaptured:       routeFor[payloads.PaymentCapturedEvent](rows.paymentCaptured),
	}
	for _, t := range []enums.OutboxEventType{
		enums.EventOrderCreated,
		enums.EventOrderLabAssigned,
		enums.EventOrderDeliveryAssigned,
		enums.EventOrderStatusChanged,
		enums.EventOrderPaid,
		enums.EventOrderCancelled,
	} {
		routes[t] = lifecycle
	}

	for t, h := range overrides {
		if r, ok := routes[t]; ok && h != nil {
			r.handler = h
			routes[t] = r
		}
	}
	return &Router{routes: routes}, nil
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	rt, ok := r.routes[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	payload := rt.decode()
	if err := json.Unmarshal(envelope.Payload, payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}
	return rt.handler.Handle(ctx, envelope, payload)
}
