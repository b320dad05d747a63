package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/internal/analytics/router"
	"github.com/iamnithishraja/klinic-sub000/internal/analytics/types"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox"
)

const consumerName = "analytics"

// Handler turns one decoded order event into analytics rows.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, envelope)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type disposition int

const (
	ack disposition = iota
	nack
)

// Service pulls order events off the analytics subscription. Each event id is
// handled at most once per consumer; a handler failure releases the marker and
// nacks so Pub/Sub redelivers.
type Service struct {
	subscription receiver
	handler      Handler
	manager      idempotencyChecker
	logg         *logger.Logger
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, manager idempotencyChecker, logg *logger.Logger) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case manager == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: subscription,
		handler:      handler,
		manager:      manager,
		logg:         logg,
	}, nil
}

// Run blocks in Receive until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if s.process(msgCtx, msg) == nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) disposition {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	env, err := decodeEnvelope(msg)
	if err != nil {
		// Poison messages are acked; redelivery would fail the same way.
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping malformed analytics message")
		return ack
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":       env.EventID,
		"event_type":     env.EventType,
		"aggregate_type": env.AggregateType,
		"aggregate_id":   env.AggregateID,
		"occurred_at":    env.OccurredAt.Format(time.RFC3339Nano),
	})

	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		s.logg.Warn(ctx, "dropping analytics message with non-uuid event id")
		return ack
	}

	seen, err := s.manager.CheckAndMarkProcessed(ctx, consumerName, eventID)
	switch {
	case err != nil:
		s.logg.Error(ctx, "idempotency check failed", err)
		return nack
	case seen:
		s.logg.Debug(ctx, "duplicate analytics event skipped")
		return ack
	}

	err = s.handler.Handle(ctx, env)
	switch {
	case err == nil:
		s.logg.Info(ctx, "analytics event recorded")
		return ack
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Warn(ctx, "no analytics handler for event type")
		return ack
	default:
		s.logg.Error(ctx, "analytics handler failed", err)
		if delErr := s.manager.Delete(ctx, consumerName, eventID); delErr != nil {
			s.logg.Error(ctx, "release idempotency marker", delErr)
		}
		return nack
	}
}

// decodeEnvelope merges the stored outbox envelope with the routing attributes
// the publisher stamps on every message. The body wins for event id and
// occurrence time; attributes fill the gaps.
func decodeEnvelope(msg *gcppubsub.Message) (types.Envelope, error) {
	var body outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &body); err != nil {
		return types.Envelope{}, fmt.Errorf("decode payload envelope: %w", err)
	}
	attr := func(name string) string {
		return strings.TrimSpace(msg.Attributes[name])
	}

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attr("aggregate_id")
	if aggregateID == "" {
		return types.Envelope{}, errors.New("aggregate_id missing")
	}

	eventID := strings.TrimSpace(body.EventID)
	if eventID == "" {
		eventID = attr("event_id")
	}
	if eventID == "" {
		return types.Envelope{}, errors.New("event_id missing")
	}

	occurredAt := body.OccurredAt
	if occurredAt.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, attr("created_at")); err == nil {
			occurredAt = parsed
		}
	}

	return types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       body.Data,
	}, nil
}
