package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox/registry"
)

// outcome is what happened to a single outbox row in a batch.
type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLettered
)

type tally [3]int

func (t tally) fields(size int) map[string]any {
	return map[string]any{
		"batch_size":    size,
		"published":     t[outcomePublished],
		"retry":         t[outcomeRetry],
		"dead_lettered": t[outcomeDeadLettered],
	}
}

// processBatch claims one batch and settles every row in it inside a single
// transaction. It reports whether any row was claimed.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var claimed int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.queue.ClaimPending(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox batch: %w", err)
		}
		claimed = len(events)

		var counts tally
		for _, event := range events {
			result, err := s.dispatch(ctx, tx, event)
			if err != nil {
				return err
			}
			counts[result]++
		}
		if claimed > 0 {
			s.logg.Debug(s.logg.WithFields(ctx, counts.fields(claimed)), "outbox batch drained")
		}
		return nil
	})
	return claimed > 0, err
}

// dispatch publishes one row and records what happened. Only bookkeeping
// failures are returned; publish failures become retries or dead letters.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	fields := eventFields(event)

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, fields)
	}
	fields["topic"] = resolved.Descriptor.Topic
	fields["event_id"] = resolved.Envelope.EventID

	pubErr := s.publish(ctx, event, resolved)
	attempt := event.AttemptCount + 1
	var permanent registry.NonRetryableError
	switch {
	case pubErr == nil:
		if err := s.queue.MarkPublished(tx, event.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark %s published: %w", event.ID, err)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return outcomePublished, nil
	case errors.As(pubErr, &permanent):
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, pubErr, fields)
	case attempt >= s.maxAttempts:
		exhausted := fmt.Errorf("gave up after %d attempts: %w", attempt, pubErr)
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, exhausted, fields)
	}

	fields["attempt_count"] = attempt
	fields["error"] = pubErr.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed, will retry")
	if err := s.queue.RecordFailure(tx, event.ID, pubErr); err != nil {
		return outcomeRetry, fmt.Errorf("record failure of %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

// deadLetter copies the row into outbox_dlq and retires it from the queue.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event moved to dlq")

	message := cause.Error()
	if err := s.dlq.Add(tx, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("dead letter %s: %w", event.ID, err)
	}
	if err := s.queue.Retire(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("retire %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	key := event.AggregateID.String()
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: key,
		Attributes:  messageAttributes(event, resolved),
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("topic %s returned no publish result", topic))
	}
	if _, err := result.Get(ctx); err != nil {
		pub.ResumePublish(key)
		return err
	}
	return nil
}

// messageAttributes lets subscribers route and deduplicate without decoding
// the body.
func messageAttributes(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]string {
	env := resolved.Envelope
	attrs := map[string]string{
		"event_id":       env.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"version":        strconv.Itoa(env.Version),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if env.Actor != nil && env.Actor.Role != "" {
		attrs["actor_role"] = string(env.Actor.Role)
	}
	return attrs
}

func eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"order_id":      event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
