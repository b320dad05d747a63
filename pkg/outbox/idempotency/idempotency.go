// Package idempotency lets Pub/Sub consumers skip outbox events they have
// already handled.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iamnithishraja/klinic-sub000/pkg/instance"
	"github.com/iamnithishraja/klinic-sub000/pkg/redis"
)

var (
	errNoConsumer = errors.New("consumer name is required")
	errNoEventID  = errors.New("event id is required")
)

// Manager claims events per consumer. A claim is a Redis key
// klinic:idempotency:consumed:<consumer>:<event_id> whose value names the
// instance that took it. A zero ttl keeps claims forever.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	owner string
	now   func() time.Time
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("claim ttl %s is negative", ttl)
	}
	return &Manager{store: store, ttl: ttl, owner: instance.ID(), now: time.Now}, nil
}

// CheckAndMarkProcessed claims eventID for consumer. It reports true when an
// earlier delivery already holds the claim.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (seen bool, err error) {
	key, err := m.claimKey(consumer, eventID)
	if err != nil {
		return false, err
	}
	stamp := fmt.Sprintf("%s@%s", m.owner, m.now().UTC().Format(time.RFC3339))
	won, err := m.store.SetNX(ctx, key, stamp, m.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return !won, nil
}

// Delete releases a claim so a redelivery can retry the event.
func (m *Manager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.claimKey(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) claimKey(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errNoConsumer
	case eventID == uuid.Nil:
		return "", errNoEventID
	}
	return m.store.IdempotencyKey("consumed:"+consumer, eventID.String()), nil
}
