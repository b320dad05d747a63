package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

var errNoTx = errors.New("outbox: transaction required")

// Emitter queues events in the same transaction as the order change that
// produced them.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type eventStore interface {
	Insert(tx *gorm.DB, event models.OutboxEvent) error
	Exists(tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) (bool, error)
}

type Service struct {
	store eventStore
	logg  *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{store: repo, logg: logg}
}

func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errNoTx
	}
	if err := event.validate(); err != nil {
		return err
	}
	env, row, err := event.seal()
	if err == nil {
		err = s.store.Insert(tx, row)
	}
	if err != nil || s.logg == nil {
		return err
	}
	s.logg.Debug(s.logg.WithFields(s.logg.WithOrderID(ctx, event.AggregateID.String()), map[string]any{
		"event_id":   env.EventID,
		"event_type": event.EventType,
	}), "outbox event queued")
	return nil
}

// EmitIfNotExists queues the event at most once per event type and
// aggregate. Repeated nudge cycles rely on it.
func (s *Service) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errNoTx
	}
	queued, err := s.store.Exists(tx, event.EventType, event.AggregateType, event.AggregateID)
	if err != nil || queued {
		return err
	}
	return s.Emit(ctx, tx, event)
}
