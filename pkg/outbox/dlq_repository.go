package outbox

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
)

const maxDLQErrorLen = 1024

// DLQRepository stores order events the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// Add writes entry on tx so the dead letter commits with the outbox row it
// retires.
func (r *DLQRepository) Add(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errNoTx
	}
	if entry.ErrorMessage != nil {
		clipped := clipUTF8(*entry.ErrorMessage, maxDLQErrorLen)
		entry.ErrorMessage = &clipped
	}
	return tx.Create(&entry).Error
}

// FindByEventID returns nil, nil when the event was never dead-lettered.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	switch err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&entry).Error; {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &entry, nil
}

// ListForAggregate returns the dead letters of one order, newest first.
func (r *DLQRepository) ListForAggregate(ctx context.Context, aggregateID uuid.UUID) ([]models.OutboxDLQ, error) {
	var entries []models.OutboxDLQ
	err := r.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("failed_at DESC").
		Find(&entries).Error
	return entries, err
}

// clipUTF8 caps s at limit bytes without splitting a rune.
func clipUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
