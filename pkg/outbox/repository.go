package outbox

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
)

// lastError is capped so a runaway gateway message cannot bloat the row.
const maxLastErrorLen = 1024

// Repository reads and writes outbox_events. Every method runs on the
// caller's transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Create(&event).Error
}

// Exists reports whether an event of this type was ever queued for the
// aggregate, published or not.
func (r *Repository) Exists(tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errNoTx
	}
	var found []uuid.UUID
	err := tx.Model(&models.OutboxEvent{}).
		Where(&models.OutboxEvent{EventType: eventType, AggregateType: aggregateType, AggregateID: aggregateID}).
		Limit(1).
		Pluck("id", &found).Error
	return len(found) > 0, err
}

// ClaimPending returns the oldest unpublished rows still under maxAttempts.
// On postgres the rows stay locked until tx ends and other publishers skip
// them.
func (r *Repository) ClaimPending(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errNoTx
	}
	q := tx.Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	if tx.Dialector != nil && tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var pending []models.OutboxEvent
	err := q.Order("created_at, id").Limit(limit).Find(&pending).Error
	return pending, err
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID) error {
	return setColumns(tx, id, map[string]any{"published_at": time.Now().UTC(), "last_error": nil})
}

// RecordFailure stores cause and counts one more attempt.
func (r *Repository) RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error {
	return setColumns(tx, id, map[string]any{
		"last_error":    clipLastError(cause),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// Retire pins attempt_count at ceiling so ClaimPending never returns the row
// again.
func (r *Repository) Retire(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error {
	return setColumns(tx, id, map[string]any{"last_error": clipLastError(cause), "attempt_count": ceiling})
}

// DeletePublishedBefore removes published rows older than cutoff.
func (r *Repository) DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		return 0, errNoTx
	}
	res := tx.Where("published_at IS NOT NULL AND published_at < ?", cutoff).Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func setColumns(tx *gorm.DB, id uuid.UUID, columns map[string]any) error {
	if tx == nil {
		return errNoTx
	}
	res := tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("outbox row %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

func clipLastError(err error) any {
	if err == nil {
		return nil
	}
	return clipUTF8(err.Error(), maxLastErrorLen)
}
