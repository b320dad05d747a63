package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

const defaultOutboxRetention = 7 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	// Retention defaults to seven days.
	Retention time.Duration
}

// NewOutboxRetentionJob purges published outbox rows once they are older than
// the retention window. Unpublished rows are never touched.
func NewOutboxRetentionJob(p OutboxRetentionJobParams) (Job, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.DB == nil:
		return nil, errors.New("db runner required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	if p.Retention <= 0 {
		p.Retention = defaultOutboxRetention
	}
	return &outboxRetentionJob{params: p, now: time.Now}, nil
}

type outboxRetentionJob struct {
	params OutboxRetentionJobParams
	now    func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.params.Retention)
	var purged int64
	if err := j.params.DB.WithTx(ctx, func(tx *gorm.DB) (err error) {
		purged, err = j.params.Repository.DeletePublishedBefore(tx, cutoff)
		return err
	}); err != nil {
		return fmt.Errorf("purge published outbox rows before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	logg := j.params.Logger
	logg.Info(logg.WithFields(ctx, map[string]any{"cutoff": cutoff, "rows_deleted": purged}), "outbox retention cleanup complete")
	return nil
}
