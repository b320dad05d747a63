package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/enums"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox/payloads"
)

const (
	defaultNudgeAfter = 2 * time.Hour
	nudgeBatchSize    = 100
)

type awaitingAssignmentReader interface {
	FindAwaitingAssignmentBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type onceEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// AssignmentNudgeJobParams configure the unassigned-order nudge.
type AssignmentNudgeJobParams struct {
	Logger *logger.Logger
	DB     txRunner
	Orders awaitingAssignmentReader
	Outbox onceEmitter
	After  time.Duration
}

// NewAssignmentNudgeJob emits one order_assignment_nudged event for every
// order still waiting for a laboratory after the configured delay.
func NewAssignmentNudgeJob(params AssignmentNudgeJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("order reader required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox service required")
	}
	after := params.After
	if after <= 0 {
		after = defaultNudgeAfter
	}
	return &assignmentNudgeJob{
		logg:   params.Logger,
		db:     params.DB,
		orders: params.Orders,
		outbox: params.Outbox,
		after:  after,
		now:    time.Now,
	}, nil
}

type assignmentNudgeJob struct {
	logg   *logger.Logger
	db     txRunner
	orders awaitingAssignmentReader
	outbox onceEmitter
	after  time.Duration
	now    func() time.Time
}

func (j *assignmentNudgeJob) Name() string { return "assignment-nudge" }

func (j *assignmentNudgeJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.after)
	rows, err := j.orders.FindAwaitingAssignmentBefore(ctx, cutoff, nudgeBatchSize)
	if err != nil {
		return fmt.Errorf("query orders awaiting assignment: %w", err)
	}

	var errs error
	for _, order := range rows {
		evt := outbox.DomainEvent{
			EventType:     enums.EventOrderAssignmentNudged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.AssignmentNudgeEvent{
				OrderID:   order.ID,
				OrderedBy: order.OrderedBy,
				WaitingMs: now.Sub(order.CreatedAt).Milliseconds(),
				CreatedAt: order.CreatedAt.UTC(),
			},
		}
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			return j.outbox.EmitIfNotExists(ctx, tx, evt)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("nudge order %s: %w", order.ID, err))
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(rows),
		"failed":     len(multierr.Errors(errs)),
	}), "assignment nudge complete")
	return errs
}
