package cron

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service ticks every Interval. Each cycle runs all registered jobs in order,
// but only on the replica that wins the lock.
type Service struct {
	logg     *logger.Logger
	jobs     *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Logger == nil || p.Lock == nil {
		return nil, errors.New("cron service needs a logger and a lock")
	}
	jobs := p.Registry
	if jobs == nil {
		jobs = &Registry{}
	}
	return &Service{
		logg:     p.Logger,
		jobs:     jobs,
		lock:     p.Lock,
		metrics:  p.Metrics,
		interval: cmp.Or(max(p.Interval, 0), defaultInterval),
	}, nil
}

// Run starts with an immediate cycle and returns ctx.Err() once ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ctx = s.logg.WithField(ctx, "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle finished with errors", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runCycle keeps going after a failed job and returns every job error
// combined.
func (s *Service) runCycle(ctx context.Context) error {
	ran, err := withLock(ctx, s.lock, func() (errs error) {
		for _, job := range s.jobs.Jobs() {
			multierr.AppendInto(&errs, s.runJob(ctx, job))
		}
		return errs
	})
	if !ran && err == nil {
		s.logg.Debug(ctx, "cron lock held elsewhere, skipping cycle")
	}
	return err
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	ctx = s.logg.WithField(ctx, "job", job.Name())
	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)
	s.metrics.ObserveRun(job.Name(), elapsed, err)

	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron job failed", err)
		return fmt.Errorf("%s: %w", job.Name(), err)
	}
	s.logg.Debug(ctx, "cron job done")
	return nil
}
