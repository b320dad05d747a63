package main

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/db/models"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox/registry"
)

const (
	defaultBatchSize    = 50
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 10
	publishTimeout      = 15 * time.Second
	maxBackoff          = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond
)

type pinger interface {
	Ping(context.Context) error
}

type dbClient interface {
	pinger
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// eventQueue is the publisher's view of outbox_events.
type eventQueue interface {
	ClaimPending(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	Retire(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error
}

type deadLetterSink interface {
	Add(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       eventQueue
	Registry         eventResolver
	PublisherFactory publisherFactory
	DLQRepository    deadLetterSink
}

// Service drains outbox_events onto Pub/Sub. Events of one order share an
// ordering key so consumers observe its status changes in commit order.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	queue        eventQueue
	pubsub       pubSubClient
	registry     eventResolver
	dlq          deadLetterSink
	publishers   publisherFactory
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	deps := []struct {
		name string
		set  bool
	}{
		{"config", p.Config != nil},
		{"logger", p.Logger != nil},
		{"database client", p.DB != nil},
		{"pubsub client", p.PubSub != nil},
		{"outbox repository", p.Repository != nil},
		{"event registry", p.Registry != nil},
		{"dlq repository", p.DLQRepository != nil},
	}
	for _, dep := range deps {
		if !dep.set {
			return nil, fmt.Errorf("outbox publisher: %s is required", dep.name)
		}
	}

	publishers := p.PublisherFactory
	if publishers == nil {
		publishers = orderedPublishers(p.PubSub)
	}
	cfg := p.Config.Outbox
	return &Service{
		logg:         p.Logger,
		db:           p.DB,
		queue:        p.Repository,
		pubsub:       p.PubSub,
		registry:     p.Registry,
		dlq:          p.DLQRepository,
		publishers:   publishers,
		batchSize:    cmp.Or(max(cfg.BatchSize, 0), defaultBatchSize),
		maxAttempts:  cmp.Or(max(cfg.MaxAttempts, 0), defaultMaxAttempts),
		pollInterval: cmp.Or(time.Duration(max(cfg.PollIntervalMS, 0))*time.Millisecond, defaultPollInterval),
	}, nil
}

// Run polls until ctx is cancelled. A non-empty batch is followed at once by
// the next one; failures back off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	for name, dep := range map[string]pinger{"database": s.db, "pubsub": s.pubsub} {
		if err := dep.Ping(ctx); err != nil {
			s.logg.Error(ctx, name+" not reachable", err)
			return fmt.Errorf("%s ping: %w", name, err)
		}
	}

	wait := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}
		drained, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			wait = nextBackoff(wait, s.pollInterval, maxBackoff)
		case drained:
			wait = s.pollInterval
			continue
		default:
			wait = s.pollInterval
		}
		if err := sleep(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	return min(max(current, base)*2, ceiling)
}

func withJitter(d time.Duration) time.Duration {
	return d + rand.N(jitterWindow)
}
