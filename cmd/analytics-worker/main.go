package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iamnithishraja/klinic-sub000/internal/analytics/router"
	"github.com/iamnithishraja/klinic-sub000/internal/analytics/worker"
	"github.com/iamnithishraja/klinic-sub000/internal/analytics/writer"
	"github.com/iamnithishraja/klinic-sub000/pkg/bigquery"
	"github.com/iamnithishraja/klinic-sub000/pkg/bootstrap"
	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox/idempotency"
	"github.com/iamnithishraja/klinic-sub000/pkg/pubsub"
	"github.com/iamnithishraja/klinic-sub000/pkg/redis"
)

const (
	serviceName  = "analytics-worker"
	flushTimeout = 10 * time.Second
)

func main() {
	bootstrap.Main(serviceName, run)
}

// run wires Redis idempotency, the analytics subscription and the BigQuery
// writer, then consumes until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer bootstrap.CloseQuietly(ctx, logg, "redis", redisClient)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer bootstrap.CloseQuietly(ctx, logg, "pubsub", pubsubClient)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	defer bootstrap.CloseQuietly(ctx, logg, "bigquery", bqClient)

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}
	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return fmt.Errorf("idempotency manager: %w", err)
	}
	rows, err := writer.New(bqClient, writer.Config{OrderEventsTable: bqClient.OrderEventsTable()})
	if err != nil {
		return fmt.Errorf("bigquery writer: %w", err)
	}
	handler, err := router.NewRouter(rows, logg, nil)
	if err != nil {
		return fmt.Errorf("analytics router: %w", err)
	}
	service, err := worker.NewService(subscription, handler, manager, logg)
	if err != nil {
		return fmt.Errorf("analytics worker: %w", err)
	}

	logg.Info(logg.WithField(ctx, "table", bqClient.OrderEventsTable()), "analytics worker ready")
	runErr := service.Run(ctx)

	// ctx is already cancelled here; buffered rows get their own deadline.
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	if err := rows.Flush(flushCtx); err != nil {
		logg.Error(ctx, "failed to flush buffered analytics rows", err)
	}

	return runErr
}
