package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iamnithishraja/klinic-sub000/internal/cron"
	"github.com/iamnithishraja/klinic-sub000/internal/orders"
	"github.com/iamnithishraja/klinic-sub000/pkg/bootstrap"
	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/db"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/metrics"
	"github.com/iamnithishraja/klinic-sub000/pkg/migrate"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox"
	"github.com/iamnithishraja/klinic-sub000/pkg/redis"
)

func main() {
	bootstrap.Main("cron-worker", run)
}

// run registers the assignment nudge and outbox retention jobs behind one
// Redis lock, so only one replica works each cycle.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer bootstrap.CloseQuietly(ctx, logg, "database", dbClient)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer bootstrap.CloseQuietly(ctx, logg, "redis", redisClient)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), 0)
	if err != nil {
		return err
	}

	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	nudge, err := cron.NewAssignmentNudgeJob(cron.AssignmentNudgeJobParams{
		Logger: logg,
		DB:     dbClient,
		Orders: orders.NewRepository(conn),
		Outbox: outbox.NewService(outboxRepo, logg),
		After:  cfg.Orders.AssignmentNudgeAfter,
	})
	if err != nil {
		return fmt.Errorf("assignment nudge job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return fmt.Errorf("outbox retention job: %w", err)
	}
	jobs, err := cron.NewRegistry(nudge, retention)
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Orders.CronInterval,
	})
	if err != nil {
		return err
	}
	return service.Run(ctx)
}
