package main

import (
	"context"
	"fmt"

	"github.com/iamnithishraja/klinic-sub000/pkg/bootstrap"
	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/db"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/migrate"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox/registry"
	"github.com/iamnithishraja/klinic-sub000/pkg/pubsub"
)

func main() {
	bootstrap.Main("outbox-publisher", run)
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer bootstrap.CloseQuietly(ctx, logg, "database", dbClient)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer bootstrap.CloseQuietly(ctx, logg, "pubsub", pubsubClient)

	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}
	conn := dbClient.DB()
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(conn),
		Registry:      events,
		DLQRepository: outbox.NewDLQRepository(conn),
	})
	if err != nil {
		return err
	}

	logg.Info(logg.WithField(ctx, "topic", cfg.PubSub.OrdersTopic), "publishing outbox events")
	return service.Run(ctx)
}
