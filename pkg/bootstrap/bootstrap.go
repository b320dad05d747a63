// Package bootstrap is the shared entry point of the cmd/ binaries: env and
// config loading, the service logger, signal handling and exit codes.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/instance"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

// RunFunc is a binary's body. It returns when ctx is cancelled or on a fatal
// error.
type RunFunc func(ctx context.Context, cfg *config.Config, logg *logger.Logger) error

// Main loads .env and config, builds the logger for service and calls run
// with a context cancelled on SIGINT or SIGTERM. Any error other than the
// cancellation exits the process with status 1.
func Main(service string, run RunFunc) {
	cfg, logg, err := Load(service)
	if err != nil {
		logg.Error(context.Background(), "resource not working: config", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"instance":    instance.ID(),
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, service+" starting")

	err = clean(run(ctx, cfg, logg))
	stop()
	if err != nil {
		logg.Error(ctx, service+" stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, service+" stopped")
}

// Load returns a usable logger even when config loading fails.
func Load(service string) (*config.Config, *logger.Logger, error) {
	_ = godotenv.Load()

	logg := logger.New(logger.Options{ServiceName: service})
	cfg, err := config.Load()
	if err != nil {
		return nil, logg, err
	}
	cfg.Service.Kind = service
	logg = logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	return cfg, logg, nil
}

// CloseQuietly is for deferred Close calls whose error can only be logged.
func CloseQuietly(ctx context.Context, logg *logger.Logger, name string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logg.Error(ctx, fmt.Sprintf("failed to close %s", name), err)
	}
}

// clean drops the cancellation that every graceful shutdown ends with.
func clean(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
