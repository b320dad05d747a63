package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/iamnithishraja/klinic-sub000/api/controllers"
	"github.com/iamnithishraja/klinic-sub000/api/routes"
	"github.com/iamnithishraja/klinic-sub000/internal/auth"
	"github.com/iamnithishraja/klinic-sub000/internal/delivery"
	"github.com/iamnithishraja/klinic-sub000/internal/laboratories"
	"github.com/iamnithishraja/klinic-sub000/internal/orders"
	"github.com/iamnithishraja/klinic-sub000/internal/payments"
	product "github.com/iamnithishraja/klinic-sub000/internal/products"
	"github.com/iamnithishraja/klinic-sub000/internal/tracking"
	"github.com/iamnithishraja/klinic-sub000/internal/users"
	"github.com/iamnithishraja/klinic-sub000/pkg/auth/session"
	"github.com/iamnithishraja/klinic-sub000/pkg/bootstrap"
	"github.com/iamnithishraja/klinic-sub000/pkg/config"
	"github.com/iamnithishraja/klinic-sub000/pkg/db"
	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
	"github.com/iamnithishraja/klinic-sub000/pkg/metrics"
	"github.com/iamnithishraja/klinic-sub000/pkg/migrate"
	"github.com/iamnithishraja/klinic-sub000/pkg/outbox"
	"github.com/iamnithishraja/klinic-sub000/pkg/razorpay"
	"github.com/iamnithishraja/klinic-sub000/pkg/redis"
	"github.com/iamnithishraja/klinic-sub000/pkg/storage/objectstore"
)

const shutdownTimeout = 15 * time.Second

func main() {
	bootstrap.Main("api", run)
}

// run wires the services behind the chi router and serves until ctx ends.
// The tracking relay, when enabled, shares the server's lifetime.
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}

	conn := dbClient.DB()
	userRepo := users.NewRepository(conn)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{DB: dbClient, PasswordConfig: cfg.Password})
	if err != nil {
		return fmt.Errorf("register service: %w", err)
	}
	adminRegisterService, err := auth.NewAdminRegisterService(auth.AdminRegisterServiceParams{DB: dbClient, PasswordConfig: cfg.Password})
	if err != nil {
		return fmt.Errorf("admin register service: %w", err)
	}

	productRepo := product.NewRepository(conn)
	productService, err := product.NewService(productRepo)
	if err != nil {
		return fmt.Errorf("product service: %w", err)
	}
	labService, err := laboratories.NewService(laboratories.NewRepository(conn), userRepo)
	if err != nil {
		return fmt.Errorf("laboratory service: %w", err)
	}
	deliveryRepo := delivery.NewRepository(conn)
	deliveryService, err := delivery.NewService(deliveryRepo)
	if err != nil {
		return fmt.Errorf("delivery service: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	channel := redisClient.ChannelName(cfg.Tracking.Channel)
	notifier, err := tracking.NewNotifier(redisClient, channel)
	if err != nil {
		return fmt.Errorf("tracking notifier: %w", err)
	}

	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:       orders.NewRepository(conn),
		Tx:         dbClient,
		Outbox:     emitter,
		Products:   orders.ProductsFromRepository(productRepo),
		Users:      userRepo,
		Labs:       labService,
		Deliveries: deliveryRepo,
		Notifier:   notifier,
		Metrics:    metrics.NewOrderMetrics(registry),
		Logger:     logg,
	})
	if err != nil {
		return fmt.Errorf("orders service: %w", err)
	}

	deps := routes.Deps{
		Config:   cfg,
		Logger:   logg,
		Redis:    redisClient,
		Sessions: sessionManager,
		Pingers: map[string]controllers.Pinger{
			"postgres": dbClient,
			"redis":    redisClient,
		},
		Metrics:       registry,
		Auth:          authService,
		Register:      registerService,
		AdminRegister: adminRegisterService,
		Products:      productService,
		Laboratories:  labService,
		Delivery:      deliveryService,
		Orders:        ordersService,
		DeadLetters:   outbox.NewDLQRepository(conn),
	}

	if gateway, err := razorpay.NewClient(cfg.Razorpay); err != nil {
		logg.Warn(logg.WithField(ctx, "reason", err.Error()), "razorpay not configured, payment routes disabled")
	} else {
		paymentService, err := payments.NewService(payments.ServiceParams{
			Repo:    payments.NewRepository(conn),
			Gateway: gateway,
			Orders:  ordersService,
			Tx:      dbClient,
			Outbox:  emitter,
			Logger:  logg,
		})
		if err != nil {
			return fmt.Errorf("payment service: %w", err)
		}
		deps.Payments = paymentService
	}

	if cfg.ObjectStore.Enabled() {
		store, err := objectstore.New(ctx, cfg.ObjectStore, logg)
		if err != nil {
			return fmt.Errorf("object store client: %w", err)
		}
		deps.Uploads = store
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.FeatureFlags.Tracking {
		hub := tracking.NewHub(logg)
		deps.Hub = hub
		g.Go(func() error {
			if err := hub.Run(gctx, redisClient, channel); err != nil && gctx.Err() == nil {
				logg.Error(gctx, "order tracking relay stopped", err)
			}
			return nil
		})
	}
	server.Handler = routes.NewRouter(deps)

	g.Go(func() error {
		logg.Info(logg.WithField(gctx, "addr", server.Addr), "api server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
