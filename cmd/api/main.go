package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/config"
	"github.com/flicky/storefront-api/internal/handler"
	"github.com/flicky/storefront-api/internal/metrics"
	"github.com/flicky/storefront-api/internal/service"
	"github.com/flicky/storefront-api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	infra, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	repos := infra.repos
	ledger := service.NewInventoryLedger(repos.Products, cache.NewInvalidator(infra.store, log))
	authSvc := service.NewAuthService(repos.Users, infra.store, cfg.JWT.Secret, cfg.JWT.Expiration, log)
	productSvc := service.NewProductService(repos, infra.store, log)
	cartSvc := service.NewCartService(repos, infra.store, log)
	orderSvc := service.NewOrderService(repos, ledger, infra.store, infra.events, m, log)
	fulfillmentSvc := service.NewFulfillmentService(repos, infra.store, infra.events, log)

	if cfg.Log.SlogLevel() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.Router{
		Auth:      handler.NewAuthHandler(authSvc, log),
		Products:  handler.NewProductHandler(productSvc, log),
		Carts:     handler.NewCartHandler(cartSvc, log),
		Orders:    handler.NewOrderHandler(orderSvc, log),
		Admin:     handler.NewAdminHandler(orderSvc, fulfillmentSvc, log),
		Health:    handler.NewHealthHandler(handler.DependencyChecks(infra.pool, infra.redis, infra.amqpConn)),
		Metrics:   m,
		JWTSecret: cfg.JWT.Secret,
		Sessions:  authSvc,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if cfg.Events.Worker {
		if infra.workerCh == nil {
			log.Warn("fulfillment worker disabled: RabbitMQ is not connected")
		} else {
			w := worker.NewFulfillmentWorker(infra.workerCh, cfg.RabbitMQ.Queue, fulfillmentSvc, infra.store, m, log)
			g.Go(func() error { return w.Run(ctx) })
		}
	}

	return g.Wait()
}
