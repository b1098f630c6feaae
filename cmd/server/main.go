package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/broker"
	"github.com/kiwari-pos/floorops/internal/config"
	"github.com/kiwari-pos/floorops/internal/database"
	"github.com/kiwari-pos/floorops/internal/events"
	"github.com/kiwari-pos/floorops/internal/logging"
	mw "github.com/kiwari-pos/floorops/internal/middleware"
	"github.com/kiwari-pos/floorops/internal/router"
	"github.com/kiwari-pos/floorops/internal/service"
	"github.com/kiwari-pos/floorops/internal/ws"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	if cfg.MigrateOnStart {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	hub := ws.NewHub(log.WithField("component", "ws"))
	go hub.Run(ctx)

	publishers := events.Multi{hub}
	if cfg.AMQPURL != "" {
		pub, err := broker.Dial(cfg.AMQPURL, cfg.AMQPExchange, log.WithField("component", "broker"))
		if err != nil {
			return err
		}
		defer pub.Close()
		publishers = append(publishers, pub)
	}

	queries := database.New(pool)
	catalog := service.NewCatalog(queries, cfg.DefaultTotalTables)

	orders := service.NewOrderService(pool,
		func(db database.DBTX) service.OrderStore {
			return database.New(db)
		},
		service.OrderServiceConfig{
			Products:  catalog,
			Discounts: catalog,
			Settings:  catalog,
			Publisher: publishers,
			Logger:    log.WithField("component", "orders"),
		},
	)
	shifts := service.NewShiftService(pool,
		func(db database.DBTX) service.ShiftStore {
			return database.New(db)
		},
		log.WithField("component", "shifts"),
	)
	reports := service.NewReportService(queries)

	limiter := mw.NewTenantRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx, time.Minute)

	r := router.New(cfg, router.Services{
		Orders:  orders,
		Shifts:  shifts,
		Reports: reports,
	}, hub, limiter, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	log.WithField("port", cfg.Port).Info("starting server")
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
