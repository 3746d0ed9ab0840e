package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ferriqa/ferriqa/internal/apirouter"
	"github.com/ferriqa/ferriqa/internal/config"
	"github.com/ferriqa/ferriqa/internal/deliverer"
	"github.com/ferriqa/ferriqa/internal/logging"
	"github.com/ferriqa/ferriqa/internal/logretention"
	"github.com/ferriqa/ferriqa/internal/logstore"
	"github.com/ferriqa/ferriqa/internal/registry"
	"github.com/ferriqa/ferriqa/internal/webhook"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configPath := flag.String("config", "", "path to config file (.env or yaml)")
	flag.Parse()

	cfg, err := config.Parse(*configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(
		logging.WithLogLevel(cfg.LogLevel),
		logging.WithPretty(cfg.LogPretty),
	)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		store   registry.Store
		history logstore.LogStore
	)
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		store = registry.NewPGStore(pool, logger)
		history = logstore.NewPGLogStore(pool)
	} else {
		logger.Warn("no postgres_url configured, using in-memory stores")
		store = registry.NewMemStore(logger)
		history = logstore.NewMemLogStore()
	}

	service := webhook.NewService(store, history, deliverer.New(logger), logger, webhook.Config{
		TickInterval:             cfg.QueueTickInterval(),
		MaxConcurrent:            cfg.MaxConcurrentDeliveries,
		DefaultMaxAttempts:       cfg.RetryMaxAttempts,
		DefaultTimeout:           cfg.DeliveryTimeout(),
		DefaultInitialDelay:      cfg.RetryInitialDelay(),
		DefaultBackoffMultiplier: cfg.RetryBackoffMultiplier,
	})
	service.Start(ctx)
	defer service.Stop()

	router := apirouter.NewRouter(store, service, logger, apirouter.RouterConfig{GinMode: cfg.GinMode})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("api listening", zap.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.RetentionDays > 0 {
		worker, err := logretention.NewWorker(history, cfg.RetentionMaxAge(), cfg.RetentionInterval(), logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := worker.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
