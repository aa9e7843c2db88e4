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
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/layer-3/bazaar/adapters/events"
	"github.com/layer-3/bazaar/adapters/hasher"
	"github.com/layer-3/bazaar/adapters/metrics"
	"github.com/layer-3/bazaar/adapters/nonce"
	"github.com/layer-3/bazaar/adapters/signature"
	"github.com/layer-3/bazaar/adapters/store"
	"github.com/layer-3/bazaar/adapters/tokenizer"
	"github.com/layer-3/bazaar/config"
	"github.com/layer-3/bazaar/ports"
	"github.com/layer-3/bazaar/service"
	transport "github.com/layer-3/bazaar/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Info("no .env file found; relying on existing environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	var accounts ports.AccountStore
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		accounts = pg
		logger.Info("using postgres account store")
	} else {
		accounts = store.NewMemoryStore()
		logger.Warn("DATABASE_URL not set; accounts are kept in memory")
	}

	var (
		revocations ports.RevocationStore = store.NewMemoryRevocations()
		serviceOpts []service.Option
	)
	if cfg.RedisURL != "" {
		redisClient, err := connectRedis(ctx, cfg.RedisURL, cfg.StoreTimeout)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			return err
		}
		defer publisher.Close()

		revocations = store.NewRedisRevocations(redisClient)
		serviceOpts = append(serviceOpts, service.WithEventPublisher(events.NewWatermillPublisher(publisher)))
	} else {
		logger.Warn("REDIS_URL not set; revocations are local and events are dropped")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	authMetrics, err := metrics.NewPrometheusMetrics(registry)
	if err != nil {
		return err
	}

	serviceOpts = append(serviceOpts,
		service.WithMetrics(authMetrics),
		service.WithLogger(logger),
		service.WithStoreTimeout(cfg.StoreTimeout),
	)
	authService := service.NewAuthService(
		accounts,
		revocations,
		tokenizer.NewJWTTokenizer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL),
		signature.NewEthVerifier(),
		hasher.NewBcryptHasher(cfg.BcryptCost),
		nonce.NewRandomGenerator(),
		serviceOpts...,
	)

	router := transport.SetupRouter(authService, cfg.CORSOrigins, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("bazaar auth listening", "addr", cfg.HTTPAddress())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("graceful shutdown error", "error", err)
	}
	return nil
}

// connectRedis opens a client for url and checks it answers within timeout.
func connectRedis(ctx context.Context, url string, timeout time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ContextTimeoutEnabled = true
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
