package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/notify-dispatch/internal/config"
	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"github.com/kursadbilgin/notify-dispatch/internal/handler"
	"github.com/kursadbilgin/notify-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/notify-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/notify-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/notify-dispatch/internal/observability"
	"github.com/kursadbilgin/notify-dispatch/internal/provider"
	"github.com/kursadbilgin/notify-dispatch/internal/queue"
	"github.com/kursadbilgin/notify-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"github.com/kursadbilgin/notify-dispatch/internal/service"
	"github.com/kursadbilgin/notify-dispatch/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to read .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("notify-dispatch stopped with error", zap.Error(err))
	}
	logger.Info("notify-dispatch stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var checks []handler.ReadinessCheck

	repos, closeStore, storeChecks, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	checks = append(checks, storeChecks...)

	limiter, rdb, err := newLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		checks = append(checks, handler.RedisCheck(rdb))
	}

	registry, err := newRegistry(cfg, repos, logger)
	if err != nil {
		return err
	}

	retry, err := service.NewRetryPolicy(cfg.RetryPolicy, cfg.RetryBaseDelay(), cfg.RetryMaxDelay())
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	notifications := service.NewNotificationService(repos, logger)
	producers := service.NewProducerService(notifications, repos, logger)

	dispatcher := service.NewDispatcher(repos, registry, limiter, service.DispatcherConfig{
		Interval:    cfg.DispatchInterval(),
		BatchSize:   cfg.DispatchBatchSize,
		Concurrency: cfg.DispatchConcurrency,
		StaleAfter:  cfg.StaleAfter(),
		Retry:       retry,
	}, logger.Named("dispatcher"))
	dispatcher.SetMetrics(metrics)

	var consumer *queue.RabbitMQConsumer
	if cfg.RabbitMQURL != "" {
		mq, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL, cfg.EventsQueue)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		consumer = queue.NewRabbitMQConsumer(mq, cfg.ConsumerPrefetch, logger.Named("consumer"))
		defer consumer.Close() //nolint:errcheck
		checks = append(checks, handler.ReadinessCheck{Name: "rabbitmq", Ping: mq.Ping})
	}

	app := fiber.New(fiber.Config{
		AppName:               "notify-dispatch",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, checks...)

	err = handler.RegisterRoutes(app, handler.Services{
		Notifications: notifications,
		Channels:      service.NewChannelService(repos.Channels, registry, logger),
		Templates:     service.NewTemplateService(repos.Templates, logger),
		Settings:      service.NewSettingService(repos.Settings, logger),
		Inbox:         service.NewInboxService(repos.Inbox),
		Producers:     producers,
	})
	if err != nil {
		return err
	}

	handle, err := dispatcher.Start(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("notify-dispatch api started",
			zap.Int("port", cfg.APIPort),
			zap.String("store", cfg.StoreDriver),
			zap.Strings("channels", kindNames(registry.Kinds())),
		)
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	if consumer != nil {
		g.Go(func() error {
			logger.Info("event consumer started", zap.String("queue", cfg.EventsQueue))
			return consumer.Consume(gctx, cfg.EventsQueue, producers.HandleEvent)
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-handle.Done():
			if err := handle.Err(); err != nil {
				return err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", zap.Error(err))
		}
		return nil
	})

	groupErr := g.Wait()

	if err := handle.Stop(); err != nil {
		logger.Error("dispatcher stopped with error", zap.Error(err))
		if groupErr == nil {
			groupErr = err
		}
	}

	return groupErr
}

// openStore returns the repositories for the configured driver together with
// a release func and the readiness checks the store contributes.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Repositories, func(), []handler.ReadinessCheck, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		store := repository.NewMemoryStore(time.Now)
		repos := store.Repositories()
		for _, tmpl := range domain.DefaultTemplates() {
			tmpl := tmpl
			if err := repos.Templates.Create(ctx, &tmpl); err != nil {
				return repository.Repositories{}, nil, nil, fmt.Errorf("seed template %q: %w", tmpl.Key, err)
			}
		}
		logger.Warn("using the in-memory store, data is lost on restart")
		return repos, func() {}, nil, nil
	}

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return repository.Repositories{}, nil, nil, fmt.Errorf("postgres initialization failed: %w", err)
	}
	release := func() {
		if err := postgresql.Close(db); err != nil {
			logger.Warn("postgres close failed", zap.Error(err))
		}
	}

	if err := migrations.Migrate(db); err != nil {
		release()
		return repository.Repositories{}, nil, nil, fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		release()
		return repository.Repositories{}, nil, nil, fmt.Errorf("postgres underlying db init failed: %w", err)
	}

	return repository.NewGormRepositories(db), release, []handler.ReadinessCheck{handler.PostgresCheck(sqlDB)}, nil
}

// newLimiter shares the per-channel budget through Redis when REDIS_URL is
// set and falls back to an in-process limiter otherwise.
func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.RateLimiter, *redis.Client, error) {
	limits, err := ratelimit.ParseLimits(cfg.RateLimitPerSec, cfg.RateLimitOverrides)
	if err != nil {
		return nil, nil, err
	}

	if cfg.RedisURL == "" {
		return ratelimit.NewLocalLimiter(limits), nil, nil
	}

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis initialization failed: %w", err)
	}

	limiter, err := infraredis.NewRedisRateLimiter(rdb, limits)
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}

	return limiter, rdb, nil
}

func newRegistry(cfg *config.Config, repos repository.Repositories, logger *zap.Logger) (*provider.Registry, error) {
	client := resty.New().SetTimeout(cfg.ChannelSendTimeout())

	registry := provider.NewRegistry(cfg.ChannelSendTimeout(), logger.Named("provider"))
	adapters := []provider.Adapter{
		provider.NewEmailAdapter(),
		provider.NewSMSAdapter(client),
		provider.NewIMWebhookAdapter(client),
		provider.NewSystemAdapter(repos.Inbox),
	}
	for _, a := range adapters {
		if err := registry.Register(a); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func kindNames(kinds []domain.ChannelKind) []string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.String())
	}
	return names
}
